// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	applog "xsynth/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recordingBlocks is how many rendered blocks may wait for the disk writer
// before the audio thread starts dropping them.
const recordingBlocks = 64

// recorder moves rendered blocks from the audio thread to a writer
// goroutine. The audio thread takes a block from the free list, copies into
// it and queues it; when the free list is empty the block is dropped instead
// of waiting.
type recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	scale   float64

	free    chan []float32
	full    chan []float32
	quit    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	written atomic.Uint64
	err     error // first write error, read after wg.Wait
}

func newRecorder(filename string, sampleRate, channels, bitDepth, blockLen int) (*recorder, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	r := &recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, blockLen),
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
		free:  make(chan []float32, recordingBlocks),
		full:  make(chan []float32, recordingBlocks),
		quit:  make(chan struct{}),
	}
	for range recordingBlocks {
		r.free <- make([]float32, blockLen)
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// capture runs on the audio thread. It never blocks.
func (r *recorder) capture(out []float32) {
	select {
	case block := <-r.free:
		if len(out) > cap(block) {
			r.free <- block
			r.dropped.Add(1)
			return
		}
		block = block[:len(out)]
		copy(block, out)
		r.full <- block // cannot block: full has room for every block
	default:
		r.dropped.Add(1)
	}
}

func (r *recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case block := <-r.full:
			r.write(block)
		case <-r.quit:
			for {
				select {
				case block := <-r.full:
					r.write(block)
				default:
					return
				}
			}
		}
	}
}

func (r *recorder) write(block []float32) {
	defer func() { r.free <- block[:cap(block)] }()
	if r.err != nil {
		return
	}
	data := r.buf.Data[:len(block)]
	for i, v := range block {
		s := min(max(float64(v), -1), 1)
		data[i] = int(math.Round(s * r.scale))
	}
	r.buf.Data = data
	if err := r.encoder.Write(r.buf); err != nil {
		r.err = err
		applog.Errorf("Recorder: Error writing to WAV file: %v", err)
		return
	}
	r.written.Add(uint64(len(block)))
}

// close stops the writer after it has drained every queued block and
// finalizes the file.
func (r *recorder) close() error {
	close(r.quit)
	r.wg.Wait()

	err := r.err
	if cerr := r.encoder.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if cerr := r.file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return err
}

// StartRecording begins writing everything the engine renders to a WAV
// file.
func (e *Engine) StartRecording(filename string) error {
	if e.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}
	a := e.config.Audio
	rec, err := newRecorder(filename, int(a.SampleRate), a.OutputChannels,
		e.config.Recording.BitDepth, a.FramesPerBuffer*a.OutputChannels)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.close()
		os.Remove(filename)
		return fmt.Errorf("already recording")
	}
	applog.Infof("Recorder: Recording to %s", filename)
	return nil
}

// StartRecordingInDir records to a timestamped file in dir, creating dir if
// needed, and returns the file path.
func (e *Engine) StartRecordingInDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	name := filepath.Join(dir, "xsynth_"+time.Now().Format("20060102_150405")+".wav")
	return name, e.StartRecording(name)
}

// StopRecording detaches the recorder, waits for queued blocks to reach
// disk and closes the file.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	err := rec.close()
	if n := rec.dropped.Load(); n > 0 {
		applog.Warnf("Recorder: Dropped %d blocks while recording", n)
	}
	applog.Infof("Recorder: Wrote %d samples", rec.written.Load())
	return err
}

func (e *Engine) Close() error {
	if err := e.StopOutputStream(); err != nil {
		return err
	}
	return e.StopRecording()
}
