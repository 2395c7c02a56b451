// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Player streams a decoded mono sample buffer, one sample per Next call.
// It is driven from the audio goroutine and holds no locks.
type Player struct {
	name       string
	samples    []float64
	sampleRate int
	loop       bool
	pos        int
}

// NewPlayer wraps already decoded samples in [-1, 1].
func NewPlayer(name string, samples []float64, sampleRate int, loop bool) *Player {
	return &Player{name: name, samples: samples, sampleRate: sampleRate, loop: loop}
}

// LoadWAV decodes a PCM WAV file, mixes it down to mono and scales it to
// [-1, 1].
func LoadWAV(path string, loop bool) (*Player, error) {
	samples, rate, err := decodeWAV(path)
	if err != nil {
		return nil, fmt.Errorf("audio: error loading audio file '%s': %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: error loading audio file '%s': no samples", path)
	}
	return NewPlayer(filepath.Base(path), samples, rate, loop), nil
}

func decodeWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode PCM data: %w", err)
	}
	return mixdown(buf, int(d.BitDepth)), int(d.SampleRate), nil
}

// mixdown averages interleaved channels into one and scales integer
// samples of the given bit depth to [-1, 1]. 8-bit WAV data is unsigned.
func mixdown(buf *audio.IntBuffer, bitDepth int) []float64 {
	channels := max(buf.Format.NumChannels, 1)
	frames := len(buf.Data) / channels
	full := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = full
	}

	out := make([]float64, frames)
	for f := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[f*channels+ch]) - offset) / full
		}
		out[f] = sum / float64(channels)
	}
	return out
}

// Next returns the next sample. A non-looping player returns silence once
// it has run out.
func (p *Player) Next() float64 {
	if p.pos >= len(p.samples) {
		if !p.loop || len(p.samples) == 0 {
			return 0
		}
		p.pos = 0
	}
	v := p.samples[p.pos]
	p.pos++
	return v
}

// Name returns the file name the player was loaded from.
func (p *Player) Name() string { return p.name }

// Frames returns the number of samples in one pass.
func (p *Player) Frames() int { return len(p.samples) }

// SampleRate returns the file's sample rate.
func (p *Player) SampleRate() int { return p.sampleRate }

// Duration returns the length of one pass.
func (p *Player) Duration() time.Duration {
	if p.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.samples)) / float64(p.sampleRate) * float64(time.Second))
}

// Oscillator is a sine source for running the effect without input files.
type Oscillator struct {
	phase float64
	step  float64
}

// NewOscillator returns a unit-amplitude sine at freq Hz.
func NewOscillator(freq, sampleRate float64) *Oscillator {
	return &Oscillator{step: 2 * math.Pi * freq / sampleRate}
}

func (o *Oscillator) Next() float64 {
	v := math.Sin(o.phase)
	o.phase += o.step
	if o.phase >= 2*math.Pi {
		o.phase -= 2 * math.Pi
	}
	return v
}
