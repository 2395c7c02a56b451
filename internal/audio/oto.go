// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"xsynth/internal/config"

	"github.com/ebitengine/oto/v3"
)

const bytesPerSample = 4 // float32

// otoBackend is a pull-model backend: oto reads PCM bytes from it, and each
// Read renders as many whole frames as fit.
type otoBackend struct {
	cfg    config.AudioConfig
	render func(out []float32)
	block  []float32 // one callback block, frames_per_buffer * channels

	ctx    *oto.Context
	player *oto.Player
}

// oto allows a single context per process.
var otoContext *oto.Context

func newOtoBackend(cfg config.AudioConfig, render func(out []float32)) (*otoBackend, error) {
	b := newOtoReader(cfg, render)
	if otoContext == nil {
		op := &oto.NewContextOptions{
			SampleRate:   int(cfg.SampleRate),
			ChannelCount: cfg.OutputChannels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(float64(cfg.FramesPerBuffer) / cfg.SampleRate * float64(time.Second)),
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("failed to create oto context: %w", err)
		}
		<-ready
		otoContext = ctx
	}
	b.ctx = otoContext
	return b, nil
}

func newOtoReader(cfg config.AudioConfig, render func(out []float32)) *otoBackend {
	return &otoBackend{
		cfg:    cfg,
		render: render,
		block:  make([]float32, cfg.FramesPerBuffer*cfg.OutputChannels),
	}
}

// playerBufferSize is one callback block in bytes. oto otherwise pulls half a
// second per Read, rendering dozens of blocks back to back faster than the
// frame worker can keep up with.
func playerBufferSize(cfg config.AudioConfig) int {
	return cfg.FramesPerBuffer * cfg.OutputChannels * bytesPerSample
}

// Read implements io.Reader for oto's player. It fills p with whole frames
// of little-endian float32 samples.
func (b *otoBackend) Read(p []byte) (int, error) {
	frameBytes := bytesPerSample * b.cfg.OutputChannels
	n := len(p) / frameBytes * frameBytes
	if n == 0 {
		return 0, io.ErrShortBuffer
	}

	for off := 0; off < n; {
		chunk := min(len(b.block), (n-off)/bytesPerSample)
		block := b.block[:chunk]
		b.render(block)
		for _, v := range block {
			binary.LittleEndian.PutUint32(p[off:], math.Float32bits(v))
			off += bytesPerSample
		}
	}
	return n, nil
}

func (b *otoBackend) start() error {
	b.player = b.ctx.NewPlayer(b)
	b.player.SetBufferSize(playerBufferSize(b.cfg))
	b.player.Play()
	return nil
}

func (b *otoBackend) stop() error {
	if b.player == nil {
		return nil
	}
	err := b.player.Close()
	b.player = nil
	return err
}
