// SPDX-License-Identifier: MIT
/*
Package audio connects the effect to the outside world:
- Sample sources (WAV file players, sine oscillators)
- Output through PortAudio or oto
- Optional WAV recording of everything that is played

Thread Safety:
- The output backend calls Engine.Render on its audio thread
- Recording state is swapped atomically; the audio thread never waits on disk
- Buffers used on the audio thread are pre-allocated
*/
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"xsynth/internal/config"
)

// Renderer fills interleaved float32 output blocks. It is called from the
// audio thread and must not block.
type Renderer interface {
	Render(out []float32)
}

// backend is an output runtime that pulls blocks from Engine.Render.
type backend interface {
	start() error
	stop() error
}

type Engine struct {
	config   *config.Config
	renderer Renderer

	mu      sync.Mutex
	backend backend
	running bool

	// Recording state. Swapped atomically so the audio thread can check it
	// without locking.
	recorder atomic.Pointer[recorder]
}

// NewEngine prepares the configured output backend for r. The PortAudio
// backend requires Initialize to have been called.
func NewEngine(cfg *config.Config, r Renderer) (*Engine, error) {
	if r == nil {
		return nil, fmt.Errorf("audio engine needs a renderer")
	}
	e := &Engine{config: cfg, renderer: r}

	var err error
	switch cfg.Audio.Backend {
	case config.BackendPortAudio:
		e.backend, err = newPortAudioBackend(cfg.Audio, e.Render)
	case config.BackendOto:
		e.backend, err = newOtoBackend(cfg.Audio, e.Render)
	default:
		err = fmt.Errorf("unknown audio backend '%s'", cfg.Audio.Backend)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Render is the audio callback: it renders one block and, when recording,
// hands a copy to the recorder.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) Render(out []float32) {
	e.renderer.Render(out)
	if rec := e.recorder.Load(); rec != nil {
		rec.capture(out)
	}
}

// StartOutputStream starts pulling audio from the renderer.
func (e *Engine) StartOutputStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("output stream already running")
	}
	if err := e.backend.start(); err != nil {
		return err
	}
	e.running = true
	return nil
}

// StopOutputStream stops the output stream. Safe to call when stopped.
func (e *Engine) StopOutputStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	return e.backend.stop()
}
