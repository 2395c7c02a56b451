// SPDX-License-Identifier: MIT
/*
Package sensor supplies the control values that drive the effect: a touch
position in [0, 1] that selects the hop size, and an intensity that scales
the input gain.

A Device produces Readings on demand. A Poller reads a Device on its own
goroutine at a fixed interval and publishes the latest Reading through
atomics, so the audio goroutine can read it without locking.
*/
package sensor

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"xsynth/internal/config"
)

// Reading is one sample of the control surface.
type Reading struct {
	Position  float64 `json:"position"`  // [0, 1]
	Intensity float64 `json:"intensity"` // >= 0
}

// Clamp bounds Position to [0, 1] and Intensity to >= 0. NaN maps to 0.
func (r Reading) Clamp() Reading {
	if math.IsNaN(r.Position) {
		r.Position = 0
	}
	if math.IsNaN(r.Intensity) {
		r.Intensity = 0
	}
	r.Position = min(max(r.Position, 0), 1)
	r.Intensity = max(r.Intensity, 0)
	return r
}

// Device is a source of control readings. Read may block up to the poll
// interval and is only called from one goroutine at a time.
type Device interface {
	Read(ctx context.Context) (Reading, error)
	Close() error
}

// Open creates the device named by cfg.Kind.
func Open(cfg config.SensorConfig) (Device, error) {
	initial := Reading{Position: cfg.Position, Intensity: cfg.Intensity}
	var (
		dev Device
		err error
	)
	switch cfg.Kind {
	case config.SensorFixed:
		dev = NewFixed(initial)
	case config.SensorSweep:
		dev, err = NewSweep(cfg.SweepPeriod, cfg.Intensity)
	case config.SensorScript:
		dev, err = NewScript(cfg.Script)
	case config.SensorRemote:
		dev = NewRemote(initial)
	default:
		err = fmt.Errorf("unknown sensor kind")
	}
	if err != nil {
		return nil, fmt.Errorf("sensor: unable to initialise %s device: %w", cfg.Kind, err)
	}
	return dev, nil
}

// Fixed always reports the same reading.
type Fixed struct {
	reading Reading
}

// NewFixed returns a device reporting r.
func NewFixed(r Reading) *Fixed {
	return &Fixed{reading: r.Clamp()}
}

func (f *Fixed) Read(context.Context) (Reading, error) { return f.reading, nil }

func (f *Fixed) Close() error { return nil }

// Sweep moves the position back and forth between 0 and 1 as a triangle
// wave, standing in for a finger sliding along the sensor.
type Sweep struct {
	period    time.Duration
	intensity float64
	start     time.Time
	now       func() time.Time
}

// NewSweep returns a sweep with the given full period.
func NewSweep(period time.Duration, intensity float64) (*Sweep, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sweep period must be positive, got %s", period)
	}
	return &Sweep{period: period, intensity: max(intensity, 0), start: time.Now(), now: time.Now}, nil
}

func (s *Sweep) Read(context.Context) (Reading, error) {
	elapsed := s.now().Sub(s.start)
	phase := math.Mod(float64(elapsed)/float64(s.period), 1)
	pos := 2 * phase
	if pos > 1 {
		pos = 2 - pos
	}
	return Reading{Position: pos, Intensity: s.intensity}, nil
}

func (s *Sweep) Close() error { return nil }

// Remote holds values pushed from elsewhere, typically a touch surface
// connected over the control websocket.
type Remote struct {
	position  atomic.Uint64
	intensity atomic.Uint64
}

// NewRemote returns a remote device reporting initial until the first Set.
func NewRemote(initial Reading) *Remote {
	r := &Remote{}
	r.Set(initial)
	return r
}

// Set publishes a new reading. It is safe to call from any goroutine.
func (r *Remote) Set(reading Reading) {
	reading = reading.Clamp()
	r.position.Store(math.Float64bits(reading.Position))
	r.intensity.Store(math.Float64bits(reading.Intensity))
}

func (r *Remote) Read(context.Context) (Reading, error) {
	return Reading{
		Position:  math.Float64frombits(r.position.Load()),
		Intensity: math.Float64frombits(r.intensity.Load()),
	}, nil
}

func (r *Remote) Close() error { return nil }
