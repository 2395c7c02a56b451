// SPDX-License-Identifier: MIT
/*
Package xsynth is the real-time cross-synthesis effect: the magnitude
spectrum of one source is combined with the phase spectrum of another.

A Session owns every buffer and table the effect needs. Render is the
real-time block driver; it never blocks and never allocates.

Per block:

	Control ─► Controller.Update (hop, window tables, scale)
	gain = intensity * GainScale

Per sample:

	magnitude.Next()*gain ─► inA[write]    out[read]*scale ─► every channel
	phase.Next()*gain     ─► inB[write]    out[read] = 0
	                                       every hop: Schedule(Invocation)

The scheduled frame reads both inputs ending at the captured write pointer
and overlap-adds SynthesisDelay samples ahead of the read pointer, so the
end-to-end delay of an identity synthesis is FFTSize + SynthesisDelay.
*/
package xsynth

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"xsynth/internal/ring"
	"xsynth/internal/sched"
	"xsynth/internal/spectral"
	"xsynth/internal/stft"
	"xsynth/internal/window"
)

// Source is a streaming mono sample source. Next is called from the audio
// goroutine and must not block.
type Source interface {
	Next() float64
}

// Control supplies the adaptive parameters. Position is in [0, 1] and
// Intensity is non-negative. Both are read once per block from the audio
// goroutine and must not block.
type Control interface {
	Position() float64
	Intensity() float64
}

// Lifecycle is implemented by collaborators with a background task, such as
// a sensor poller. The session starts and stops them with itself.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop()
}

// Stats is a snapshot of the session's observable state.
type Stats struct {
	Hop          int
	WindowLength int
	Position     float64
	Intensity    float64
	Peak         float64 // largest absolute output sample of the last block
	Blocks       uint64
	Late         uint64 // frames skipped because output had already passed them
	sched.Stats
}

// Session is one running instance of the effect.
type Session struct {
	opts      Options
	magnitude Source
	phase     Source
	control   Control

	inA, inB, out *ring.Buffer
	windows       *window.Bank
	pipeline      *stft.Pipeline
	controller    *Controller

	scheduler sched.Scheduler
	worker    *sched.Worker
	inline    *sched.Inline

	// Audio goroutine state.
	writePtr    int
	readPtr     int
	outWritePtr int
	outDue      uint64
	rendered    uint64
	hopCounter  int
	seq         uint64

	// Output samples taken so far, read by the worker to spot late frames.
	readPos atomic.Uint64
	late    atomic.Uint64

	// Published for Stats.
	hop       atomic.Int64
	length    atomic.Int64
	position  atomic.Uint64
	intensity atomic.Uint64
	peak      atomic.Uint64
	blocks    atomic.Uint64

	mu      sync.Mutex
	started bool
}

// NewSession validates opts and allocates every buffer and table.
func NewSession(opts Options, magnitude, phase Source, control Control) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session options: %w", err)
	}
	if magnitude == nil || phase == nil {
		return nil, fmt.Errorf("session needs both a magnitude and a phase source")
	}
	if control == nil {
		return nil, fmt.Errorf("session needs a control")
	}

	s := &Session{opts: opts, magnitude: magnitude, phase: phase, control: control}

	var err error
	for _, b := range []**ring.Buffer{&s.inA, &s.inB, &s.out} {
		if *b, err = ring.New(opts.BufferSize); err != nil {
			return nil, err
		}
	}

	s.windows, err = window.NewBank(opts.FFTSize, WindowLength(opts.InitialHop, opts.FFTSize))
	if err != nil {
		return nil, err
	}
	transform, err := spectral.NewTransform(opts.Engine, opts.FFTSize)
	if err != nil {
		return nil, err
	}
	s.pipeline, err = stft.New(transform, s.windows)
	if err != nil {
		return nil, err
	}
	s.controller = NewController(s.windows, opts)

	runner := sched.RunnerFunc(s.runFrame)
	if opts.Inline {
		s.inline = sched.NewInline(runner)
		s.scheduler = s.inline
	} else {
		s.worker = sched.NewWorker(runner, opts.Policy)
		s.scheduler = s.worker
	}

	s.outWritePtr = s.out.Wrap(opts.SynthesisDelay)
	s.outDue = uint64(opts.SynthesisDelay)
	s.publish(control.Position(), control.Intensity())
	return s, nil
}

// Options returns the validated options the session was built with.
func (s *Session) Options() Options {
	return s.opts
}

// Start launches the scheduler worker and the control's background task,
// if it has one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session already started")
	}
	if s.worker != nil {
		if err := s.worker.Start(ctx); err != nil {
			return err
		}
	}
	if lc, ok := s.control.(Lifecycle); ok {
		if err := lc.Start(ctx); err != nil {
			if s.worker != nil {
				s.worker.Stop()
			}
			return err
		}
	}
	s.started = true
	return nil
}

// Close stops the control task and the worker. It is safe to call more than
// once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	if lc, ok := s.control.(Lifecycle); ok {
		lc.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	s.started = false
	return nil
}

// Render fills out with interleaved samples for every configured channel.
// It is the audio callback: no locks, no allocation, no blocking.
func (s *Session) Render(out []float32) {
	channels := s.opts.Channels
	frames := len(out) / channels
	clear(out[frames*channels:])

	position := s.control.Position()
	intensity := s.control.Intensity()
	s.controller.Update(position)
	gain := intensity * s.opts.GainScale
	scale := s.controller.Scale()
	hop := s.controller.Hop()

	var peak float64
	for f := range frames {
		s.inA.Write(s.writePtr, s.magnitude.Next()*gain)
		s.inB.Write(s.writePtr, s.phase.Next()*gain)
		s.writePtr = s.inA.Wrap(s.writePtr + 1)

		y := s.out.Take(s.readPtr) * scale
		s.readPtr = s.out.Wrap(s.readPtr + 1)
		s.rendered++
		s.readPos.Store(s.rendered)

		s.hopCounter++
		if s.hopCounter >= hop {
			s.request(hop)
		}

		if a := math.Abs(y); a > peak {
			peak = a
		}
		v := float32(y)
		frame := out[f*channels : (f+1)*channels]
		for ch := range frame {
			frame[ch] = v
		}
	}

	s.peak.Store(math.Float64bits(peak))
	s.blocks.Add(1)
	s.publish(position, intensity)
}

// request snapshots the pointers and hands one frame to the scheduler. The
// output write pointer moves by the samples elapsed since the last request,
// which is the hop except right after a hop change, so it always sits
// SynthesisDelay samples ahead of the read pointer.
func (s *Session) request(hop int) {
	s.outWritePtr = s.out.Wrap(s.outWritePtr + s.hopCounter)
	s.outDue += uint64(s.hopCounter)
	s.hopCounter = 0
	s.seq++
	s.scheduler.Schedule(sched.Invocation{
		Seq:        s.seq,
		InPointer:  s.writePtr,
		OutPointer: s.outWritePtr,
		Due:        s.outDue,
		Hop:        hop,
	})
}

// runFrame skips a frame whose first output cell the driver has already
// taken. Its energy would otherwise sit in the ring and play one ring period
// later.
func (s *Session) runFrame(inv sched.Invocation) {
	if s.readPos.Load() > inv.Due {
		s.late.Add(1)
		return
	}
	s.pipeline.ProcessFrame(s.inA, s.inB, inv.InPointer, s.out, inv.OutPointer)
}

func (s *Session) publish(position, intensity float64) {
	s.hop.Store(int64(s.controller.Hop()))
	s.length.Store(int64(s.controller.WindowLength()))
	s.position.Store(math.Float64bits(position))
	s.intensity.Store(math.Float64bits(intensity))
}

// Stats returns a snapshot that is safe to take from any goroutine.
func (s *Session) Stats() Stats {
	st := Stats{
		Hop:          int(s.hop.Load()),
		WindowLength: int(s.length.Load()),
		Position:     math.Float64frombits(s.position.Load()),
		Intensity:    math.Float64frombits(s.intensity.Load()),
		Peak:         math.Float64frombits(s.peak.Load()),
		Blocks:       s.blocks.Load(),
		Late:         s.late.Load(),
	}
	if s.worker != nil {
		st.Stats = s.worker.Stats()
	} else {
		st.Stats = s.inline.Stats()
	}
	return st
}
