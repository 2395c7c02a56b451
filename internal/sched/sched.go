// SPDX-License-Identifier: MIT
/*
Package sched moves frame work off the real-time path.

The driver calls Schedule once per hop from the audio callback. Schedule
never blocks and never allocates: it either hands the Invocation to the
worker goroutine or counts it as dropped.

	audio callback                      worker goroutine
	  Schedule(inv) ──► [pending<=2] ──► jobs chan ──► Runner.Run(inv)
	        │                                              │
	        └── dropped++ when the policy refuses          └── pending--, completed++

Runs never overlap: there is exactly one worker.
*/
package sched

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Invocation is the value snapshot the driver takes each time the hop
// counter wraps.
type Invocation struct {
	Seq        uint64
	InPointer  int    // input write pointer; the frame ends here
	OutPointer int    // first output cell the frame overlap-adds into
	Due        uint64 // OutPointer counted in samples since the stream began
	Hop        int
}

// Runner performs one unit of deferred work.
type Runner interface {
	Run(inv Invocation)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(inv Invocation)

func (f RunnerFunc) Run(inv Invocation) { f(inv) }

// Scheduler accepts deferred work from the real-time path. Schedule reports
// whether the request was accepted.
type Scheduler interface {
	Schedule(inv Invocation) bool
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Scheduled uint64
	Dropped   uint64
	Completed uint64
}

// Policy decides what happens when a request arrives while work is pending.
type Policy int

const (
	// PolicyQueue keeps at most one request waiting behind the running one
	// and drops the newest request beyond that.
	PolicyQueue Policy = iota
	// PolicyDrop accepts a request only when nothing is running.
	PolicyDrop
)

func (p Policy) String() string {
	switch p {
	case PolicyQueue:
		return "queue"
	case PolicyDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a config name (case-insensitive) to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "", "queue":
		return PolicyQueue, nil
	case "drop":
		return PolicyDrop, nil
	default:
		return PolicyQueue, fmt.Errorf("unknown scheduler policy: '%s'", name)
	}
}

func (p Policy) limit() int32 {
	if p == PolicyDrop {
		return 1
	}
	return 2
}

// Worker runs Invocations on a single background goroutine.
type Worker struct {
	runner Runner
	policy Policy
	jobs   chan Invocation

	pending   atomic.Int32
	scheduled atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ Scheduler = (*Worker)(nil)

// NewWorker creates a stopped worker for runner.
func NewWorker(runner Runner, policy Policy) *Worker {
	return &Worker{
		runner: runner,
		policy: policy,
		jobs:   make(chan Invocation, 2),
	}
}

// Start launches the worker goroutine. It stops when ctx is cancelled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("scheduler worker already running")
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.running = true

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop cancels the worker and waits for the in-flight run to finish.
// Requests still queued are discarded.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.wg.Wait()
	for {
		select {
		case <-w.jobs:
			w.pending.Add(-1)
		default:
			return
		}
	}
}

// Schedule offers inv to the worker. It is safe to call from the real-time
// path.
func (w *Worker) Schedule(inv Invocation) bool {
	limit := w.policy.limit()
	for {
		n := w.pending.Load()
		if n >= limit {
			w.dropped.Add(1)
			return false
		}
		if w.pending.CompareAndSwap(n, n+1) {
			break
		}
	}
	select {
	case w.jobs <- inv:
		w.scheduled.Add(1)
		return true
	default:
		w.pending.Add(-1)
		w.dropped.Add(1)
		return false
	}
}

// Stats returns the current counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Scheduled: w.scheduled.Load(),
		Dropped:   w.dropped.Load(),
		Completed: w.completed.Load(),
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case inv := <-w.jobs:
			w.runner.Run(inv)
			w.pending.Add(-1)
			w.completed.Add(1)
		}
	}
}

// Inline runs every request synchronously on the caller's goroutine. It is
// meant for tests and offline benchmarks where determinism matters more than
// real-time safety.
type Inline struct {
	runner    Runner
	scheduled atomic.Uint64
}

var _ Scheduler = (*Inline)(nil)

// NewInline wraps runner.
func NewInline(runner Runner) *Inline {
	return &Inline{runner: runner}
}

func (s *Inline) Schedule(inv Invocation) bool {
	s.runner.Run(inv)
	s.scheduled.Add(1)
	return true
}

// Stats reports every request as scheduled and completed.
func (s *Inline) Stats() Stats {
	n := s.scheduled.Load()
	return Stats{Scheduled: n, Completed: n}
}
