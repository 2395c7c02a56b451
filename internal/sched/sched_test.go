// SPDX-License-Identifier: MIT
package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// gatedRunner blocks every run until release is closed.
type gatedRunner struct {
	release chan struct{}
	seen    chan Invocation
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{release: make(chan struct{}), seen: make(chan Invocation, 16)}
}

func (r *gatedRunner) Run(inv Invocation) {
	r.seen <- inv
	<-r.release
}

func startWorker(t *testing.T, r Runner, p Policy) *Worker {
	t.Helper()
	w := NewWorker(r, p)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitCompleted(t *testing.T, w *Worker, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for w.Stats().Completed < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d completions, stats %+v", want, w.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		want    Policy
		wantErr bool
	}{
		{"", PolicyQueue, false},
		{"queue", PolicyQueue, false},
		{"DROP", PolicyDrop, false},
		{"fifo", PolicyQueue, true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v, err=%v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestQueuePolicyKeepsOneWaiting(t *testing.T) {
	r := newGatedRunner()
	w := startWorker(t, r, PolicyQueue)

	if !w.Schedule(Invocation{Seq: 1}) {
		t.Fatal("first request rejected")
	}
	<-r.seen // first run is in flight
	if !w.Schedule(Invocation{Seq: 2}) {
		t.Fatal("second request should queue behind the running one")
	}
	if w.Schedule(Invocation{Seq: 3}) {
		t.Fatal("third request should be dropped")
	}

	close(r.release)
	waitCompleted(t, w, 2)
	if got := (<-r.seen).Seq; got != 2 {
		t.Errorf("queued request Seq = %d, want 2", got)
	}

	stats := w.Stats()
	if stats.Scheduled != 2 || stats.Dropped != 1 || stats.Completed != 2 {
		t.Errorf("stats = %+v, want scheduled=2 dropped=1 completed=2", stats)
	}
}

func TestDropPolicyRejectsWhileBusy(t *testing.T) {
	r := newGatedRunner()
	w := startWorker(t, r, PolicyDrop)

	if !w.Schedule(Invocation{Seq: 1}) {
		t.Fatal("first request rejected")
	}
	<-r.seen
	if w.Schedule(Invocation{Seq: 2}) {
		t.Fatal("request accepted while a run is in flight")
	}

	close(r.release)
	waitCompleted(t, w, 1)
	if !w.Schedule(Invocation{Seq: 3}) {
		t.Fatal("request rejected after the worker went idle")
	}
	waitCompleted(t, w, 2)

	stats := w.Stats()
	if stats.Scheduled != 2 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want scheduled=2 dropped=1", stats)
	}
}

func TestRunsNeverOverlap(t *testing.T) {
	for _, p := range []Policy{PolicyQueue, PolicyDrop} {
		t.Run(p.String(), func(t *testing.T) {
			var inFlight, overlaps atomic.Int32
			r := RunnerFunc(func(Invocation) {
				if inFlight.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(50 * time.Microsecond)
				inFlight.Add(-1)
			})
			w := startWorker(t, r, p)

			for i := range 2000 {
				w.Schedule(Invocation{Seq: uint64(i)})
			}
			stats := w.Stats()
			if stats.Scheduled+stats.Dropped != 2000 {
				t.Errorf("scheduled+dropped = %d, want 2000", stats.Scheduled+stats.Dropped)
			}
			waitCompleted(t, w, stats.Scheduled)
			if n := overlaps.Load(); n != 0 {
				t.Errorf("%d overlapping runs", n)
			}
		})
	}
}

func TestStartTwice(t *testing.T) {
	w := startWorker(t, RunnerFunc(func(Invocation) {}), PolicyQueue)
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error starting a running worker")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWorker(RunnerFunc(func(Invocation) {}), PolicyQueue)
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestInlineRunsSynchronously(t *testing.T) {
	var got []uint64
	s := NewInline(RunnerFunc(func(inv Invocation) { got = append(got, inv.Seq) }))
	for i := range 3 {
		if !s.Schedule(Invocation{Seq: uint64(i)}) {
			t.Fatal("inline scheduler rejected a request")
		}
	}
	if len(got) != 3 || got[2] != 2 {
		t.Errorf("runs = %v, want [0 1 2]", got)
	}
	if stats := s.Stats(); stats.Scheduled != 3 || stats.Completed != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestScheduleZeroAllocs(t *testing.T) {
	w := NewWorker(RunnerFunc(func(Invocation) {}), PolicyDrop)
	w.Schedule(Invocation{}) // fills the only slot; the worker is not running
	allocs := testing.AllocsPerRun(1000, func() {
		w.Schedule(Invocation{Seq: 1})
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Schedule, got %.1f", allocs)
	}
}
