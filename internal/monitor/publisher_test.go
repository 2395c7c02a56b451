// SPDX-License-Identifier: MIT
package monitor

import (
	"errors"
	"testing"
	"time"

	"xsynth/internal/sched"
	"xsynth/internal/transport"
	"xsynth/internal/xsynth"
	"xsynth/pkg/utils"
)

type fixedStats struct{ st xsynth.Stats }

func (f fixedStats) Stats() xsynth.Stats { return f.st }

var testStats = fixedStats{xsynth.Stats{
	Hop:          100,
	WindowLength: 400,
	Position:     0.5,
	Intensity:    0.05,
	Peak:         0.25,
	Blocks:       12,
	Late:         2,
	Stats:        sched.Stats{Scheduled: 30, Dropped: 1, Completed: 29},
}}

func TestNewPublisherValidation(t *testing.T) {
	mt := &utils.MockTransport{}
	tests := []struct {
		name    string
		source  StatsSource
		tr      transport.Transport
		wantErr bool
	}{
		{"Valid", testStats, mt, false},
		{"Nil Source", nil, mt, true},
		{"Nil Transport", testStats, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPublisher(time.Millisecond, tt.source, tt.tr)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPublisher error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	p, err := NewPublisher(0, testStats, mt)
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != 100*time.Millisecond {
		t.Errorf("default interval = %v", p.interval)
	}
}

func TestPublish(t *testing.T) {
	mt := &utils.MockTransport{}
	p, err := NewPublisher(time.Second, testStats, mt)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Unix(1700000000, 5)
	p.now = func() time.Time { return at }

	p.Publish()
	p.Publish()

	sent := mt.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	got, ok := sent[1].(transport.Telemetry)
	if !ok {
		t.Fatalf("sent %T, want transport.Telemetry", sent[1])
	}
	want := transport.Telemetry{
		Sequence:     2,
		Timestamp:    at.UnixNano(),
		Hop:          100,
		WindowLength: 400,
		Position:     0.5,
		Intensity:    0.05,
		Peak:         0.25,
		Blocks:       12,
		Scheduled:    30,
		Dropped:      1,
		Completed:    29,
		Late:         2,
	}
	if got != want {
		t.Errorf("telemetry = %+v, want %+v", got, want)
	}
}

type errTransport struct{ utils.MockTransport }

func (e *errTransport) Send(any) error { return errors.New("unreachable") }

func TestPublishCountsFailures(t *testing.T) {
	p, err := NewPublisher(time.Second, testStats, &errTransport{})
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		p.Publish()
	}
	if p.failures != 3 {
		t.Errorf("failures = %d, want 3", p.failures)
	}
}

func TestStartStop(t *testing.T) {
	mt := &utils.MockTransport{}
	p, err := NewPublisher(2*time.Millisecond, testStats, mt)
	if err != nil {
		t.Fatal(err)
	}

	p.Start()
	p.Start() // no-op while running

	deadline := time.Now().Add(2 * time.Second)
	for len(mt.Sent()) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("publisher did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	p.Stop()
	n := len(mt.Sent())
	time.Sleep(10 * time.Millisecond)
	if len(mt.Sent()) != n {
		t.Error("publisher kept sending after Stop")
	}
	p.Stop()

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !mt.Closed() {
		t.Error("Close did not close the transport")
	}
}

type constSource float64

func (c constSource) Next() float64 { return float64(c) }

type constControl struct{ position, intensity float64 }

func (c constControl) Position() float64  { return c.position }
func (c constControl) Intensity() float64 { return c.intensity }

func TestPublishFromSession(t *testing.T) {
	opts := xsynth.DefaultOptions()
	opts.Inline = true
	s, err := xsynth.NewSession(opts, constSource(0.1), constSource(0.1), constControl{1, 0.05})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	out := make([]float32, 512*opts.Channels)
	for range 4 {
		s.Render(out)
	}

	mt := &utils.MockTransport{}
	p, err := NewPublisher(time.Second, s, mt)
	if err != nil {
		t.Fatal(err)
	}
	p.Publish()

	got := mt.Sent()[0].(transport.Telemetry)
	if got.Hop != uint32(opts.HopMax) {
		t.Errorf("hop = %d, want %d", got.Hop, opts.HopMax)
	}
	if got.WindowLength != uint32(4*opts.HopMax) {
		t.Errorf("window length = %d, want %d", got.WindowLength, 4*opts.HopMax)
	}
	if got.Blocks != 4 {
		t.Errorf("blocks = %d, want 4", got.Blocks)
	}
	if got.Scheduled == 0 || got.Completed != got.Scheduled {
		t.Errorf("inline frames scheduled=%d completed=%d", got.Scheduled, got.Completed)
	}
}
