// SPDX-License-Identifier: MIT
// Package monitor periodically snapshots the running effect and sends the
// result to the configured transports.
package monitor

import (
	"fmt"
	"sync"
	"time"

	applog "xsynth/internal/log"
	"xsynth/internal/transport"
	"xsynth/internal/xsynth"
)

// StatsSource is implemented by xsynth.Session.
type StatsSource interface {
	Stats() xsynth.Stats
}

// Publisher sends a transport.Telemetry to its transport every interval.
// It runs in its own goroutine managed by Start and Stop.
type Publisher struct {
	source    StatsSource
	transport transport.Transport
	interval  time.Duration
	now       func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // guards ticker and doneChan

	sequenceNum uint32
	failures    uint64
}

// NewPublisher creates a publisher. An interval <= 0 defaults to 100ms.
func NewPublisher(interval time.Duration, source StatsSource, tr transport.Transport) (*Publisher, error) {
	if source == nil {
		return nil, fmt.Errorf("monitor: stats source cannot be nil")
	}
	if tr == nil {
		return nil, fmt.Errorf("monitor: transport cannot be nil")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("Monitor: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		source:    source,
		transport: tr,
		interval:  interval,
		now:       time.Now,
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Monitor: Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("Monitor: Publisher started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.Publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. Safe to call more
// than once.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("Monitor: Publisher stopped after %d packets", p.sequenceNum)
}

// Publish sends one snapshot now. It is called from the publishing
// goroutine; call it directly only while the publisher is stopped.
func (p *Publisher) Publish() {
	p.sequenceNum++
	t := Snapshot(p.source.Stats(), p.sequenceNum, p.now())
	if err := p.transport.Send(t); err != nil {
		p.failures++
		if p.failures == 1 || p.failures%100 == 0 {
			applog.Warnf("Monitor: Send failed (%d failures): %v", p.failures, err)
		}
	}
}

// Snapshot converts session stats into a telemetry message.
func Snapshot(st xsynth.Stats, seq uint32, at time.Time) transport.Telemetry {
	return transport.Telemetry{
		Sequence:     seq,
		Timestamp:    at.UnixNano(),
		Hop:          uint32(st.Hop),
		WindowLength: uint32(st.WindowLength),
		Position:     float32(st.Position),
		Intensity:    float32(st.Intensity),
		Peak:         float32(st.Peak),
		Blocks:       st.Blocks,
		Scheduled:    st.Scheduled,
		Dropped:      st.Dropped,
		Completed:    st.Completed,
		Late:         st.Late,
	}
}

// Close stops the publisher and closes its transport.
func (p *Publisher) Close() error {
	p.Stop()
	return p.transport.Close()
}
