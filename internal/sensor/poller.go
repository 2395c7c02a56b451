// SPDX-License-Identifier: MIT
package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	applog "xsynth/internal/log"
)

// Poller reads a Device on a ticker and publishes the latest Reading. It
// implements the session's Control and Lifecycle interfaces.
type Poller struct {
	dev      Device
	interval time.Duration

	position  atomic.Uint64
	intensity atomic.Uint64
	reads     atomic.Uint64
	failures  atomic.Uint64

	mu     sync.Mutex // Protects cancel during Start/Stop.
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller wraps dev. Position and Intensity report initial until the first
// successful read.
func NewPoller(dev Device, interval time.Duration, initial Reading) (*Poller, error) {
	if dev == nil {
		return nil, fmt.Errorf("Poller: device cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("Poller: poll interval must be positive, got %s", interval)
	}
	p := &Poller{dev: dev, interval: interval}
	p.publish(initial.Clamp())
	return p, nil
}

// Start reads the device once synchronously, so a sensor that cannot be read
// at all fails startup, then polls on a background goroutine until Stop is
// called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("Poller: already running")
	}
	r, err := p.dev.Read(ctx)
	if err != nil {
		return fmt.Errorf("sensor: first read failed: %w", err)
	}
	p.reads.Add(1)
	p.publish(r.Clamp())

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx)
	applog.Debugf("Poller: Started (Interval: %s)", p.interval)
	return nil
}

// Stop cancels the poll goroutine and waits for it. It does not close the
// device. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	applog.Debugf("Poller: Stopped after %d reads (%d failed)", p.reads.Load(), p.failures.Load())
}

// Close stops polling and closes the device.
func (p *Poller) Close() error {
	p.Stop()
	return p.dev.Close()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := p.dev.Read(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Keep the last published values. Log the first failure and
				// every hundredth after it.
				if n := p.failures.Add(1); n%100 == 1 {
					applog.Warnf("Poller: Sensor read failed (%d so far), keeping last values: %v", n, err)
				}
				continue
			}
			p.reads.Add(1)
			p.publish(r.Clamp())
		}
	}
}

func (p *Poller) publish(r Reading) {
	p.position.Store(math.Float64bits(r.Position))
	p.intensity.Store(math.Float64bits(r.Intensity))
}

// Position returns the latest position in [0, 1].
func (p *Poller) Position() float64 {
	return math.Float64frombits(p.position.Load())
}

// Intensity returns the latest intensity.
func (p *Poller) Intensity() float64 {
	return math.Float64frombits(p.intensity.Load())
}

// Failures returns the number of failed reads since construction.
func (p *Poller) Failures() uint64 {
	return p.failures.Load()
}
