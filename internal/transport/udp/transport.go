// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"

	applog "xsynth/internal/log"
	"xsynth/internal/transport"
)

// Transport sends each Telemetry as one binary datagram. Other message
// types are rejected.
type Transport struct {
	sender *Sender

	mu     sync.Mutex
	packet []byte // reused encode buffer
	sent   uint64
}

// NewTransport dials targetAddress.
func NewTransport(targetAddress string) (*Transport, error) {
	sender, err := NewSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return &Transport{
		sender: sender,
		packet: make([]byte, 0, transport.TelemetrySize),
	}, nil
}

func (t *Transport) Send(data any) error {
	tm, ok := data.(transport.Telemetry)
	if !ok {
		return fmt.Errorf("udp transport cannot send %T", data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.packet, _ = tm.AppendBinary(t.packet[:0])
	if err := t.sender.Send(t.packet); err != nil {
		return err
	}
	t.sent++
	applog.Debugf("UDP Transport: Sent packet %d (%d bytes)", tm.Sequence, len(t.packet))
	return nil
}

// Sent returns the number of packets written.
func (t *Transport) Sent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)
