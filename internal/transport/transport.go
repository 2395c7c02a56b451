// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/binary"
	"fmt"
	"math"

	"xsynth/internal/sensor"
)

// Transport sends telemetry or events somewhere outside the process.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(data any) error
	Close() error
}

// ControlSink receives control readings pushed by a remote surface.
// sensor.Remote implements it.
type ControlSink interface {
	Set(r sensor.Reading)
}

// Telemetry is one snapshot of the running effect.
type Telemetry struct {
	Sequence     uint32  `json:"seq"`
	Timestamp    int64   `json:"timestamp"` // nanoseconds since epoch
	Hop          uint32  `json:"hop"`
	WindowLength uint32  `json:"window_length"`
	Position     float32 `json:"position"`
	Intensity    float32 `json:"intensity"`
	Peak         float32 `json:"peak"`
	Blocks       uint64  `json:"blocks"`
	Scheduled    uint64  `json:"scheduled"`
	Dropped      uint64  `json:"dropped"`
	Completed    uint64  `json:"completed"`
	Late         uint64  `json:"late"`
}

/*
Telemetry Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Hop               | uint32         | 4            | Current hop in samples  |
| Window Length     | uint32         | 4            | Current window length   |
| Position          | float32        | 4            | Control position [0, 1] |
| Intensity         | float32        | 4            | Control intensity       |
| Peak              | float32        | 4            | Output peak, last block |
| Blocks            | uint64         | 8            | Audio blocks rendered   |
| Scheduled         | uint64         | 8            | Frames accepted         |
| Dropped           | uint64         | 8            | Frames dropped          |
| Completed         | uint64         | 8            | Frames finished         |
| Late              | uint64         | 8            | Frames skipped as late  |
+-----------------------------------------------------------------------------+
*/

// TelemetrySize is the encoded size of a Telemetry packet.
const TelemetrySize = 72

// AppendBinary appends the packet encoding of t to dst.
func (t Telemetry) AppendBinary(dst []byte) ([]byte, error) {
	dst = binary.BigEndian.AppendUint32(dst, t.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(t.Timestamp))
	dst = binary.BigEndian.AppendUint32(dst, t.Hop)
	dst = binary.BigEndian.AppendUint32(dst, t.WindowLength)
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(t.Position))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(t.Intensity))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(t.Peak))
	dst = binary.BigEndian.AppendUint64(dst, t.Blocks)
	dst = binary.BigEndian.AppendUint64(dst, t.Scheduled)
	dst = binary.BigEndian.AppendUint64(dst, t.Dropped)
	dst = binary.BigEndian.AppendUint64(dst, t.Completed)
	dst = binary.BigEndian.AppendUint64(dst, t.Late)
	return dst, nil
}

// MarshalBinary returns the packet encoding of t.
func (t Telemetry) MarshalBinary() ([]byte, error) {
	return t.AppendBinary(make([]byte, 0, TelemetrySize))
}

// DecodeTelemetry parses a packet produced by MarshalBinary.
func DecodeTelemetry(b []byte) (Telemetry, error) {
	if len(b) != TelemetrySize {
		return Telemetry{}, fmt.Errorf("telemetry packet is %d bytes, want %d", len(b), TelemetrySize)
	}
	be := binary.BigEndian
	return Telemetry{
		Sequence:     be.Uint32(b[0:]),
		Timestamp:    int64(be.Uint64(b[4:])),
		Hop:          be.Uint32(b[12:]),
		WindowLength: be.Uint32(b[16:]),
		Position:     math.Float32frombits(be.Uint32(b[20:])),
		Intensity:    math.Float32frombits(be.Uint32(b[24:])),
		Peak:         math.Float32frombits(be.Uint32(b[28:])),
		Blocks:       be.Uint64(b[32:]),
		Scheduled:    be.Uint64(b[40:]),
		Dropped:      be.Uint64(b[48:]),
		Completed:    be.Uint64(b[56:]),
		Late:         be.Uint64(b[64:]),
	}, nil
}

// Multi fans every Send out to all transports and closes them together.
type Multi []Transport

// Send sends to every transport and returns the first error.
func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every transport and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
