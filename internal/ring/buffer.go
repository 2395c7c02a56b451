// SPDX-License-Identifier: MIT
/*
Package ring implements the fixed-capacity circular sample buffers used by
the STFT engine for both input assembly and overlap-add output.

Thread Safety:
- A Buffer holds no locks. Callers partition ownership: the real-time driver
  writes input cells and reads-and-clears output cells, the pipeline worker
  reads input through a captured pointer and adds into output cells ahead of
  the read pointer.
- Cells are atomic words holding float64 bits, so a cell the worker adds into
  can be read and cleared by the driver from another goroutine. Accumulate
  assumes a single writer and does a plain load and store per cell.
- All methods are allocation-free.
*/
package ring

import (
	"fmt"
	"math"
	"sync/atomic"

	"xsynth/pkg/bitint"
)

// Buffer is a circular buffer of float64 samples. Indices passed to its
// methods may be any integer; they are wrapped modulo the capacity.
type Buffer struct {
	data []atomic.Uint64
}

// New allocates a zeroed buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring buffer capacity must be positive, got %d", capacity)
	}
	return &Buffer{data: make([]atomic.Uint64, capacity)}, nil
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Wrap maps index onto [0, Cap()).
func (b *Buffer) Wrap(index int) int {
	return bitint.Wrap(index, len(b.data))
}

// Write stores v at index mod Cap().
func (b *Buffer) Write(index int, v float64) {
	b.data[b.Wrap(index)].Store(math.Float64bits(v))
}

// At returns the sample at index mod Cap().
func (b *Buffer) At(index int) float64 {
	return math.Float64frombits(b.data[b.Wrap(index)].Load())
}

// Take returns the sample at index and zeroes the cell, leaving it ready for
// the next overlap-add cycle.
func (b *Buffer) Take(index int) float64 {
	return math.Float64frombits(b.data[b.Wrap(index)].Swap(0))
}

// ExtractWindow copies the len(dst) most recently written samples that end
// just before the write pointer end into dst in chronological order, each
// multiplied by the matching window coefficient:
//
//	dst[n] = buf[(end + n - len(dst)) mod Cap()] * window[n]
//
// The newest sample (at end-1) lands in dst[len(dst)-1]. window must be at
// least len(dst) long and len(dst) must not exceed Cap().
func (b *Buffer) ExtractWindow(dst []float64, end int, window []float64) {
	window = window[:len(dst)]
	idx := b.Wrap(end - len(dst))
	for n := range dst {
		dst[n] = math.Float64frombits(b.data[idx].Load()) * window[n]
		idx++
		if idx == len(b.data) {
			idx = 0
		}
	}
}

// Accumulate adds frame[n]*window[n] into buf[(start+n) mod Cap()] for every
// n in frame. It never overwrites, so successive frames overlap-add.
func (b *Buffer) Accumulate(start int, frame, window []float64) {
	window = window[:len(frame)]
	idx := b.Wrap(start)
	for n, v := range frame {
		cell := &b.data[idx]
		cell.Store(math.Float64bits(math.Float64frombits(cell.Load()) + v*window[n]))
		idx++
		if idx == len(b.data) {
			idx = 0
		}
	}
}

// Reset zeroes every cell.
func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i].Store(0)
	}
}
