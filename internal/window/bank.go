// SPDX-License-Identifier: MIT
/*
Package window maintains the analysis and synthesis window tables shared by
the block-rate controller and the background STFT pipeline.

Tables are triple-buffered so the two sides never wait on each other:

	controller (writer)            pipeline (reader)
	  fill back slot                 Acquire(): if a newer slot was
	  Regenerate(): publish ──► mid ──► published, swap it in as front

The writer only touches its back slot and the reader only touches its front
slot, so a pipeline run can never observe a table mid-regeneration, and no
slot is ever allocated after NewBank.
*/
package window

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// OverlapFactor is the fixed ratio between window length and hop size.
const OverlapFactor = 4

// MinLength is the shortest window the Hann formula is defined for.
const MinLength = 2

const freshBit = 1 << 2

// Tables is one generation of window coefficients. Both slices are Size()
// long; coefficients at positions >= Length are zero.
type Tables struct {
	Analysis  []float64
	Synthesis []float64
	Length    int     // Effective window length L.
	Energy    float64 // Sum of Analysis[n]*Synthesis[n].
}

// Bank is a single-writer, single-reader triple buffer of Tables.
type Bank struct {
	size  int
	slots [3]Tables
	state atomic.Uint32 // index of the published slot, plus freshBit

	back  int // writer-owned
	front int // reader-owned
}

// NewBank allocates all table generations for frames of the given size and
// fills them with a Hann window of the given length.
func NewBank(size, length int) (*Bank, error) {
	if size < MinLength {
		return nil, fmt.Errorf("window size must be at least %d, got %d", MinLength, size)
	}
	b := &Bank{size: size, front: 0, back: 2}
	for i := range b.slots {
		b.slots[i] = Tables{
			Analysis:  make([]float64, size),
			Synthesis: make([]float64, size),
		}
		b.fill(&b.slots[i], length)
	}
	b.state.Store(1)
	return b, nil
}

// Size returns the table length (the FFT size).
func (b *Bank) Size() int {
	return b.size
}

// ClampLength bounds a requested window length to [MinLength, size].
func (b *Bank) ClampLength(length int) int {
	return min(max(length, MinLength), b.size)
}

// Regenerate recomputes a Hann window of the given length into the writer's
// back slot and publishes it. It must only be called from one goroutine.
// The returned Tables stay valid until the next Regenerate call and must be
// treated as read-only.
func (b *Bank) Regenerate(length int) *Tables {
	t := &b.slots[b.back]
	b.fill(t, length)
	old := b.state.Swap(uint32(b.back) | freshBit)
	published := b.back
	b.back = int(old &^ freshBit)
	return &b.slots[published]
}

// Acquire returns the newest published Tables for the reader. It must only
// be called from one goroutine, and the result is valid until the next
// Acquire call.
func (b *Bank) Acquire() *Tables {
	if b.state.Load()&freshBit != 0 {
		old := b.state.Swap(uint32(b.front))
		b.front = int(old &^ freshBit)
	}
	return &b.slots[b.front]
}

// fill writes a Hann window of the clamped length into t and zeroes the
// tail, so coefficients from a longer previous window never leak into
// later frames.
func (b *Bank) fill(t *Tables, length int) {
	length = b.ClampLength(length)
	a := t.Analysis
	for n := 0; n < length; n++ {
		a[n] = 1
	}
	window.Hann(a[:length])
	clear(a[length:])
	copy(t.Synthesis, a)

	t.Length = length
	t.Energy = floats.Dot(a[:length], t.Synthesis[:length])
}
