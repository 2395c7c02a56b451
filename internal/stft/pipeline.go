// SPDX-License-Identifier: MIT
/*
Package stft runs one analysis-synthesis frame of the cross-synthesis effect.

A frame run, given the captured input and output pointers:

	inA ─► extract(end=inPointer) × analysis ─► Forward ─┐
	                                                     ├─► Combine ─► Inverse ─► × synthesis ─► out += (start=outPointer)
	inB ─► extract(end=inPointer) × analysis ─► Forward ─┘

Input A supplies the magnitude spectrum, input B the phase spectrum.
*/
package stft

import (
	"fmt"

	"xsynth/internal/ring"
	"xsynth/internal/spectral"
	"xsynth/internal/window"
)

// Pipeline owns the work buffers for one frame run. It is not safe for
// concurrent use; the scheduler guarantees runs never overlap.
type Pipeline struct {
	size      int
	transform spectral.Transform
	windows   *window.Bank

	frameA []float64
	frameB []float64
	specA  []float64
	specB  []float64
	hybrid []float64
	output []float64

	lastLength int
}

// New wires a transform engine and a window bank into a pipeline. Both must
// agree on the frame size.
func New(transform spectral.Transform, windows *window.Bank) (*Pipeline, error) {
	size := transform.Size()
	if windows.Size() != size {
		return nil, fmt.Errorf("window size %d does not match fft size %d", windows.Size(), size)
	}
	return &Pipeline{
		size:      size,
		transform: transform,
		windows:   windows,
		frameA:    make([]float64, size),
		frameB:    make([]float64, size),
		specA:     make([]float64, size),
		specB:     make([]float64, size),
		hybrid:    make([]float64, size),
		output:    make([]float64, size),
	}, nil
}

// Size returns the frame length.
func (p *Pipeline) Size() int {
	return p.size
}

// LastWindowLength reports the window length used by the most recent run.
// Only meaningful from the goroutine that calls ProcessFrame.
func (p *Pipeline) LastWindowLength() int {
	return p.lastLength
}

// ProcessFrame extracts one frame from each input ending at inPointer,
// cross-synthesizes them and overlap-adds the result into out starting at
// outPointer. Both input buffers and out must hold at least Size() samples.
func (p *Pipeline) ProcessFrame(inA, inB *ring.Buffer, inPointer int, out *ring.Buffer, outPointer int) {
	tables := p.windows.Acquire()
	p.lastLength = tables.Length

	p.reset()

	inA.ExtractWindow(p.frameA, inPointer, tables.Analysis)
	inB.ExtractWindow(p.frameB, inPointer, tables.Analysis)

	p.transform.Forward(p.specA, p.frameA)
	p.transform.Forward(p.specB, p.frameB)

	spectral.Combine(p.hybrid, p.specA, p.specB)

	p.transform.Inverse(p.output, p.hybrid)

	out.Accumulate(outPointer, p.output, tables.Synthesis)
}

func (p *Pipeline) reset() {
	clear(p.frameA)
	clear(p.frameB)
	clear(p.specA)
	clear(p.specB)
	clear(p.hybrid)
	clear(p.output)
}
