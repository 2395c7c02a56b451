// SPDX-License-Identifier: MIT
package xsynth

import (
	"xsynth/internal/window"
)

// MapHop maps a sensor position onto [minHop, maxHop]. The position is
// clamped to [0, 1] and the fractional hop is truncated.
func MapHop(position float64, minHop, maxHop int) int {
	position = min(max(position, 0), 1)
	return minHop + int(position*float64(maxHop-minHop))
}

// WindowLength is the effective window length for a hop: OverlapFactor hops,
// capped at the FFT size and never shorter than window.MinLength.
func WindowLength(hop, fftSize int) int {
	return min(max(window.OverlapFactor*hop, window.MinLength), fftSize)
}

// Controller adapts hop size and window shape to the control position. It
// runs on the audio goroutine once per block.
type Controller struct {
	bank    *window.Bank
	mode    Normalization
	fftSize int
	minHop  int
	maxHop  int

	hop    int
	length int
	scale  float64
}

// NewController regenerates the window tables for the initial hop, which is
// clamped to [minHop, maxHop].
func NewController(bank *window.Bank, opts Options) *Controller {
	c := &Controller{
		bank:    bank,
		mode:    opts.Normalization,
		fftSize: opts.FFTSize,
		minHop:  opts.HopMin,
		maxHop:  opts.HopMax,
	}
	c.adopt(min(max(opts.InitialHop, opts.HopMin), opts.HopMax))
	return c
}

// Update maps position to a hop and, when it differs from the active one,
// regenerates the windows and rescales. It reports whether the hop changed.
func (c *Controller) Update(position float64) bool {
	candidate := MapHop(position, c.minHop, c.maxHop)
	if candidate == c.hop {
		return false
	}
	c.adopt(candidate)
	return true
}

func (c *Controller) adopt(hop int) {
	tables := c.bank.Regenerate(WindowLength(hop, c.fftSize))
	c.hop = hop
	c.length = tables.Length
	switch c.mode {
	case NormalizeFFT:
		c.scale = float64(hop) / float64(c.fftSize)
	default:
		c.scale = float64(hop) / tables.Energy
	}
}

// Hop returns the active hop size.
func (c *Controller) Hop() int { return c.hop }

// WindowLength returns the active window length.
func (c *Controller) WindowLength() int { return c.length }

// Scale returns the per-sample output normalization factor.
func (c *Controller) Scale() float64 { return c.scale }
