// SPDX-License-Identifier: MIT
/*
Package spectral holds the frequency-domain side of the effect: real FFT
engines that share one packed spectrum layout, and the cross-spectral
combiner that operates on it.

Packed layout for an N-point real transform (N even), N float64 slots:

	slot:   0       1         2      3      4      5     ...  N-2         N-1
	value:  Re X0   Re X(N/2) Re X1  Im X1  Re X2  Im X2 ...  Re X(N/2-1) Im X(N/2-1)

DC and Nyquist are real-only and share the first pair; every later even
slot pairs with its odd neighbour as (real, imaginary).
*/
package spectral

import (
	"fmt"
	"strings"

	"xsynth/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is a fixed-size real FFT engine working in the packed layout.
// Implementations are not safe for concurrent use.
type Transform interface {
	// Size returns N, the number of time samples and packed spectrum slots.
	Size() int
	// Forward writes the packed spectrum of src (N samples) into dst.
	Forward(dst, src []float64)
	// Inverse writes the N time samples of the packed spectrum src into dst,
	// normalized so that Inverse(Forward(x)) == x.
	Inverse(dst, src []float64)
}

// Engine names a Transform implementation.
type Engine int

const (
	EngineGonum Engine = iota
	EngineGoDSP
)

func (e Engine) String() string {
	switch e {
	case EngineGonum:
		return "gonum"
	case EngineGoDSP:
		return "godsp"
	default:
		return "unknown"
	}
}

// ParseEngine converts a config name (case-insensitive) to an Engine.
func ParseEngine(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "gonum":
		return EngineGonum, nil
	case "godsp", "go-dsp":
		return EngineGoDSP, nil
	default:
		return EngineGonum, fmt.Errorf("unknown transform engine: '%s'", name)
	}
}

// NewTransform builds the named engine for n-point transforms.
func NewTransform(e Engine, n int) (Transform, error) {
	switch e {
	case EngineGonum:
		return NewGonum(n)
	case EngineGoDSP:
		return NewGoDSP(n)
	default:
		return nil, fmt.Errorf("unknown transform engine %d", e)
	}
}

func checkSize(n int) error {
	if n < 4 || !bitint.IsPowerOfTwo(n) {
		return fmt.Errorf("fft size must be a power of 2 and at least 4, got %d", n)
	}
	return nil
}

// Gonum is the default engine, backed by gonum's fftpack port. It owns its
// coefficient workspace, so Forward and Inverse never allocate.
type Gonum struct {
	n      int
	fft    *fourier.FFT
	coeffs []complex128 // N/2+1 bins
	scale  float64
}

var _ Transform = (*Gonum)(nil)

// NewGonum plans an n-point transform. n must be a power of two.
func NewGonum(n int) (*Gonum, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	return &Gonum{
		n:      n,
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
		scale:  1 / float64(n),
	}, nil
}

func (g *Gonum) Size() int { return g.n }

func (g *Gonum) Forward(dst, src []float64) {
	g.fft.Coefficients(g.coeffs, src)
	pack(dst, g.coeffs)
}

func (g *Gonum) Inverse(dst, src []float64) {
	unpack(g.coeffs, src)
	g.fft.Sequence(dst, g.coeffs)
	for i := range dst {
		dst[i] *= g.scale
	}
}

// pack writes N/2+1 half-spectrum bins into the packed layout.
func pack(dst []float64, coeffs []complex128) {
	half := len(coeffs) - 1
	dst = dst[:2*half]
	dst[0] = real(coeffs[0])
	dst[1] = real(coeffs[half])
	for k := 1; k < half; k++ {
		dst[2*k] = real(coeffs[k])
		dst[2*k+1] = imag(coeffs[k])
	}
}

// unpack is the inverse of pack.
func unpack(coeffs []complex128, src []float64) {
	half := len(coeffs) - 1
	src = src[:2*half]
	coeffs[0] = complex(src[0], 0)
	coeffs[half] = complex(src[1], 0)
	for k := 1; k < half; k++ {
		coeffs[k] = complex(src[2*k], src[2*k+1])
	}
}
