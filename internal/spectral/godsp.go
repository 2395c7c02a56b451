// SPDX-License-Identifier: MIT
package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// GoDSP computes transforms with mjibson/go-dsp. It returns fresh slices on
// every call, so it allocates; it exists as a reference engine for checking
// the default one and for machines where a second opinion is wanted. Do not
// select it when the pipeline must stay allocation-free.
type GoDSP struct {
	n    int
	full []complex128 // conjugate-symmetric spectrum for Inverse
}

var _ Transform = (*GoDSP)(nil)

// NewGoDSP returns an n-point reference engine. n must be a power of two.
func NewGoDSP(n int) (*GoDSP, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	return &GoDSP{n: n, full: make([]complex128, n)}, nil
}

func (g *GoDSP) Size() int { return g.n }

func (g *GoDSP) Forward(dst, src []float64) {
	spectrum := fft.FFTReal(src[:g.n])
	pack(dst, spectrum[:g.n/2+1])
}

func (g *GoDSP) Inverse(dst, src []float64) {
	half := g.n / 2
	unpack(g.full[:half+1], src)
	for k := 1; k < half; k++ {
		c := g.full[k]
		g.full[g.n-k] = complex(real(c), -imag(c))
	}
	// go-dsp's IFFT is already normalized by 1/N.
	seq := fft.IFFT(g.full)
	for i := range dst[:g.n] {
		dst[i] = real(seq[i])
	}
}
