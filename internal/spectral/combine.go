// SPDX-License-Identifier: MIT
package spectral

import "math"

// Combine writes the cross-synthesis of two packed spectra into dst: the
// magnitude of every bin pair comes from mag, the phase from phase.
//
//	dst[0], dst[1] = mag[0], mag[1]                  (DC, Nyquist)
//	for even i >= 2:
//	    m     = sqrt(mag[i]^2 + mag[i+1]^2)
//	    theta = atan2(phase[i+1], phase[i])
//	    dst[i], dst[i+1] = m*cos(theta), m*sin(theta)
//
// The DC and Nyquist slots are real-only, so they carry no phase and are
// copied from the magnitude source. All three slices must have the same even
// length; anything else is a programming error and panics.
func Combine(dst, mag, phase []float64) {
	n := len(dst)
	if len(mag) != n || len(phase) != n || n%2 != 0 {
		panic("spectral: combine frame length mismatch")
	}
	if n == 0 {
		return
	}
	dst[0] = mag[0]
	dst[1] = mag[1]
	for i := 2; i+1 < n; i += 2 {
		m := math.Sqrt(mag[i]*mag[i] + mag[i+1]*mag[i+1])
		theta := math.Atan2(phase[i+1], phase[i])
		sin, cos := math.Sincos(theta)
		dst[i] = m * cos
		dst[i+1] = m * sin
	}
}
