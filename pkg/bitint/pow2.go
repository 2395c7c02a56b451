/*
Package bitint provides the small integer helpers the STFT engine needs when
sizing transforms and walking circular buffers.

Design Principles:
- Zero Allocations: every helper works on values only
- Real-Time Safe: no locks, syscalls or panics on the hot path

Usage:

	// Reject transform sizes the FFT engines cannot plan
	if !bitint.IsPowerOfTwo(fftSize) { ... }

	// Round a requested capacity up for a circular buffer
	capacity := bitint.NextPowerOfTwo(fftSize + maxHop) // 2048+200 -> 4096

	// Map any (possibly negative) index into [0, n)
	i := bitint.Wrap(readPointer-fftSize, capacity)

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size = 8  -> size-1 = 0b0111 -> bits.Len = 3 -> 1<<3 = 8
	size = 9  -> size-1 = 0b1000 -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Zero and negative
// inputs return 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// (n & (n-1)) clears the lowest set bit, so it is zero only when exactly one
// bit is set.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Wrap maps i onto [0, n) for any integer i, including negative offsets
// produced when reading backwards from a write pointer. n must be positive.
func Wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
