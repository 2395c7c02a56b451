// SPDX-License-Identifier: MIT
package stft

import (
	"math"
	"testing"

	"xsynth/internal/ring"
	"xsynth/internal/spectral"
	"xsynth/internal/window"
)

const (
	testFFTSize    = 256
	testBufferSize = 1024
)

type fixture struct {
	pipeline *Pipeline
	bank     *window.Bank
	inA      *ring.Buffer
	inB      *ring.Buffer
	out      *ring.Buffer
}

func newFixture(t testing.TB, length int) *fixture {
	t.Helper()
	tr, err := spectral.NewGonum(testFFTSize)
	if err != nil {
		t.Fatal(err)
	}
	bank, err := window.NewBank(testFFTSize, length)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(tr, bank)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{pipeline: p, bank: bank}
	for _, b := range []**ring.Buffer{&f.inA, &f.inB, &f.out} {
		*b, err = ring.New(testBufferSize)
		if err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestNewRejectsSizeMismatch(t *testing.T) {
	tr, _ := spectral.NewGonum(256)
	bank, _ := window.NewBank(512, 512)
	if _, err := New(tr, bank); err == nil {
		t.Error("expected error for mismatched window and fft sizes")
	}
}

// Feeding the same signal to both inputs must give back the input frame
// weighted by analysis*synthesis, placed at the output pointer.
func TestProcessFrameIdentity(t *testing.T) {
	for _, length := range []int{testFFTSize, 100} {
		f := newFixture(t, length)
		signal := func(i int) float64 { return math.Sin(2*math.Pi*float64(i)/37) + 0.3*math.Cos(float64(i)/5) }

		const inPointer = 900
		for i := 0; i < inPointer; i++ {
			f.inA.Write(i, signal(i))
			f.inB.Write(i, signal(i))
		}
		const outPointer = 1000 // wraps past the buffer end
		f.pipeline.ProcessFrame(f.inA, f.inB, inPointer, f.out, outPointer)

		tables := f.bank.Acquire()
		for n := 0; n < testFFTSize; n++ {
			x := signal(inPointer - testFFTSize + n)
			want := x * tables.Analysis[n] * tables.Synthesis[n]
			if got := f.out.At(outPointer + n); math.Abs(got-want) > 1e-9 {
				t.Fatalf("L=%d: out[%d] = %v, want %v", length, n, got, want)
			}
		}
		if got := f.pipeline.LastWindowLength(); got != length {
			t.Errorf("LastWindowLength = %d, want %d", got, length)
		}
	}
}

func TestProcessFrameAccumulates(t *testing.T) {
	f := newFixture(t, testFFTSize)
	for i := 0; i < testFFTSize; i++ {
		f.inA.Write(i, 1)
		f.inB.Write(i, 1)
	}
	f.pipeline.ProcessFrame(f.inA, f.inB, testFFTSize, f.out, 0)
	first := f.out.At(testFFTSize / 2)
	f.pipeline.ProcessFrame(f.inA, f.inB, testFFTSize, f.out, 0)
	if got := f.out.At(testFFTSize / 2); math.Abs(got-2*first) > 1e-9 {
		t.Errorf("second run did not overlap-add: got %v, want %v", got, 2*first)
	}
}

// A silent magnitude source silences the output regardless of the phase
// source.
func TestProcessFrameSilentMagnitude(t *testing.T) {
	f := newFixture(t, testFFTSize)
	for i := 0; i < testFFTSize; i++ {
		f.inB.Write(i, math.Sin(float64(i)))
	}
	f.pipeline.ProcessFrame(f.inA, f.inB, testFFTSize, f.out, 0)
	for n := 0; n < testFFTSize; n++ {
		if got := f.out.At(n); math.Abs(got) > 1e-12 {
			t.Fatalf("out[%d] = %v, want 0", n, got)
		}
	}
}

func TestProcessFrameUsesRegeneratedWindow(t *testing.T) {
	f := newFixture(t, testFFTSize)
	f.bank.Regenerate(64)
	for i := 0; i < testFFTSize; i++ {
		f.inA.Write(i, 1)
		f.inB.Write(i, 1)
	}
	f.pipeline.ProcessFrame(f.inA, f.inB, testFFTSize, f.out, 0)
	if got := f.pipeline.LastWindowLength(); got != 64 {
		t.Fatalf("LastWindowLength = %d, want 64", got)
	}
	for n := 64; n < testFFTSize; n++ {
		if got := f.out.At(n); got != 0 {
			t.Fatalf("out[%d] = %v beyond window length, want 0", n, got)
		}
	}
}

func TestProcessFrameZeroAllocs(t *testing.T) {
	f := newFixture(t, testFFTSize)
	ptr := 0
	allocs := testing.AllocsPerRun(100, func() {
		f.pipeline.ProcessFrame(f.inA, f.inB, ptr, f.out, ptr+testFFTSize)
		ptr += 64
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ProcessFrame, got %.1f", allocs)
	}
}

func BenchmarkProcessFrame(b *testing.B) {
	f := newFixture(b, testFFTSize)
	for i := 0; i < testBufferSize; i++ {
		f.inA.Write(i, math.Sin(float64(i)/3))
		f.inB.Write(i, math.Cos(float64(i)/7))
	}
	ptr := 0
	b.ReportAllocs()
	for b.Loop() {
		f.pipeline.ProcessFrame(f.inA, f.inB, ptr, f.out, ptr+testFFTSize)
		ptr += 64
	}
}
