// SPDX-License-Identifier: MIT
package window

import (
	"math"
	"sync"
	"testing"
)

const testSize = 512

func newTestBank(t *testing.T, size, length int) *Bank {
	t.Helper()
	b, err := NewBank(size, length)
	if err != nil {
		t.Fatalf("NewBank(%d, %d) error: %v", size, length, err)
	}
	return b
}

func hann(n, length int) float64 {
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(n)/float64(length-1)))
}

func TestNewBankRejectsTinySize(t *testing.T) {
	if _, err := NewBank(1, 1); err == nil {
		t.Error("expected error for size 1, got nil")
	}
}

func TestHannCoefficients(t *testing.T) {
	for _, length := range []int{4, 200, testSize} {
		b := newTestBank(t, testSize, length)
		tables := b.Acquire()
		if tables.Length != length {
			t.Fatalf("Length = %d, want %d", tables.Length, length)
		}
		for n := 0; n < length; n++ {
			want := hann(n, length)
			if math.Abs(tables.Analysis[n]-want) > 1e-12 {
				t.Fatalf("L=%d: Analysis[%d] = %v, want %v", length, n, tables.Analysis[n], want)
			}
			if tables.Synthesis[n] != tables.Analysis[n] {
				t.Fatalf("L=%d: Synthesis[%d] differs from Analysis", length, n)
			}
		}
	}
}

// Shrinking the window must not leave coefficients of the longer window in
// the table tail.
func TestRegenerateZeroPadsTail(t *testing.T) {
	b := newTestBank(t, testSize, testSize)
	b.Regenerate(testSize)
	b.Regenerate(100)
	tables := b.Acquire()

	if tables.Length != 100 {
		t.Fatalf("Length = %d, want 100", tables.Length)
	}
	for n := 100; n < testSize; n++ {
		if tables.Analysis[n] != 0 || tables.Synthesis[n] != 0 {
			t.Fatalf("tail coefficient %d not zero: a=%v s=%v", n, tables.Analysis[n], tables.Synthesis[n])
		}
	}
}

func TestEnergy(t *testing.T) {
	b := newTestBank(t, testSize, 256)
	tables := b.Acquire()

	var want float64
	for n := 0; n < 256; n++ {
		w := hann(n, 256)
		want += w * w
	}
	if math.Abs(tables.Energy-want) > 1e-9 {
		t.Errorf("Energy = %v, want %v", tables.Energy, want)
	}
}

func TestClampLength(t *testing.T) {
	b := newTestBank(t, testSize, testSize)
	tests := []struct{ in, want int }{
		{-5, MinLength},
		{1, MinLength},
		{200, 200},
		{4 * 200, testSize},
	}
	for _, tt := range tests {
		if got := b.ClampLength(tt.in); got != tt.want {
			t.Errorf("ClampLength(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAcquireSeesLatestPublished(t *testing.T) {
	b := newTestBank(t, testSize, testSize)

	if got := b.Acquire().Length; got != testSize {
		t.Fatalf("initial Length = %d, want %d", got, testSize)
	}
	b.Regenerate(400)
	b.Regenerate(300)
	if got := b.Acquire().Length; got != 300 {
		t.Errorf("Length after two regenerations = %d, want 300", got)
	}
	if got := b.Acquire().Length; got != 300 {
		t.Errorf("repeat Acquire Length = %d, want 300", got)
	}
	b.Regenerate(200)
	if got := b.Acquire().Length; got != 200 {
		t.Errorf("Length = %d, want 200", got)
	}
}

// The reader must always see a complete generation: every coefficient of the
// acquired tables has to agree with its recorded Length.
func TestConcurrentRegenerateAcquire(t *testing.T) {
	b := newTestBank(t, 256, 256)
	lengths := []int{64, 128, 200, 256}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			b.Regenerate(lengths[i%len(lengths)])
		}
	}()

	for i := 0; i < 2000; i++ {
		tables := b.Acquire()
		L := tables.Length
		for n := 0; n < 256; n++ {
			want := 0.0
			if n < L {
				want = hann(n, L)
			}
			if math.Abs(tables.Analysis[n]-want) > 1e-12 {
				close(stop)
				wg.Wait()
				t.Fatalf("torn table: L=%d, Analysis[%d] = %v, want %v", L, n, tables.Analysis[n], want)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestRegenerateZeroAllocs(t *testing.T) {
	b := newTestBank(t, 2048, 2048)
	allocs := testing.AllocsPerRun(50, func() {
		b.Regenerate(800)
		_ = b.Acquire()
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Regenerate/Acquire, got %.1f", allocs)
	}
}
