package conv

import (
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

// directConvolve is the textbook O(N*M) reference.
func directConvolve(x, h []float64) []float64 {
	out := make([]float64, len(x)+len(h)-1)
	for i, xv := range x {
		for j, hv := range h {
			out[i+j] += xv * hv
		}
	}
	return out
}

// runStreaming pushes the signal through the filter in blockSize pieces
// and returns the concatenated output.
func runStreaming(t *testing.T, kernel, signal []float64, blockSize int) []float64 {
	t.Helper()
	f, err := NewFFTFilter(kernel, blockSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []float64
	for start := 0; start < len(signal); start += blockSize {
		block := make([]float64, blockSize)
		copy(block, signal[start:])
		if err := f.ProcessBlock(block); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, block...)
	}
	return out
}

func TestShortKernelMatchesDirect(t *testing.T) {
	const blockSize = 64
	kernel := testutil.DeterministicNoise(7, 0.5, 48)
	signal := testutil.DeterministicNoise(11, 0.8, 4*blockSize)

	got := runStreaming(t, kernel, signal, blockSize)
	want := directConvolve(signal, kernel)

	testutil.RequireSliceNearlyEqual(t, got, want[:len(got)], 1e-10)
}

func TestSegmentedKernelMatchesDirect(t *testing.T) {
	const blockSize = 64
	// Kernel spanning five segments.
	kernel := testutil.DeterministicNoise(3, 0.5, 5*blockSize-13)
	signal := testutil.DeterministicNoise(5, 0.8, 10*blockSize)

	f, err := NewFFTFilter(kernel, blockSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.SegmentCount() != 5 {
		t.Fatalf("segment count = %d, want 5", f.SegmentCount())
	}

	got := runStreaming(t, kernel, signal, blockSize)
	want := directConvolve(signal, kernel)

	testutil.RequireSliceNearlyEqual(t, got, want[:len(got)], 1e-10)
}

func TestKernelExactlyBlockSized(t *testing.T) {
	const blockSize = 32
	kernel := testutil.DeterministicNoise(17, 1.0, blockSize)
	signal := testutil.DeterministicNoise(19, 1.0, 6*blockSize)

	got := runStreaming(t, kernel, signal, blockSize)
	want := directConvolve(signal, kernel)
	testutil.RequireSliceNearlyEqual(t, got, want[:len(got)], 1e-10)
}

func TestUnitDummyIsPassThrough(t *testing.T) {
	const blockSize = 128
	kernel := []float64{1.0}
	signal := testutil.DeterministicSine(440.0, 48000.0, 0.9, 4*blockSize)

	got := runStreaming(t, kernel, signal, blockSize)
	testutil.RequireSliceNearlyEqual(t, got, signal, 1e-12)
}

func TestBlockSizeOne(t *testing.T) {
	kernel := []float64{0.5, 0.25}
	signal := []float64{1, 0, 0, 0, 1, 1}

	got := runStreaming(t, kernel, signal, 1)
	want := directConvolve(signal, kernel)
	testutil.RequireSliceNearlyEqual(t, got, want[:len(got)], 1e-10)
}

func TestSetCoefficientsSameLayoutKeepsHistory(t *testing.T) {
	const blockSize = 32
	f, err := NewFFTFilter([]float64{1.0}, blockSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	block := testutil.DeterministicNoise(23, 0.5, blockSize)
	work := append([]float64(nil), block...)
	if err := f.ProcessBlock(work); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Swap to a one-sample delay; the first output sample of the next
	// block must be the last input sample of the previous block.
	if err := f.SetCoefficients([]float64{0.0, 1.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next := make([]float64, blockSize)
	if err := f.ProcessBlock(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := next[0] - block[blockSize-1]; diff > 1e-10 || diff < -1e-10 {
		t.Errorf("history lost over coefficient swap: got %v, want %v", next[0], block[blockSize-1])
	}
}

func TestRejectsEmptyKernel(t *testing.T) {
	if _, err := NewFFTFilter(nil, 64); err == nil {
		t.Error("expected error for empty kernel")
	}
	if _, err := NewFFTFilter([]float64{1}, 0); err == nil {
		t.Error("expected error for zero block size")
	}
}
