package dither

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

func TestQuantizerRejectsBadBitDepth(t *testing.T) {
	if _, err := NewQuantizer(1, nil, nil); err == nil {
		t.Error("expected error for bit depth below 2")
	}
}

func TestPlainQuantizationRounds(t *testing.T) {
	q, err := NewQuantizer(8, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := []float64{0.5, -0.25, 0.123456}
	q.ProcessBlock(buf)
	scale := 128.0
	for i, v := range buf {
		rounded := math.Round(v*scale) / scale
		if v != rounded {
			t.Errorf("index %d: %v is not on the quantization grid", i, v)
		}
	}
}

func TestTwoBitFlatDitherOutputSet(t *testing.T) {
	q, err := NewQuantizer(2, NewTriangular(2.0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := make([]float64, 10000)
	q.ProcessBlock(buf)
	allowed := map[float64]bool{-1.0: true, -0.5: true, 0.0: true, 0.5: true}
	for i, v := range buf {
		if !allowed[v] {
			t.Fatalf("index %d: value %v outside the 2-bit set", i, v)
		}
	}
}

func TestDitherIsZeroMean(t *testing.T) {
	q, err := NewQuantizer(16, NewTriangular(2.0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := 200000
	buf := make([]float64, n)
	q.ProcessBlock(buf)
	sum := 0.0
	for _, v := range buf {
		sum += v
	}
	mean := sum / float64(n)
	if math.Abs(mean) > 1e-6 {
		t.Errorf("dither mean = %v, want close to 0", mean)
	}
}

func TestShapedQuantizationPreservesSignal(t *testing.T) {
	q, err := NewQuantizer(16, NewTriangular(2.0), Fweighted441())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := testutil.DeterministicSine(1000.0, 44100.0, 0.5, 8192)
	buf := append([]float64(nil), in...)
	q.ProcessBlock(buf)

	// The error must stay small; noise shaping trades spectrum shape, not
	// amplitude accuracy of the signal itself.
	maxDiff, err := testutil.MaxAbsDiff(in, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A shaped 16 bit quantizer can push several LSB of error.
	if maxDiff > 32.0/32768.0 {
		t.Errorf("max deviation %v too large", maxDiff)
	}
	if rms := testutil.RMS(buf); math.Abs(rms-testutil.RMS(in)) > 1e-3 {
		t.Errorf("rms changed from %v to %v", testutil.RMS(in), rms)
	}
}

func TestShaperErrorFeedback(t *testing.T) {
	// With a single +1 tap the shaper adds back the previous error.
	s := NewShaper([]float64{1.0})
	first := s.Process(0.4, 0)
	if first != 0.0 {
		t.Fatalf("round(0.4) = %v, want 0", first)
	}
	// Error of the first sample was 0.4; the next input gets it added:
	// 0.4 + 0.4 = 0.8, rounds to 1.
	second := s.Process(0.4, 0)
	if second != 1.0 {
		t.Fatalf("second sample = %v, want 1", second)
	}
}

func TestShaperPresetsHaveTaps(t *testing.T) {
	presets := []func() *Shaper{
		Fweighted441, FweightedLong441, FweightedShort441,
		Gesemann441, Gesemann48,
		Lipshitz441, LipshitzLong441,
		Shibata441, ShibataHigh441, ShibataLow441,
		Shibata48, ShibataHigh48, ShibataLow48,
		Shibata882, ShibataLow882,
		Shibata96, ShibataLow96,
		Shibata192, ShibataLow192,
	}
	for i, build := range presets {
		s := build()
		if len(s.coeffs) == 0 {
			t.Errorf("preset %d has no taps", i)
		}
	}
}

func TestHighpassDithererSpectrum(t *testing.T) {
	h := NewHighpass()
	n := 100000
	// First differences of a bounded sequence sum to a bounded value;
	// the running sum must stay within the source amplitude.
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += h.Sample()
	}
	if math.Abs(sum) > 1.0 {
		t.Errorf("highpass dither accumulated DC %v", sum)
	}
}
