package biquad

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

func TestButterworthQ2(t *testing.T) {
	q := ButterworthQ(2)
	testutil.RequireSliceNearlyEqual(t, q, []float64{0.707}, 0.01)
}

func TestButterworthQ5(t *testing.T) {
	q := ButterworthQ(5)
	testutil.RequireSliceNearlyEqual(t, q, []float64{1.62, 0.62, -1.0}, 0.01)
}

func TestButterworthQ8(t *testing.T) {
	q := ButterworthQ(8)
	testutil.RequireSliceNearlyEqual(t, q, []float64{2.56, 0.9, 0.6, 0.51}, 0.01)
}

func TestLinkwitzRileyQ4(t *testing.T) {
	q := LinkwitzRileyQ(4)
	testutil.RequireSliceNearlyEqual(t, q, []float64{0.707, 0.707}, 0.01)
}

func TestLinkwitzRileyQ10(t *testing.T) {
	q := LinkwitzRileyQ(10)
	testutil.RequireSliceNearlyEqual(t, q, []float64{1.62, 0.62, 1.62, 0.62, 0.5}, 0.01)
}

func TestComboOrderValidation(t *testing.T) {
	if _, err := LinkwitzRileyHighpass(48000, 1000.0, 5); err == nil {
		t.Error("expected error for odd LR order")
	}
	if _, err := LinkwitzRileyHighpass(48000, 1000.0, 0); err == nil {
		t.Error("expected error for zero LR order")
	}
	if _, err := ButterworthHighpass(48000, 1000.0, 0); err == nil {
		t.Error("expected error for zero Butterworth order")
	}
	if _, err := ButterworthHighpass(48000, 1000.0, 5); err != nil {
		t.Errorf("odd Butterworth order should be fine: %v", err)
	}
}

// cascadeResponse is the complex response of a section list at f.
func cascadeResponse(coeffs []Coefficients, fs int, f float64) complex128 {
	h := complex(1, 0)
	for _, c := range coeffs {
		h *= c.Response(fs, f)
	}
	return h
}

// A Linkwitz-Riley crossover sums to unity magnitude: lowpass plus
// highpass (highpass inverted for orders with odd half-order) is allpass.
func TestLinkwitzRileySumToFlat(t *testing.T) {
	const fs = 48000
	const freq = 2000.0
	lp, err := LinkwitzRileyLowpass(fs, freq, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hp, err := LinkwitzRileyHighpass(fs, freq, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, f := range []float64{100.0, 1000.0, 2000.0, 4000.0, 10000.0, 20000.0} {
		sum := cascadeResponse(lp, fs, f) + cascadeResponse(hp, fs, f)
		if mag := cmplx.Abs(sum); math.Abs(mag-1.0) > 0.01 {
			t.Errorf("at %v Hz |lp+hp| = %v, want 1", f, mag)
		}
	}

	// At the crossover both branches sit at -6 dB.
	for _, branch := range [][]Coefficients{lp, hp} {
		mag := cmplx.Abs(cascadeResponse(branch, fs, freq))
		if math.Abs(mag-0.5) > 0.005 {
			t.Errorf("crossover branch magnitude = %v, want 0.5", mag)
		}
	}
}

func TestButterworthCornerGain(t *testing.T) {
	const fs = 48000
	lp, err := ButterworthLowpass(fs, 1000.0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mag := cmplx.Abs(cascadeResponse(lp, fs, 1000.0))
	if math.Abs(20.0*math.Log10(mag)+3.01) > 0.1 {
		t.Errorf("corner gain = %v dB, want about -3", 20.0*math.Log10(mag))
	}
}

func TestTiltResponse(t *testing.T) {
	coeffs := Tilt(48000, 6.0)
	lowGain := 20.0 * math.Log10(cmplx.Abs(cascadeResponse(coeffs, 48000, 20.0)))
	highGain := 20.0 * math.Log10(cmplx.Abs(cascadeResponse(coeffs, 48000, 20000.0)))
	if math.Abs(lowGain+3.0) > 0.5 {
		t.Errorf("low end gain = %v dB, want about -3", lowGain)
	}
	if math.Abs(highGain-3.0) > 0.5 {
		t.Errorf("high end gain = %v dB, want about +3", highGain)
	}
}

func TestFivePointPeqElision(t *testing.T) {
	coeffs := FivePointPeq(48000,
		PeqBand{Freq: 100, Q: 0.7, Gain: 3},
		PeqBand{Freq: 300, Q: 0.0, Gain: 3}, // elided
		PeqBand{Freq: 1000, Q: 1.0, Gain: -2},
		PeqBand{Freq: 3000, Q: 0.0005, Gain: 1}, // elided
		PeqBand{Freq: 10000, Q: 0.7, Gain: 4})
	if len(coeffs) != 3 {
		t.Errorf("got %d sections, want 3", len(coeffs))
	}
}

func TestGraphicEqualizerBands(t *testing.T) {
	gains := []float64{0, 3.0, 0, -4.0, 0}
	coeffs := GraphicEqualizer(48000, 20.0, 20000.0, gains)
	if len(coeffs) != 2 {
		t.Fatalf("got %d sections, want 2 (zero-gain bands elided)", len(coeffs))
	}
	// Band 1 center: 20 * 1000^(1.5/5)
	center := 20.0 * math.Pow(1000.0, 1.5/5.0)
	mag := 20.0 * math.Log10(coeffs[0].GainAt(48000, center))
	if math.Abs(mag-3.0) > 0.1 {
		t.Errorf("band gain at center = %v dB, want 3", mag)
	}
}
