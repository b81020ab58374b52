package delay

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

func TestIntegerDelayShiftsImpulse(t *testing.T) {
	d, err := New(5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := testutil.Impulse(32, 0)
	d.ProcessBlock(buf)
	want := testutil.Impulse(32, 5)
	testutil.RequireSliceNearlyEqual(t, buf, want, 0)
}

func TestZeroDelayIsPassThrough(t *testing.T) {
	d, err := New(0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := testutil.DeterministicSine(440.0, 48000.0, 1.0, 64)
	want := append([]float64(nil), buf...)
	d.ProcessBlock(buf)
	testutil.RequireSliceNearlyEqual(t, buf, want, 0)
}

func TestDelaySpansBlocks(t *testing.T) {
	d, err := New(40, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := testutil.Impulse(32, 3)
	second := make([]float64, 32)
	d.ProcessBlock(first)
	d.ProcessBlock(second)
	// Impulse at 3 delayed by 40 lands at index 11 of the second block.
	testutil.RequireSliceNearlyEqual(t, first, make([]float64, 32), 0)
	testutil.RequireSliceNearlyEqual(t, second, testutil.Impulse(32, 11), 0)
}

func TestNegativeDelayRejected(t *testing.T) {
	if _, err := New(-1, false); err == nil {
		t.Error("expected error for negative delay")
	}
}

func TestFractionalDelayOnSine(t *testing.T) {
	// Delay a low-frequency sine by 10.5 samples; the allpass should land
	// within a small error of the ideally shifted signal.
	const fs = 48000.0
	const freq = 1000.0
	const delaySamples = 10.5

	d, err := New(delaySamples, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := 4096
	buf := testutil.DeterministicSine(freq, fs, 0.5, n)
	d.ProcessBlock(buf)

	step := 2.0 * math.Pi * freq / fs
	worst := 0.0
	// Skip the settle-in region of the allpass.
	for i := 200; i < n; i++ {
		want := 0.5 * math.Sin(step*(float64(i)-delaySamples))
		diff := math.Abs(buf[i] - want)
		if diff > worst {
			worst = diff
		}
	}
	if worst > 0.01 {
		t.Errorf("worst error %v, want below 0.01", worst)
	}
}

func TestUnits(t *testing.T) {
	if got := InSamples(1000.0, UnitMillis, 48000); got != 48000.0 {
		t.Errorf("1000 ms at 48 kHz = %v samples, want 48000", got)
	}
	// 343 mm at the speed of sound is one millisecond.
	got := InSamples(343.0, UnitMillimetres, 48000)
	if math.Abs(got-48.0) > 1e-9 {
		t.Errorf("343 mm at 48 kHz = %v samples, want 48", got)
	}
	if got := InSamples(123.0, UnitSamples, 48000); got != 123.0 {
		t.Errorf("samples unit should pass through, got %v", got)
	}
}

func TestParseUnit(t *testing.T) {
	for name, want := range map[string]Unit{"": UnitMillis, "ms": UnitMillis, "mm": UnitMillimetres, "samples": UnitSamples} {
		got, err := ParseUnit(name)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseUnit("furlongs"); err == nil {
		t.Error("expected error for unknown unit")
	}
}
