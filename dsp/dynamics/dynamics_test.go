package dynamics

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

const testRate = 48000

func stereoSine(amplitude float64, n int) [][]float64 {
	wave := testutil.DeterministicSine(1000.0, testRate, amplitude, n)
	left := append([]float64(nil), wave...)
	right := append([]float64(nil), wave...)
	return [][]float64{left, right}
}

func TestCompressorBelowThresholdAppliesMakeupOnly(t *testing.T) {
	comp, err := NewCompressor(CompressorParams{
		Channels:  2,
		Attack:    0.01,
		Release:   0.1,
		Threshold: 0.0,
		Factor:    4.0,
	}, testRate, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves := stereoSine(0.1, 1024)
	want := append([]float64(nil), waves[0]...)
	comp.ProcessChunk(waves, 1024)
	// A -20 dBFS mono pair sums to about -14 dB, far below 0 dB threshold.
	testutil.RequireSliceNearlyEqual(t, waves[0], want, 1e-9)
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	comp, err := NewCompressor(CompressorParams{
		Channels:  2,
		Attack:    0.003,
		Release:   0.1,
		Threshold: -20.0,
		Factor:    10.0,
	}, testRate, 8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves := stereoSine(0.5, 8192)
	inRMS := testutil.RMS(waves[0])
	comp.ProcessChunk(waves, 8192)
	// Let the envelope settle, measure the tail.
	outRMS := testutil.RMS(waves[0][4096:])
	if outRMS >= inRMS*0.7 {
		t.Errorf("compressor did not reduce level: in %v, out %v", inRMS, outRMS)
	}
}

func TestCompressorMonitorOnlyAffectsProcessChannels(t *testing.T) {
	comp, err := NewCompressor(CompressorParams{
		Channels:        2,
		MonitorChannels: []int{0},
		ProcessChannels: []int{1},
		Attack:          0.003,
		Release:         0.1,
		Threshold:       -30.0,
		Factor:          10.0,
	}, testRate, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves := stereoSine(0.5, 4096)
	left := append([]float64(nil), waves[0]...)
	comp.ProcessChunk(waves, 4096)
	testutil.RequireSliceNearlyEqual(t, waves[0], left, 0)
	if rms := testutil.RMS(waves[1][2048:]); rms >= testutil.RMS(left)*0.9 {
		t.Errorf("process channel was not attenuated: %v", rms)
	}
}

func TestCompressorValidation(t *testing.T) {
	bad := CompressorParams{Channels: 2, Attack: 0, Release: 0.1, Factor: 4}
	if err := ValidateCompressor(bad); err == nil {
		t.Error("expected error for zero attack")
	}
	bad = CompressorParams{Channels: 2, Attack: 0.1, Release: 0.1, Factor: 4, MonitorChannels: []int{2}}
	if err := ValidateCompressor(bad); err == nil {
		t.Error("expected error for out-of-range monitor channel")
	}
}

func TestNoiseGateAttenuatesQuietSignal(t *testing.T) {
	gate, err := NewNoiseGate(NoiseGateParams{
		Channels:    2,
		Attack:      0.001,
		Release:     0.005,
		Threshold:   -40.0,
		Attenuation: 60.0,
	}, testRate, 16384)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves := stereoSine(0.001, 16384) // -60 dBFS, below threshold
	inRMS := testutil.RMS(waves[0])
	gate.ProcessChunk(waves, 16384)
	outRMS := testutil.RMS(waves[0][8192:])
	if outRMS > inRMS*0.1 {
		t.Errorf("gate left too much signal: in %v, out %v", inRMS, outRMS)
	}
}

func TestNoiseGatePassesLoudSignal(t *testing.T) {
	gate, err := NewNoiseGate(NoiseGateParams{
		Channels:    2,
		Attack:      0.001,
		Release:     0.01,
		Threshold:   -40.0,
		Attenuation: 60.0,
	}, testRate, 8192)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waves := stereoSine(0.5, 8192)
	inRMS := testutil.RMS(waves[0])
	gate.ProcessChunk(waves, 8192)
	outRMS := testutil.RMS(waves[0][4096:])
	if math.Abs(outRMS-inRMS)/inRMS > 0.05 {
		t.Errorf("gate touched a loud signal: in %v, out %v", inRMS, outRMS)
	}
}

func TestLimiterHardClip(t *testing.T) {
	lim := NewLimiter(-6.02, false)
	limit := math.Pow(10.0, -6.02/20.0)
	buf := testutil.DeterministicSine(100.0, testRate, 1.0, 1024)
	lim.ProcessBlock(buf)
	for i, v := range buf {
		if v > limit+1e-12 || v < -limit-1e-12 {
			t.Fatalf("index %d: %v beyond limit %v", i, v, limit)
		}
	}
}

func TestLimiterSoftClipStaysBounded(t *testing.T) {
	lim := NewLimiter(0.0, true)
	buf := testutil.DeterministicSine(100.0, testRate, 2.0, 1024)
	lim.ProcessBlock(buf)
	// The cubic soft clip saturates at 1.5 - 1.5^3/6.75 = 1.0 of the
	// limit.
	for i, v := range buf {
		if math.Abs(v) > 1.0+1e-9 {
			t.Fatalf("index %d: %v beyond soft saturation", i, v)
		}
	}
	// Small signals pass nearly unchanged.
	small := testutil.DeterministicSine(100.0, testRate, 0.1, 1024)
	ref := append([]float64(nil), small...)
	lim.ProcessBlock(small)
	for i := range small {
		if math.Abs(small[i]-ref[i]) > 0.002 {
			t.Fatalf("index %d: soft clip distorted a small signal", i)
		}
	}
}
