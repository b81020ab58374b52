package resample

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-stream/internal/testutil"
)

// feed pushes chunks through a resampler and returns the concatenated
// output of channel 0.
func feed(t *testing.T, r Resampler, chunks [][]float64) []float64 {
	t.Helper()
	var out []float64
	scratch := [][]float64{make([]float64, r.MaxOutputFrames(len(chunks[0])))}
	for _, chunk := range chunks {
		n, err := r.ProcessChunk([][]float64{chunk}, len(chunk), scratch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, scratch[0][:n]...)
	}
	return out
}

// bestAlignment slides got against want and returns the smallest RMS error
// over the candidate integer lags, compensating the resampler delay.
func bestAlignment(got, want []float64, maxLag, skip int) float64 {
	best := math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		count := 0
		for i := skip; i+lag < len(got) && i < len(want); i++ {
			d := got[i+lag] - want[i]
			sum += d * d
			count++
		}
		if count == 0 {
			continue
		}
		rms := math.Sqrt(sum / float64(count))
		if rms < best {
			best = rms
		}
	}
	return best
}

func TestSyncRatioReduction(t *testing.T) {
	s, err := NewSync(44100, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, q := s.Ratio()
	if p != 160 || q != 147 {
		t.Errorf("ratio = %d/%d, want 160/147", p, q)
	}
}

func TestSyncRejectsRateAdjust(t *testing.T) {
	s, err := NewSync(44100, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetRatio(1.001); err == nil {
		t.Error("expected the synchronous resampler to reject SetRatio")
	}
}

func TestSyncIdentityRatio(t *testing.T) {
	const chunksize = 1024
	s, err := NewSync(48000, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks := testutil.SineChunks(1000.0, 48000.0, 0.5, chunksize, 20)
	out := feed(t, s, chunks)
	if len(out) == 0 {
		t.Fatal("no output produced")
	}
	full := testutil.DeterministicSine(1000.0, 48000.0, 0.5, chunksize*20)
	// Identity resampling reconstructs the signal after the priming
	// block, shifted by the analysis hop.
	err2 := bestAlignment(full, out, 2048, 1024)
	if err2 > 1e-6 {
		t.Errorf("identity error %v, want below 1e-6", err2)
	}
}

func TestSyncFrameCountFollowsRatio(t *testing.T) {
	const chunksize = 1024
	const nchunks = 100
	s, err := NewSync(44100, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunks := testutil.SineChunks(1000.0, 44100.0, 0.5, chunksize, nchunks)
	out := feed(t, s, chunks)

	expected := float64(chunksize*nchunks) * 48000.0 / 44100.0
	if math.Abs(float64(len(out))-expected) > 3000 {
		t.Errorf("output frames = %d, expected about %.0f", len(out), expected)
	}
}

// fitSine projects a signal onto sin/cos at angular frequency w (radians
// per sample) and returns the fitted amplitude and the RMS residual. This
// sidesteps the resampler's fractional delay, which an integer-lag
// comparison cannot align.
func fitSine(signal []float64, w float64) (amplitude, residual float64) {
	n := float64(len(signal))
	var ss, sc float64
	for i, v := range signal {
		ss += v * math.Sin(w*float64(i))
		sc += v * math.Cos(w*float64(i))
	}
	a := 2.0 * ss / n
	b := 2.0 * sc / n
	var sum float64
	for i, v := range signal {
		d := v - a*math.Sin(w*float64(i)) - b*math.Cos(w*float64(i))
		sum += d * d
	}
	return math.Hypot(a, b), math.Sqrt(sum / n)
}

func TestAsyncSincIdentity(t *testing.T) {
	params, err := Profile("Balanced")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := NewAsyncSinc(params, 48000, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const chunksize = 1024
	chunks := testutil.SineChunks(1000.0, 48000.0, 0.5, chunksize, 10)
	out := feed(t, r, chunks)
	if len(out) < 4096 {
		t.Fatalf("too little output: %d frames", len(out))
	}

	// Skip the zero history at the start, then the output must still be
	// the same sine within the filter's passband accuracy.
	settled := out[params.SincLen*2:]
	amplitude, residual := fitSine(settled, 2.0*math.Pi*1000.0/48000.0)
	if math.Abs(amplitude-0.5) > 2e-3 {
		t.Errorf("amplitude = %v, want 0.5", amplitude)
	}
	if residual > 2e-3 {
		t.Errorf("residual %v, want below 2e-3", residual)
	}
}

func TestAsyncSincUpsampleFrequencyPreserved(t *testing.T) {
	params, err := Profile("Fast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := NewAsyncSinc(params, 44100, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const chunksize = 1024
	const nchunks = 40
	chunks := testutil.SineChunks(1000.0, 44100.0, 0.5, chunksize, nchunks)
	out := feed(t, r, chunks)

	expected := float64(chunksize*nchunks) * 48000.0 / 44100.0
	if math.Abs(float64(len(out))-expected) > float64(params.SincLen)*2 {
		t.Errorf("output frames = %d, expected about %.0f", len(out), expected)
	}

	// The output must carry the same analog frequency at the new rate.
	settled := out[params.SincLen*2:]
	amplitude, residual := fitSine(settled, 2.0*math.Pi*1000.0/48000.0)
	if math.Abs(amplitude-0.5) > 5e-3 {
		t.Errorf("amplitude = %v, want 0.5", amplitude)
	}
	if residual > 5e-3 {
		t.Errorf("residual %v, want below 5e-3", residual)
	}
}

func TestAsyncSincSetRatioChangesOutputCount(t *testing.T) {
	params, err := Profile("VeryFast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := NewAsyncSinc(params, 48000, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SetRatio(1.5); err == nil {
		t.Fatal("expected rejection of a ratio far from 1")
	}
	if err := r.SetRatio(1.01); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const chunksize = 1024
	chunks := testutil.SineChunks(1000.0, 48000.0, 0.5, chunksize, 50)
	out := feed(t, r, chunks)
	expected := 1.01 * float64(chunksize*50)
	if math.Abs(float64(len(out))-expected) > 200 {
		t.Errorf("output frames = %d, expected about %.0f", len(out), expected)
	}
}

func TestAsyncPolyIdentity(t *testing.T) {
	r, err := NewAsyncPoly(PolyCubic, 48000, 48000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const chunksize = 512
	chunks := testutil.SineChunks(440.0, 48000.0, 0.5, chunksize, 10)
	out := feed(t, r, chunks)
	full := testutil.DeterministicSine(440.0, 48000.0, 0.5, chunksize*10)
	// The output lags the input by the zero history the resampler starts
	// with, so the output is the side slid against the reference.
	err2 := bestAlignment(out, full, 8, 16)
	if err2 > 1e-3 {
		t.Errorf("identity error %v, want below 1e-3", err2)
	}
}

func TestAsyncPolyInterpolationOrders(t *testing.T) {
	for _, interp := range []PolyInterpolation{PolyLinear, PolyCubic, PolyQuintic, PolySeptic} {
		r, err := NewAsyncPoly(interp, 44100, 48000, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		in := [][]float64{
			testutil.DeterministicSine(500.0, 44100.0, 0.5, 441),
			testutil.DeterministicSine(500.0, 44100.0, 0.5, 441),
		}
		out := [][]float64{
			make([]float64, r.MaxOutputFrames(441)),
			make([]float64, r.MaxOutputFrames(441)),
		}
		n, err := r.ProcessChunk(in, 441, out)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Fatalf("interp %v produced no frames", interp)
		}
		testutil.RequireFinite(t, out[0][:n])
	}
}

func TestDefaultCutoffHeuristic(t *testing.T) {
	for _, w := range []Window{WindowHann, WindowBlackman2, WindowBlackmanHarris2} {
		c := DefaultCutoff(256, w)
		if c <= 0.5 || c >= 1.0 {
			t.Errorf("cutoff for window %v = %v, want within (0.5, 1)", w, c)
		}
	}
	// A longer sinc allows a higher cutoff.
	if DefaultCutoff(64, WindowBlackman) >= DefaultCutoff(512, WindowBlackman) {
		t.Error("cutoff should grow with sinc length")
	}
}

func TestWindowsAreSymmetricAndPositive(t *testing.T) {
	windows := []Window{WindowHann, WindowHann2, WindowBlackman, WindowBlackman2, WindowBlackmanHarris, WindowBlackmanHarris2}
	for _, w := range windows {
		center := w.value(0)
		if center < 0.9 {
			t.Errorf("window %v center = %v, want close to 1", w, center)
		}
		for _, x := range []float64{0.1, 0.5, 0.9} {
			if math.Abs(w.value(x)-w.value(-x)) > 1e-12 {
				t.Errorf("window %v asymmetric at %v", w, x)
			}
		}
		if w.value(1.5) != 0 || w.value(-1.5) != 0 {
			t.Errorf("window %v must be zero outside [-1, 1]", w)
		}
	}
}
