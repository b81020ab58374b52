package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/internal/testutil"
)

// File-in to file-out with real devices: a one-second 1 kHz sine at
// -6 dBFS through an empty pipeline comes out equal to the input within
// the 16-bit quantization error.
func TestFileToFileS16LE(t *testing.T) {
	const (
		samplerate = 48000
		chunksize  = 1024
		seconds    = 1
	)
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.raw")
	outPath := filepath.Join(dir, "out.raw")

	nframes := samplerate * seconds
	signal := testutil.DeterministicSine(1000.0, float64(samplerate), 0.5, nframes)

	src := audio.NewChunk(2, nframes)
	copy(src.Waveforms[0], signal)
	copy(src.Waveforms[1], signal)
	raw := make([]byte, nframes*2*2)
	_, err := audio.ChunkToBytes(src, raw, audio.S16LE)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(inPath, raw, 0o644))

	doc := fmt.Sprintf(`
devices:
  samplerate: %d
  chunksize: %d
  capture: {type: File, channels: 2, format: S16LE, filename: %s}
  playback: {type: File, channels: 2, format: S16LE, filename: %s}
`, samplerate, chunksize, inPath, outPath)
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	eng := New(Options{Config: cfg, Log: quietLogger()})
	done := make(chan int, 1)
	go func() { done <- eng.Run() }()
	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
	case <-time.After(30 * time.Second):
		t.Fatal("engine did not finish")
	}

	outRaw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, outRaw, len(raw))

	decoded := audio.NewChunk(2, nframes)
	require.NoError(t, audio.ChunkFromBytes(decoded, outRaw, audio.S16LE))

	// RMS error below 2^-14 full scale.
	var sum float64
	for i := range signal {
		d := decoded.Waveforms[0][i] - signal[i]
		sum += d * d
	}
	rmsErr := math.Sqrt(sum / float64(nframes))
	if rmsErr >= math.Pow(2, -14) {
		t.Errorf("rms error %v, want below 2^-14", rmsErr)
	}
}
