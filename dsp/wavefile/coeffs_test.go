package wavefile

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	streamaudio "github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/internal/testutil"
)

func TestDummy(t *testing.T) {
	coeffs := Dummy(4)
	testutil.RequireSliceNearlyEqual(t, coeffs, []float64{1, 0, 0, 0}, 0)
}

func TestReadText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coeffs.txt")
	content := "# header line is not allowed, use skip\n1.0\n-0.5\n0.25\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coeffs, err := ReadText(path, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, coeffs, []float64{1.0, -0.5, 0.25}, 0)

	limited, err := ReadText(path, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, limited, []float64{1.0, -0.5}, 0)
}

func TestReadRaw(t *testing.T) {
	want := []float64{0.5, -0.25, 0.125}
	chunk := streamaudio.NewChunk(1, len(want))
	copy(chunk.Waveforms[0], want)
	buf := make([]byte, len(want)*8)
	if _, err := streamaudio.ChunkToBytes(chunk, buf, streamaudio.Float64LE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "coeffs.raw")
	// Prepend garbage to exercise skip_bytes.
	data := append([]byte{0xde, 0xad, 0xbe, 0xef}, buf...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coeffs, err := ReadRaw(path, streamaudio.Float64LE, 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, coeffs, want, 0)

	limited, err := ReadRaw(path, streamaudio.Float64LE, 4, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, limited, want[:2], 0)
}

// writeTestWav writes a small stereo 16-bit wav through the go-audio
// encoder.
func writeTestWav(t *testing.T, path string, left, right []float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		SourceBitDepth: 16,
		Data:           make([]int, 0, 2*len(left)),
	}
	for i := range left {
		buf.Data = append(buf.Data, int(math.Round(left[i]*32768.0)), int(math.Round(right[i]*32768.0)))
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadWavSelectsChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir.wav")
	left := []float64{0.5, 0.0, -0.25, 0.125}
	right := []float64{-0.5, 0.25, 0.0, 0.75}
	writeTestWav(t, path, left, right)

	got, err := ReadWav(path, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, got, right, 1.0/32768.0)

	if _, err := ReadWav(path, 2); err == nil {
		t.Error("expected error for a channel beyond the file layout")
	}
}

func TestWavAndRawAgree(t *testing.T) {
	dir := t.TempDir()
	coeffs := testutil.DeterministicNoise(29, 0.5, 64)

	wavPath := filepath.Join(dir, "ir.wav")
	writeTestWav(t, wavPath, coeffs, make([]float64, len(coeffs)))
	fromWav, err := ReadWav(wavPath, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Quantize the same way the wav writer did, store as raw S16LE.
	chunk := streamaudio.NewChunk(1, len(coeffs))
	copy(chunk.Waveforms[0], fromWav)
	raw := make([]byte, len(coeffs)*2)
	if _, err := streamaudio.ChunkToBytes(chunk, raw, streamaudio.S16LE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rawPath := filepath.Join(dir, "ir.raw")
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fromRaw, err := ReadRaw(rawPath, streamaudio.S16LE, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, fromRaw, fromWav, 1e-12)
}

func TestWriteStreamHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStreamHeader(&buf, streamaudio.S16LE, 2, 48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	header := buf.Bytes()
	if len(header) != 44 {
		t.Fatalf("header length = %d, want 44", len(header))
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" || string(header[36:40]) != "data" {
		t.Fatal("missing RIFF/WAVE/data markers")
	}
	if binary.LittleEndian.Uint32(header[4:8]) != math.MaxUint32 {
		t.Error("streaming header must use the maximum RIFF size")
	}
	if binary.LittleEndian.Uint16(header[20:22]) != 1 {
		t.Error("S16LE must be PCM format 1")
	}
	if binary.LittleEndian.Uint32(header[24:28]) != 48000 {
		t.Error("wrong sample rate")
	}
	if binary.LittleEndian.Uint16(header[32:34]) != 4 {
		t.Error("wrong block align for 16-bit stereo")
	}

	buf.Reset()
	if err := WriteStreamHeader(&buf, streamaudio.Float32LE, 1, 44100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if binary.LittleEndian.Uint16(buf.Bytes()[20:22]) != 3 {
		t.Error("float format must be IEEE float format 3")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	inDir := filepath.Join(dir, "ir.txt")
	if err := os.WriteFile(inDir, []byte("1.0\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ResolvePath("ir.txt", dir); got != inDir {
		t.Errorf("ResolvePath = %q, want %q", got, inDir)
	}
	// Files absent from the config dir fall back to the name as given.
	if got := ResolvePath("other.txt", dir); got != "other.txt" {
		t.Errorf("ResolvePath = %q, want %q", got, "other.txt")
	}
	abs := filepath.Join(dir, "absolute.txt")
	if got := ResolvePath(abs, "elsewhere"); got != abs {
		t.Errorf("absolute path must pass through, got %q", got)
	}
}
