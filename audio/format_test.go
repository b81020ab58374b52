package audio

import (
	"math"
	"testing"
)

func allFormats() []SampleFormat {
	return []SampleFormat{S16LE, S24LE, S24LE3, S32LE, Float32LE, Float64LE}
}

func TestParseSampleFormat(t *testing.T) {
	for _, f := range allFormats() {
		got, err := ParseSampleFormat(f.String())
		if err != nil || got != f {
			t.Errorf("ParseSampleFormat(%q) = %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParseSampleFormat("S8"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []float64{0.0, 0.5, -0.5, 0.25, -1.0, 0.999}
	for _, format := range allFormats() {
		chunk := NewChunk(2, len(values)/2)
		idx := 0
		for frame := 0; frame < chunk.Frames; frame++ {
			for ch := 0; ch < 2; ch++ {
				chunk.Waveforms[ch][frame] = values[idx]
				idx++
			}
		}
		buf := make([]byte, chunk.Frames*2*format.BytesPerSample())
		clipped, err := ChunkToBytes(chunk, buf, format)
		if err != nil {
			t.Fatalf("%v: %v", format, err)
		}
		if clipped != 0 {
			t.Errorf("%v: unexpected clipping of in-range values", format)
		}

		decoded := NewChunk(2, chunk.Frames)
		if err := ChunkFromBytes(decoded, buf, format); err != nil {
			t.Fatalf("%v: %v", format, err)
		}
		eps := 1.5 / math.Pow(2.0, float64(format.BitsPerSample()-1))
		if format == Float32LE {
			eps = 1e-7
		}
		if format == Float64LE {
			eps = 0
		}
		for ch := 0; ch < 2; ch++ {
			for frame := 0; frame < chunk.Frames; frame++ {
				want := chunk.Waveforms[ch][frame]
				got := decoded.Waveforms[ch][frame]
				if math.Abs(got-want) > eps {
					t.Errorf("%v ch %d frame %d: got %v, want %v", format, ch, frame, got, want)
				}
			}
		}
	}
}

func TestClippingCounted(t *testing.T) {
	chunk := NewChunk(1, 4)
	copy(chunk.Waveforms[0], []float64{1.5, -1.5, 0.5, 2.0})
	buf := make([]byte, 4*2)
	clipped, err := ChunkToBytes(chunk, buf, S16LE)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clipped != 3 {
		t.Errorf("clipped = %d, want 3", clipped)
	}
	decoded := NewChunk(1, 4)
	if err := ChunkFromBytes(decoded, buf, S16LE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Waveforms[0][0] < 0.99 {
		t.Errorf("positive clip decoded to %v", decoded.Waveforms[0][0])
	}
	if decoded.Waveforms[0][1] > -0.99 {
		t.Errorf("negative clip decoded to %v", decoded.Waveforms[0][1])
	}
}

func TestS24LE3Packing(t *testing.T) {
	chunk := NewChunk(1, 1)
	chunk.Waveforms[0][0] = 0.5
	buf := make([]byte, 3)
	if _, err := ChunkToBytes(chunk, buf, S24LE3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.5 * 2^23 = 0x400000 little-endian.
	if buf[0] != 0x00 || buf[1] != 0x00 || buf[2] != 0x40 {
		t.Errorf("packed bytes = % x, want 00 00 40", buf)
	}
}

func TestShortBufferErrors(t *testing.T) {
	chunk := NewChunk(2, 16)
	buf := make([]byte, 10)
	if _, err := ChunkToBytes(chunk, buf, S32LE); err == nil {
		t.Error("expected error for short output buffer")
	}
	if err := ChunkFromBytes(chunk, buf, S32LE); err == nil {
		t.Error("expected error for short input buffer")
	}
}
