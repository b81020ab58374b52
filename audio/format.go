package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleFormat enumerates the sample formats supported on the device
// boundary. All formats are little-endian.
type SampleFormat int

const (
	S16LE SampleFormat = iota
	S24LE
	S24LE3
	S32LE
	Float32LE
	Float64LE
)

var formatNames = map[SampleFormat]string{
	S16LE:     "S16LE",
	S24LE:     "S24LE",
	S24LE3:    "S24LE3",
	S32LE:     "S32LE",
	Float32LE: "FLOAT32LE",
	Float64LE: "FLOAT64LE",
}

// ParseSampleFormat converts a configuration string to a SampleFormat.
func ParseSampleFormat(name string) (SampleFormat, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("audio: unknown sample format %q", name)
}

func (f SampleFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("SampleFormat(%d)", int(f))
}

// BytesPerSample returns the storage size of one sample.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case S16LE:
		return 2
	case S24LE3:
		return 3
	case S24LE, S32LE, Float32LE:
		return 4
	case Float64LE:
		return 8
	}
	return 0
}

// BitsPerSample returns the number of significant payload bits.
func (f SampleFormat) BitsPerSample() int {
	switch f {
	case S16LE:
		return 16
	case S24LE, S24LE3:
		return 24
	case S32LE, Float32LE:
		return 32
	case Float64LE:
		return 64
	}
	return 0
}

// ChunkFromBytes converts an interleaved raw buffer into the chunk's
// waveforms. The buffer must hold validFrames*channels samples in format f.
// Clipping is not counted on this side; float formats holding values
// outside full scale are passed through unclamped.
func ChunkFromBytes(dst *Chunk, buf []byte, f SampleFormat) error {
	bps := f.BytesPerSample()
	need := dst.ValidFrames * dst.Channels * bps
	if len(buf) < need {
		return fmt.Errorf("audio: short buffer: need %d bytes, got %d", need, len(buf))
	}
	idx := 0
	for frame := 0; frame < dst.ValidFrames; frame++ {
		for ch := 0; ch < dst.Channels; ch++ {
			dst.Waveforms[ch][frame] = decodeSample(buf[idx:idx+bps], f)
			idx += bps
		}
	}
	return nil
}

// ChunkToBytes converts the chunk's valid frames to an interleaved raw
// buffer, clamping out-of-range values and counting them as clipped.
// dst must hold ValidFrames*Channels samples in format f.
func ChunkToBytes(c *Chunk, dst []byte, f SampleFormat) (clipped int, err error) {
	bps := f.BytesPerSample()
	need := c.ValidFrames * c.Channels * bps
	if len(dst) < need {
		return 0, fmt.Errorf("audio: short buffer: need %d bytes, got %d", need, len(dst))
	}
	idx := 0
	for frame := 0; frame < c.ValidFrames; frame++ {
		for ch := 0; ch < c.Channels; ch++ {
			clip := encodeSample(dst[idx:idx+bps], c.Waveforms[ch][frame], f)
			if clip {
				clipped++
			}
			idx += bps
		}
	}
	return clipped, nil
}

func decodeSample(b []byte, f SampleFormat) float64 {
	switch f {
	case S16LE:
		v := int16(binary.LittleEndian.Uint16(b))
		return float64(v) / (1 << 15)
	case S24LE:
		v := int32(binary.LittleEndian.Uint32(b))
		// payload in the lower 24 bits, sign-extend
		v = v << 8 >> 8
		return float64(v) / (1 << 23)
	case S24LE3:
		u := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		v := int32(u) << 8 >> 8
		return float64(v) / (1 << 23)
	case S32LE:
		v := int32(binary.LittleEndian.Uint32(b))
		return float64(v) / (1 << 31)
	case Float32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func encodeSample(b []byte, smp float64, f SampleFormat) (clipped bool) {
	switch f {
	case S16LE:
		v, clip := clampInt(smp, 15)
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		return clip
	case S24LE:
		v, clip := clampInt(smp, 23)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return clip
	case S24LE3:
		v, clip := clampInt(smp, 23)
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		return clip
	case S32LE:
		v, clip := clampInt(smp, 31)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return clip
	case Float32LE:
		clip := smp > 1.0 || smp < -1.0
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(smp)))
		return clip
	case Float64LE:
		clip := smp > 1.0 || smp < -1.0
		binary.LittleEndian.PutUint64(b, math.Float64bits(smp))
		return clip
	}
	return false
}

// clampInt scales a full-scale float to a signed integer with the given
// number of fractional bits, clamping to the representable range.
func clampInt(smp float64, bits int) (v int64, clipped bool) {
	scale := float64(int64(1) << bits)
	scaled := smp * scale
	hi := scale - 1
	lo := -scale
	if scaled > hi {
		return int64(hi), true
	}
	if scaled < lo {
		return int64(lo), true
	}
	return int64(math.Round(scaled)), false
}
