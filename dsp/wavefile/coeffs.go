// Package wavefile loads FIR impulse responses from wav, raw sample and
// text files, and writes streaming wav headers for file-like playback
// sinks.
package wavefile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-stream/audio"
)

// ErrChannelOutOfRange is returned when the requested wav channel does not
// exist.
var ErrChannelOutOfRange = errors.New("wavefile: channel out of range")

// ResolvePath resolves a coefficient file path. Relative paths are tried
// against the config file directory first, then against the working
// directory.
func ResolvePath(filename, configDir string) string {
	if filepath.IsAbs(filename) || configDir == "" {
		return filename
	}
	candidate := filepath.Join(configDir, filename)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return filename
}

// ReadWav loads one channel of a wav file as float64 samples. Integer
// formats are scaled to full scale; IEEE float formats are passed through.
func ReadWav(path string, channel int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("wavefile: %s is not a valid wav file", path)
	}
	format := decoder.Format()
	nch := format.NumChannels
	if channel < 0 || channel >= nch {
		return nil, fmt.Errorf("%w: channel %d of %d in %s", ErrChannelOutOfRange, channel, nch, path)
	}

	if decoder.WavAudioFormat == 3 {
		return readWavFloat(f, decoder, channel)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavefile: decoding %s: %w", path, err)
	}
	bits := int(decoder.BitDepth)
	scale := 1.0 / float64(int64(1)<<(bits-1))
	nframes := len(buf.Data) / nch
	out := make([]float64, 0, nframes)
	for frame := 0; frame < nframes; frame++ {
		out = append(out, float64(buf.Data[frame*nch+channel])*scale)
	}
	return out, nil
}

// readWavFloat reads IEEE float sample data. The decoder has located the
// data chunk; the raw samples are read straight from the file.
func readWavFloat(f *os.File, decoder *wav.Decoder, channel int) ([]float64, error) {
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wavefile: locating sample data: %w", err)
	}
	nch := int(decoder.NumChans)
	bits := int(decoder.BitDepth)
	var sf audio.SampleFormat
	switch bits {
	case 32:
		sf = audio.Float32LE
	case 64:
		sf = audio.Float64LE
	default:
		return nil, fmt.Errorf("wavefile: unsupported float bit depth %d", bits)
	}
	data, err := io.ReadAll(io.LimitReader(f, decoder.PCMLen()))
	if err != nil {
		return nil, fmt.Errorf("wavefile: reading sample data: %w", err)
	}
	samples, err := decodeRaw(data, sf, 0, 0)
	if err != nil {
		return nil, err
	}
	nframes := len(samples) / nch
	out := make([]float64, 0, nframes)
	for frame := 0; frame < nframes; frame++ {
		out = append(out, samples[frame*nch+channel])
	}
	return out, nil
}

// ReadRaw loads a headerless sample file in the given format. skipBytes are
// skipped at the start; readBytes limits how much is read (0 means all).
// The file must contain a single channel.
func ReadRaw(path string, format audio.SampleFormat, skipBytes, readBytes int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: %w", err)
	}
	return decodeRaw(data, format, skipBytes, readBytes)
}

func decodeRaw(data []byte, format audio.SampleFormat, skipBytes, readBytes int) ([]float64, error) {
	if skipBytes > len(data) {
		skipBytes = len(data)
	}
	data = data[skipBytes:]
	if readBytes > 0 && readBytes < len(data) {
		data = data[:readBytes]
	}
	bps := format.BytesPerSample()
	n := len(data) / bps
	out := make([]float64, n)
	chunk := &audio.Chunk{
		Frames:      n,
		Channels:    1,
		ValidFrames: n,
		Waveforms:   [][]float64{out},
	}
	if err := audio.ChunkFromBytes(chunk, data, format); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadText loads a text file with one coefficient per line. skipLines are
// skipped at the start; readLines limits how many are read (0 means all).
func ReadText(path string, skipLines, readLines int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: %w", err)
	}
	defer f.Close()

	var out []float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if line <= skipLines {
			continue
		}
		if readLines > 0 && len(out) >= readLines {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("wavefile: %s line %d: %w", path, line, err)
		}
		out = append(out, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wavefile: %w", err)
	}
	return out, nil
}

// Dummy returns an impulse response of the given length with a unit first
// tap, a perfect pass-through.
func Dummy(length int) []float64 {
	coeffs := make([]float64, length)
	if length > 0 {
		coeffs[0] = 1.0
	}
	return coeffs
}

// WriteStreamHeader writes a wav header for a stream of unknown length, the
// way streaming sinks expect it: the RIFF and data sizes are set to the
// maximum so a reader keeps consuming until EOF.
func WriteStreamHeader(w io.Writer, format audio.SampleFormat, channels, samplerate int) error {
	var audioFormat uint16 = 1
	if format == audio.Float32LE || format == audio.Float64LE {
		audioFormat = 3
	}
	bps := format.BytesPerSample()
	byteRate := uint32(samplerate * channels * bps)
	blockAlign := uint16(channels * bps)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], math.MaxUint32)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], audioFormat)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(samplerate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], uint16(8*bps))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], math.MaxUint32)

	_, err := w.Write(header)
	if err != nil {
		return fmt.Errorf("wavefile: writing header: %w", err)
	}
	return nil
}
