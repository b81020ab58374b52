// Package conv implements FFT-based FIR filtering for fixed-size streaming
// blocks. Short impulse responses run as plain overlap-save; responses
// longer than one block are partitioned into block-sized segments whose
// spectra are accumulated in a frequency-domain delay line, so the per-block
// cost stays at O((L/C)*C*log C).
package conv

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

var (
	// ErrEmptyKernel is returned for an empty impulse response.
	ErrEmptyKernel = errors.New("conv: empty impulse response")
	// ErrLengthMismatch is returned when a block has the wrong size.
	ErrLengthMismatch = errors.New("conv: block length mismatch")
)

// FFTFilter convolves a stream of fixed-size blocks with an impulse
// response. State is maintained between blocks for seamless output.
type FFTFilter struct {
	blockSize int // input/output block size
	fftSize   int // 2*blockSize
	nseg      int // number of impulse response segments

	// Per-segment kernel spectra, each of fftSize bins.
	kernelFFT [][]complex128

	// Frequency-domain delay line: the spectra of the nseg most recent
	// input blocks.
	fdl    [][]complex128
	fdlPos int

	plan    *algofft.Plan[complex128]
	scratch []complex128
	accum   []complex128

	// Last input block, forming the overlap-save history.
	prev []float64
}

// NewFFTFilter creates a streaming convolver for the given impulse response
// and block size.
func NewFFTFilter(kernel []float64, blockSize int) (*FFTFilter, error) {
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("conv: blockSize must be positive, got %d", blockSize)
	}

	fftSize := 2 * blockSize
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: FFT plan: %w", err)
	}

	nseg := (len(kernel) + blockSize - 1) / blockSize

	f := &FFTFilter{
		blockSize: blockSize,
		fftSize:   fftSize,
		nseg:      nseg,
		plan:      plan,
		scratch:   make([]complex128, fftSize),
		accum:     make([]complex128, fftSize),
		prev:      make([]float64, blockSize),
	}

	if err := f.setKernel(kernel); err != nil {
		return nil, err
	}

	f.fdl = make([][]complex128, nseg)
	for i := range f.fdl {
		f.fdl[i] = make([]complex128, fftSize)
	}

	return f, nil
}

func (f *FFTFilter) setKernel(kernel []float64) error {
	f.kernelFFT = make([][]complex128, f.nseg)
	for seg := 0; seg < f.nseg; seg++ {
		for i := range f.scratch {
			f.scratch[i] = 0
		}
		start := seg * f.blockSize
		end := start + f.blockSize
		if end > len(kernel) {
			end = len(kernel)
		}
		for i, v := range kernel[start:end] {
			f.scratch[i] = complex(v, 0)
		}
		spectrum := make([]complex128, f.fftSize)
		if err := f.plan.Forward(spectrum, f.scratch); err != nil {
			return fmt.Errorf("conv: kernel FFT: %w", err)
		}
		f.kernelFFT[seg] = spectrum
	}
	return nil
}

// SegmentCount returns the number of impulse response segments.
func (f *FFTFilter) SegmentCount() int {
	return f.nseg
}

// BlockSize returns the fixed block size.
func (f *FFTFilter) BlockSize() int {
	return f.blockSize
}

// SetCoefficients replaces the impulse response. When the new response
// needs the same number of segments, the input history is retained so the
// output stays continuous; otherwise the state is cleared.
func (f *FFTFilter) SetCoefficients(kernel []float64) error {
	if len(kernel) == 0 {
		return ErrEmptyKernel
	}
	nseg := (len(kernel) + f.blockSize - 1) / f.blockSize
	if nseg != f.nseg {
		f.nseg = nseg
		f.fdl = make([][]complex128, nseg)
		for i := range f.fdl {
			f.fdl[i] = make([]complex128, f.fftSize)
		}
		f.fdlPos = 0
		for i := range f.prev {
			f.prev[i] = 0
		}
	}
	return f.setKernel(kernel)
}

// ProcessBlock convolves one block in-place. The block must have exactly
// blockSize samples.
func (f *FFTFilter) ProcessBlock(buf []float64) error {
	if len(buf) != f.blockSize {
		return fmt.Errorf("%w: expected %d samples, got %d", ErrLengthMismatch, f.blockSize, len(buf))
	}

	// Overlap-save input: previous block followed by the current one.
	for i, v := range f.prev {
		f.scratch[i] = complex(v, 0)
	}
	for i, v := range buf {
		f.scratch[f.blockSize+i] = complex(v, 0)
	}
	// The block is overwritten with output below, so the history copy has
	// to happen first.
	copy(f.prev, buf)

	spectrum := f.fdl[f.fdlPos]
	if err := f.plan.Forward(spectrum, f.scratch); err != nil {
		return fmt.Errorf("conv: forward FFT: %w", err)
	}

	// Accumulate sum over segments: Y = sum_k X[n-k] * H[k].
	for i := range f.accum {
		f.accum[i] = 0
	}
	for seg := 0; seg < f.nseg; seg++ {
		idx := f.fdlPos - seg
		if idx < 0 {
			idx += f.nseg
		}
		x := f.fdl[idx]
		h := f.kernelFFT[seg]
		for i := range f.accum {
			f.accum[i] += x[i] * h[i]
		}
	}

	if err := f.plan.Inverse(f.accum, f.accum); err != nil {
		return fmt.Errorf("conv: inverse FFT: %w", err)
	}

	// The second half is free of circular wrap-around.
	for i := range buf {
		buf[i] = real(f.accum[f.blockSize+i])
	}

	f.fdlPos++
	if f.fdlPos == f.nseg {
		f.fdlPos = 0
	}
	return nil
}

// Reset clears all filter state.
func (f *FFTFilter) Reset() {
	for _, spectrum := range f.fdl {
		for i := range spectrum {
			spectrum[i] = 0
		}
	}
	f.fdlPos = 0
	for i := range f.prev {
		f.prev[i] = 0
	}
}
