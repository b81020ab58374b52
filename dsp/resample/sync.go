package resample

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Sync is a fixed-ratio resampler. The rational ratio p/q is found from the
// gcd of the two rates; blocks of q*m input frames are transformed with a
// real FFT, the spectrum is resized to p*m bins (implicitly band-limiting
// on downsampling) and inverse-transformed. Square-root Hann windows at 50%
// overlap make the overlap-add exact.
type Sync struct {
	p, q     int
	inBlock  int
	outBlock int

	fftIn  *fourier.FFT
	fftOut *fourier.FFT

	analysisWin  []float64
	synthesisWin []float64

	inSpectrum  []complex128
	outSpectrum []complex128
	grainIn     []float64
	grainOut    []float64

	// Per channel streaming state.
	inFIFO  [][]float64
	overlap [][]float64

	channels int
	primed   bool
}

// NewSync creates a synchronous resampler between the two rates.
func NewSync(rateIn, rateOut, channels int) (*Sync, error) {
	if rateIn <= 0 || rateOut <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", rateIn, rateOut)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("resample: invalid channel count %d", channels)
	}
	g := gcd(rateIn, rateOut)
	q := rateIn / g
	p := rateOut / g

	// Scale the base blocks up to a workable FFT size. The block must stay
	// even for the half-block hop.
	m := 1
	for q*m < 256 {
		m *= 2
	}
	if (q*m)%2 != 0 || (p*m)%2 != 0 {
		m *= 2
	}
	inBlock := q * m
	outBlock := p * m

	s := &Sync{
		p:            p,
		q:            q,
		inBlock:      inBlock,
		outBlock:     outBlock,
		fftIn:        fourier.NewFFT(inBlock),
		fftOut:       fourier.NewFFT(outBlock),
		analysisWin:  sqrtHann(inBlock),
		synthesisWin: sqrtHann(outBlock),
		inSpectrum:   make([]complex128, inBlock/2+1),
		outSpectrum:  make([]complex128, outBlock/2+1),
		grainIn:      make([]float64, inBlock),
		grainOut:     make([]float64, outBlock),
		channels:     channels,
	}
	s.inFIFO = make([][]float64, channels)
	s.overlap = make([][]float64, channels)
	for ch := range s.overlap {
		s.overlap[ch] = make([]float64, outBlock/2)
	}
	return s, nil
}

// Ratio returns the rational ratio as (p, q): p output frames per q input
// frames.
func (s *Sync) Ratio() (p, q int) {
	return s.p, s.q
}

// SetRatio always fails: the ratio of a synchronous resampler is fixed.
func (s *Sync) SetRatio(float64) error {
	return ErrSyncRatio
}

// MaxOutputFrames bounds the output of one ProcessChunk call.
func (s *Sync) MaxOutputFrames(inFrames int) int {
	// All buffered input could become ready at once.
	blocks := (inFrames+s.inBlock)/(s.inBlock/2) + 1
	return blocks * (s.outBlock / 2)
}

// ProcessChunk feeds one chunk and collects whatever output blocks become
// complete.
func (s *Sync) ProcessChunk(in [][]float64, frames int, out [][]float64) (int, error) {
	if len(in) < s.channels || len(out) < s.channels {
		return 0, fmt.Errorf("resample: need %d channels", s.channels)
	}
	produced := 0
	for ch := 0; ch < s.channels; ch++ {
		s.inFIFO[ch] = append(s.inFIFO[ch], in[ch][:frames]...)
	}
	hop := s.inBlock / 2
	outHop := s.outBlock / 2
	for len(s.inFIFO[0]) >= s.inBlock {
		for ch := 0; ch < s.channels; ch++ {
			s.processGrain(ch, out[ch][produced:produced+outHop])
			// Slide the input by one hop.
			n := copy(s.inFIFO[ch], s.inFIFO[ch][hop:])
			s.inFIFO[ch] = s.inFIFO[ch][:n]
		}
		if s.primed {
			produced += outHop
		} else {
			// The first grain only fills the overlap buffer.
			s.primed = true
		}
	}
	return produced, nil
}

// processGrain transforms one windowed input block and overlap-adds the
// result. The completed half block is written to dst; during priming dst
// content is discarded by the caller.
func (s *Sync) processGrain(ch int, dst []float64) {
	fifo := s.inFIFO[ch]
	for i := 0; i < s.inBlock; i++ {
		s.grainIn[i] = fifo[i] * s.analysisWin[i]
	}
	s.fftIn.Coefficients(s.inSpectrum, s.grainIn)

	nbins := len(s.inSpectrum)
	if len(s.outSpectrum) < nbins {
		nbins = len(s.outSpectrum)
	}
	copy(s.outSpectrum[:nbins], s.inSpectrum[:nbins])
	for i := nbins; i < len(s.outSpectrum); i++ {
		s.outSpectrum[i] = 0
	}
	// Nyquist bin of a shortened spectrum must stay real.
	if len(s.outSpectrum) < len(s.inSpectrum) {
		last := len(s.outSpectrum) - 1
		s.outSpectrum[last] = complex(real(s.outSpectrum[last]), 0)
	}

	s.fftOut.Sequence(s.grainOut, s.outSpectrum)

	scale := 1.0 / float64(s.inBlock)
	outHop := s.outBlock / 2
	ov := s.overlap[ch]
	for i := 0; i < outHop; i++ {
		dst[i] = ov[i] + s.grainOut[i]*s.synthesisWin[i]*scale
	}
	for i := 0; i < outHop; i++ {
		ov[i] = s.grainOut[outHop+i] * s.synthesisWin[outHop+i] * scale
	}
}

// Reset drops all buffered input and overlap state.
func (s *Sync) Reset() {
	for ch := range s.inFIFO {
		s.inFIFO[ch] = s.inFIFO[ch][:0]
		for i := range s.overlap[ch] {
			s.overlap[ch][i] = 0
		}
	}
	s.primed = false
}

func sqrtHann(n int) []float64 {
	win := make([]float64, n)
	for i := range win {
		h := 0.5 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(n))
		win[i] = math.Sqrt(h)
	}
	return win
}
