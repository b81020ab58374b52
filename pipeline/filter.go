// Package pipeline materializes a configuration into runnable filter,
// mixer and processor instances and evaluates them chunk by chunk.
package pipeline

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/dsp/biquad"
	"github.com/cwbudde/algo-stream/dsp/conv"
	"github.com/cwbudde/algo-stream/dsp/delay"
	"github.com/cwbudde/algo-stream/dsp/dither"
	"github.com/cwbudde/algo-stream/dsp/dynamics"
	"github.com/cwbudde/algo-stream/dsp/wavefile"
	"github.com/cwbudde/algo-stream/fader"
)

// Filter processes one channel in-place. Instances are owned by the
// processing thread; UpdateParameters is only called between chunks.
type Filter interface {
	Name() string
	ProcessWaveform(waveform []float64) error
	UpdateParameters(conf config.Filter) error
}

// buildContext carries everything filter construction needs.
type buildContext struct {
	samplerate  int
	chunksize   int
	configDir   string
	volumeLimit float64
	params      *fader.Params
}

// newFilter materializes one named filter definition.
func newFilter(name string, conf config.Filter, ctx *buildContext) (Filter, error) {
	switch conf.Type {
	case "Biquad":
		return newBiquadFilter(name, conf.Parameters, ctx.samplerate)
	case "BiquadCombo":
		return newBiquadCombo(name, conf.Parameters, ctx.samplerate)
	case "Conv":
		return newConvFilter(name, conf.Parameters, ctx)
	case "Gain":
		return newGainFilter(name, conf.Parameters)
	case "Volume":
		return newVolumeFilter(name, conf.Parameters, ctx)
	case "Loudness":
		return newLoudnessFilter(name, conf.Parameters, ctx)
	case "Delay":
		return newDelayFilter(name, conf.Parameters, ctx.samplerate)
	case "Dither":
		return newDitherFilter(name, conf.Parameters)
	case "Limiter":
		return newLimiterFilter(name, conf.Parameters)
	}
	return nil, fmt.Errorf("pipeline: unknown filter type %q", conf.Type)
}

// GainFilter is a plain scalar multiplier with optional inversion and mute.
type GainFilter struct {
	name string
	gain float64
}

func newGainFilter(name string, p config.FilterParams) (*GainFilter, error) {
	f := &GainFilter{name: name}
	f.apply(p)
	return f, nil
}

func (f *GainFilter) apply(p config.FilterParams) {
	gainValue := 0.0
	if p.Gain != nil {
		gainValue = *p.Gain
	}
	var gain float64
	if p.Scale == "linear" {
		gain = gainValue
	} else {
		gain = math.Pow(10.0, gainValue/20.0)
	}
	if p.Inverted {
		gain = -gain
	}
	if p.Mute {
		gain = 0.0
	}
	f.gain = gain
}

func (f *GainFilter) Name() string { return f.name }

func (f *GainFilter) ProcessWaveform(waveform []float64) error {
	for n := range waveform {
		waveform[n] *= f.gain
	}
	return nil
}

func (f *GainFilter) UpdateParameters(conf config.Filter) error {
	f.apply(conf.Parameters)
	return nil
}

// BiquadFilter is a single second-order section.
type BiquadFilter struct {
	name       string
	samplerate int
	section    *biquad.Section
}

func newBiquadFilter(name string, p config.FilterParams, samplerate int) (*BiquadFilter, error) {
	coeffs, err := biquadCoeffs(samplerate, p)
	if err != nil {
		return nil, err
	}
	section, err := biquad.NewSection(coeffs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
	}
	return &BiquadFilter{name: name, samplerate: samplerate, section: section}, nil
}

func (f *BiquadFilter) Name() string { return f.name }

func (f *BiquadFilter) ProcessWaveform(waveform []float64) error {
	f.section.ProcessBlock(waveform)
	return nil
}

// UpdateParameters swaps the coefficients and keeps the state registers, so
// a running filter moves to the new response without a discontinuity.
func (f *BiquadFilter) UpdateParameters(conf config.Filter) error {
	coeffs, err := biquadCoeffs(f.samplerate, conf.Parameters)
	if err != nil {
		return err
	}
	return f.section.SetCoefficients(coeffs)
}

// biquadCoeffs maps filter parameters to a coefficient set.
func biquadCoeffs(fs int, p config.FilterParams) (biquad.Coefficients, error) {
	q := func(def float64) float64 {
		if p.Q != nil {
			return *p.Q
		}
		return def
	}
	gain := 0.0
	if p.Gain != nil {
		gain = *p.Gain
	}

	switch p.Type {
	case "Free":
		return biquad.Free(p.A1, p.A2, p.B0, p.B1, p.B2), nil
	case "Lowpass":
		return biquad.Lowpass(fs, p.Freq, q(math.Sqrt2/2.0)), nil
	case "Highpass":
		return biquad.Highpass(fs, p.Freq, q(math.Sqrt2/2.0)), nil
	case "LowpassFO":
		return biquad.LowpassFO(fs, p.Freq), nil
	case "HighpassFO":
		return biquad.HighpassFO(fs, p.Freq), nil
	case "Lowshelf":
		switch {
		case p.Q != nil:
			return biquad.Lowshelf(fs, p.Freq, gain, *p.Q), nil
		case p.Slope != nil:
			return biquad.LowshelfSlope(fs, p.Freq, gain, *p.Slope), nil
		default:
			return biquad.LowshelfSlope(fs, p.Freq, gain, 12.0), nil
		}
	case "Highshelf":
		switch {
		case p.Q != nil:
			return biquad.Highshelf(fs, p.Freq, gain, *p.Q), nil
		case p.Slope != nil:
			return biquad.HighshelfSlope(fs, p.Freq, gain, *p.Slope), nil
		default:
			return biquad.HighshelfSlope(fs, p.Freq, gain, 12.0), nil
		}
	case "LowshelfFO":
		return biquad.LowshelfFO(fs, p.Freq, gain), nil
	case "HighshelfFO":
		return biquad.HighshelfFO(fs, p.Freq, gain), nil
	case "Peaking":
		if p.Bandwidth != nil {
			return biquad.PeakingBandwidth(fs, p.Freq, gain, *p.Bandwidth), nil
		}
		return biquad.Peaking(fs, p.Freq, gain, q(1.0)), nil
	case "Notch":
		if p.Bandwidth != nil {
			return biquad.NotchBandwidth(fs, p.Freq, *p.Bandwidth), nil
		}
		return biquad.Notch(fs, p.Freq, q(1.0)), nil
	case "GeneralNotch":
		return biquad.GeneralNotch(fs, p.FreqZ, p.FreqP, p.QP, p.NormalizeAtDC), nil
	case "Bandpass":
		if p.Bandwidth != nil {
			return biquad.BandpassBandwidth(fs, p.Freq, *p.Bandwidth), nil
		}
		return biquad.Bandpass(fs, p.Freq, q(1.0)), nil
	case "Allpass":
		if p.Bandwidth != nil {
			return biquad.AllpassBandwidth(fs, p.Freq, *p.Bandwidth), nil
		}
		return biquad.Allpass(fs, p.Freq, q(1.0)), nil
	case "AllpassFO":
		return biquad.AllpassFO(fs, p.Freq), nil
	case "LinkwitzTransform":
		return biquad.LinkwitzTransform(fs, p.FreqAct, p.QAct, p.FreqTarget, p.QTarget), nil
	}
	return biquad.Coefficients{}, fmt.Errorf("pipeline: unknown biquad type %q", p.Type)
}

// BiquadComboFilter is an ordered cascade of second-order sections.
type BiquadComboFilter struct {
	name       string
	samplerate int
	sections   []*biquad.Section
}

func newBiquadCombo(name string, p config.FilterParams, samplerate int) (*BiquadComboFilter, error) {
	coeffs, err := comboCoeffs(samplerate, p)
	if err != nil {
		return nil, err
	}
	f := &BiquadComboFilter{name: name, samplerate: samplerate}
	for _, c := range coeffs {
		section, err := biquad.NewSection(c)
		if err != nil {
			return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
		}
		f.sections = append(f.sections, section)
	}
	return f, nil
}

func comboCoeffs(fs int, p config.FilterParams) ([]biquad.Coefficients, error) {
	gain := 0.0
	if p.Gain != nil {
		gain = *p.Gain
	}
	switch p.Type {
	case "ButterworthLowpass":
		return biquad.ButterworthLowpass(fs, p.Freq, p.Order)
	case "ButterworthHighpass":
		return biquad.ButterworthHighpass(fs, p.Freq, p.Order)
	case "LinkwitzRileyLowpass":
		return biquad.LinkwitzRileyLowpass(fs, p.Freq, p.Order)
	case "LinkwitzRileyHighpass":
		return biquad.LinkwitzRileyHighpass(fs, p.Freq, p.Order)
	case "Tilt":
		return biquad.Tilt(fs, gain), nil
	case "FivePointPeq":
		return biquad.FivePointPeq(fs,
			biquad.PeqBand{Freq: p.Fls, Q: p.Qls, Gain: p.Gls},
			biquad.PeqBand{Freq: p.Fp1, Q: p.Qp1, Gain: p.Gp1},
			biquad.PeqBand{Freq: p.Fp2, Q: p.Qp2, Gain: p.Gp2},
			biquad.PeqBand{Freq: p.Fp3, Q: p.Qp3, Gain: p.Gp3},
			biquad.PeqBand{Freq: p.Fhs, Q: p.Qhs, Gain: p.Ghs}), nil
	case "GraphicEqualizer":
		fmin, fmax := p.FreqMin, p.FreqMax
		if fmin == 0 {
			fmin = 20.0
		}
		if fmax == 0 {
			fmax = 20000.0
		}
		return biquad.GraphicEqualizer(fs, fmin, fmax, p.Gains), nil
	}
	return nil, fmt.Errorf("pipeline: unknown combo type %q", p.Type)
}

func (f *BiquadComboFilter) Name() string { return f.name }

func (f *BiquadComboFilter) ProcessWaveform(waveform []float64) error {
	for _, section := range f.sections {
		section.ProcessBlock(waveform)
	}
	return nil
}

// UpdateParameters rebuilds the cascade. When the section count is
// unchanged the state registers are kept; otherwise the cascade restarts
// from zero state.
func (f *BiquadComboFilter) UpdateParameters(conf config.Filter) error {
	coeffs, err := comboCoeffs(f.samplerate, conf.Parameters)
	if err != nil {
		return err
	}
	if len(coeffs) == len(f.sections) {
		for i, c := range coeffs {
			if err := f.sections[i].SetCoefficients(c); err != nil {
				return err
			}
		}
		return nil
	}
	sections := make([]*biquad.Section, 0, len(coeffs))
	for _, c := range coeffs {
		section, err := biquad.NewSection(c)
		if err != nil {
			return err
		}
		sections = append(sections, section)
	}
	f.sections = sections
	return nil
}

// ConvFilter is an FFT-based FIR filter.
type ConvFilter struct {
	name string
	fir  *conv.FFTFilter
	ctx  *buildContext
}

func newConvFilter(name string, p config.FilterParams, ctx *buildContext) (*ConvFilter, error) {
	coeffs, err := loadConvCoeffs(p, ctx.configDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
	}
	fir, err := conv.NewFFTFilter(coeffs, ctx.chunksize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
	}
	return &ConvFilter{name: name, fir: fir, ctx: ctx}, nil
}

// loadConvCoeffs fetches an impulse response per the configured source.
func loadConvCoeffs(p config.FilterParams, configDir string) ([]float64, error) {
	switch p.Type {
	case "Values":
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("no values given")
		}
		return append([]float64(nil), p.Values...), nil
	case "Dummy", "":
		length := p.Length
		if length == 0 {
			length = 1
		}
		return wavefile.Dummy(length), nil
	case "Wav":
		path := wavefile.ResolvePath(p.Filename, configDir)
		return wavefile.ReadWav(path, p.Channel)
	case "Raw":
		path := wavefile.ResolvePath(p.Filename, configDir)
		if p.Format == "TEXT" || p.Format == "" {
			return wavefile.ReadText(path, p.SkipBytesLines, p.ReadBytesLines)
		}
		format, err := audio.ParseSampleFormat(p.Format)
		if err != nil {
			return nil, err
		}
		return wavefile.ReadRaw(path, format, p.SkipBytesLines, p.ReadBytesLines)
	}
	return nil, fmt.Errorf("unknown coefficient source %q", p.Type)
}

func (f *ConvFilter) Name() string { return f.name }

func (f *ConvFilter) ProcessWaveform(waveform []float64) error {
	return f.fir.ProcessBlock(waveform)
}

// UpdateParameters reloads the impulse response. The FIR keeps its input
// history when the segment layout is unchanged.
func (f *ConvFilter) UpdateParameters(conf config.Filter) error {
	coeffs, err := loadConvCoeffs(conf.Parameters, f.ctx.configDir)
	if err != nil {
		return err
	}
	return f.fir.SetCoefficients(coeffs)
}

// DelayFilter delays one channel.
type DelayFilter struct {
	name       string
	samplerate int
	line       *delay.Delay
}

func newDelayFilter(name string, p config.FilterParams, samplerate int) (*DelayFilter, error) {
	line, err := buildDelay(p, samplerate)
	if err != nil {
		return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
	}
	return &DelayFilter{name: name, samplerate: samplerate, line: line}, nil
}

func buildDelay(p config.FilterParams, samplerate int) (*delay.Delay, error) {
	unit, err := delay.ParseUnit(p.Unit)
	if err != nil {
		return nil, err
	}
	samples := delay.InSamples(p.Delay, unit, samplerate)
	return delay.New(samples, p.Subsample)
}

func (f *DelayFilter) Name() string { return f.name }

func (f *DelayFilter) ProcessWaveform(waveform []float64) error {
	f.line.ProcessBlock(waveform)
	return nil
}

func (f *DelayFilter) UpdateParameters(conf config.Filter) error {
	line, err := buildDelay(conf.Parameters, f.samplerate)
	if err != nil {
		return err
	}
	f.line = line
	return nil
}

// DitherFilter quantizes a channel to a target bit depth.
type DitherFilter struct {
	name  string
	quant *dither.Quantizer
}

func newDitherFilter(name string, p config.FilterParams) (*DitherFilter, error) {
	quant, err := buildQuantizer(p)
	if err != nil {
		return nil, fmt.Errorf("pipeline: filter %q: %w", name, err)
	}
	return &DitherFilter{name: name, quant: quant}, nil
}

func buildQuantizer(p config.FilterParams) (*dither.Quantizer, error) {
	amplitude := 2.0
	if p.Amplitude != nil {
		amplitude = *p.Amplitude
	}
	var ditherer dither.Ditherer
	var shaper *dither.Shaper
	switch p.Type {
	case "None":
		ditherer = dither.NoneDitherer{}
	case "Flat":
		ditherer = dither.NewTriangular(amplitude)
	case "Highpass":
		ditherer = dither.NewHighpass()
	default:
		shaperFor := map[string]func() *dither.Shaper{
			"Fweighted441":      dither.Fweighted441,
			"FweightedLong441":  dither.FweightedLong441,
			"FweightedShort441": dither.FweightedShort441,
			"Gesemann441":       dither.Gesemann441,
			"Gesemann48":        dither.Gesemann48,
			"Lipshitz441":       dither.Lipshitz441,
			"LipshitzLong441":   dither.LipshitzLong441,
			"Shibata441":        dither.Shibata441,
			"ShibataHigh441":    dither.ShibataHigh441,
			"ShibataLow441":     dither.ShibataLow441,
			"Shibata48":         dither.Shibata48,
			"ShibataHigh48":     dither.ShibataHigh48,
			"ShibataLow48":      dither.ShibataLow48,
			"Shibata882":        dither.Shibata882,
			"ShibataLow882":     dither.ShibataLow882,
			"Shibata96":         dither.Shibata96,
			"ShibataLow96":      dither.ShibataLow96,
			"Shibata192":        dither.Shibata192,
			"ShibataLow192":     dither.ShibataLow192,
		}
		build, ok := shaperFor[p.Type]
		if !ok {
			return nil, fmt.Errorf("unknown dither type %q", p.Type)
		}
		shaper = build()
		ditherer = dither.NewTriangular(2.0)
	}
	return dither.NewQuantizer(p.Bits, ditherer, shaper)
}

func (f *DitherFilter) Name() string { return f.name }

func (f *DitherFilter) ProcessWaveform(waveform []float64) error {
	f.quant.ProcessBlock(waveform)
	return nil
}

func (f *DitherFilter) UpdateParameters(conf config.Filter) error {
	quant, err := buildQuantizer(conf.Parameters)
	if err != nil {
		return err
	}
	f.quant = quant
	return nil
}

// LimiterFilter clips a channel.
type LimiterFilter struct {
	name    string
	limiter *dynamics.Limiter
}

func newLimiterFilter(name string, p config.FilterParams) (*LimiterFilter, error) {
	return &LimiterFilter{
		name:    name,
		limiter: dynamics.NewLimiter(p.ClipLimit, p.SoftClip),
	}, nil
}

func (f *LimiterFilter) Name() string { return f.name }

func (f *LimiterFilter) ProcessWaveform(waveform []float64) error {
	f.limiter.ProcessBlock(waveform)
	return nil
}

func (f *LimiterFilter) UpdateParameters(conf config.Filter) error {
	f.limiter.Update(conf.Parameters.ClipLimit, conf.Parameters.SoftClip)
	return nil
}
