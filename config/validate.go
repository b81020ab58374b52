package config

import (
	"fmt"
)

// Known device and resampler type names.
var (
	captureTypes  = map[string]bool{"File": true, "Stdin": true, "SignalGenerator": true}
	playbackTypes = map[string]bool{"File": true, "Stdout": true}
	sampleFormats = map[string]bool{
		"S16LE": true, "S24LE": true, "S24LE3": true,
		"S32LE": true, "FLOAT32LE": true, "FLOAT64LE": true,
	}
)

// Validate checks the structural and numeric invariants of a configuration:
// channel counts propagate through the pipeline, referenced names exist and
// numeric ranges are respected. Filter construction problems (unstable
// biquads, unreadable coefficient files) surface when the pipeline is
// built.
func (c *Config) Validate() error {
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validateMixers(); err != nil {
		return err
	}
	if err := c.validateFilters(); err != nil {
		return err
	}
	if err := c.validateProcessors(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func (c *Config) validateDevices() error {
	d := &c.Devices
	if d.Samplerate <= 0 {
		return newError(fmt.Sprintf("samplerate must be positive, got %d", d.Samplerate))
	}
	if d.Chunksize <= 0 {
		return newError(fmt.Sprintf("chunksize must be positive, got %d", d.Chunksize))
	}
	if d.Queuelimit != nil && *d.Queuelimit <= 0 {
		return newError("queuelimit must be positive")
	}
	if d.TargetLevel != nil && *d.TargetLevel > 2*d.Chunksize {
		return newError(fmt.Sprintf("target_level %d cannot exceed 2*chunksize (%d)", *d.TargetLevel, 2*d.Chunksize))
	}
	if d.AdjustPeriod != nil && *d.AdjustPeriod <= 0 {
		return newError("adjust_period must be positive")
	}
	if err := validateDevice(&d.Capture, captureTypes, "capture"); err != nil {
		return err
	}
	if err := validateDevice(&d.Playback, playbackTypes, "playback"); err != nil {
		return err
	}
	if d.Resampler != nil {
		if err := c.validateResampler(d.Resampler); err != nil {
			return err
		}
	} else if c.CaptureRate() != d.Samplerate {
		return newError("capture_samplerate differs from samplerate but no resampler is configured")
	}
	return nil
}

func validateDevice(dev *Device, known map[string]bool, side string) error {
	if !known[dev.Type] {
		return newError(fmt.Sprintf("unknown %s device type %q", side, dev.Type))
	}
	if dev.Channels < 1 || dev.Channels > 128 {
		return newError(fmt.Sprintf("%s channels must be 1-128, got %d", side, dev.Channels))
	}
	switch dev.Type {
	case "File":
		if dev.Filename == "" {
			return newError(fmt.Sprintf("%s File device needs a filename", side))
		}
		fallthrough
	case "Stdin", "Stdout":
		if !sampleFormats[dev.Format] {
			return newError(fmt.Sprintf("unknown %s sample format %q", side, dev.Format))
		}
	case "SignalGenerator":
		switch dev.Signal {
		case "Sine", "Sweep", "Noise":
		default:
			return newError(fmt.Sprintf("unknown signal type %q", dev.Signal))
		}
	}
	return nil
}

func (c *Config) validateResampler(r *Resampler) error {
	switch r.Type {
	case "Synchronous":
		return nil
	case "AsyncSinc":
		if r.Profile != "" {
			switch r.Profile {
			case "VeryFast", "Fast", "Balanced", "Accurate":
				return nil
			}
			return newError(fmt.Sprintf("unknown resampler profile %q", r.Profile))
		}
		if r.SincLen < 2 {
			return newError("sinc_len must be at least 2")
		}
		if r.OversamplingFactor < 1 {
			return newError("oversampling_factor must be positive")
		}
		if r.FCutoff != nil && (*r.FCutoff <= 0 || *r.FCutoff >= 1.0) {
			return newError(fmt.Sprintf("f_cutoff must be within (0, 1), got %g", *r.FCutoff))
		}
		switch r.Interpolation {
		case "", "Nearest", "Linear", "Quadratic", "Cubic":
		default:
			return newError(fmt.Sprintf("unknown sinc interpolation %q", r.Interpolation))
		}
		switch r.Window {
		case "", "Hann", "Hann2", "Blackman", "Blackman2", "BlackmanHarris", "BlackmanHarris2":
		default:
			return newError(fmt.Sprintf("unknown window %q", r.Window))
		}
		return nil
	case "AsyncPoly":
		switch r.Interpolation {
		case "Linear", "Cubic", "Quintic", "Septic":
			return nil
		}
		return newError(fmt.Sprintf("unknown poly interpolation %q", r.Interpolation))
	}
	return newError(fmt.Sprintf("unknown resampler type %q", r.Type))
}

func (c *Config) validateMixers() error {
	for name, mix := range c.Mixers {
		if mix.Channels.In < 1 || mix.Channels.Out < 1 {
			return newError(fmt.Sprintf("mixer %q channel counts must be positive", name))
		}
		for _, mapping := range mix.Mapping {
			if mapping.Dest < 0 || mapping.Dest >= mix.Channels.Out {
				return newError(fmt.Sprintf("mixer %q destination %d out of range", name, mapping.Dest))
			}
			for _, src := range mapping.Sources {
				if src.Channel < 0 || src.Channel >= mix.Channels.In {
					return newError(fmt.Sprintf("mixer %q source channel %d out of range", name, src.Channel))
				}
				if err := validateGainValue(src.Gain, src.Scale); err != nil {
					return newError(fmt.Sprintf("mixer %q: %v", name, err))
				}
			}
		}
	}
	return nil
}

func validateGainValue(gain float64, scale string) error {
	switch scale {
	case "", "dB":
		if gain < -150.0 || gain > 150.0 {
			return fmt.Errorf("gain %g dB outside -150..+150", gain)
		}
	case "linear":
		if gain < -10.0 || gain > 10.0 {
			return fmt.Errorf("linear gain %g outside -10..+10", gain)
		}
	default:
		return fmt.Errorf("unknown gain scale %q", scale)
	}
	return nil
}

func (c *Config) validateFilters() error {
	fs := c.Devices.Samplerate
	for name, filt := range c.Filters {
		if err := validateFilter(fs, &filt); err != nil {
			return newError(fmt.Sprintf("filter %q: %v", name, err))
		}
	}
	return nil
}

func validateFilter(fs int, filt *Filter) error {
	p := &filt.Parameters
	maxfreq := float64(fs) / 2.0
	checkFreq := func(f float64) error {
		if f <= 0 {
			return fmt.Errorf("frequency must be > 0, got %g", f)
		}
		if f >= maxfreq {
			return fmt.Errorf("frequency %g must be below samplerate/2", f)
		}
		return nil
	}

	switch filt.Type {
	case "Biquad":
		switch p.Type {
		case "Free":
		case "LinkwitzTransform":
			for _, f := range []float64{p.FreqAct, p.FreqTarget} {
				if err := checkFreq(f); err != nil {
					return err
				}
			}
			if p.QAct <= 0 || p.QTarget <= 0 {
				return fmt.Errorf("q values must be > 0")
			}
		case "GeneralNotch":
			for _, f := range []float64{p.FreqZ, p.FreqP} {
				if err := checkFreq(f); err != nil {
					return err
				}
			}
			if p.QP <= 0 {
				return fmt.Errorf("q_p must be > 0")
			}
		default:
			if err := checkFreq(p.Freq); err != nil {
				return err
			}
			if p.Q != nil && *p.Q <= 0 {
				return fmt.Errorf("q must be > 0, got %g", *p.Q)
			}
			if p.Gain != nil && (*p.Gain < -150 || *p.Gain > 150) {
				return fmt.Errorf("gain %g dB outside -150..+150", *p.Gain)
			}
		}
	case "BiquadCombo":
		switch p.Type {
		case "ButterworthLowpass", "ButterworthHighpass":
			if err := checkFreq(p.Freq); err != nil {
				return err
			}
			if p.Order < 1 {
				return fmt.Errorf("order must be larger than zero")
			}
		case "LinkwitzRileyLowpass", "LinkwitzRileyHighpass":
			if err := checkFreq(p.Freq); err != nil {
				return err
			}
			if p.Order < 2 || p.Order%2 != 0 {
				return fmt.Errorf("order must be an even non-zero number, got %d", p.Order)
			}
		case "Tilt":
			if p.Gain != nil && (*p.Gain < -40 || *p.Gain > 40) {
				return fmt.Errorf("tilt gain %g outside -40..+40", *p.Gain)
			}
		case "FivePointPeq":
			for _, f := range []float64{p.Fls, p.Fp1, p.Fp2, p.Fp3, p.Fhs} {
				if f >= maxfreq {
					return fmt.Errorf("frequency %g must be below samplerate/2", f)
				}
			}
		case "GraphicEqualizer":
			fmin, fmax := p.FreqMin, p.FreqMax
			if fmin == 0 {
				fmin = 20.0
			}
			if fmax == 0 {
				fmax = 20000.0
			}
			if fmin <= 0 || fmax <= fmin {
				return fmt.Errorf("freq_min/freq_max invalid: %g..%g", fmin, fmax)
			}
			for _, g := range p.Gains {
				if g < -40 || g > 40 {
					return fmt.Errorf("band gain %g outside -40..+40", g)
				}
			}
		default:
			return fmt.Errorf("unknown BiquadCombo type %q", p.Type)
		}
	case "Conv":
		switch p.Type {
		case "Wav", "Raw", "Values", "Dummy", "":
		default:
			return fmt.Errorf("unknown Conv type %q", p.Type)
		}
		if p.Type == "Raw" && p.Format != "" && !sampleFormats[p.Format] && p.Format != "TEXT" {
			return fmt.Errorf("unknown coefficient format %q", p.Format)
		}
	case "Gain":
		if p.Gain != nil {
			if err := validateGainValue(*p.Gain, p.Scale); err != nil {
				return err
			}
		}
	case "Volume":
		if err := validateFaderName(p.Fader); err != nil {
			return err
		}
	case "Loudness":
		if err := validateFaderName(p.Fader); err != nil {
			return err
		}
		if p.ReferenceLevel < -100 || p.ReferenceLevel > 20 {
			return fmt.Errorf("reference_level %g outside -100..+20", p.ReferenceLevel)
		}
		if p.HighBoost != nil && (*p.HighBoost < 0 || *p.HighBoost > 20) {
			return fmt.Errorf("high_boost %g outside 0..20", *p.HighBoost)
		}
		if p.LowBoost != nil && (*p.LowBoost < 0 || *p.LowBoost > 20) {
			return fmt.Errorf("low_boost %g outside 0..20", *p.LowBoost)
		}
	case "Delay":
		if p.Delay < 0 {
			return fmt.Errorf("delay cannot be negative, got %g", p.Delay)
		}
		switch p.Unit {
		case "", "ms", "mm", "samples":
		default:
			return fmt.Errorf("unknown delay unit %q", p.Unit)
		}
	case "Dither":
		if p.Bits < 2 {
			return fmt.Errorf("dither bit depth must be at least 2, got %d", p.Bits)
		}
		if p.Amplitude != nil && (*p.Amplitude <= 0 || *p.Amplitude > 100) {
			return fmt.Errorf("dither amplitude must be within (0, 100], got %g", *p.Amplitude)
		}
	case "Limiter":
	default:
		return fmt.Errorf("unknown filter type %q", filt.Type)
	}
	return nil
}

func validateFaderName(name string) error {
	switch name {
	case "", "Main", "Aux1", "Aux2", "Aux3", "Aux4":
		return nil
	}
	return fmt.Errorf("unknown fader %q", name)
}

func (c *Config) validateProcessors() error {
	for name, proc := range c.Processors {
		p := &proc.Parameters
		switch proc.Type {
		case "Compressor":
			if p.Attack <= 0 || p.Release <= 0 {
				return newError(fmt.Sprintf("processor %q: attack and release must be larger than zero", name))
			}
			if p.Factor < 1 {
				return newError(fmt.Sprintf("processor %q: factor must be at least 1", name))
			}
		case "NoiseGate":
			if p.Attack <= 0 || p.Release <= 0 {
				return newError(fmt.Sprintf("processor %q: attack and release must be larger than zero", name))
			}
			if p.Attenuation < 0 {
				return newError(fmt.Sprintf("processor %q: attenuation cannot be negative", name))
			}
		default:
			return newError(fmt.Sprintf("processor %q: unknown type %q", name, proc.Type))
		}
		for _, ch := range append(append([]int{}, p.MonitorChannels...), p.ProcessChannels...) {
			if ch < 0 || ch >= p.Channels {
				return newError(fmt.Sprintf("processor %q: channel %d out of range", name, ch))
			}
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	channels := c.Devices.Capture.Channels
	for i, step := range c.Pipeline {
		if step.Bypassed {
			continue
		}
		switch step.Type {
		case "Filter":
			for _, name := range step.Names {
				if _, ok := c.Filters[name]; !ok {
					return newError(fmt.Sprintf("pipeline step %d references unknown filter %q", i, name))
				}
			}
			for _, ch := range step.Channels {
				if ch < 0 || ch >= channels {
					return newError(fmt.Sprintf("pipeline step %d: channel %d does not exist at this point (%d channels)", i, ch, channels))
				}
			}
		case "Mixer":
			mix, ok := c.Mixers[step.Name]
			if !ok {
				return newError(fmt.Sprintf("pipeline step %d references unknown mixer %q", i, step.Name))
			}
			if mix.Channels.In != channels {
				return newError(fmt.Sprintf("pipeline step %d: mixer %q expects %d input channels, pipeline has %d", i, step.Name, mix.Channels.In, channels))
			}
			channels = mix.Channels.Out
		case "Processor":
			proc, ok := c.Processors[step.Name]
			if !ok {
				return newError(fmt.Sprintf("pipeline step %d references unknown processor %q", i, step.Name))
			}
			if proc.Parameters.Channels != channels {
				return newError(fmt.Sprintf("pipeline step %d: processor %q expects %d channels, pipeline has %d", i, step.Name, proc.Parameters.Channels, channels))
			}
		default:
			return newError(fmt.Sprintf("pipeline step %d: unknown type %q", i, step.Type))
		}
	}
	if channels != c.Devices.Playback.Channels {
		return newError(fmt.Sprintf("pipeline ends with %d channels but the playback device has %d", channels, c.Devices.Playback.Channels))
	}
	return nil
}
