package config

// Default values for the optional device section fields.
const (
	DefaultQueuelimit   = 4
	DefaultAdjustPeriod = 10.0
	DefaultRampTime     = 400.0
	DefaultVolumeLimit  = 50.0
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// fillDefaults replaces omitted optional fields with their defaults so a
// normalized config always serializes the same way.
func (c *Config) fillDefaults() {
	d := &c.Devices
	if d.Queuelimit == nil {
		d.Queuelimit = intPtr(DefaultQueuelimit)
	}
	if d.TargetLevel == nil {
		d.TargetLevel = intPtr(d.Chunksize)
	}
	if d.AdjustPeriod == nil {
		d.AdjustPeriod = floatPtr(DefaultAdjustPeriod)
	}
	if d.SilenceThreshold == nil {
		d.SilenceThreshold = floatPtr(0)
	}
	if d.SilenceTimeout == nil {
		d.SilenceTimeout = floatPtr(0)
	}
	if d.RampTime == nil {
		d.RampTime = floatPtr(DefaultRampTime)
	}
	if d.VolumeLimit == nil {
		d.VolumeLimit = floatPtr(DefaultVolumeLimit)
	}
	if d.Workers == nil {
		d.Workers = intPtr(0)
	}
	if d.CaptureSamplerate == nil {
		d.CaptureSamplerate = intPtr(d.Samplerate)
	}

	for name, filt := range c.Filters {
		switch filt.Type {
		case "Volume":
			if filt.Parameters.Fader == "" {
				filt.Parameters.Fader = "Main"
			}
			if filt.Parameters.RampTime == nil {
				filt.Parameters.RampTime = d.RampTime
			}
		case "Loudness":
			if filt.Parameters.Fader == "" {
				filt.Parameters.Fader = "Main"
			}
			if filt.Parameters.HighBoost == nil {
				filt.Parameters.HighBoost = floatPtr(10)
			}
			if filt.Parameters.LowBoost == nil {
				filt.Parameters.LowBoost = floatPtr(10)
			}
		case "Dither":
			if filt.Parameters.Amplitude == nil {
				filt.Parameters.Amplitude = floatPtr(2)
			}
		case "Gain":
			if filt.Parameters.Scale == "" {
				filt.Parameters.Scale = "dB"
			}
		}
		c.Filters[name] = filt
	}

	for name, mix := range c.Mixers {
		for m := range mix.Mapping {
			for s := range mix.Mapping[m].Sources {
				if mix.Mapping[m].Sources[s].Scale == "" {
					mix.Mapping[m].Sources[s].Scale = "dB"
				}
			}
		}
		c.Mixers[name] = mix
	}
}

// SampleRate returns the configured processing rate.
func (c *Config) SampleRate() int {
	return c.Devices.Samplerate
}

// CaptureRate returns the capture-side rate; it differs from the
// processing rate when a resampler is configured.
func (c *Config) CaptureRate() int {
	if c.Devices.CaptureSamplerate != nil && *c.Devices.CaptureSamplerate > 0 {
		return *c.Devices.CaptureSamplerate
	}
	return c.Devices.Samplerate
}

// ResamplerIsAsync reports whether the configured resampler accepts rate
// adjustment.
func (c *Config) ResamplerIsAsync() bool {
	r := c.Devices.Resampler
	return r != nil && (r.Type == "AsyncSinc" || r.Type == "AsyncPoly")
}
