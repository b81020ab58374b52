// Package dynamics implements cross-channel dynamics processing: a
// compressor, a noise gate and a limiter. The compressor smooths its
// dB-domain level estimate with separate attack and release single-pole
// coefficients; the noise gate uses the raw level and applies the same kind
// of coefficients to its attenuation instead.
package dynamics

import (
	"fmt"
	"math"
)

const (
	// cubeFactor shapes the cubic soft clipper, = 1 / (2 * 1.5^3).
	cubeFactor = 1.0 / 6.75

	// envelopeFloor keeps the level estimate finite on silent input.
	envelopeFloor = 1.0e-9
)

// CompressorParams configures a Compressor.
type CompressorParams struct {
	Channels        int
	MonitorChannels []int // empty means all
	ProcessChannels []int // empty means all
	Attack          float64
	Release         float64
	Threshold       float64 // dB
	Factor          float64 // compression ratio
	MakeupGain      float64 // dB
	SoftClip        bool
	ClipLimit       float64 // dB
}

// Compressor reduces gain when the monitored level exceeds a threshold.
// The level is estimated from the sum of the monitor channels, smoothed in
// the dB domain, and the resulting gain curve is applied to the process
// channels.
type Compressor struct {
	monitorChannels []int
	processChannels []int
	attack          float64
	release         float64
	threshold       float64
	factor          float64
	makeupGain      float64
	softClip        bool
	clipLimit       float64

	scratch      []float64
	prevLoudness float64
}

// NewCompressor creates a compressor for the given chunk size.
func NewCompressor(params CompressorParams, samplerate, chunksize int) (*Compressor, error) {
	if err := ValidateCompressor(params); err != nil {
		return nil, err
	}
	c := &Compressor{
		scratch:      make([]float64, chunksize),
		prevLoudness: -100.0,
	}
	c.applyParams(params, samplerate)
	return c, nil
}

// UpdateParams replaces the scalar parameters, keeping the envelope state.
func (c *Compressor) UpdateParams(params CompressorParams, samplerate int) error {
	if err := ValidateCompressor(params); err != nil {
		return err
	}
	c.applyParams(params, samplerate)
	return nil
}

func (c *Compressor) applyParams(params CompressorParams, samplerate int) {
	srate := float64(samplerate)
	c.monitorChannels = defaultChannels(params.MonitorChannels, params.Channels)
	c.processChannels = defaultChannels(params.ProcessChannels, params.Channels)
	c.attack = math.Exp(-1.0 / srate / params.Attack)
	c.release = math.Exp(-1.0 / srate / params.Release)
	c.threshold = params.Threshold
	c.factor = params.Factor
	c.makeupGain = params.MakeupGain
	c.softClip = params.SoftClip
	c.clipLimit = math.Pow(10.0, params.ClipLimit/20.0)
}

func defaultChannels(chans []int, nchannels int) []int {
	if len(chans) > 0 {
		return append([]int(nil), chans...)
	}
	all := make([]int, nchannels)
	for n := range all {
		all[n] = n
	}
	return all
}

// ProcessChunk applies the compressor to the waveforms in-place.
func (c *Compressor) ProcessChunk(waveforms [][]float64, frames int) {
	c.sumMonitorChannels(waveforms, frames)
	c.estimateLoudness(frames)
	c.calculateLinearGain(frames)
	for _, ch := range c.processChannels {
		applyGain(waveforms[ch][:frames], c.scratch)
		if c.softClip {
			softClip(waveforms[ch][:frames], c.clipLimit)
		}
	}
}

// Reset clears the envelope state.
func (c *Compressor) Reset() {
	c.prevLoudness = -100.0
}

func (c *Compressor) sumMonitorChannels(waveforms [][]float64, frames int) {
	copy(c.scratch[:frames], waveforms[c.monitorChannels[0]][:frames])
	for _, ch := range c.monitorChannels[1:] {
		wave := waveforms[ch]
		for n := 0; n < frames; n++ {
			c.scratch[n] += wave[n]
		}
	}
}

// estimateLoudness converts the summed signal to dB and smooths it with the
// attack coefficient while rising and the release coefficient while
// falling.
func (c *Compressor) estimateLoudness(frames int) {
	for n := 0; n < frames; n++ {
		level := 20.0 * math.Log10(math.Abs(c.scratch[n])+envelopeFloor)
		if level >= c.prevLoudness {
			level = c.attack*c.prevLoudness + (1.0-c.attack)*level
		} else {
			level = c.release*c.prevLoudness + (1.0-c.release)*level
		}
		c.prevLoudness = level
		c.scratch[n] = level
	}
}

func (c *Compressor) calculateLinearGain(frames int) {
	for n := 0; n < frames; n++ {
		level := c.scratch[n]
		gain := 0.0
		if level > c.threshold {
			gain = -(level - c.threshold) * (c.factor - 1.0) / c.factor
		}
		gain += c.makeupGain
		c.scratch[n] = math.Pow(10.0, gain/20.0)
	}
}

func applyGain(wave, gains []float64) {
	for n := range wave {
		wave[n] *= gains[n]
	}
}

func softClip(wave []float64, limit float64) {
	for n, smp := range wave {
		scaled := smp / limit
		if scaled > 1.5 {
			scaled = 1.5
		} else if scaled < -1.5 {
			scaled = -1.5
		}
		scaled -= cubeFactor * scaled * scaled * scaled
		wave[n] = scaled * limit
	}
}

func hardClip(wave []float64, limit float64) {
	for n, smp := range wave {
		if smp > limit {
			wave[n] = limit
		} else if smp < -limit {
			wave[n] = -limit
		}
	}
}

// ValidateCompressor checks the parameter ranges.
func ValidateCompressor(params CompressorParams) error {
	if params.Attack <= 0.0 {
		return fmt.Errorf("dynamics: attack value must be larger than zero")
	}
	if params.Release <= 0.0 {
		return fmt.Errorf("dynamics: release value must be larger than zero")
	}
	if params.Factor < 1.0 {
		return fmt.Errorf("dynamics: compression factor must be at least 1, got %g", params.Factor)
	}
	if err := validateChannelList(params.MonitorChannels, params.Channels, "monitor"); err != nil {
		return err
	}
	return validateChannelList(params.ProcessChannels, params.Channels, "process")
}

func validateChannelList(chans []int, nchannels int, label string) error {
	for _, ch := range chans {
		if ch < 0 || ch >= nchannels {
			return fmt.Errorf("dynamics: invalid %s channel %d, max is %d", label, ch, nchannels-1)
		}
	}
	return nil
}
