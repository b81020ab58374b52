package dynamics

import (
	"fmt"
	"math"
)

// NoiseGateParams configures a NoiseGate.
type NoiseGateParams struct {
	Channels        int
	MonitorChannels []int // empty means all
	ProcessChannels []int // empty means all
	Attack          float64
	Release         float64
	Threshold       float64 // dB
	Attenuation     float64 // dB applied below threshold
}

// NoiseGate attenuates the process channels while the monitored level stays
// below the threshold. The attenuation itself is smoothed with the attack
// and release coefficients, so the gate opens and closes without steps.
type NoiseGate struct {
	monitorChannels []int
	processChannels []int
	attack          float64
	release         float64
	threshold       float64
	attenuation     float64

	scratch      []float64
	prevLoudness float64
	prevAtten    float64
}

// NewNoiseGate creates a gate for the given chunk size.
func NewNoiseGate(params NoiseGateParams, samplerate, chunksize int) (*NoiseGate, error) {
	if err := ValidateNoiseGate(params); err != nil {
		return nil, err
	}
	g := &NoiseGate{
		scratch:      make([]float64, chunksize),
		prevLoudness: -100.0,
	}
	g.applyParams(params, samplerate)
	return g, nil
}

// UpdateParams replaces the scalar parameters, keeping the envelope state.
func (g *NoiseGate) UpdateParams(params NoiseGateParams, samplerate int) error {
	if err := ValidateNoiseGate(params); err != nil {
		return err
	}
	g.applyParams(params, samplerate)
	return nil
}

func (g *NoiseGate) applyParams(params NoiseGateParams, samplerate int) {
	srate := float64(samplerate)
	g.monitorChannels = defaultChannels(params.MonitorChannels, params.Channels)
	g.processChannels = defaultChannels(params.ProcessChannels, params.Channels)
	g.attack = math.Exp(-1.0 / srate / params.Attack)
	g.release = math.Exp(-1.0 / srate / params.Release)
	g.threshold = params.Threshold
	g.attenuation = params.Attenuation
}

// ProcessChunk applies the gate to the waveforms in-place.
func (g *NoiseGate) ProcessChunk(waveforms [][]float64, frames int) {
	g.sumMonitorChannels(waveforms, frames)
	g.calculateGain(frames)
	for _, ch := range g.processChannels {
		applyGain(waveforms[ch][:frames], g.scratch)
	}
}

// Reset clears the envelope state.
func (g *NoiseGate) Reset() {
	g.prevLoudness = -100.0
	g.prevAtten = 0.0
}

func (g *NoiseGate) sumMonitorChannels(waveforms [][]float64, frames int) {
	copy(g.scratch[:frames], waveforms[g.monitorChannels[0]][:frames])
	for _, ch := range g.monitorChannels[1:] {
		wave := waveforms[ch]
		for n := 0; n < frames; n++ {
			g.scratch[n] += wave[n]
		}
	}
}

// calculateGain turns the summed monitor signal into a per-sample linear
// gain. The level estimate uses the raw signal; the target attenuation is
// the full configured attenuation below the threshold and zero above, and
// the applied attenuation follows the target through the attack (opening)
// or release (closing) smoothing.
func (g *NoiseGate) calculateGain(frames int) {
	for n := 0; n < frames; n++ {
		level := 20.0 * math.Log10(math.Abs(g.scratch[n])+envelopeFloor)
		g.prevLoudness = level

		target := 0.0
		if level < g.threshold {
			target = g.attenuation
		}
		var atten float64
		if target < g.prevAtten {
			// opening: gain rises toward unity
			atten = g.attack*g.prevAtten + (1.0-g.attack)*target
		} else {
			// closing: attenuation deepens
			atten = g.release*g.prevAtten + (1.0-g.release)*target
		}
		g.prevAtten = atten
		g.scratch[n] = math.Pow(10.0, -atten/20.0)
	}
}

// ValidateNoiseGate checks the parameter ranges.
func ValidateNoiseGate(params NoiseGateParams) error {
	if params.Attack <= 0.0 {
		return fmt.Errorf("dynamics: attack value must be larger than zero")
	}
	if params.Release <= 0.0 {
		return fmt.Errorf("dynamics: release value must be larger than zero")
	}
	if params.Attenuation < 0.0 {
		return fmt.Errorf("dynamics: attenuation must not be negative, got %g", params.Attenuation)
	}
	if err := validateChannelList(params.MonitorChannels, params.Channels, "monitor"); err != nil {
		return err
	}
	return validateChannelList(params.ProcessChannels, params.Channels, "process")
}
