package pipeline

import (
	"math"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
)

// mixerSource is one resolved input contribution with its linear gain.
type mixerSource struct {
	channel int
	gain    float64
}

// MixerInstance combines input channels into a new channel layout. Each
// destination is the sum of its sources scaled by their linear gains; a
// destination without sources is silent.
type MixerInstance struct {
	name        string
	channelsIn  int
	channelsOut int
	mapping     [][]mixerSource
}

func newMixer(name string, conf config.Mixer) *MixerInstance {
	m := &MixerInstance{name: name}
	m.apply(conf)
	return m
}

func (m *MixerInstance) apply(conf config.Mixer) {
	m.channelsIn = conf.Channels.In
	m.channelsOut = conf.Channels.Out
	m.mapping = make([][]mixerSource, conf.Channels.Out)
	for _, mapping := range conf.Mapping {
		if mapping.Mute {
			continue
		}
		sources := make([]mixerSource, 0, len(mapping.Sources))
		for _, src := range mapping.Sources {
			if src.Mute {
				continue
			}
			var gain float64
			if src.Scale == "linear" {
				gain = src.Gain
			} else {
				gain = math.Pow(10.0, src.Gain/20.0)
			}
			if src.Inverted {
				gain = -gain
			}
			sources = append(sources, mixerSource{channel: src.Channel, gain: gain})
		}
		m.mapping[mapping.Dest] = sources
	}
}

func (m *MixerInstance) Name() string { return m.name }

// ChannelsOut returns the output channel count.
func (m *MixerInstance) ChannelsOut() int { return m.channelsOut }

// ProcessChunk mixes the chunk into a new channel layout.
func (m *MixerInstance) ProcessChunk(chunk *audio.Chunk) *audio.Chunk {
	waveforms := make([][]float64, m.channelsOut)
	for out := 0; out < m.channelsOut; out++ {
		wave := make([]float64, chunk.Frames)
		for _, src := range m.mapping[out] {
			source := chunk.Waveforms[src.channel]
			gain := src.gain
			for n := 0; n < chunk.ValidFrames; n++ {
				wave[n] += gain * source[n]
			}
		}
		waveforms[out] = wave
	}
	return chunk.Derive(waveforms)
}

// UpdateParameters replaces the mapping. The channel counts are fixed; a
// layout change rebuilds the whole pipeline instead.
func (m *MixerInstance) UpdateParameters(conf config.Mixer) {
	m.apply(conf)
}

// usedInputChannels reports which input channels contribute to any output.
func (m *MixerInstance) usedInputChannels() []bool {
	used := make([]bool, m.channelsIn)
	for _, sources := range m.mapping {
		for _, src := range sources {
			if src.gain != 0 {
				used[src.channel] = true
			}
		}
	}
	return used
}
