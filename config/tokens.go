package config

import (
	"strconv"
	"strings"
)

// Token substitution: the literal tokens $samplerate$ and $channels$ in
// filter/mixer/processor names and in coefficient filenames are replaced at
// snapshot time. $channels$ resolves to the capture channel count.
const (
	tokenSamplerate = "$samplerate$"
	tokenChannels   = "$channels$"
)

func (c *Config) substituteTokens() {
	rate := strconv.Itoa(c.Devices.Samplerate)
	channels := strconv.Itoa(c.Devices.Capture.Channels)
	sub := func(s string) string {
		s = strings.ReplaceAll(s, tokenSamplerate, rate)
		return strings.ReplaceAll(s, tokenChannels, channels)
	}

	if len(c.Filters) > 0 {
		filters := make(map[string]Filter, len(c.Filters))
		for name, filt := range c.Filters {
			filt.Parameters.Filename = sub(filt.Parameters.Filename)
			filters[sub(name)] = filt
		}
		c.Filters = filters
	}
	if len(c.Mixers) > 0 {
		mixers := make(map[string]Mixer, len(c.Mixers))
		for name, mix := range c.Mixers {
			mixers[sub(name)] = mix
		}
		c.Mixers = mixers
	}
	if len(c.Processors) > 0 {
		processors := make(map[string]Processor, len(c.Processors))
		for name, proc := range c.Processors {
			processors[sub(name)] = proc
		}
		c.Processors = processors
	}
	for i := range c.Pipeline {
		step := &c.Pipeline[i]
		step.Name = sub(step.Name)
		for n := range step.Names {
			step.Names[n] = sub(step.Names[n])
		}
	}
	c.Devices.Capture.Filename = sub(c.Devices.Capture.Filename)
	c.Devices.Playback.Filename = sub(c.Devices.Playback.Filename)
}
