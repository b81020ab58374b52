package pipeline

import (
	"fmt"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/dsp/dynamics"
)

// Processor is a cross-channel dynamics step: it reads a monitor subset of
// channels and writes a process subset, keeping the frame count.
type Processor interface {
	Name() string
	ProcessChunk(chunk *audio.Chunk) error
	UpdateParameters(conf config.Processor) error
}

// newProcessor materializes one named processor definition.
func newProcessor(name string, conf config.Processor, ctx *buildContext) (Processor, error) {
	switch conf.Type {
	case "Compressor":
		comp, err := dynamics.NewCompressor(compressorParams(conf.Parameters), ctx.samplerate, ctx.chunksize)
		if err != nil {
			return nil, fmt.Errorf("pipeline: processor %q: %w", name, err)
		}
		return &compressorProcessor{name: name, comp: comp, samplerate: ctx.samplerate}, nil
	case "NoiseGate":
		gate, err := dynamics.NewNoiseGate(gateParams(conf.Parameters), ctx.samplerate, ctx.chunksize)
		if err != nil {
			return nil, fmt.Errorf("pipeline: processor %q: %w", name, err)
		}
		return &gateProcessor{name: name, gate: gate, samplerate: ctx.samplerate}, nil
	}
	return nil, fmt.Errorf("pipeline: unknown processor type %q", conf.Type)
}

func compressorParams(p config.ProcessorParams) dynamics.CompressorParams {
	return dynamics.CompressorParams{
		Channels:        p.Channels,
		MonitorChannels: p.MonitorChannels,
		ProcessChannels: p.ProcessChannels,
		Attack:          p.Attack,
		Release:         p.Release,
		Threshold:       p.Threshold,
		Factor:          p.Factor,
		MakeupGain:      p.MakeupGain,
		SoftClip:        p.SoftClip,
		ClipLimit:       p.ClipLimit,
	}
}

func gateParams(p config.ProcessorParams) dynamics.NoiseGateParams {
	return dynamics.NoiseGateParams{
		Channels:        p.Channels,
		MonitorChannels: p.MonitorChannels,
		ProcessChannels: p.ProcessChannels,
		Attack:          p.Attack,
		Release:         p.Release,
		Threshold:       p.Threshold,
		Attenuation:     p.Attenuation,
	}
}

type compressorProcessor struct {
	name       string
	comp       *dynamics.Compressor
	samplerate int
}

func (c *compressorProcessor) Name() string { return c.name }

func (c *compressorProcessor) ProcessChunk(chunk *audio.Chunk) error {
	c.comp.ProcessChunk(chunk.Waveforms, chunk.ValidFrames)
	return nil
}

func (c *compressorProcessor) UpdateParameters(conf config.Processor) error {
	return c.comp.UpdateParams(compressorParams(conf.Parameters), c.samplerate)
}

type gateProcessor struct {
	name       string
	gate       *dynamics.NoiseGate
	samplerate int
}

func (g *gateProcessor) Name() string { return g.name }

func (g *gateProcessor) ProcessChunk(chunk *audio.Chunk) error {
	g.gate.ProcessChunk(chunk.Waveforms, chunk.ValidFrames)
	return nil
}

func (g *gateProcessor) UpdateParameters(conf config.Processor) error {
	return g.gate.UpdateParams(gateParams(conf.Parameters), g.samplerate)
}
