package pipeline

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/fader"
)

// FilterGroup applies an ordered filter list to one channel.
type FilterGroup struct {
	channel int
	filters []Filter
}

func newFilterGroup(channel int, names []string, cfg *config.Config, ctx *buildContext) (*FilterGroup, error) {
	group := &FilterGroup{channel: channel}
	for _, name := range names {
		conf, ok := cfg.Filters[name]
		if !ok {
			return nil, fmt.Errorf("pipeline: unknown filter %q", name)
		}
		filt, err := newFilter(name, conf, ctx)
		if err != nil {
			return nil, err
		}
		group.filters = append(group.filters, filt)
	}
	return group, nil
}

func (g *FilterGroup) processChunk(chunk *audio.Chunk) error {
	wave := chunk.Waveforms[g.channel][:chunk.ValidFrames]
	for _, filt := range g.filters {
		if err := filt.ProcessWaveform(wave); err != nil {
			return fmt.Errorf("pipeline: filter %q: %w", filt.Name(), err)
		}
	}
	return nil
}

func (g *FilterGroup) updateParameters(cfg *config.Config, changed []string) error {
	for _, filt := range g.filters {
		for _, name := range changed {
			if filt.Name() == name {
				if err := filt.UpdateParameters(cfg.Filters[name]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ParallelFilters holds the merged filter lists of consecutive filter
// steps, one list per channel, for dispatch to the worker pool. Lists of
// different channels are independent; within one list the order of the
// original steps is preserved.
type ParallelFilters struct {
	filters [][]Filter
}

func (p *ParallelFilters) processChunk(chunk *audio.Chunk, pool *workerPool) error {
	tasks := make([]func(), 0, len(p.filters))
	errs := make([]error, len(p.filters))
	for ch := range p.filters {
		if len(p.filters[ch]) == 0 {
			continue
		}
		ch := ch
		wave := chunk.Waveforms[ch][:chunk.ValidFrames]
		filters := p.filters[ch]
		tasks = append(tasks, func() {
			for _, filt := range filters {
				if err := filt.ProcessWaveform(wave); err != nil {
					errs[ch] = err
					return
				}
			}
		})
	}
	pool.dispatch(tasks)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelFilters) updateParameters(cfg *config.Config, changed []string) error {
	for _, filters := range p.filters {
		for _, filt := range filters {
			for _, name := range changed {
				if filt.Name() == name {
					if err := filt.UpdateParameters(cfg.Filters[name]); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// step is one pipeline entry; exactly one field is set.
type step struct {
	filters   *FilterGroup
	parallel  *ParallelFilters
	mixer     *MixerInstance
	processor Processor
}

// Pipeline is the materialized processing graph for one configuration.
type Pipeline struct {
	steps  []step
	volume *VolumeFilter

	params       *fader.Params
	secsPerChunk float64
	pool         *workerPool

	usedCapture []bool
}

// New builds the instance tree for a configuration. The configuration must
// already be validated; construction still fails on unstable filters and
// unreadable coefficient files.
func New(cfg *config.Config, params *fader.Params) (*Pipeline, error) {
	ctx := &buildContext{
		samplerate: cfg.Devices.Samplerate,
		chunksize:  cfg.Devices.Chunksize,
		configDir:  cfg.Dir(),
		params:     params,
	}
	if cfg.Devices.VolumeLimit != nil {
		ctx.volumeLimit = *cfg.Devices.VolumeLimit
	}

	p := &Pipeline{
		params:       params,
		secsPerChunk: float64(cfg.Devices.Chunksize) / float64(cfg.Devices.Samplerate),
	}

	channels := cfg.Devices.Capture.Channels
	for _, stepConf := range cfg.Pipeline {
		if stepConf.Bypassed {
			continue
		}
		switch stepConf.Type {
		case "Mixer":
			mixer := newMixer(stepConf.Name, cfg.Mixers[stepConf.Name])
			channels = mixer.ChannelsOut()
			p.steps = append(p.steps, step{mixer: mixer})
		case "Filter":
			targets := stepConf.Channels
			if len(targets) == 0 {
				targets = make([]int, channels)
				for ch := range targets {
					targets[ch] = ch
				}
			}
			for _, ch := range targets {
				group, err := newFilterGroup(ch, stepConf.Names, cfg, ctx)
				if err != nil {
					return nil, err
				}
				p.steps = append(p.steps, step{filters: group})
			}
		case "Processor":
			proc, err := newProcessor(stepConf.Name, cfg.Processors[stepConf.Name], ctx)
			if err != nil {
				return nil, err
			}
			p.steps = append(p.steps, step{processor: proc})
		}
	}

	volumeParams := config.FilterParams{Fader: "Main", RampTime: cfg.Devices.RampTime}
	volume, err := newVolumeFilter("main_volume", volumeParams, ctx)
	if err != nil {
		return nil, err
	}
	p.volume = volume

	p.usedCapture = deriveUsedCapture(p.steps, cfg.Devices.Capture.Channels)

	if cfg.Devices.Multithreaded {
		p.steps = parallelizeFilters(p.steps, cfg.Devices.Capture.Channels)
		p.pool = newWorkerPool(*cfg.Devices.Workers)
	}
	return p, nil
}

// deriveUsedCapture finds the capture channels that matter: a channel is
// unused when it never contributes to the first mixer and no filter step
// before that mixer targets it. Without a mixer every channel reaches the
// output.
func deriveUsedCapture(steps []step, channels int) []bool {
	used := make([]bool, channels)
	for i := range used {
		used[i] = true
	}
	for _, s := range steps {
		if s.mixer == nil {
			continue
		}
		fromMixer := s.mixer.usedInputChannels()
		for ch := 0; ch < channels; ch++ {
			inMixer := ch < len(fromMixer) && fromMixer[ch]
			if !inMixer && !filteredBefore(steps, ch, s.mixer) {
				used[ch] = false
			}
		}
		break
	}
	return used
}

func filteredBefore(steps []step, channel int, mixer *MixerInstance) bool {
	for _, s := range steps {
		if s.mixer == mixer {
			return false
		}
		if s.filters != nil && s.filters.channel == channel {
			return true
		}
	}
	return false
}

// UsedCaptureChannels reports which capture channels need conversion and
// processing; the capture stage skips the others.
func (p *Pipeline) UsedCaptureChannels() []bool {
	return p.usedCapture
}

// parallelizeFilters merges consecutive per-channel filter groups into
// parallel tasks, bounded by mixer and processor steps.
func parallelizeFilters(steps []step, channels int) []step {
	var out []step
	var pending *ParallelFilters
	active := channels

	flush := func() {
		if pending != nil {
			out = append(out, step{parallel: pending})
			pending = nil
		}
	}

	for _, s := range steps {
		switch {
		case s.mixer != nil:
			flush()
			active = s.mixer.ChannelsOut()
			out = append(out, s)
		case s.processor != nil:
			flush()
			out = append(out, s)
		case s.filters != nil:
			if pending == nil {
				pending = &ParallelFilters{filters: make([][]Filter, active)}
			}
			ch := s.filters.channel
			pending.filters[ch] = append(pending.filters[ch], s.filters.filters...)
		}
	}
	flush()
	return out
}

// ProcessChunk runs the chunk through the whole pipeline and returns the
// resulting chunk (a new one if a mixer changed the layout). The measured
// wall time relative to the chunk duration is published as processing load.
func (p *Pipeline) ProcessChunk(chunk *audio.Chunk) (*audio.Chunk, error) {
	start := time.Now()

	p.volume.ProcessChunk(chunk)

	for _, s := range p.steps {
		switch {
		case s.mixer != nil:
			chunk = s.mixer.ProcessChunk(chunk)
		case s.filters != nil:
			if err := s.filters.processChunk(chunk); err != nil {
				return nil, err
			}
		case s.parallel != nil:
			if err := s.parallel.processChunk(chunk, p.pool); err != nil {
				return nil, err
			}
		case s.processor != nil:
			if err := s.processor.ProcessChunk(chunk); err != nil {
				return nil, err
			}
		}
	}

	load := 100.0 * time.Since(start).Seconds() / p.secsPerChunk
	p.params.SetProcessingLoad(load)
	return chunk, nil
}

// UpdateParameters applies a ChangeFilterParams delta in place, preserving
// filter state where instances are compatible.
func (p *Pipeline) UpdateParameters(cfg *config.Config, change config.Change) error {
	for _, s := range p.steps {
		switch {
		case s.filters != nil:
			if err := s.filters.updateParameters(cfg, change.Filters); err != nil {
				return err
			}
		case s.parallel != nil:
			if err := s.parallel.updateParameters(cfg, change.Filters); err != nil {
				return err
			}
		case s.mixer != nil:
			for _, name := range change.Mixers {
				if s.mixer.Name() == name {
					s.mixer.UpdateParameters(cfg.Mixers[name])
				}
			}
		case s.processor != nil:
			for _, name := range change.Processors {
				if s.processor.Name() == name {
					if err := s.processor.UpdateParameters(cfg.Processors[name]); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Close stops the worker pool, if any.
func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.close()
		p.pool = nil
	}
}

// Validate materializes the whole configuration and throws the result away.
// It catches everything construction can reject: unstable filters,
// unreadable coefficient files, unknown types.
func Validate(cfg *config.Config) error {
	p, err := New(cfg, fader.New())
	if err != nil {
		return err
	}
	p.Close()
	return nil
}
