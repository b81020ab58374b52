package pipeline

import (
	"math"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/dsp/biquad"
	"github.com/cwbudde/algo-stream/fader"
)

// muteGainDB is the effective volume of a muted fader.
const muteGainDB = -150.0

// VolumeFilter applies the gain of a fader, ramping linearly in dB over the
// configured ramp time whenever the target moves. The ramp length is
// rounded to whole chunks.
type VolumeFilter struct {
	name       string
	faderIndex int
	params     *fader.Params

	samplerate int
	chunksize  int
	rampChunks int
	limitDB    float64

	currentDB float64
	rampLeft  int
	targetDB  float64
}

func newVolumeFilter(name string, p config.FilterParams, ctx *buildContext) (*VolumeFilter, error) {
	index, err := fader.Index(p.Fader)
	if err != nil {
		return nil, err
	}
	rampTime := config.DefaultRampTime
	if p.RampTime != nil {
		rampTime = *p.RampTime
	}
	limit := ctx.volumeLimit
	if limit == 0 {
		limit = config.DefaultVolumeLimit
	}
	f := &VolumeFilter{
		name:       name,
		faderIndex: index,
		params:     ctx.params,
		samplerate: ctx.samplerate,
		chunksize:  ctx.chunksize,
		limitDB:    limit,
	}
	f.setRampTime(rampTime)
	f.currentDB = f.effectiveTarget()
	f.targetDB = f.currentDB
	ctx.params.SetCurrentVolume(index, f.currentDB)
	return f, nil
}

func (f *VolumeFilter) setRampTime(rampTimeMs float64) {
	chunkMs := 1000.0 * float64(f.chunksize) / float64(f.samplerate)
	chunks := int(math.Round(rampTimeMs / chunkMs))
	if chunks < 1 {
		chunks = 1
	}
	f.rampChunks = chunks
}

// effectiveTarget reads the fader, clamping to the volume limit and
// substituting the mute floor.
func (f *VolumeFilter) effectiveTarget() float64 {
	if f.params.IsMute(f.faderIndex) {
		return muteGainDB
	}
	target := f.params.TargetVolume(f.faderIndex)
	if target > f.limitDB {
		target = f.limitDB
	}
	return target
}

func (f *VolumeFilter) Name() string { return f.name }

// advance moves the ramp state forward by one chunk and returns the gain
// to apply: either a flat linear gain, or a start/step pair for a
// per-sample dB slide. The slide is linear in dB, which keeps the ramp
// monotonic from start to end.
func (f *VolumeFilter) advance(frames int) (flat float64, startDB, stepDB float64, ramping bool) {
	target := f.effectiveTarget()
	if target != f.targetDB {
		f.targetDB = target
		f.rampLeft = f.rampChunks
	}

	if f.rampLeft > 0 && frames > 0 {
		nextDB := f.currentDB + (f.targetDB-f.currentDB)/float64(f.rampLeft)
		f.rampLeft--
		if f.rampLeft == 0 {
			nextDB = f.targetDB
		}
		startDB = f.currentDB
		stepDB = (nextDB - f.currentDB) / float64(frames)
		f.currentDB = nextDB
		f.params.SetCurrentVolume(f.faderIndex, f.currentDB)
		return 0, startDB, stepDB, true
	}

	gain := math.Pow(10.0, f.currentDB/20.0)
	if f.currentDB <= muteGainDB {
		gain = 0.0
	}
	return gain, 0, 0, false
}

func applyVolume(waveform []float64, flat, startDB, stepDB float64, ramping bool) {
	if !ramping {
		for n := range waveform {
			waveform[n] *= flat
		}
		return
	}
	db := startDB
	for n := range waveform {
		db += stepDB
		waveform[n] *= math.Pow(10.0, db/20.0)
	}
}

// ProcessWaveform applies the fader gain to one channel, advancing the
// ramp. Used when Volume appears as a named filter; each channel gets its
// own instance.
func (f *VolumeFilter) ProcessWaveform(waveform []float64) error {
	flat, startDB, stepDB, ramping := f.advance(len(waveform))
	applyVolume(waveform, flat, startDB, stepDB, ramping)
	return nil
}

// ProcessChunk applies the fader gain to all channels of a chunk with a
// single ramp advance. Used for the pipeline's built-in Main volume.
func (f *VolumeFilter) ProcessChunk(chunk *audio.Chunk) {
	flat, startDB, stepDB, ramping := f.advance(chunk.ValidFrames)
	for ch := 0; ch < chunk.Channels; ch++ {
		applyVolume(chunk.Waveforms[ch][:chunk.ValidFrames], flat, startDB, stepDB, ramping)
	}
}

func (f *VolumeFilter) UpdateParameters(conf config.Filter) error {
	index, err := fader.Index(conf.Parameters.Fader)
	if err != nil {
		return err
	}
	f.faderIndex = index
	if conf.Parameters.RampTime != nil {
		f.setRampTime(*conf.Parameters.RampTime)
	}
	return nil
}

// LoudnessFilter boosts lows and highs at low listening volume, following a
// fader. The shelf gains scale linearly from zero at the reference level to
// the full boost 20 dB below it.
type LoudnessFilter struct {
	name       string
	faderIndex int
	params     *fader.Params
	samplerate int

	referenceLevel float64
	highBoost      float64
	lowBoost       float64
	attenuateMid   bool

	currentVolume float64
	active        bool
	highShelf     *biquad.Section
	lowShelf      *biquad.Section
	midGain       float64
}

func newLoudnessFilter(name string, p config.FilterParams, ctx *buildContext) (*LoudnessFilter, error) {
	index, err := fader.Index(p.Fader)
	if err != nil {
		return nil, err
	}
	f := &LoudnessFilter{
		name:           name,
		faderIndex:     index,
		params:         ctx.params,
		samplerate:     ctx.samplerate,
		referenceLevel: p.ReferenceLevel,
		highBoost:      optFloat(p.HighBoost, 10.0),
		lowBoost:       optFloat(p.LowBoost, 10.0),
		attenuateMid:   p.AttenuateMid,
	}
	f.currentVolume = ctx.params.CurrentVolume(index)
	if err := f.rebuild(relBoost(f.currentVolume, f.referenceLevel)); err != nil {
		return nil, err
	}
	return f, nil
}

func optFloat(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

// relBoost maps a volume to the 0..1 boost scale: zero at the reference
// level, one at 20 dB below, saturating outside.
func relBoost(level, reference float64) float64 {
	rel := (reference - level) / 20.0
	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}
	return rel
}

// rebuild recomputes the shelves for the given relative boost.
func (f *LoudnessFilter) rebuild(rel float64) error {
	highBoost := rel * f.highBoost
	lowBoost := rel * f.lowBoost
	f.active = rel > 0.001

	high, err := biquad.NewSection(biquad.HighshelfSlope(f.samplerate, 3500.0, highBoost, 12.0))
	if err != nil {
		return err
	}
	low, err := biquad.NewSection(biquad.LowshelfSlope(f.samplerate, 70.0, lowBoost, 12.0))
	if err != nil {
		return err
	}
	if f.highShelf != nil {
		// Keep the filter state across gain changes.
		high.SetState(f.highShelf.State())
		low.SetState(f.lowShelf.State())
	}
	f.highShelf = high
	f.lowShelf = low

	if f.attenuateMid {
		maxBoost := lowBoost
		if highBoost > maxBoost {
			maxBoost = highBoost
		}
		f.midGain = math.Pow(10.0, -maxBoost/20.0)
	} else {
		f.midGain = 1.0
	}
	return nil
}

func (f *LoudnessFilter) Name() string { return f.name }

func (f *LoudnessFilter) ProcessWaveform(waveform []float64) error {
	volume := f.params.CurrentVolume(f.faderIndex)
	if math.Abs(volume-f.currentVolume) > 0.01 {
		f.currentVolume = volume
		if err := f.rebuild(relBoost(volume, f.referenceLevel)); err != nil {
			return err
		}
	}
	if !f.active {
		return nil
	}
	f.lowShelf.ProcessBlock(waveform)
	f.highShelf.ProcessBlock(waveform)
	if f.attenuateMid {
		for n := range waveform {
			waveform[n] *= f.midGain
		}
	}
	return nil
}

func (f *LoudnessFilter) UpdateParameters(conf config.Filter) error {
	p := conf.Parameters
	index, err := fader.Index(p.Fader)
	if err != nil {
		return err
	}
	f.faderIndex = index
	f.referenceLevel = p.ReferenceLevel
	f.highBoost = optFloat(p.HighBoost, 10.0)
	f.lowBoost = optFloat(p.LowBoost, 10.0)
	f.attenuateMid = p.AttenuateMid
	return f.rebuild(relBoost(f.currentVolume, f.referenceLevel))
}
