package device

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/algo-stream/audio"
)

// SignalKind selects the generated test signal.
type SignalKind int

const (
	SignalSine SignalKind = iota
	SignalSweep
	SignalNoise
)

// Generator is a capture device producing a test signal: a sine, a
// logarithmic sweep, or white noise. All channels carry the same signal.
type Generator struct {
	kind       SignalKind
	freq       float64
	freqEnd    float64
	amplitude  float64
	channels   int
	samplerate int

	phase   float64
	elapsed float64 // seconds since start, for the sweep
	rng     *rand.Rand
}

// NewGenerator creates a signal generator. For sweeps, freqEnd bounds the
// log sweep which repeats every 10 seconds.
func NewGenerator(kind SignalKind, freq, freqEnd, amplitude float64, channels, samplerate int) *Generator {
	if amplitude == 0 {
		amplitude = 1.0
	}
	return &Generator{
		kind:       kind,
		freq:       freq,
		freqEnd:    freqEnd,
		amplitude:  amplitude,
		channels:   channels,
		samplerate: samplerate,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (g *Generator) Open() error     { return nil }
func (g *Generator) Close() error    { return nil }
func (g *Generator) SampleRate() int { return g.samplerate }
func (g *Generator) Channels() int   { return g.channels }

const sweepPeriod = 10.0

func (g *Generator) ReadChunk(dst *audio.Chunk) error {
	dt := 1.0 / float64(g.samplerate)
	wave := dst.Waveforms[0]
	for n := 0; n < dst.Frames; n++ {
		var smp float64
		switch g.kind {
		case SignalSine:
			smp = g.amplitude * math.Sin(g.phase)
			g.phase += 2.0 * math.Pi * g.freq * dt
		case SignalSweep:
			pos := math.Mod(g.elapsed, sweepPeriod) / sweepPeriod
			freq := g.freq * math.Pow(g.freqEnd/g.freq, pos)
			smp = g.amplitude * math.Sin(g.phase)
			g.phase += 2.0 * math.Pi * freq * dt
			g.elapsed += dt
		case SignalNoise:
			smp = g.amplitude * (g.rng.Float64()*2.0 - 1.0)
		}
		wave[n] = smp
	}
	if g.phase > 2.0*math.Pi {
		g.phase = math.Mod(g.phase, 2.0*math.Pi)
	}
	for ch := 1; ch < g.channels; ch++ {
		copy(dst.Waveforms[ch], wave)
	}
	dst.ValidFrames = dst.Frames
	return nil
}
