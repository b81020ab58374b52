package audio

// Chunk is the unit of transfer between the capture, processing and playback
// stages. Samples are stored channel-major: Waveforms[ch][frame].
//
// A chunk owns its buffers. Sending a chunk over a queue transfers ownership
// to the receiver; the sender must not touch it afterwards.
type Chunk struct {
	Frames      int
	Channels    int
	ValidFrames int

	// MaxVal and MinVal hold the extreme sample values across all channels,
	// updated by UpdateStats. Used for silence and clip detection.
	MaxVal float64
	MinVal float64

	// Timestamp is a monotonic frame counter at the chunk's first sample.
	Timestamp uint64

	Waveforms [][]float64
}

// NewChunk allocates a chunk of the given geometry with all samples zero.
func NewChunk(channels, frames int) *Chunk {
	waveforms := make([][]float64, channels)
	for ch := range waveforms {
		waveforms[ch] = make([]float64, frames)
	}
	return &Chunk{
		Frames:      frames,
		Channels:    channels,
		ValidFrames: frames,
		Waveforms:   waveforms,
	}
}

// FromWaveforms wraps existing per-channel buffers in a chunk. All buffers
// must have equal length.
func FromWaveforms(waveforms [][]float64, timestamp uint64) *Chunk {
	frames := 0
	if len(waveforms) > 0 {
		frames = len(waveforms[0])
	}
	return &Chunk{
		Frames:      frames,
		Channels:    len(waveforms),
		ValidFrames: frames,
		Timestamp:   timestamp,
		Waveforms:   waveforms,
	}
}

// Derive builds a new chunk that keeps the metadata of c but carries new
// waveforms, typically after a mixer changed the channel layout.
func (c *Chunk) Derive(waveforms [][]float64) *Chunk {
	return &Chunk{
		Frames:      c.Frames,
		Channels:    len(waveforms),
		ValidFrames: c.ValidFrames,
		MaxVal:      c.MaxVal,
		MinVal:      c.MinVal,
		Timestamp:   c.Timestamp,
		Waveforms:   waveforms,
	}
}

// UpdateStats recomputes MaxVal and MinVal over the valid frames of all
// channels.
func (c *Chunk) UpdateStats() {
	maxval := 0.0
	minval := 0.0
	first := true
	for _, wave := range c.Waveforms {
		for _, smp := range wave[:c.ValidFrames] {
			if first {
				maxval = smp
				minval = smp
				first = false
				continue
			}
			if smp > maxval {
				maxval = smp
			}
			if smp < minval {
				minval = smp
			}
		}
	}
	c.MaxVal = maxval
	c.MinVal = minval
}

// SignalRange returns max minus min over the chunk. This is the metric used
// for silence detection.
func (c *Chunk) SignalRange() float64 {
	return c.MaxVal - c.MinVal
}

// ChannelMeanSquare returns the per-channel mean of squared samples over
// the valid frames. Level histories store this and take the root on query.
func (c *Chunk) ChannelMeanSquare() []float64 {
	ms := make([]float64, c.Channels)
	if c.ValidFrames == 0 {
		return ms
	}
	for ch, wave := range c.Waveforms {
		sum := 0.0
		for _, smp := range wave[:c.ValidFrames] {
			sum += smp * smp
		}
		ms[ch] = sum / float64(c.ValidFrames)
	}
	return ms
}

// ChannelPeak returns the per-channel absolute peak over the valid frames.
func (c *Chunk) ChannelPeak() []float64 {
	peak := make([]float64, c.Channels)
	for ch, wave := range c.Waveforms {
		p := 0.0
		for _, smp := range wave[:c.ValidFrames] {
			a := smp
			if a < 0 {
				a = -a
			}
			if a > p {
				p = a
			}
		}
		peak[ch] = p
	}
	return peak
}
