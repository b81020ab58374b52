package dynamics

import "math"

// Limiter clips samples to a limit, either hard or with a cubic soft knee.
// It is memoryless.
type Limiter struct {
	softClip  bool
	clipLimit float64
}

// NewLimiter creates a limiter with the limit given in dB.
func NewLimiter(clipLimitDB float64, softClip bool) *Limiter {
	return &Limiter{
		softClip:  softClip,
		clipLimit: math.Pow(10.0, clipLimitDB/20.0),
	}
}

// Update replaces the limiter parameters.
func (l *Limiter) Update(clipLimitDB float64, softClip bool) {
	l.softClip = softClip
	l.clipLimit = math.Pow(10.0, clipLimitDB/20.0)
}

// ProcessBlock clips the block in-place.
func (l *Limiter) ProcessBlock(buf []float64) {
	if l.softClip {
		softClip(buf, l.clipLimit)
	} else {
		hardClip(buf, l.clipLimit)
	}
}
