// Package delay implements integer and sub-sample delay lines for streaming
// blocks.
package delay

import (
	"fmt"
	"math"
)

// SpeedOfSound is used to convert distance-based delays, in m/s.
const SpeedOfSound = 343.0

// Unit selects how a configured delay value is interpreted.
type Unit int

const (
	// UnitMillis interprets the value as milliseconds.
	UnitMillis Unit = iota
	// UnitMillimetres interprets the value as millimetres of distance.
	UnitMillimetres
	// UnitSamples interprets the value as samples.
	UnitSamples
)

// ParseUnit converts a configuration string to a Unit.
func ParseUnit(name string) (Unit, error) {
	switch name {
	case "ms", "":
		return UnitMillis, nil
	case "mm":
		return UnitMillimetres, nil
	case "samples":
		return UnitSamples, nil
	}
	return 0, fmt.Errorf("delay: unknown unit %q", name)
}

// InSamples converts a delay value in the given unit to samples.
func InSamples(value float64, unit Unit, samplerate int) float64 {
	switch unit {
	case UnitMillis:
		return value / 1000.0 * float64(samplerate)
	case UnitMillimetres:
		return value / 1000.0 / SpeedOfSound * float64(samplerate)
	default:
		return value
	}
}

// Delay delays a channel by a fixed amount. The integer part runs on a ring
// buffer; an optional fractional part is realized with a first-order
// allpass, which keeps the phase error bounded up to about half of Nyquist.
type Delay struct {
	whole int
	ring  []float64
	pos   int

	allpass bool
	apCoeff float64
	apState float64
}

// New creates a delay of the given number of samples. With subsample set,
// the fractional part of samples is realized with an allpass section;
// otherwise samples is rounded to the nearest integer. Negative delays are
// rejected.
func New(samples float64, subsample bool) (*Delay, error) {
	if samples < 0 {
		return nil, fmt.Errorf("delay: delay cannot be negative, got %g", samples)
	}
	d := &Delay{}
	if !subsample {
		d.whole = int(math.Round(samples))
	} else {
		whole := math.Floor(samples)
		frac := samples - whole
		// The allpass approximates a delay of (1-coeff)/(1+coeff); keep
		// the fractional target in [0.5, 1.5) for best accuracy by
		// borrowing one sample from the integer part.
		if frac > 0 {
			if whole >= 1 && frac < 0.5 {
				whole--
				frac += 1.0
			}
			d.allpass = true
			d.apCoeff = (1.0 - frac) / (1.0 + frac)
		}
		d.whole = int(whole)
	}
	if d.whole > 0 {
		d.ring = make([]float64, d.whole)
	}
	return d, nil
}

// ProcessBlock delays the block in-place.
func (d *Delay) ProcessBlock(buf []float64) {
	if d.whole > 0 {
		ring := d.ring
		pos := d.pos
		for i, x := range buf {
			buf[i] = ring[pos]
			ring[pos] = x
			pos++
			if pos == len(ring) {
				pos = 0
			}
		}
		d.pos = pos
	}
	if d.allpass {
		c := d.apCoeff
		state := d.apState
		for i, x := range buf {
			y := c*x + state
			state = x - c*y
			buf[i] = y
		}
		if math.Abs(state) < 1e-300 {
			state = 0
		}
		d.apState = state
	}
}

// Reset clears the delay memory.
func (d *Delay) Reset() {
	for i := range d.ring {
		d.ring[i] = 0
	}
	d.pos = 0
	d.apState = 0
}
