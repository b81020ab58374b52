// Package dither implements bit-depth quantization with TPDF dither and
// FIR error-feedback noise shaping.
package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Ditherer produces one noise sample per call, in units of one LSB of the
// target bit depth.
type Ditherer interface {
	Sample() float64
}

// NoneDitherer adds no noise; quantization becomes plain rounding.
type NoneDitherer struct{}

func (NoneDitherer) Sample() float64 { return 0 }

// TriangularDitherer produces TPDF noise. The amplitude is the peak-to-peak
// width in LSB; the default of 2 spans one LSB each way.
type TriangularDitherer struct {
	peak float64
	rng  *rand.Rand
}

func NewTriangular(amplitude float64) *TriangularDitherer {
	return &TriangularDitherer{
		peak: amplitude / 2.0,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (t *TriangularDitherer) Sample() float64 {
	// Sum of two uniforms is triangular.
	a := (t.rng.Float64() - 0.5) * t.peak
	b := (t.rng.Float64() - 0.5) * t.peak
	return a + b
}

// HighpassDitherer produces first-difference shaped TPDF noise, pushing the
// dither energy away from DC.
type HighpassDitherer struct {
	peak float64
	prev float64
	rng  *rand.Rand
}

func NewHighpass() *HighpassDitherer {
	return &HighpassDitherer{
		peak: 1.0,
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (h *HighpassDitherer) Sample() float64 {
	cur := (h.rng.Float64() - 0.5) * h.peak
	out := cur - h.prev
	h.prev = cur
	return out
}

// Quantizer rounds samples to a given bit depth, optionally adding dither
// noise and feeding the rounding error back through a noise shaper.
type Quantizer struct {
	scale    float64
	ditherer Ditherer
	shaper   *Shaper
}

// NewQuantizer creates a quantizer for the given bit depth. A nil ditherer
// disables dither, a nil shaper disables noise shaping.
func NewQuantizer(bits int, ditherer Ditherer, shaper *Shaper) (*Quantizer, error) {
	if bits < 2 {
		return nil, fmt.Errorf("dither: bit depth must be at least 2, got %d", bits)
	}
	if ditherer == nil {
		ditherer = NoneDitherer{}
	}
	return &Quantizer{
		scale:    math.Pow(2.0, float64(bits-1)),
		ditherer: ditherer,
		shaper:   shaper,
	}, nil
}

// ProcessBlock quantizes the block in-place. Samples stay in full scale:
// they are scaled up by 2^(bits-1), rounded, and scaled back down.
func (q *Quantizer) ProcessBlock(buf []float64) {
	for i, smp := range buf {
		scaled := smp * q.scale
		noise := q.ditherer.Sample()
		var rounded float64
		if q.shaper != nil {
			rounded = q.shaper.Process(scaled, noise)
		} else {
			rounded = math.Round(scaled + noise)
		}
		buf[i] = rounded / q.scale
	}
}

// Reset clears the shaper history.
func (q *Quantizer) Reset() {
	if q.shaper != nil {
		q.shaper.Reset()
	}
}
