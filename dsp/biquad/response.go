package biquad

import (
	"math"
	"math/cmplx"
)

// Response evaluates the complex transfer function at frequency f for the
// given sample rate.
func (c Coefficients) Response(fs int, f float64) complex128 {
	z := cmplx.Exp(complex(0, -2.0*math.Pi*f/float64(fs)))
	z2 := z * z
	num := complex(c.B0, 0) + complex(c.B1, 0)*z + complex(c.B2, 0)*z2
	den := complex(1, 0) + complex(c.A1, 0)*z + complex(c.A2, 0)*z2
	return num / den
}

// GainAt returns the magnitude response at frequency f.
func (c Coefficients) GainAt(fs int, f float64) float64 {
	return cmplx.Abs(c.Response(fs, f))
}

// GainDBAt returns the magnitude response at frequency f in dB.
func (c Coefficients) GainDBAt(fs int, f float64) float64 {
	return 20.0 * math.Log10(c.GainAt(fs, f))
}

// CascadeGainAt returns the combined magnitude response of a section list.
func CascadeGainAt(coeffs []Coefficients, fs int, f float64) float64 {
	gain := 1.0
	for _, c := range coeffs {
		gain *= c.GainAt(fs, f)
	}
	return gain
}
