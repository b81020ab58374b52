package biquad

import (
	"fmt"
	"math"
)

// Coefficient calculators for the standard second-order responses. All take
// the sample rate in Hz and return normalized coefficients. Gains are in dB,
// frequencies in Hz. The peaking/shelving amplitude convention is
// A = 10^(gain/40).

// Free passes externally computed coefficients through unchanged.
func Free(a1, a2, b0, b1, b2 float64) Coefficients {
	return Coefficients{B0: b0, B1: b1, B2: b2, A1: a1, A2: a2}
}

// Lowpass designs a second-order lowpass with the given Q.
func Lowpass(fs int, freq, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	alpha := sn / (2.0 * q)
	b0 := (1.0 - cs) / 2.0
	b1 := 1.0 - cs
	b2 := (1.0 - cs) / 2.0
	return Normalize(1.0+alpha, -2.0*cs, 1.0-alpha, b0, b1, b2)
}

// Highpass designs a second-order highpass with the given Q.
func Highpass(fs int, freq, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	alpha := sn / (2.0 * q)
	b0 := (1.0 + cs) / 2.0
	b1 := -(1.0 + cs)
	b2 := (1.0 + cs) / 2.0
	return Normalize(1.0+alpha, -2.0*cs, 1.0-alpha, b0, b1, b2)
}

// LowpassFO designs a first-order lowpass.
func LowpassFO(fs int, freq float64) Coefficients {
	k := math.Tan(omega(fs, freq) / 2.0)
	alpha := 1.0 + k
	return Normalize(1.0, -(1.0-k)/alpha, 0.0, k/alpha, k/alpha, 0.0)
}

// HighpassFO designs a first-order highpass.
func HighpassFO(fs int, freq float64) Coefficients {
	k := math.Tan(omega(fs, freq) / 2.0)
	alpha := 1.0 + k
	return Normalize(1.0, -(1.0-k)/alpha, 0.0, 1.0/alpha, -1.0/alpha, 0.0)
}

// Peaking designs a peaking EQ from gain and Q.
func Peaking(fs int, freq, gain, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	alpha := sn / (2.0 * q)
	return peakingFromAlpha(cs, ampl, alpha)
}

// PeakingBandwidth designs a peaking EQ from gain and bandwidth in octaves.
func PeakingBandwidth(fs int, freq, gain, bandwidth float64) Coefficients {
	_, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	alpha := bandwidthAlpha(fs, freq, bandwidth)
	return peakingFromAlpha(cs, ampl, alpha)
}

func peakingFromAlpha(cs, ampl, alpha float64) Coefficients {
	b0 := 1.0 + alpha*ampl
	b1 := -2.0 * cs
	b2 := 1.0 - alpha*ampl
	a0 := 1.0 + alpha/ampl
	a1 := -2.0 * cs
	a2 := 1.0 - alpha/ampl
	return Normalize(a0, a1, a2, b0, b1, b2)
}

// Notch designs a notch from Q.
func Notch(fs int, freq, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	return notchFromAlpha(cs, sn/(2.0*q))
}

// NotchBandwidth designs a notch from a bandwidth in octaves.
func NotchBandwidth(fs int, freq, bandwidth float64) Coefficients {
	_, cs := sincosOmega(fs, freq)
	return notchFromAlpha(cs, bandwidthAlpha(fs, freq, bandwidth))
}

func notchFromAlpha(cs, alpha float64) Coefficients {
	return Normalize(1.0+alpha, -2.0*cs, 1.0-alpha, 1.0, -2.0*cs, 1.0)
}

// Bandpass designs a constant-peak bandpass from Q.
func Bandpass(fs int, freq, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	return bandpassFromAlpha(cs, sn/(2.0*q))
}

// BandpassBandwidth designs a bandpass from a bandwidth in octaves.
func BandpassBandwidth(fs int, freq, bandwidth float64) Coefficients {
	_, cs := sincosOmega(fs, freq)
	return bandpassFromAlpha(cs, bandwidthAlpha(fs, freq, bandwidth))
}

func bandpassFromAlpha(cs, alpha float64) Coefficients {
	return Normalize(1.0+alpha, -2.0*cs, 1.0-alpha, alpha, 0.0, -alpha)
}

// Allpass designs a second-order allpass from Q.
func Allpass(fs int, freq, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	return allpassFromAlpha(cs, sn/(2.0*q))
}

// AllpassBandwidth designs a second-order allpass from a bandwidth in
// octaves.
func AllpassBandwidth(fs int, freq, bandwidth float64) Coefficients {
	_, cs := sincosOmega(fs, freq)
	return allpassFromAlpha(cs, bandwidthAlpha(fs, freq, bandwidth))
}

func allpassFromAlpha(cs, alpha float64) Coefficients {
	b0 := 1.0 - alpha
	b1 := -2.0 * cs
	b2 := 1.0 + alpha
	return Normalize(1.0+alpha, -2.0*cs, 1.0-alpha, b0, b1, b2)
}

// AllpassFO designs a first-order allpass.
func AllpassFO(fs int, freq float64) Coefficients {
	tn := math.Tan(omega(fs, freq) / 2.0)
	alpha := (tn + 1.0) / (tn - 1.0)
	return Normalize(alpha, 1.0, 0.0, 1.0, alpha, 0.0)
}

// Highshelf designs a high shelf from gain and Q.
func Highshelf(fs int, freq, gain, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	beta := sn * math.Sqrt(ampl) / q
	return highshelfFromBeta(cs, ampl, beta)
}

// HighshelfSlope designs a high shelf from gain and slope in dB/octave.
// The configured frequency is the middle of the slope.
func HighshelfSlope(fs int, freq, gain, slope float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	alpha := sn / 2.0 * math.Sqrt((ampl+1.0/ampl)*(1.0/(slope/12.0)-1.0)+2.0)
	beta := 2.0 * math.Sqrt(ampl) * alpha
	return highshelfFromBeta(cs, ampl, beta)
}

func highshelfFromBeta(cs, ampl, beta float64) Coefficients {
	b0 := ampl * ((ampl + 1.0) + (ampl-1.0)*cs + beta)
	b1 := -2.0 * ampl * ((ampl - 1.0) + (ampl+1.0)*cs)
	b2 := ampl * ((ampl + 1.0) + (ampl-1.0)*cs - beta)
	a0 := (ampl + 1.0) - (ampl-1.0)*cs + beta
	a1 := 2.0 * ((ampl - 1.0) - (ampl+1.0)*cs)
	a2 := (ampl + 1.0) - (ampl-1.0)*cs - beta
	return Normalize(a0, a1, a2, b0, b1, b2)
}

// HighshelfFO designs a first-order high shelf.
func HighshelfFO(fs int, freq, gain float64) Coefficients {
	tn := math.Tan(omega(fs, freq) / 2.0)
	ampl := math.Pow(10.0, gain/40.0)
	b0 := ampl*tn + ampl*ampl
	b1 := ampl*tn - ampl*ampl
	a0 := ampl*tn + 1.0
	a1 := ampl*tn - 1.0
	return Normalize(a0, a1, 0.0, b0, b1, 0.0)
}

// Lowshelf designs a low shelf from gain and Q.
func Lowshelf(fs int, freq, gain, q float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	beta := sn * math.Sqrt(ampl) / q
	return lowshelfFromBeta(cs, ampl, beta)
}

// LowshelfSlope designs a low shelf from gain and slope in dB/octave.
func LowshelfSlope(fs int, freq, gain, slope float64) Coefficients {
	sn, cs := sincosOmega(fs, freq)
	ampl := math.Pow(10.0, gain/40.0)
	alpha := sn / 2.0 * math.Sqrt((ampl+1.0/ampl)*(1.0/(slope/12.0)-1.0)+2.0)
	beta := 2.0 * math.Sqrt(ampl) * alpha
	return lowshelfFromBeta(cs, ampl, beta)
}

func lowshelfFromBeta(cs, ampl, beta float64) Coefficients {
	b0 := ampl * ((ampl + 1.0) - (ampl-1.0)*cs + beta)
	b1 := 2.0 * ampl * ((ampl - 1.0) - (ampl+1.0)*cs)
	b2 := ampl * ((ampl + 1.0) - (ampl-1.0)*cs - beta)
	a0 := (ampl + 1.0) + (ampl-1.0)*cs + beta
	a1 := -2.0 * ((ampl - 1.0) + (ampl+1.0)*cs)
	a2 := (ampl + 1.0) + (ampl-1.0)*cs - beta
	return Normalize(a0, a1, a2, b0, b1, b2)
}

// LowshelfFO designs a first-order low shelf.
func LowshelfFO(fs int, freq, gain float64) Coefficients {
	tn := math.Tan(omega(fs, freq) / 2.0)
	ampl := math.Pow(10.0, gain/40.0)
	b0 := ampl*ampl*tn + ampl
	b1 := ampl*ampl*tn - ampl
	a0 := tn + ampl
	a1 := tn - ampl
	return Normalize(a0, a1, 0.0, b0, b1, 0.0)
}

// GeneralNotch designs a notch with independent zero and pole frequencies.
// When normalizeAtDC is set, the response is scaled to unity gain at DC.
func GeneralNotch(fs int, freqZero, freqPole, qPole float64, normalizeAtDC bool) Coefficients {
	tnZ := math.Tan(math.Pi * freqZero / float64(fs))
	tnP := math.Tan(math.Pi * freqPole / float64(fs))
	alpha := tnP / qPole
	tn2P := tnP * tnP
	tn2Z := tnZ * tnZ
	gain := 1.0
	if normalizeAtDC {
		gain = tn2P / tn2Z
	}
	b0 := gain * (1.0 + tn2Z)
	b1 := -2.0 * gain * (1.0 - tn2Z)
	b2 := gain * (1.0 + tn2Z)
	a0 := 1.0 + alpha + tn2P
	a1 := -2.0 + 2.0*tn2P
	a2 := 1.0 - alpha + tn2P
	return Normalize(a0, a1, a2, b0, b1, b2)
}

// LinkwitzTransform maps a driver's actual resonance (freqAct, qAct) to a
// target alignment (freqTarget, qTarget).
func LinkwitzTransform(fs int, freqAct, qAct, freqTarget, qTarget float64) Coefficients {
	d0i := math.Pow(2.0*math.Pi*freqAct, 2)
	d1i := 2.0 * math.Pi * freqAct / qAct
	c0i := math.Pow(2.0*math.Pi*freqTarget, 2)
	c1i := 2.0 * math.Pi * freqTarget / qTarget
	fc := (freqTarget + freqAct) / 2.0

	gn := 2.0 * math.Pi * fc / math.Tan(math.Pi*fc/float64(fs))
	gn2 := gn * gn
	cci := c0i + gn*c1i + gn2

	b0 := (d0i + gn*d1i + gn2) / cci
	b1 := 2.0 * (d0i - gn2) / cci
	b2 := (d0i - gn*d1i + gn2) / cci
	a1 := 2.0 * (c0i - gn2) / cci
	a2 := (c0i - gn*c1i + gn2) / cci
	return Normalize(1.0, a1, a2, b0, b1, b2)
}

// ValidateFrequency checks that a corner frequency lies strictly between 0
// and the Nyquist frequency.
func ValidateFrequency(fs int, freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("biquad: frequency must be > 0, got %g", freq)
	}
	if freq >= float64(fs)/2.0 {
		return fmt.Errorf("biquad: frequency %g must be below samplerate/2 (%d)", freq, fs/2)
	}
	return nil
}

func omega(fs int, freq float64) float64 {
	return 2.0 * math.Pi * freq / float64(fs)
}

func sincosOmega(fs int, freq float64) (sn, cs float64) {
	return math.Sincos(omega(fs, freq))
}

// bandwidthAlpha converts a bandwidth in octaves to the RBJ alpha parameter.
func bandwidthAlpha(fs int, freq, bandwidth float64) float64 {
	w := omega(fs, freq)
	sn := math.Sin(w)
	return sn * math.Sinh(math.Ln2/2.0*bandwidth*w/sn)
}
