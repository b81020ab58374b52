package biquad

import (
	"fmt"
	"math"
)

// Combo designs expand into an ordered list of coefficient sets. The
// pipeline instantiates one Section per entry; a combo is exactly
// equivalent to its expansion.

// ButterworthQ returns the Q values for a Butterworth filter of the given
// order. An odd order yields a trailing negative sentinel marking a
// first-order end section.
func ButterworthQ(order int) []float64 {
	odd := order%2 > 0
	nso := order / 2
	qvalues := make([]float64, 0, nso+1)
	for n := 0; n < nso; n++ {
		q := 1.0 / (2.0 * math.Sin(math.Pi/float64(order)*(float64(n)+0.5)))
		qvalues = append(qvalues, q)
	}
	if odd {
		qvalues = append(qvalues, -1.0)
	}
	return qvalues
}

// LinkwitzRileyQ returns the Q values for a Linkwitz-Riley filter, which is
// two cascaded Butterworths of half the order.
func LinkwitzRileyQ(order int) []float64 {
	qtemp := ButterworthQ(order / 2)
	var qvalues []float64
	if order%4 > 0 {
		qtemp = qtemp[:len(qtemp)-1]
		qvalues = append(qvalues, qtemp...)
		qvalues = append(qvalues, qtemp...)
		qvalues = append(qvalues, 0.5)
	} else {
		qvalues = append(qvalues, qtemp...)
		qvalues = append(qvalues, qtemp...)
	}
	return qvalues
}

func makeLowpass(fs int, freq float64, qvalues []float64) []Coefficients {
	coeffs := make([]Coefficients, 0, len(qvalues))
	for _, q := range qvalues {
		if q >= 0.0 {
			coeffs = append(coeffs, Lowpass(fs, freq, q))
		} else {
			coeffs = append(coeffs, LowpassFO(fs, freq))
		}
	}
	return coeffs
}

func makeHighpass(fs int, freq float64, qvalues []float64) []Coefficients {
	coeffs := make([]Coefficients, 0, len(qvalues))
	for _, q := range qvalues {
		if q >= 0.0 {
			coeffs = append(coeffs, Highpass(fs, freq, q))
		} else {
			coeffs = append(coeffs, HighpassFO(fs, freq))
		}
	}
	return coeffs
}

// ButterworthLowpass expands to the section list of a Butterworth lowpass.
func ButterworthLowpass(fs int, freq float64, order int) ([]Coefficients, error) {
	if err := validateOrder(order, false); err != nil {
		return nil, err
	}
	return makeLowpass(fs, freq, ButterworthQ(order)), nil
}

// ButterworthHighpass expands to the section list of a Butterworth highpass.
func ButterworthHighpass(fs int, freq float64, order int) ([]Coefficients, error) {
	if err := validateOrder(order, false); err != nil {
		return nil, err
	}
	return makeHighpass(fs, freq, ButterworthQ(order)), nil
}

// LinkwitzRileyLowpass expands to the section list of a Linkwitz-Riley
// lowpass. The order must be even.
func LinkwitzRileyLowpass(fs int, freq float64, order int) ([]Coefficients, error) {
	if err := validateOrder(order, true); err != nil {
		return nil, err
	}
	return makeLowpass(fs, freq, LinkwitzRileyQ(order)), nil
}

// LinkwitzRileyHighpass expands to the section list of a Linkwitz-Riley
// highpass. The order must be even.
func LinkwitzRileyHighpass(fs int, freq float64, order int) ([]Coefficients, error) {
	if err := validateOrder(order, true); err != nil {
		return nil, err
	}
	return makeHighpass(fs, freq, LinkwitzRileyQ(order)), nil
}

func validateOrder(order int, requireEven bool) error {
	if order == 0 {
		return fmt.Errorf("biquad: order must be larger than zero")
	}
	if requireEven && order%2 > 0 {
		return fmt.Errorf("biquad: order must be an even number, got %d", order)
	}
	return nil
}

// Tilt spectrum-tilt parameters: the full tilt in dB is split between a low
// shelf at 110 Hz and a high shelf at 3500 Hz, half the gain each way.
func Tilt(fs int, gain float64) []Coefficients {
	return []Coefficients{
		LowshelfSlope(fs, 110.0, -gain/2.0, 12.0),
		HighshelfSlope(fs, 3500.0, gain/2.0, 12.0),
	}
}

// PeqBand is one band of a five-point parametric EQ.
type PeqBand struct {
	Freq, Q, Gain float64
}

// FivePointPeq expands a low shelf, three peaking bands and a high shelf.
// Bands with |Q| <= 0.001 are elided.
func FivePointPeq(fs int, lowshelf, p1, p2, p3, highshelf PeqBand) []Coefficients {
	bands := []PeqBand{lowshelf, p1, p2, p3, highshelf}
	coeffs := make([]Coefficients, 0, len(bands))
	for n, band := range bands {
		if math.Abs(band.Q) <= 0.001 {
			continue
		}
		switch n {
		case 0:
			coeffs = append(coeffs, Lowshelf(fs, band.Freq, band.Gain, band.Q))
		case 4:
			coeffs = append(coeffs, Highshelf(fs, band.Freq, band.Gain, band.Q))
		default:
			coeffs = append(coeffs, Peaking(fs, band.Freq, band.Gain, band.Q))
		}
	}
	return coeffs
}

// GraphicEqualizer expands one peaking filter per band, with centers spaced
// logarithmically between freqMin and freqMax and bandwidths equal to the
// band spacing in octaves. Bands with zero gain are elided.
func GraphicEqualizer(fs int, freqMin, freqMax float64, gains []float64) []Coefficients {
	nbands := len(gains)
	if nbands == 0 {
		return nil
	}
	octaves := math.Log2(freqMax / freqMin)
	bandwidth := octaves / float64(nbands)
	coeffs := make([]Coefficients, 0, nbands)
	for i, gain := range gains {
		if gain == 0.0 {
			continue
		}
		center := freqMin * math.Pow(freqMax/freqMin, (float64(i)+0.5)/float64(nbands))
		coeffs = append(coeffs, PeakingBandwidth(fs, center, gain, bandwidth))
	}
	return coeffs
}
