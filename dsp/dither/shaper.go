package dither

// The rate-specific FIR error-feedback filters are published psychoacoustic
// designs: F-weighted filters from Wannamaker (1992), the
// Lipshitz/Vanderkooy/Wannamaker (1991) minimally audible shapers,
// Sebastian Gesemann's filters, and the Shibata filters from SSRC. The
// suffix gives the design rate (441 = 44.1 kHz and its multiples named
// accordingly). A shaper still runs when the engine rate differs from the
// design rate; the taps are used as-is.

import "math"

// Shaper feeds past quantization errors back through an FIR filter before
// rounding, moving the error spectrum where the design puts it.
type Shaper struct {
	coeffs  []float64
	history []float64
	pos     int
}

// NewShaper creates a shaper with the given feedback taps.
func NewShaper(coeffs []float64) *Shaper {
	return &Shaper{
		coeffs:  append([]float64(nil), coeffs...),
		history: make([]float64, len(coeffs)),
	}
}

// Process shapes one scaled sample: the filtered error history is added to
// the sample, dither noise is added on top, and the result is rounded away
// from zero. The new quantization error (without the dither) is recorded.
func (s *Shaper) Process(scaled, noise float64) float64 {
	filt := 0.0
	n := len(s.coeffs)
	idx := s.pos
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = n - 1
		}
		filt += s.coeffs[i] * s.history[idx]
	}

	scaledPlusErr := scaled + filt
	rounded := math.Round(scaledPlusErr + noise)

	s.history[s.pos] = scaledPlusErr - rounded
	s.pos++
	if s.pos == n {
		s.pos = 0
	}
	return rounded
}

// Reset clears the error history.
func (s *Shaper) Reset() {
	for i := range s.history {
		s.history[i] = 0
	}
	s.pos = 0
}

// Fweighted441 returns the Fweighted441 error-feedback shaper.
func Fweighted441() *Shaper { return NewShaper(tapsFweighted441) }

// FweightedLong441 returns the FweightedLong441 error-feedback shaper.
func FweightedLong441() *Shaper { return NewShaper(tapsFweightedLong441) }

// FweightedShort441 returns the FweightedShort441 error-feedback shaper.
func FweightedShort441() *Shaper { return NewShaper(tapsFweightedShort441) }

// Gesemann441 returns the Gesemann441 error-feedback shaper.
func Gesemann441() *Shaper { return NewShaper(tapsGesemann441) }

// Gesemann48 returns the Gesemann48 error-feedback shaper.
func Gesemann48() *Shaper { return NewShaper(tapsGesemann48) }

// Lipshitz441 returns the Lipshitz441 error-feedback shaper.
func Lipshitz441() *Shaper { return NewShaper(tapsLipshitz441) }

// LipshitzLong441 returns the LipshitzLong441 error-feedback shaper.
func LipshitzLong441() *Shaper { return NewShaper(tapsLipshitzLong441) }

// Shibata441 returns the Shibata441 error-feedback shaper.
func Shibata441() *Shaper { return NewShaper(tapsShibata441) }

// ShibataHigh441 returns the ShibataHigh441 error-feedback shaper.
func ShibataHigh441() *Shaper { return NewShaper(tapsShibataHigh441) }

// ShibataLow441 returns the ShibataLow441 error-feedback shaper.
func ShibataLow441() *Shaper { return NewShaper(tapsShibataLow441) }

// Shibata48 returns the Shibata48 error-feedback shaper.
func Shibata48() *Shaper { return NewShaper(tapsShibata48) }

// ShibataHigh48 returns the ShibataHigh48 error-feedback shaper.
func ShibataHigh48() *Shaper { return NewShaper(tapsShibataHigh48) }

// ShibataLow48 returns the ShibataLow48 error-feedback shaper.
func ShibataLow48() *Shaper { return NewShaper(tapsShibataLow48) }

// Shibata882 returns the Shibata882 error-feedback shaper.
func Shibata882() *Shaper { return NewShaper(tapsShibata882) }

// ShibataLow882 returns the ShibataLow882 error-feedback shaper.
func ShibataLow882() *Shaper { return NewShaper(tapsShibataLow882) }

// Shibata96 returns the Shibata96 error-feedback shaper.
func Shibata96() *Shaper { return NewShaper(tapsShibata96) }

// ShibataLow96 returns the ShibataLow96 error-feedback shaper.
func ShibataLow96() *Shaper { return NewShaper(tapsShibataLow96) }

// Shibata192 returns the Shibata192 error-feedback shaper.
func Shibata192() *Shaper { return NewShaper(tapsShibata192) }

// ShibataLow192 returns the ShibataLow192 error-feedback shaper.
func ShibataLow192() *Shaper { return NewShaper(tapsShibataLow192) }

// tapsFweighted441 holds the Fweighted441 feedback filter.
var tapsFweighted441 = []float64{
	2.412, -3.370, 3.937, -4.174, 3.353, -2.205, 1.281, -0.569, 0.0847,
}

// tapsFweightedLong441 holds the FweightedLong441 feedback filter.
var tapsFweightedLong441 = []float64{
	2.391510, -3.284444, 3.679506, -3.635044, 2.524185, -1.146701, 0.115354,
	0.513745, -0.749277, 0.512386, -0.749277, 0.512386, -0.188997, -0.043705,
	0.149843, -0.151186, 0.076302, -0.012070, -0.021127, 0.025232, -0.016121,
	0.004453, 0.000876, -0.001799, 0.000774, -0.000128,
}

// tapsFweightedShort441 holds the FweightedShort441 feedback filter.
var tapsFweightedShort441 = []float64{
	1.623, -0.982, 0.109,
}

// tapsGesemann441 holds the Gesemann441 feedback filter.
var tapsGesemann441 = []float64{
	2.2061, -0.4706, -0.2534, -0.6214, 1.0587, 0.0676, -0.6054, -0.2738,
}

// tapsGesemann48 holds the Gesemann48 feedback filter.
var tapsGesemann48 = []float64{
	2.2374, -0.7339, -0.1251, -0.6033, 0.903, 0.0116, -0.5853, -0.2571,
}

// tapsLipshitz441 holds the Lipshitz441 feedback filter.
var tapsLipshitz441 = []float64{
	2.033, -2.165, 1.959, -1.590, 0.6149,
}

// tapsLipshitzLong441 holds the LipshitzLong441 feedback filter.
var tapsLipshitzLong441 = []float64{
	2.847, -4.685, 6.214, -7.184, 6.639, -5.032, 3.263, -1.632, 0.4191,
}

// tapsShibata441 holds the Shibata441 feedback filter.
var tapsShibata441 = []float64{
	1.3568638563156128, -1.225293517112732, 0.623555064201355,
	-0.22562094032764435, -0.23557975888252258, 0.1353636234998703,
	-0.09153814613819122, -0.056445639580488205, 3.9614424167666584e-5,
	-0.02356191910803318, -0.010756319388747215, -0.00031949131516739726,
	0.0014337620232254267, -0.008455123752355576, -0.00021318180370144546,
	7.617592200404033e-5, 0.0010102330707013607, 4.50302759418264e-5,
	0.001343382173217833, 0.0013937242329120636, 0.000433067005360499,
	0.0004694978706538677, 0.00014775841555092484, -4.1060175135498866e-5,
}

// tapsShibataHigh441 holds the ShibataHigh441 feedback filter.
var tapsShibataHigh441 = []float64{
	2.826326608657837, -5.35343599319458, 7.804205894470215,
	-9.67936897277832, 10.157135009765625, -9.439995765686035,
	7.614612579345703, -5.424517631530762, 3.247828245162964,
	-1.6301852464675903, 0.5853801965713501, -0.11710002273321152,
	-0.0335436686873436, 0.008884146809577942, 0.017314357683062553,
	-0.03326272964477539, 0.018168220296502113, -0.006801502779126167,
	-0.0009691194863989949, 0.0009648934355936944,
}

// tapsShibataLow441 holds the ShibataLow441 feedback filter.
var tapsShibataLow441 = []float64{
	0.5954378247261047, -0.002507873112335801, -0.18518058955669403,
	-0.0010374293196946383, -0.10366342961788177, -0.053248628973960876,
	-8.403004903811961e-5, -3.856993302520095e-8, -0.02641301043331623,
	-0.000684383965563029, 3.1580505037709372e-6, 0.03173962980508804,
}

// tapsShibata48 holds the Shibata48 feedback filter.
var tapsShibata48 = []float64{
	1.4919577836990356, -1.3089178800582886, 0.5405163168907166,
	-0.00036113749956712127, -0.36303195357322693, 0.10911127924919128,
	0.007310638204216957, -0.115459144115448, 0.003772285534068942,
	-0.012545258738100529, -0.02927248738706112, -0.00500220013782382,
	-0.00020218851568643004, -0.0049057346768677235, -0.005127976182848215,
	-0.002505671000108123,
}

// tapsShibataHigh48 holds the ShibataHigh48 feedback filter.
var tapsShibataHigh48 = []float64{
	3.2601516246795654, -6.55756950378418, 9.748664855957031,
	-11.713088989257813, 11.50462818145752, -9.485962867736816,
	6.40427303314209, -3.4772820472717285, 1.3327382802963257,
	-0.2646457552909851, -0.08182330429553986, 0.04464340955018997,
	0.021642472594976425, -0.04283212125301361, 0.0033832620829343796,
	0.016050558537244797, -0.01944376900792122, 0.0020140456035733223,
	0.005101846531033516, -0.004944144282490015, -0.001399693894200027,
	0.003581011900678277, -0.002209919737651944, -0.00010120005026692525,
	0.0007712086662650108, -4.772754982695915e-5, -0.00047057875781320035,
	0.0005352201405912638,
}

// tapsShibataLow48 holds the ShibataLow48 feedback filter.
var tapsShibataLow48 = []float64{
	0.6481543779373169, -0.0001329232909483835, -0.1528443992137909,
	-0.024795081466436386, -0.02887929417192936, -0.09774130582809448,
	3.7233345210552216e-5, 3.0361816243384965e-6, -2.6851517759496346e-5,
	-0.015118855983018875, -0.00011908156011486426, 4.020391770609422e-6,
	0.03214230760931969, 1.2108691862522392e-6, 0.0, 2.4130819564760486e-9,
}

// tapsShibata882 holds the Shibata882 feedback filter.
var tapsShibata882 = []float64{
	2.0752036571502686, -1.4316110610961914, -4.1018622141564265e-5,
	0.3074778616428375, 0.015034947544336319, -0.002069007372483611,
	-0.09544544667005539, -0.017573365941643715, 0.001514684408903122,
	0.00971572007983923, 0.0032300157472491264, -0.0011662221513688564,
	-0.012702429667115211, -0.01368053536862135, -0.00032695711706764996,
	-0.00033481238642707467, 0.0019418919691815972, -0.006559844594448805,
	-0.003184868488460779, -0.001185707631520927,
}

// tapsShibataLow882 holds the ShibataLow882 feedback filter.
var tapsShibataLow882 = []float64{
	0.8127508163452148, 1.3415416333373287e-7, -1.4003169781062752e-5,
	-0.02736665867269039, -0.06308479607105255, -0.00041124963900074363,
	-0.0014667811337858438, -0.0034636424388736486, -0.014447951689362526,
	-0.05068640038371086, -0.00031657953513786197, -7.608177838847041e-7,
	1.3391935453910264e-6, 1.108497826862731e-6, 2.345899190459022e-7,
	7.197047402485168e-9, -0.00024097530695144087, -0.0008133918163366616,
	-0.0027072627563029528, -1.2289029655221384e-5, -2.4080820821836824e-6,
	2.651654767760192e-6, 0.02220836654305458, 1.8090953801674914e-7,
}

// tapsShibata96 holds the Shibata96 feedback filter.
var tapsShibata96 = []float64{
	2.104111433029175, -1.4101417064666748, -0.003514738753437996,
	0.18617971241474152, 0.11117676645517349, -0.0013629450695589185,
	-0.05544671788811684, -0.05685991421341896, -0.0039573232643306255,
	0.002566334791481495, 0.01409075316041708, 0.006225708406418562,
	-0.00653973501175642, -0.019066527485847473, -0.003569579217582941,
	-0.0012264394899830222, 0.00011440102389315143, -0.00019808727665804327,
	-0.0032306648790836334, -0.004677779972553253, -0.0010407331865280867,
	-0.0009732909384183586, -0.0007803455227985978, -0.0003885322657879442,
	4.194729626760818e-5, 0.00017295540601480752, -0.0005931518971920013,
	-0.0006972478586249053, -0.0005040231044404209, -0.0003762370615731925,
	-0.00017440004739910364, 0.0,
}

// tapsShibataLow96 holds the ShibataLow96 feedback filter.
var tapsShibataLow96 = []float64{
	0.8336278200149536, 4.7663510827078426e-7, -5.592720481217839e-5,
	-0.0009176760795526206, -0.0850192978978157, -0.0003086409706156701,
	-2.747484904830344e-5, -3.4470554965082556e-5, -0.006816617213189602,
	-0.005103240255266428, -0.0483102910220623, -3.419442464291933e-6,
	-3.93873875736972e-8, 5.22968321092776e-6, 2.181512536481023e-5,
	5.806052740808809e-6, 8.897533007257152e-6, -2.879307430703193e-6,
	-1.0142302926396951e-5, -0.0008834348409436643, -6.652170122833923e-5,
	-4.3032446228608023e-7, 1.5573209566355217e-6, 0.0032469024881720543,
	0.013371952809393406, 0.0016697095707058907, 0.0003374574880581349,
	3.8218466215766966e-5, 8.088396134553477e-5, 1.7631093214731663e-5,
	4.731758963316679e-6, 3.815073341684183e-7,
}

// tapsShibata192 holds the Shibata192 feedback filter.
var tapsShibata192 = []float64{
	2.1174826622009277, -0.7930012941360474, -0.5887165069580078,
	-0.004517062101513147, -2.240059620817192e-5, 0.3498106598854065,
	0.0014674699632450938, -0.03528605028986931, -0.030574915930628777,
	-0.008099924772977829, -0.024920884519815445, -0.010276389308273792,
	-0.0028273388743400574, 0.011965871788561344, -0.0011787357507273555,
	0.0015875700628384948, 0.0012219551717862487, 0.004150979220867157,
	0.00023660375154577196, -0.00023469136795029044, 0.0002454410423524678,
	-0.002350530354306102, -0.0010635280050337315, -0.0021934446413069963,
	0.0001860195043263957, -0.0005344420787878335, -0.0005648268270306289,
	-6.555314757861197e-5, 0.0005035134381614625, 0.0006977693410590291,
	0.00021543078764807433, 0.0005588428466580808, -0.0009559123427607119,
	-0.00018323963740840554, -0.001184734981507063, 5.595707625616342e-5,
	-0.00021092590759508312, 9.26141638046829e-6, -1.6893125575734302e-5,
	-0.00010291898797731847, -8.705230357008986e-6, -2.1893838493269868e-5,
	2.0483348635025322e-5, -9.314835915574804e-5, -5.457198494696058e-5,
	1.0393147931608837e-5, -4.1864630475174636e-5, 3.314268178655766e-5,
	4.6412500864789763e-7, -3.169075716868974e-5, 2.91996038868092e-5,
	-4.137142968829721e-5, 3.097004537266912e-6, -0.0001308197242906317, 0.0,
	0.0,
}

// tapsShibataLow192 holds the ShibataLow192 feedback filter.
var tapsShibataLow192 = []float64{
	0.9298678636550903, 2.375700432821759e-6, 1.3239204008641536e-6,
	4.53364457086991e-8, -1.0855699201783864e-6, -7.519394671362534e-7,
	-0.01057471428066492, -0.01539737917482853, -0.007173464633524418,
	-0.004041632637381554, -0.0003154361911583692, -6.079084869270446e-6,
	-2.561475230322685e-5, -6.444113296311116e-6, -0.0001434201985830441,
	-9.988663229876238e-9, -0.00011001565144397318, -0.00026444403920322657,
	-0.018070342019200325, -0.0139975780621171,
}
