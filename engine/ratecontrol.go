package engine

import (
	"github.com/cwbudde/algo-stream/audio"
)

// Rate-adjust ratio clamp.
const (
	rateAdjustMin = 0.9
	rateAdjustMax = 1.1
)

// rateController keeps the playback buffer at the target fill level by
// trimming the capture rate. Buffer level observations are averaged over
// each adjust period; the commanded ratio then integrates
//
//	r <- r * (1 + K*e/chunksize)
//
// with e the averaged level error and K = 0.5*chunksize/(samplerate *
// adjust_period), which puts the loop gain at one half per period: the
// error halves every period, well below the adjust frequency.
type rateController struct {
	targetLevel  int
	chunksize    int
	samplerate   int
	adjustPeriod float64

	levels audio.Averager
	ratio  float64
}

func newRateController(targetLevel, chunksize, samplerate int, adjustPeriod float64) *rateController {
	return &rateController{
		targetLevel:  targetLevel,
		chunksize:    chunksize,
		samplerate:   samplerate,
		adjustPeriod: adjustPeriod,
		ratio:        1.0,
	}
}

// addObservation feeds one buffer level sample.
func (c *rateController) addObservation(level int) {
	c.levels.AddValue(float64(level))
}

// update computes the new commanded ratio at the end of an adjust period.
// Without observations the ratio is kept.
func (c *rateController) update() (ratio float64, level float64, ok bool) {
	avg, ok := c.levels.Average()
	if !ok {
		return c.ratio, 0, false
	}
	c.levels.Restart()

	e := float64(c.targetLevel) - avg
	k := 0.5 * float64(c.chunksize) / (float64(c.samplerate) * c.adjustPeriod)
	r := c.ratio * (1.0 + k*e/float64(c.chunksize))
	if r < rateAdjustMin {
		r = rateAdjustMin
	}
	if r > rateAdjustMax {
		r = rateAdjustMax
	}
	c.ratio = r
	return r, avg, true
}

// currentRatio returns the last commanded ratio.
func (c *rateController) currentRatio() float64 {
	return c.ratio
}
