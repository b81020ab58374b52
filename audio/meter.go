package audio

import (
	"math"
	"time"
)

// SilenceCounter watches whether the signal range has stayed below a
// threshold for longer than a configured number of chunks.
type SilenceCounter struct {
	threshold  float64
	limitCount int
	silent     int
}

// NewSilenceCounter builds a counter from a threshold in dB and a timeout in
// seconds. A timeout of zero disables the counter; Update then always
// reports an active signal.
func NewSilenceCounter(thresholdDB, timeout float64, samplerate, chunksize int) *SilenceCounter {
	limit := int(math.Round(timeout * float64(samplerate) / float64(chunksize)))
	return &SilenceCounter{
		threshold:  math.Pow(10.0, thresholdDB/20.0),
		limitCount: limit,
	}
}

// Update feeds the signal range of one chunk and reports whether the stream
// should be considered paused.
func (s *SilenceCounter) Update(valueRange float64) (paused bool) {
	if s.limitCount == 0 {
		return false
	}
	if valueRange > s.threshold {
		s.silent = 0
		return false
	}
	if s.silent >= s.limitCount {
		paused = true
	}
	s.silent++
	return paused
}

// Averager accumulates values and returns their mean.
type Averager struct {
	sum   float64
	count int
}

func (a *Averager) Restart() {
	a.sum = 0
	a.count = 0
}

func (a *Averager) AddValue(v float64) {
	a.sum += v
	a.count++
}

// Average returns the mean of the accumulated values, or false if none were
// added.
func (a *Averager) Average() (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	return a.sum / float64(a.count), true
}

// TimeAverage accumulates a count over wall time, yielding a rate.
type TimeAverage struct {
	sum   float64
	start time.Time
}

func NewTimeAverage() *TimeAverage {
	return &TimeAverage{start: time.Now()}
}

func (t *TimeAverage) Restart() {
	t.sum = 0
	t.start = time.Now()
}

func (t *TimeAverage) AddValue(v int) {
	t.sum += float64(v)
}

// Average returns the accumulated sum divided by the elapsed time in seconds.
func (t *TimeAverage) Average() float64 {
	elapsed := time.Since(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return t.sum / elapsed
}

func (t *TimeAverage) LargerThan(d time.Duration) bool {
	return time.Since(t.start) > d
}

// ValueWatcher reports when a value has stayed outside a tolerance band
// around a target for more than countLimit consecutive checks.
type ValueWatcher struct {
	min        float64
	max        float64
	countLimit int
	count      int
}

func NewValueWatcher(target, maxRelDiff float64, countLimit int) *ValueWatcher {
	return &ValueWatcher{
		min:        target / (1.0 + maxRelDiff),
		max:        target * (1.0 + maxRelDiff),
		countLimit: countLimit,
	}
}

func (w *ValueWatcher) Reset() {
	w.count = 0
}

// CheckValue feeds one observation, returning true when the value has been
// out of range longer than the limit.
func (w *ValueWatcher) CheckValue(v float64) bool {
	if v < w.min || v > w.max {
		w.count++
	} else {
		w.count = 0
	}
	return w.count > w.countLimit
}

// HistoryRecord is one timestamped set of per-channel values.
type HistoryRecord struct {
	Time   time.Time
	Values []float64
}

// ValueHistory keeps a bounded history of per-channel values (signal peaks
// or squared RMS) together with an all-time peak, and answers windowed
// queries against it.
type ValueHistory struct {
	records []HistoryRecord // newest first
	peak    []float64
	nvalues int
	maxLen  int
}

func NewValueHistory(historyLength, nvalues int) *ValueHistory {
	return &ValueHistory{
		peak:    make([]float64, nvalues),
		nvalues: nvalues,
		maxLen:  historyLength,
	}
}

// AddRecord appends a record, dropping the oldest when full. A record with a
// different channel count clears the history.
func (h *ValueHistory) AddRecord(values []float64) {
	if len(values) != h.nvalues {
		h.nvalues = len(values)
		h.records = h.records[:0]
		h.peak = make([]float64, h.nvalues)
	}
	for i, v := range values {
		if v > h.peak[i] {
			h.peak[i] = v
		}
	}
	rec := HistoryRecord{Time: time.Now(), Values: append([]float64(nil), values...)}
	if len(h.records) == h.maxLen {
		h.records = h.records[:len(h.records)-1]
	}
	h.records = append([]HistoryRecord{rec}, h.records...)
}

// AddRecordSquared squares the values before recording, for RMS history.
func (h *ValueHistory) AddRecordSquared(values []float64) {
	sq := make([]float64, len(values))
	for i, v := range values {
		sq[i] = v * v
	}
	h.AddRecord(sq)
}

// AverageSince returns the per-channel mean of records newer than t.
func (h *ValueHistory) AverageSince(t time.Time) (HistoryRecord, bool) {
	scratch := make([]float64, h.nvalues)
	summed := 0
	for _, rec := range h.records {
		if !rec.Time.After(t) {
			break
		}
		for i, v := range rec.Values {
			scratch[i] += v
		}
		summed++
	}
	if summed == 0 {
		return HistoryRecord{}, false
	}
	for i := range scratch {
		scratch[i] /= float64(summed)
	}
	return HistoryRecord{Time: h.records[0].Time, Values: scratch}, true
}

// AverageSqrtSince is AverageSince followed by a square root, for RMS.
func (h *ValueHistory) AverageSqrtSince(t time.Time) (HistoryRecord, bool) {
	rec, ok := h.AverageSince(t)
	if !ok {
		return rec, false
	}
	for i := range rec.Values {
		rec.Values[i] = math.Sqrt(rec.Values[i])
	}
	return rec, true
}

// MaxSince returns the per-channel maximum of records newer than t.
func (h *ValueHistory) MaxSince(t time.Time) (HistoryRecord, bool) {
	scratch := make([]float64, h.nvalues)
	valid := false
	for _, rec := range h.records {
		if !rec.Time.After(t) {
			break
		}
		for i, v := range rec.Values {
			if v > scratch[i] {
				scratch[i] = v
			}
		}
		valid = true
	}
	if !valid {
		return HistoryRecord{}, false
	}
	return HistoryRecord{Time: h.records[0].Time, Values: scratch}, true
}

// GlobalMax returns the all-time per-channel peak.
func (h *ValueHistory) GlobalMax() []float64 {
	return append([]float64(nil), h.peak...)
}

func (h *ValueHistory) ResetGlobalMax() {
	for i := range h.peak {
		h.peak[i] = 0
	}
}

func (h *ValueHistory) ClearHistory() {
	h.records = h.records[:0]
	h.ResetGlobalMax()
}

// Last returns the newest record.
func (h *ValueHistory) Last() (HistoryRecord, bool) {
	if len(h.records) == 0 {
		return HistoryRecord{}, false
	}
	return h.records[0], true
}

// LastSqrt returns the newest record with a square root applied.
func (h *ValueHistory) LastSqrt() (HistoryRecord, bool) {
	rec, ok := h.Last()
	if !ok {
		return rec, false
	}
	values := make([]float64, len(rec.Values))
	for i, v := range rec.Values {
		values[i] = math.Sqrt(v)
	}
	return HistoryRecord{Time: rec.Time, Values: values}, true
}
