package engine

import (
	"sync"
	"time"

	"github.com/cwbudde/algo-stream/audio"
)

// levelHistoryLength bounds the per-metric history in chunks.
const levelHistoryLength = 1024

// levelStore aggregates per-chunk signal levels from the capture and
// playback stages. Stages write one record per chunk; control queries read
// windowed summaries. The lock is held only for the few map and slice
// operations.
type levelStore struct {
	mu sync.Mutex

	rms  [2]*audio.ValueHistory // indexed by Side
	peak [2]*audio.ValueHistory

	lastQuery map[levelQueryKey]time.Time

	captureRange float64
}

type levelQueryKey struct {
	side   Side
	metric Metric
}

func newLevelStore(channelsCapture, channelsPlayback int) *levelStore {
	s := &levelStore{lastQuery: make(map[levelQueryKey]time.Time)}
	s.rms[SideCapture] = audio.NewValueHistory(levelHistoryLength, channelsCapture)
	s.peak[SideCapture] = audio.NewValueHistory(levelHistoryLength, channelsCapture)
	s.rms[SidePlayback] = audio.NewValueHistory(levelHistoryLength, channelsPlayback)
	s.peak[SidePlayback] = audio.NewValueHistory(levelHistoryLength, channelsPlayback)
	return s
}

// record adds the levels of one chunk.
func (s *levelStore) record(side Side, chunk *audio.Chunk) {
	meanSquares := chunk.ChannelMeanSquare()
	peak := chunk.ChannelPeak()
	s.mu.Lock()
	s.rms[side].AddRecord(meanSquares)
	s.peak[side].AddRecord(peak)
	if side == SideCapture {
		s.captureRange = chunk.SignalRange()
	}
	s.mu.Unlock()
}

// query answers a level request. RMS values are returned as root of the
// recorded mean squares.
func (s *levelStore) query(side Side, metric Metric, levelRange LevelRange) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := levelQueryKey{side: side, metric: metric}
	now := time.Now()

	switch metric {
	case MetricRMS:
		hist := s.rms[side]
		switch levelRange {
		case RangeSinceLast:
			since := s.lastQuery[key]
			s.lastQuery[key] = now
			if rec, ok := hist.AverageSqrtSince(since); ok {
				return rec.Values
			}
			if rec, ok := hist.LastSqrt(); ok {
				return rec.Values
			}
		default:
			if rec, ok := hist.LastSqrt(); ok {
				return rec.Values
			}
		}
	case MetricPeak:
		hist := s.peak[side]
		switch levelRange {
		case RangeSinceStart:
			return hist.GlobalMax()
		case RangeSinceLast:
			since := s.lastQuery[key]
			s.lastQuery[key] = now
			if rec, ok := hist.MaxSince(since); ok {
				return rec.Values
			}
			if rec, ok := hist.Last(); ok {
				return rec.Values
			}
		default:
			if rec, ok := hist.Last(); ok {
				return rec.Values
			}
		}
	}
	return nil
}

func (s *levelStore) resetPeaks() {
	s.mu.Lock()
	s.peak[SideCapture].ResetGlobalMax()
	s.peak[SidePlayback].ResetGlobalMax()
	s.mu.Unlock()
}

func (s *levelStore) signalRange() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureRange
}
