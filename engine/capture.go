package engine

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/device"
	"github.com/cwbudde/algo-stream/dsp/resample"
	"github.com/cwbudde/algo-stream/fader"
)

// captureRetryBudget bounds consecutive retries on a retryable device
// error before giving up.
const captureRetryBudget = 10

// captureStage owns the capture device and, when resampling is configured,
// the resampler. It reads raw chunks, converts and resamples them, tracks
// silence and levels, and pushes chunks into the capture queue. Rate-adjust
// commands arrive on rateCh and go to the device clock when the device is
// tunable, otherwise to the async resampler.
type captureStage struct {
	dev       device.CaptureDevice
	resampler resample.Resampler

	chunksize        int // processing-side chunk size
	captureChunksize int // frames read per device call
	channels         int

	queue   *chunkQueue
	rateCh  chan float64
	stop    <-chan struct{}
	status  chan statusMessage
	silence *audio.SilenceCounter
	levels  *levelStore
	params  *fader.Params
	used    []bool

	log *logrus.Entry
}

func (s *captureStage) run() {
	defer s.queue.close()

	if err := s.dev.Open(); err != nil {
		s.log.WithError(err).Error("failed to open capture device")
		s.sendStatus(statusMessage{kind: statusStopped, stage: "capture", reason: ReasonCaptureError, err: err})
		return
	}
	defer s.dev.Close()
	s.sendStatus(statusMessage{kind: statusStarted, stage: "capture"})

	rateMeasure := audio.NewTimeAverage()
	var timestamp uint64
	retries := 0
	silent := false

	// Output scratch for the resampler, reused across chunks.
	var resampOut [][]float64
	if s.resampler != nil {
		maxOut := s.resampler.MaxOutputFrames(s.captureChunksize)
		resampOut = make([][]float64, s.channels)
		for ch := range resampOut {
			resampOut[ch] = make([]float64, maxOut)
		}
	}
	// Carry buffer for repacking resampler output into fixed chunks.
	carry := make([][]float64, s.channels)
	for ch := range carry {
		carry[ch] = make([]float64, 0, 2*s.chunksize)
	}

	for {
		select {
		case <-s.stop:
			return
		case adjust := <-s.rateCh:
			s.applyRateAdjust(adjust)
		default:
		}

		raw := audio.NewChunk(s.channels, s.captureChunksize)
		err := s.dev.ReadChunk(raw)
		switch {
		case err == nil:
			retries = 0
		case errors.Is(err, device.ErrDone):
			s.log.Info("capture reached end of stream")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "capture", reason: ReasonDone})
			return
		default:
			kind, _ := device.KindOf(err)
			switch kind {
			case device.Retryable:
				retries++
				if retries <= captureRetryBudget {
					s.log.WithError(err).WithField("retry", retries).Warn("capture read failed, retrying")
					time.Sleep(time.Duration(retries) * time.Millisecond)
					continue
				}
				s.log.WithError(err).Error("capture retry budget exhausted")
				s.sendStatus(statusMessage{kind: statusStopped, stage: "capture", reason: ReasonCaptureError, err: err})
				return
			case device.FormatChange:
				var devErr *device.Error
				newRate := 0
				if errors.As(err, &devErr) {
					newRate = devErr.NewRate
				}
				s.log.WithField("new_rate", newRate).Info("capture device reported a format change")
				s.sendStatus(statusMessage{kind: statusFormatChange, stage: "capture", reason: ReasonCaptureFormatChange, newRate: newRate})
				return
			default:
				s.log.WithError(err).Error("capture failed")
				s.sendStatus(statusMessage{kind: statusStopped, stage: "capture", reason: ReasonCaptureError, err: err})
				return
			}
		}

		rateMeasure.AddValue(raw.ValidFrames)
		if rateMeasure.LargerThan(time.Second) {
			s.params.SetCaptureRate(rateMeasure.Average())
			rateMeasure.Restart()
		}

		// Zero the channels nothing downstream consumes.
		for ch, used := range s.used {
			if !used && ch < len(raw.Waveforms) {
				wave := raw.Waveforms[ch][:raw.ValidFrames]
				for i := range wave {
					wave[i] = 0
				}
			}
		}

		raw.UpdateStats()
		nowSilent := s.silence.Update(raw.SignalRange())
		if nowSilent != silent {
			silent = nowSilent
			if silent {
				s.sendStatus(statusMessage{kind: statusSilent, stage: "capture"})
			} else {
				s.sendStatus(statusMessage{kind: statusResumed, stage: "capture"})
			}
		}
		s.levels.record(SideCapture, raw)

		if s.resampler == nil {
			raw.Timestamp = timestamp
			timestamp += uint64(raw.ValidFrames)
			if !s.queue.send(raw, s.stop) {
				return
			}
			continue
		}

		produced, rerr := s.resampler.ProcessChunk(raw.Waveforms, raw.ValidFrames, resampOut)
		if rerr != nil {
			s.log.WithError(rerr).Error("resampler failed")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "capture", reason: ReasonCaptureError, err: rerr})
			return
		}
		for ch := range carry {
			carry[ch] = append(carry[ch], resampOut[ch][:produced]...)
		}
		// Emit full chunks; a trailing partial stays in the carry buffer.
		for len(carry[0]) >= s.chunksize {
			chunk := audio.NewChunk(s.channels, s.chunksize)
			for ch := range carry {
				copy(chunk.Waveforms[ch], carry[ch][:s.chunksize])
				n := copy(carry[ch], carry[ch][s.chunksize:])
				carry[ch] = carry[ch][:n]
			}
			chunk.Timestamp = timestamp
			timestamp += uint64(s.chunksize)
			chunk.UpdateStats()
			if !s.queue.send(chunk, s.stop) {
				return
			}
		}
	}
}

// applyRateAdjust routes a rate-adjust command: the device's virtual clock
// is preferred when available, the async resampler otherwise.
func (s *captureStage) applyRateAdjust(adjust float64) {
	if tunable, ok := s.dev.(device.RateTunable); ok {
		if err := tunable.SetRate(adjust); err == nil {
			s.log.WithField("adjust", adjust).Debug("applied rate adjust to capture device clock")
			return
		}
	}
	if s.resampler != nil {
		if err := s.resampler.SetRatio(adjust); err != nil {
			s.log.WithError(err).Warn("rate adjust rejected by resampler")
		} else {
			s.log.WithField("adjust", adjust).Debug("applied rate adjust to resampler")
		}
		return
	}
	s.log.Warn("rate adjust requested but neither device clock nor resampler supports it")
}

func (s *captureStage) sendStatus(msg statusMessage) {
	sendStatus(s.status, msg)
}
