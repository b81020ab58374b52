package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stream/device"
	"github.com/cwbudde/algo-stream/fader"
)

// playbackStage pulls processed chunks, converts them to the device format
// and writes them out. It observes the playback buffer level and reports it
// to the supervisor at most once per adjust period.
type playbackStage struct {
	dev device.PlaybackDevice

	queue  *chunkQueue
	stop   <-chan struct{}
	status chan statusMessage

	chunkDuration time.Duration
	adjustPeriod  time.Duration
	params        *fader.Params
	levels        *levelStore

	log *logrus.Entry
}

func (s *playbackStage) run() {
	if err := s.dev.Open(); err != nil {
		s.log.WithError(err).Error("failed to open playback device")
		s.sendStatus(statusMessage{kind: statusStopped, stage: "playback", reason: ReasonPlaybackError, err: err})
		return
	}
	defer s.dev.Close()
	s.sendStatus(statusMessage{kind: statusStarted, stage: "playback"})

	timeout := 4 * s.chunkDuration
	if timeout < 10*time.Millisecond {
		timeout = 10 * time.Millisecond
	}
	lastLevelReport := time.Time{}
	underruns := 0

	for {
		chunk, timedOut, ok := s.queue.recv(timeout, s.stop)
		if !ok {
			s.log.Info("playback reached end of stream")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "playback", reason: ReasonDone})
			return
		}
		if timedOut {
			underruns++
			s.log.WithField("count", underruns).Debug("playback waiting for data")
			s.sendStatus(statusMessage{kind: statusUnderrun, stage: "playback"})
			continue
		}

		s.levels.record(SidePlayback, chunk)
		clipped, err := s.dev.WriteChunk(chunk)
		s.params.AddClipped(clipped)
		if err != nil {
			kind, _ := device.KindOf(err)
			reason := ReasonPlaybackError
			if kind == device.FormatChange {
				reason = ReasonPlaybackFormatChange
			}
			s.log.WithError(err).Error("playback write failed")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "playback", reason: reason, err: err})
			return
		}

		if reporter, ok := s.dev.(device.BufferLevelReporter); ok {
			if frames, at, ok := reporter.BufferLevel(); ok {
				// The queue between the stages is part of the effective
				// buffer: include it so the controller sees the whole
				// pipeline fill.
				frames += s.queue.level() * chunk.Frames
				s.params.SetBufferLevel(frames)
				if time.Since(lastLevelReport) >= s.adjustPeriod {
					lastLevelReport = time.Now()
					sendStatus(s.status, statusMessage{kind: statusBufferLevel, stage: "playback", bufferLevel: frames, at: at})
				}
			}
		}
	}
}

func (s *playbackStage) sendStatus(msg statusMessage) {
	sendStatus(s.status, msg)
}
