package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/fader"
	"github.com/cwbudde/algo-stream/pipeline"
)

// reloadRequest carries a new configuration to the processing stage.
// Replies with nil on success; on failure the old pipeline keeps running.
type reloadRequest struct {
	cfg    *config.Config
	change config.Change
	reply  chan error
}

// processingStage pulls chunks from the capture queue, runs the pipeline
// and pushes the result to the playback queue. Pipeline swaps happen
// between chunks, so a reload never tears a chunk.
type processingStage struct {
	pipe *pipeline.Pipeline

	inQueue  *chunkQueue
	outQueue *chunkQueue
	reloadCh chan reloadRequest
	stop     <-chan struct{}
	status   chan statusMessage

	chunkDuration time.Duration
	params        *fader.Params

	log *logrus.Entry
}

// stallTimeoutChunks is the number of chunk durations without input before
// the stage reports a stall.
const stallTimeoutChunks = 4

func (s *processingStage) run() {
	defer s.outQueue.close()
	defer s.pipe.Close()

	s.sendStatus(statusMessage{kind: statusStarted, stage: "processing"})
	timeout := time.Duration(stallTimeoutChunks) * s.chunkDuration
	if timeout < 10*time.Millisecond {
		timeout = 10 * time.Millisecond
	}
	stalled := false

	for {
		// Apply any pending reload between chunks.
		select {
		case req := <-s.reloadCh:
			s.applyReload(req)
		default:
		}

		chunk, timedOut, ok := s.inQueue.recv(timeout, s.stop)
		if !ok {
			s.log.Debug("capture queue closed, processing exits")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "processing", reason: ReasonDone})
			return
		}
		if timedOut {
			if !stalled {
				stalled = true
				s.sendStatus(statusMessage{kind: statusStalled, stage: "processing"})
			}
			continue
		}
		if stalled {
			stalled = false
			s.sendStatus(statusMessage{kind: statusResumed, stage: "processing"})
		}

		out, err := s.pipe.ProcessChunk(chunk)
		if err != nil {
			s.log.WithError(err).Error("pipeline failed")
			s.sendStatus(statusMessage{kind: statusStopped, stage: "processing", reason: ReasonCaptureError, err: err})
			return
		}
		if !s.outQueue.send(out, s.stop) {
			return
		}
	}
}

// applyReload swaps or updates the pipeline. An update that only touches
// scalar parameters keeps the existing instances and their state; anything
// else builds a fresh tree and swaps it in whole.
func (s *processingStage) applyReload(req reloadRequest) {
	var err error
	switch req.change.Kind {
	case config.ChangeNone:
	case config.ChangeFilterParams:
		s.log.WithFields(logrus.Fields{
			"filters":    req.change.Filters,
			"mixers":     req.change.Mixers,
			"processors": req.change.Processors,
		}).Debug("updating pipeline parameters in place")
		err = s.pipe.UpdateParameters(req.cfg, req.change)
	default:
		s.log.Debug("rebuilding pipeline")
		var fresh *pipeline.Pipeline
		fresh, err = pipeline.New(req.cfg, s.params)
		if err == nil {
			s.pipe.Close()
			s.pipe = fresh
		}
	}
	req.reply <- err
}

func (s *processingStage) sendStatus(msg statusMessage) {
	sendStatus(s.status, msg)
}
