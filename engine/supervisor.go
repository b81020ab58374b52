package engine

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/fader"
	"github.com/cwbudde/algo-stream/pipeline"
)

// supervise is the supervisor loop for one launched configuration. It
// consumes stage status events, services control commands, and runs the
// rate-adjust controller. Returns when the stages should be torn down.
func (e *Engine) supervise(cfg *config.Config, st *stages) (exitState, int) {
	rateAdjust := cfg.Devices.EnableRateAdjust &&
		(cfg.Devices.Resampler == nil || cfg.ResamplerIsAsync())
	if cfg.Devices.EnableRateAdjust && cfg.Devices.Resampler != nil && !cfg.ResamplerIsAsync() {
		e.log.Warn("rate adjust is enabled but the resampler is synchronous; ignoring")
	}

	adjustPeriod := time.Duration(*cfg.Devices.AdjustPeriod * float64(time.Second))
	ticker := time.NewTicker(adjustPeriod)
	defer ticker.Stop()

	started := 0
	stoppedStages := 0
	finalReason := ReasonNone

	noteStop := func(reason StopReason) {
		stoppedStages++
		if finalReason == ReasonNone || (finalReason == ReasonDone && reason != ReasonDone) {
			if reason != ReasonNone {
				finalReason = reason
			}
		}
	}

	for {
		select {
		case msg := <-st.status:
			switch msg.kind {
			case statusStarted:
				started++
				if started == 3 {
					e.setState(Running)
					e.log.Info("all stages running")
				}
			case statusSilent:
				e.setState(Paused)
			case statusResumed:
				if e.State() != Running {
					e.setState(Running)
				}
			case statusStalled:
				e.setState(Stalled)
			case statusUnderrun:
				// Counted and logged by the stage; nothing to decide here.
			case statusBufferLevel:
				if e.rate != nil {
					e.rate.addObservation(msg.bufferLevel)
				}
			case statusFormatChange:
				e.mu.Lock()
				e.stopReason = msg.reason
				e.newRate = msg.newRate
				e.cfg = nil
				e.mu.Unlock()
				return exitRestart, ExitOK
			case statusStopped:
				noteStop(msg.reason)
				e.mu.Lock()
				e.stopReason = finalReason
				e.mu.Unlock()
				switch msg.reason {
				case ReasonCaptureError, ReasonPlaybackError:
					return exitQuit, ExitRuntime
				}
				// A clean Done propagates through the stages; leave once
				// the playback side is finished.
				if msg.stage == "playback" || stoppedStages == 3 {
					return exitQuit, ExitOK
				}
			}

		case <-ticker.C:
			if !rateAdjust || e.rate == nil {
				continue
			}
			ratio, level, ok := e.rate.update()
			if !ok {
				continue
			}
			e.log.WithField("ratio", ratio).WithField("buffer_level", level).Debug("rate adjust update")
			// Replace any pending command so the capture side always sees
			// the latest ratio.
			select {
			case <-st.rateCh:
			default:
			}
			select {
			case st.rateCh <- ratio:
			default:
			}

		case cmd := <-e.control:
			switch c := cmd.(type) {
			case Exit:
				e.mu.Lock()
				e.stopReason = ReasonNone
				e.mu.Unlock()
				return exitQuit, ExitOK
			case Stop:
				e.mu.Lock()
				e.stopReason = ReasonNone
				e.cfg = nil
				e.mu.Unlock()
				return exitRestart, ExitOK
			case SetConfig:
				restart, err := e.applyNewConfig(c.Config, st)
				c.Reply <- err
				if restart {
					return exitRestart, ExitOK
				}
			case Reload:
				restart, err := e.reloadAndApply(st)
				c.Reply <- err
				if restart {
					return exitRestart, ExitOK
				}
			default:
				e.answerStateless(cmd)
			}
		}
	}
}

// applyNewConfig validates cfg and applies it: scalar changes update the
// running pipeline in place, structural changes swap the pipeline, device
// changes restart the stages. On error the previous configuration keeps
// running.
func (e *Engine) applyNewConfig(cfg *config.Config, st *stages) (restart bool, err error) {
	if cfg == nil {
		return false, fmt.Errorf("engine: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	e.mu.Lock()
	current := e.cfg
	e.mu.Unlock()

	change := config.Diff(current, cfg)
	if change.Kind == config.ChangeNone {
		e.log.Debug("new config is identical, nothing to do")
		return false, nil
	}
	if change.Kind == config.ChangeDevices {
		if err := pipeline.Validate(cfg); err != nil {
			return false, err
		}
		e.log.Info("device section changed, restarting stages")
		e.adopt(cfg)
		return true, nil
	}

	// Hot path: hand the new dictionaries to the processing stage, which
	// swaps between chunks.
	reply := make(chan error, 1)
	select {
	case st.reloadCh <- reloadRequest{cfg: cfg, change: change, reply: reply}:
	case <-time.After(5 * time.Second):
		return false, fmt.Errorf("engine: processing stage did not accept the reload")
	}
	select {
	case err := <-reply:
		if err != nil {
			return false, err
		}
	case <-time.After(5 * time.Second):
		return false, fmt.Errorf("engine: processing stage did not confirm the reload")
	}

	e.log.Info("applied configuration hot reload")
	e.adopt(cfg)
	return false, nil
}

func (e *Engine) adopt(cfg *config.Config) {
	e.mu.Lock()
	e.prevCfg = e.cfg
	e.cfg = cfg
	if cfg.FilePath != "" {
		e.configPath = cfg.FilePath
	}
	e.mu.Unlock()
}

func (e *Engine) reloadAndApply(st *stages) (bool, error) {
	e.mu.Lock()
	path := e.configPath
	e.mu.Unlock()
	if path == "" {
		return false, fmt.Errorf("engine: no config file path set")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return false, err
	}
	return e.applyNewConfig(cfg, st)
}

// answerStateless services the commands that only read or tweak shared
// state and never touch the lifecycle.
func (e *Engine) answerStateless(cmd Command) {
	switch c := cmd.(type) {
	case GetVersion:
		c.Reply <- Version
	case GetState:
		c.Reply <- e.State()
	case GetStopReason:
		c.Reply <- e.StopReason()
	case GetVolume:
		c.Reply <- e.params.TargetVolume(clampFader(c.Fader))
	case SetVolume:
		e.params.SetTargetVolume(clampFader(c.Fader), c.GainDB)
	case AdjustVolume:
		idx := clampFader(c.Fader)
		v := e.params.TargetVolume(idx) + c.DeltaDB
		e.params.SetTargetVolume(idx, v)
		c.Reply <- v
	case GetMute:
		c.Reply <- e.params.IsMute(clampFader(c.Fader))
	case SetMute:
		e.params.SetMute(clampFader(c.Fader), c.Mute)
	case ToggleMute:
		c.Reply <- e.params.ToggleMute(clampFader(c.Fader))
	case GetFaders:
		states := make([]FaderState, fader.Count)
		for i := range states {
			states[i] = FaderState{Volume: e.params.TargetVolume(i), Mute: e.params.IsMute(i)}
		}
		c.Reply <- states
	case GetSignalLevels:
		if e.levels != nil {
			c.Reply <- e.levels.query(c.Side, c.Metric, c.Range)
		} else {
			c.Reply <- nil
		}
	case ResetSignalPeaksSinceStart:
		if e.levels != nil {
			e.levels.resetPeaks()
		}
	case GetSignalRange:
		if e.levels != nil {
			c.Reply <- e.levels.signalRange()
		} else {
			c.Reply <- 0
		}
	case GetCaptureRate:
		c.Reply <- e.params.CaptureRate()
	case GetRateAdjust:
		if e.rate != nil {
			c.Reply <- e.rate.currentRatio()
		} else {
			c.Reply <- 1.0
		}
	case GetBufferLevel:
		c.Reply <- e.params.BufferLevel()
	case GetClippedSamples:
		c.Reply <- e.params.ClippedSamples()
	case ResetClippedSamples:
		e.params.ResetClippedSamples()
	case GetProcessingLoad:
		c.Reply <- e.params.ProcessingLoad()
	case GetConfig:
		e.mu.Lock()
		c.Reply <- e.cfg
		e.mu.Unlock()
	case GetPreviousConfig:
		e.mu.Lock()
		c.Reply <- e.prevCfg
		e.mu.Unlock()
	case GetConfigFilePath:
		e.mu.Lock()
		c.Reply <- e.configPath
		e.mu.Unlock()
	case SetConfigFilePath:
		e.mu.Lock()
		e.configPath = c.Path
		e.mu.Unlock()
		c.Reply <- nil
	case ValidateConfig:
		if c.Config == nil {
			c.Reply <- fmt.Errorf("engine: nil config")
		} else if err := c.Config.Validate(); err != nil {
			c.Reply <- err
		} else {
			c.Reply <- pipeline.Validate(c.Config)
		}
	}
}

func clampFader(idx int) int {
	if idx < 0 || idx >= fader.Count {
		return fader.Main
	}
	return idx
}
