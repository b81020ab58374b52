// Package engine wires the capture, processing and playback stages
// together and supervises them: lifecycle, hot reload, rate adjust and the
// control command surface.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
	"github.com/cwbudde/algo-stream/device"
	"github.com/cwbudde/algo-stream/dsp/resample"
	"github.com/cwbudde/algo-stream/fader"
	"github.com/cwbudde/algo-stream/pipeline"
)

// Version of the engine, reported by GetVersion.
const Version = "0.9.2"

// statusQueueLen bounds the supervisor's status queue; when full the
// oldest event is dropped.
const statusQueueLen = 64

// CaptureFactory and PlaybackFactory build the devices for a
// configuration. Tests substitute mocks here.
type CaptureFactory func(cfg *config.Config) (device.CaptureDevice, error)

type PlaybackFactory func(cfg *config.Config) (device.PlaybackDevice, error)

// Options configures an Engine.
type Options struct {
	// Config is the initial configuration; nil starts Inactive.
	Config *config.Config

	// Capture and Playback override the device construction.
	Capture  CaptureFactory
	Playback PlaybackFactory

	// ControlQueueLen bounds the control channel (default 16).
	ControlQueueLen int

	Log *logrus.Logger
}

// Engine is the supervisor owning the configuration snapshot, the fader
// block and the stage lifecycle.
type Engine struct {
	params  *fader.Params
	control chan Command

	captureFactory  CaptureFactory
	playbackFactory PlaybackFactory

	mu         sync.Mutex
	state      State
	stopReason StopReason
	newRate    int
	cfg        *config.Config
	prevCfg    *config.Config
	configPath string

	levels *levelStore
	rate   *rateController

	log *logrus.Entry
}

// New creates an engine. Run must be called for anything to happen.
func New(opts Options) *Engine {
	logger := opts.Log
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	controlLen := opts.ControlQueueLen
	if controlLen <= 0 {
		controlLen = 16
	}
	e := &Engine{
		params:          fader.New(),
		control:         make(chan Command, controlLen),
		captureFactory:  opts.Capture,
		playbackFactory: opts.Playback,
		state:           Inactive,
		cfg:             opts.Config,
		log:             logger.WithField("component", "engine"),
	}
	if e.captureFactory == nil {
		e.captureFactory = func(cfg *config.Config) (device.CaptureDevice, error) {
			return device.NewCapture(cfg.Devices.Capture, cfg.CaptureRate(), captureChunksize(cfg))
		}
	}
	if e.playbackFactory == nil {
		e.playbackFactory = func(cfg *config.Config) (device.PlaybackDevice, error) {
			return device.NewPlayback(cfg.Devices.Playback, cfg.Devices.Samplerate, cfg.Devices.Chunksize)
		}
	}
	if opts.Config != nil {
		e.configPath = opts.Config.FilePath
	}
	return e
}

// captureChunksize is the number of frames read per device call. With a
// resampler the capture side reads at its own rate, scaled so one read
// produces roughly one processing chunk.
func captureChunksize(cfg *config.Config) int {
	if cfg.CaptureRate() == cfg.Devices.Samplerate {
		return cfg.Devices.Chunksize
	}
	scaled := cfg.Devices.Chunksize * cfg.CaptureRate() / cfg.Devices.Samplerate
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// Control returns the channel control commands are sent on.
func (e *Engine) Control() chan<- Command {
	return e.control
}

// Params exposes the shared fader block.
func (e *Engine) Params() *fader.Params {
	return e.params
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// StopReason returns the reason of the last stop.
func (e *Engine) StopReason() StopReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopReason
}

// NewRate returns the rate reported by the device when the engine stopped
// with a format-change reason.
func (e *Engine) NewRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.newRate
}

// Run drives the engine until Exit. The return value is the process exit
// code.
func (e *Engine) Run() int {
	for {
		cfg := e.currentConfig()
		if cfg == nil {
			e.setState(Inactive)
			if quit := e.waitForConfig(); quit {
				return ExitOK
			}
			continue
		}
		next, code := e.runOnce(cfg)
		if next == exitQuit {
			return code
		}
	}
}

func (e *Engine) currentConfig() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// waitForConfig services control commands until a configuration arrives.
// Returns true on Exit.
func (e *Engine) waitForConfig() bool {
	for cmd := range e.control {
		switch c := cmd.(type) {
		case Exit:
			return true
		case SetConfig:
			err := e.adoptConfig(c.Config)
			c.Reply <- err
			if err == nil {
				return false
			}
		case Reload:
			err := e.reloadFromFile()
			c.Reply <- err
			if err == nil && e.currentConfig() != nil {
				return false
			}
		default:
			e.answerStateless(cmd)
		}
	}
	return true
}

// adoptConfig validates and installs a new snapshot.
func (e *Engine) adoptConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("engine: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := pipeline.Validate(cfg); err != nil {
		return err
	}
	e.mu.Lock()
	e.prevCfg = e.cfg
	e.cfg = cfg
	if cfg.FilePath != "" {
		e.configPath = cfg.FilePath
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) reloadFromFile() error {
	e.mu.Lock()
	path := e.configPath
	e.mu.Unlock()
	if path == "" {
		return fmt.Errorf("engine: no config file path set")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return e.adoptConfig(cfg)
}

// stages bundles everything belonging to one launched configuration.
type stages struct {
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rateCh   chan float64
	reloadCh chan reloadRequest
	status   chan statusMessage
}

func (s *stages) shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// runOnce launches the three stages for cfg and supervises them until they
// stop. Returns whether to restart with a (possibly new) config or to
// quit, plus the exit code for the quit case.
func (e *Engine) runOnce(cfg *config.Config) (exitState, int) {
	e.setState(Starting)
	e.mu.Lock()
	e.stopReason = ReasonNone
	e.mu.Unlock()

	log := e.log.WithField("samplerate", cfg.Devices.Samplerate)
	log.Info("starting stages")

	captureDev, err := e.captureFactory(cfg)
	if err != nil {
		log.WithError(err).Error("could not create capture device")
		return exitQuit, ExitBadConfig
	}
	playbackDev, err := e.playbackFactory(cfg)
	if err != nil {
		log.WithError(err).Error("could not create playback device")
		return exitQuit, ExitBadConfig
	}

	pipe, err := pipeline.New(cfg, e.params)
	if err != nil {
		log.WithError(err).Error("could not build pipeline")
		return exitQuit, ExitBadConfig
	}

	resampler, err := buildResampler(cfg)
	if err != nil {
		log.WithError(err).Error("could not build resampler")
		return exitQuit, ExitBadConfig
	}

	e.levels = newLevelStore(cfg.Devices.Capture.Channels, cfg.Devices.Playback.Channels)
	e.rate = newRateController(*cfg.Devices.TargetLevel, cfg.Devices.Chunksize, cfg.Devices.Samplerate, *cfg.Devices.AdjustPeriod)

	queueCap := 2 * *cfg.Devices.Queuelimit
	qCP := newChunkQueue(queueCap)
	qPP := newChunkQueue(queueCap)

	st := &stages{
		stop:     make(chan struct{}),
		rateCh:   make(chan float64, 1),
		reloadCh: make(chan reloadRequest, 1),
		status:   make(chan statusMessage, statusQueueLen),
	}

	chunkDuration := time.Duration(float64(time.Second) * float64(cfg.Devices.Chunksize) / float64(cfg.Devices.Samplerate))

	capture := &captureStage{
		dev:              captureDev,
		resampler:        resampler,
		chunksize:        cfg.Devices.Chunksize,
		captureChunksize: captureChunksize(cfg),
		channels:         cfg.Devices.Capture.Channels,
		queue:            qCP,
		rateCh:           st.rateCh,
		stop:             st.stop,
		status:           st.status,
		silence:          audio.NewSilenceCounter(*cfg.Devices.SilenceThreshold, *cfg.Devices.SilenceTimeout, cfg.CaptureRate(), captureChunksize(cfg)),
		levels:           e.levels,
		params:           e.params,
		used:             pipe.UsedCaptureChannels(),
		log:              e.log.WithField("stage", "capture"),
	}
	processing := &processingStage{
		pipe:          pipe,
		inQueue:       qCP,
		outQueue:      qPP,
		reloadCh:      st.reloadCh,
		stop:          st.stop,
		status:        st.status,
		chunkDuration: chunkDuration,
		params:        e.params,
		log:           e.log.WithField("stage", "processing"),
	}
	playback := &playbackStage{
		dev:           playbackDev,
		queue:         qPP,
		stop:          st.stop,
		status:        st.status,
		chunkDuration: chunkDuration,
		adjustPeriod:  time.Duration(*cfg.Devices.AdjustPeriod * float64(time.Second)),
		params:        e.params,
		levels:        e.levels,
		log:           e.log.WithField("stage", "playback"),
	}

	st.wg.Add(3)
	go func() { defer st.wg.Done(); capture.run() }()
	go func() { defer st.wg.Done(); processing.run() }()
	go func() { defer st.wg.Done(); playback.run() }()

	next, code := e.supervise(cfg, st)

	st.shutdown()
	st.wg.Wait()
	e.setState(Stopped)
	log.WithField("reason", e.StopReason().String()).Info("stages stopped")
	return next, code
}

// buildResampler creates the configured resampler, or nil when rates
// match and none is configured.
func buildResampler(cfg *config.Config) (resample.Resampler, error) {
	conf := cfg.Devices.Resampler
	if conf == nil {
		return nil, nil
	}
	rateIn := cfg.CaptureRate()
	rateOut := cfg.Devices.Samplerate
	channels := cfg.Devices.Capture.Channels
	switch conf.Type {
	case "Synchronous":
		sync, err := resample.NewSync(rateIn, rateOut, channels)
		if err != nil {
			return nil, err
		}
		return sync, nil
	case "AsyncSinc":
		var params resample.SincParameters
		if conf.Profile != "" {
			var err error
			params, err = resample.Profile(conf.Profile)
			if err != nil {
				return nil, err
			}
		} else {
			interp, _ := resample.ParseSincInterpolation(conf.Interpolation)
			window, _ := resample.ParseWindow(conf.Window)
			params = resample.SincParameters{
				SincLen:            conf.SincLen,
				OversamplingFactor: conf.OversamplingFactor,
				Interpolation:      interp,
				Window:             window,
			}
			if conf.FCutoff != nil {
				params.FCutoff = *conf.FCutoff
			}
		}
		sinc, err := resample.NewAsyncSinc(params, rateIn, rateOut, channels)
		if err != nil {
			return nil, err
		}
		return sinc, nil
	case "AsyncPoly":
		interp, ok := resample.ParsePolyInterpolation(conf.Interpolation)
		if !ok {
			return nil, fmt.Errorf("engine: unknown poly interpolation %q", conf.Interpolation)
		}
		poly, err := resample.NewAsyncPoly(interp, rateIn, rateOut, channels)
		if err != nil {
			return nil, err
		}
		return poly, nil
	}
	return nil, fmt.Errorf("engine: unknown resampler type %q", conf.Type)
}

// sendStatus enqueues a status message, dropping the oldest event when the
// queue is full so stages never block on diagnostics.
func sendStatus(ch chan statusMessage, msg statusMessage) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
