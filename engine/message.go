package engine

import (
	"time"

	"github.com/cwbudde/algo-stream/config"
)

// statusKind enumerates stage-to-supervisor events.
type statusKind int

const (
	statusStarted statusKind = iota
	statusStopped
	statusUnderrun
	statusSilent
	statusResumed
	statusStalled
	statusBufferLevel
	statusFormatChange
)

// statusMessage travels from a stage to the supervisor. There is no
// ordering guarantee relative to audio chunks; timed payloads carry their
// own instant.
type statusMessage struct {
	kind    statusKind
	stage   string
	reason  StopReason
	err     error
	newRate int

	bufferLevel int
	at          time.Time
}

// Side selects capture or playback for level queries.
type Side int

const (
	SideCapture Side = iota
	SidePlayback
)

// Metric selects the level metric.
type Metric int

const (
	MetricRMS Metric = iota
	MetricPeak
)

// LevelRange selects the query window for level metrics.
type LevelRange int

const (
	// RangeLast returns the most recent chunk's value.
	RangeLast LevelRange = iota
	// RangeSinceLast averages (RMS) or maxes (peak) since the previous
	// query of the same kind.
	RangeSinceLast
	// RangeSinceStart returns the all-time peak (peak metric only).
	RangeSinceStart
)

// Command is a control request serviced by the supervisor. Commands that
// produce a value carry their own typed reply channel; the supervisor
// never blocks on a reply (channels must be buffered).
type Command interface{ isCommand() }

type GetVersion struct{ Reply chan string }

type GetState struct{ Reply chan State }

type GetStopReason struct{ Reply chan StopReason }

// GetVolume reads the target volume of a fader in dB.
type GetVolume struct {
	Fader int
	Reply chan float64
}

// SetVolume commands a fader volume in dB.
type SetVolume struct {
	Fader  int
	GainDB float64
}

// AdjustVolume changes a fader volume by a relative amount and returns the
// new value.
type AdjustVolume struct {
	Fader   int
	DeltaDB float64
	Reply   chan float64
}

type GetMute struct {
	Fader int
	Reply chan bool
}

type SetMute struct {
	Fader int
	Mute  bool
}

// ToggleMute flips a fader's mute and returns the new state.
type ToggleMute struct {
	Fader int
	Reply chan bool
}

// FaderState is the full state of one fader.
type FaderState struct {
	Volume float64
	Mute   bool
}

// GetFaders returns all five faders.
type GetFaders struct{ Reply chan []FaderState }

// GetSignalLevels queries per-channel levels.
type GetSignalLevels struct {
	Side   Side
	Metric Metric
	Range  LevelRange
	Reply  chan []float64
}

// ResetSignalPeaksSinceStart zeroes the all-time peaks.
type ResetSignalPeaksSinceStart struct{}

// GetSignalRange returns the max-minus-min range of the last capture
// chunk.
type GetSignalRange struct{ Reply chan float64 }

type GetCaptureRate struct{ Reply chan float64 }

type GetRateAdjust struct{ Reply chan float64 }

type GetBufferLevel struct{ Reply chan int }

type GetClippedSamples struct{ Reply chan uint64 }

type ResetClippedSamples struct{}

type GetProcessingLoad struct{ Reply chan float64 }

// GetConfig returns the active configuration snapshot.
type GetConfig struct{ Reply chan *config.Config }

// GetPreviousConfig returns the previously active configuration.
type GetPreviousConfig struct{ Reply chan *config.Config }

type GetConfigFilePath struct{ Reply chan string }

// SetConfigFilePath changes the path used by Reload without applying it.
type SetConfigFilePath struct {
	Path  string
	Reply chan error
}

// SetConfig applies a new configuration snapshot (hot reload when the
// device section is unchanged).
type SetConfig struct {
	Config *config.Config
	Reply  chan error
}

// Reload re-reads the configuration from the current file path.
type Reload struct{ Reply chan error }

// ValidateConfig checks a configuration without applying it.
type ValidateConfig struct {
	Config *config.Config
	Reply  chan error
}

// Stop halts the stages but keeps the engine alive for a new config.
type Stop struct{}

// Exit halts the stages and ends Run.
type Exit struct{}

func (GetVersion) isCommand()                 {}
func (GetState) isCommand()                   {}
func (GetStopReason) isCommand()              {}
func (GetVolume) isCommand()                  {}
func (SetVolume) isCommand()                  {}
func (AdjustVolume) isCommand()               {}
func (GetMute) isCommand()                    {}
func (SetMute) isCommand()                    {}
func (ToggleMute) isCommand()                 {}
func (GetFaders) isCommand()                  {}
func (GetSignalLevels) isCommand()            {}
func (ResetSignalPeaksSinceStart) isCommand() {}
func (GetSignalRange) isCommand()             {}
func (GetCaptureRate) isCommand()             {}
func (GetRateAdjust) isCommand()              {}
func (GetBufferLevel) isCommand()             {}
func (GetClippedSamples) isCommand()          {}
func (ResetClippedSamples) isCommand()        {}
func (GetProcessingLoad) isCommand()          {}
func (GetConfig) isCommand()                  {}
func (GetPreviousConfig) isCommand()          {}
func (GetConfigFilePath) isCommand()          {}
func (SetConfigFilePath) isCommand()          {}
func (SetConfig) isCommand()                  {}
func (Reload) isCommand()                     {}
func (ValidateConfig) isCommand()             {}
func (Stop) isCommand()                       {}
func (Exit) isCommand()                       {}
