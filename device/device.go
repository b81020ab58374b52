// Package device defines the capture and playback endpoints the engine
// talks to, and provides the file, pipe and signal generator
// implementations. Hardware backends plug in through the same interfaces.
package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/algo-stream/audio"
)

// ErrDone signals a clean end of stream (end of file on a capture device).
var ErrDone = errors.New("device: end of stream")

// ErrNotSupported is returned by optional capabilities a device lacks.
var ErrNotSupported = errors.New("device: not supported")

// ErrorKind classifies device failures.
type ErrorKind int

const (
	// Retryable errors are transient; the stage retries with backoff.
	Retryable ErrorKind = iota
	// Fatal errors stop the engine.
	Fatal
	// FormatChange means the device reported a new sample rate; the
	// engine stops so the orchestrator can relaunch with a new config.
	FormatChange
)

// Error wraps a device failure with its classification.
type Error struct {
	Kind    ErrorKind
	NewRate int // set for FormatChange
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case FormatChange:
		return fmt.Sprintf("device: format change to %d Hz", e.NewRate)
	default:
		return fmt.Sprintf("device: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies an error: a *Error carries its own kind and ok is true;
// anything else, ErrDone included, is reported as Fatal with ok false.
func KindOf(err error) (ErrorKind, bool) {
	var devErr *Error
	if errors.As(err, &devErr) {
		return devErr.Kind, true
	}
	return Fatal, false
}

// CaptureDevice produces chunks of float samples. ReadChunk blocks until a
// full chunk is available (or the stream ends).
type CaptureDevice interface {
	// Open prepares the device. Called once before the first ReadChunk.
	Open() error

	// ReadChunk fills dst with up to dst.Frames frames, setting
	// dst.ValidFrames. Returns ErrDone at the end of the stream, or a
	// *Error describing the failure.
	ReadChunk(dst *audio.Chunk) error

	SampleRate() int
	Channels() int
	Close() error
}

// RateTunable is implemented by capture devices whose clock can be
// adjusted, serving rate-adjust without a resampler.
type RateTunable interface {
	// SetRate adjusts the virtual clock by the relative factor adjust
	// (1.0 is nominal).
	SetRate(adjust float64) error
}

// PlaybackDevice consumes chunks. WriteChunk blocks until the chunk has
// been handed to the sink.
type PlaybackDevice interface {
	// Open prepares the device. Called once before the first WriteChunk.
	Open() error

	// WriteChunk converts and writes one chunk, returning how many
	// samples clipped during conversion.
	WriteChunk(chunk *audio.Chunk) (clipped int, err error)

	SampleRate() int
	Channels() int
	Close() error
}

// BufferLevelReporter is implemented by playback devices that can observe
// their remaining buffer, enabling rate adjust.
type BufferLevelReporter interface {
	// BufferLevel returns the buffered frame count and the instant it was
	// observed.
	BufferLevel() (frames int, at time.Time, ok bool)
}

func retryable(err error) *Error {
	return &Error{Kind: Retryable, Err: err}
}

func fatal(err error) *Error {
	return &Error{Kind: Fatal, Err: err}
}
