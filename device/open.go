package device

import (
	"fmt"

	"github.com/cwbudde/algo-stream/audio"
	"github.com/cwbudde/algo-stream/config"
)

// NewCapture builds a capture device from its configuration. samplerate is
// the capture-side rate, chunksize the capture-side chunk size.
func NewCapture(conf config.Device, samplerate, chunksize int) (CaptureDevice, error) {
	switch conf.Type {
	case "File", "Stdin":
		format, err := audio.ParseSampleFormat(conf.Format)
		if err != nil {
			return nil, err
		}
		path := conf.Filename
		if conf.Type == "Stdin" {
			path = ""
		}
		return NewFileCapture(path, format, conf.Channels, samplerate, chunksize, conf.SkipBytes, conf.ReadBytes), nil
	case "SignalGenerator":
		var kind SignalKind
		switch conf.Signal {
		case "Sine":
			kind = SignalSine
		case "Sweep":
			kind = SignalSweep
		case "Noise":
			kind = SignalNoise
		default:
			return nil, fmt.Errorf("device: unknown signal type %q", conf.Signal)
		}
		return NewGenerator(kind, conf.Freq, conf.FreqEnd, conf.Amplitude, conf.Channels, samplerate), nil
	}
	return nil, fmt.Errorf("device: unknown capture type %q", conf.Type)
}

// NewPlayback builds a playback device from its configuration.
func NewPlayback(conf config.Device, samplerate, chunksize int) (PlaybackDevice, error) {
	switch conf.Type {
	case "File", "Stdout":
		format, err := audio.ParseSampleFormat(conf.Format)
		if err != nil {
			return nil, err
		}
		path := conf.Filename
		if conf.Type == "Stdout" {
			path = ""
		}
		return NewFilePlayback(path, format, conf.Channels, samplerate, chunksize, conf.WavHeader), nil
	}
	return nil, fmt.Errorf("device: unknown playback type %q", conf.Type)
}
