// Package config defines the configuration document of the processing
// engine: devices, filters, mixers, processors and the pipeline, parsed
// from YAML into an immutable snapshot.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is one complete configuration snapshot.
type Config struct {
	Title       *string `yaml:"title,omitempty"`
	Description *string `yaml:"description,omitempty"`

	Devices    Devices              `yaml:"devices"`
	Mixers     map[string]Mixer     `yaml:"mixers,omitempty"`
	Filters    map[string]Filter    `yaml:"filters,omitempty"`
	Processors map[string]Processor `yaml:"processors,omitempty"`
	Pipeline   []PipelineStep       `yaml:"pipeline,omitempty"`

	// FilePath is the path the config was loaded from, used to resolve
	// relative coefficient paths. Not part of the document.
	FilePath string `yaml:"-"`
}

// Devices is the device and engine tuning section.
type Devices struct {
	Samplerate int `yaml:"samplerate"`
	Chunksize  int `yaml:"chunksize"`

	Queuelimit       *int     `yaml:"queuelimit,omitempty"`
	TargetLevel      *int     `yaml:"target_level,omitempty"`
	AdjustPeriod     *float64 `yaml:"adjust_period,omitempty"`
	EnableRateAdjust bool     `yaml:"enable_rate_adjust,omitempty"`
	SilenceThreshold *float64 `yaml:"silence_threshold,omitempty"`
	SilenceTimeout   *float64 `yaml:"silence_timeout,omitempty"`
	RampTime         *float64 `yaml:"ramp_time,omitempty"`
	VolumeLimit      *float64 `yaml:"volume_limit,omitempty"`
	Multithreaded    bool     `yaml:"multithreaded,omitempty"`
	Workers          *int     `yaml:"workers,omitempty"`

	CaptureSamplerate *int       `yaml:"capture_samplerate,omitempty"`
	Resampler         *Resampler `yaml:"resampler,omitempty"`

	Capture  Device `yaml:"capture"`
	Playback Device `yaml:"playback"`
}

// Device describes one capture or playback endpoint.
type Device struct {
	Type     string `yaml:"type"`
	Channels int    `yaml:"channels"`
	Format   string `yaml:"format,omitempty"`
	Filename string `yaml:"filename,omitempty"`

	// File devices.
	SkipBytes int  `yaml:"skip_bytes,omitempty"`
	ReadBytes int  `yaml:"read_bytes,omitempty"`
	WavHeader bool `yaml:"wav_header,omitempty"`

	// Signal generator capture device.
	Signal    string  `yaml:"signal,omitempty"`
	Freq      float64 `yaml:"freq,omitempty"`
	FreqEnd   float64 `yaml:"freq_end,omitempty"`
	Amplitude float64 `yaml:"amplitude,omitempty"`
}

// Resampler selects and tunes the resampler.
type Resampler struct {
	Type string `yaml:"type"`

	// AsyncSinc.
	Profile            string   `yaml:"profile,omitempty"`
	SincLen            int      `yaml:"sinc_len,omitempty"`
	OversamplingFactor int      `yaml:"oversampling_factor,omitempty"`
	Interpolation      string   `yaml:"interpolation,omitempty"`
	Window             string   `yaml:"window,omitempty"`
	FCutoff            *float64 `yaml:"f_cutoff,omitempty"`
}

// Mixer is a many-to-many channel mapping.
type Mixer struct {
	Description *string        `yaml:"description,omitempty"`
	Channels    MixerChannels  `yaml:"channels"`
	Mapping     []MixerMapping `yaml:"mapping"`
}

type MixerChannels struct {
	In  int `yaml:"in"`
	Out int `yaml:"out"`
}

type MixerMapping struct {
	Dest    int           `yaml:"dest"`
	Sources []MixerSource `yaml:"sources"`
	Mute    bool          `yaml:"mute,omitempty"`
}

type MixerSource struct {
	Channel  int     `yaml:"channel"`
	Gain     float64 `yaml:"gain"`
	Inverted bool    `yaml:"inverted,omitempty"`
	Mute     bool    `yaml:"mute,omitempty"`
	Scale    string  `yaml:"scale,omitempty"`
}

// Filter is one named filter definition.
type Filter struct {
	Type        string       `yaml:"type"`
	Description *string      `yaml:"description,omitempty"`
	Parameters  FilterParams `yaml:"parameters"`
}

// FilterParams carries the parameters of all filter types; each type reads
// the fields it needs. The inner Type field selects the subtype (the biquad
// response, the conv source kind, the dither flavor).
type FilterParams struct {
	Type string `yaml:"type,omitempty"`

	// Biquad designs.
	Freq      float64  `yaml:"freq,omitempty"`
	Q         *float64 `yaml:"q,omitempty"`
	Gain      *float64 `yaml:"gain,omitempty"`
	Slope     *float64 `yaml:"slope,omitempty"`
	Bandwidth *float64 `yaml:"bandwidth,omitempty"`

	// Free biquad.
	A1 float64 `yaml:"a1,omitempty"`
	A2 float64 `yaml:"a2,omitempty"`
	B0 float64 `yaml:"b0,omitempty"`
	B1 float64 `yaml:"b1,omitempty"`
	B2 float64 `yaml:"b2,omitempty"`

	// GeneralNotch.
	FreqZ         float64 `yaml:"freq_z,omitempty"`
	FreqP         float64 `yaml:"freq_p,omitempty"`
	QP            float64 `yaml:"q_p,omitempty"`
	NormalizeAtDC bool    `yaml:"normalize_at_dc,omitempty"`

	// LinkwitzTransform.
	FreqAct    float64 `yaml:"freq_act,omitempty"`
	QAct       float64 `yaml:"q_act,omitempty"`
	FreqTarget float64 `yaml:"freq_target,omitempty"`
	QTarget    float64 `yaml:"q_target,omitempty"`

	// Combos.
	Order   int       `yaml:"order,omitempty"`
	FreqMin float64   `yaml:"freq_min,omitempty"`
	FreqMax float64   `yaml:"freq_max,omitempty"`
	Gains   []float64 `yaml:"gains,omitempty"`

	// FivePointPeq.
	Fls float64 `yaml:"fls,omitempty"`
	Qls float64 `yaml:"qls,omitempty"`
	Gls float64 `yaml:"gls,omitempty"`
	Fp1 float64 `yaml:"fp1,omitempty"`
	Qp1 float64 `yaml:"qp1,omitempty"`
	Gp1 float64 `yaml:"gp1,omitempty"`
	Fp2 float64 `yaml:"fp2,omitempty"`
	Qp2 float64 `yaml:"qp2,omitempty"`
	Gp2 float64 `yaml:"gp2,omitempty"`
	Fp3 float64 `yaml:"fp3,omitempty"`
	Qp3 float64 `yaml:"qp3,omitempty"`
	Gp3 float64 `yaml:"gp3,omitempty"`
	Fhs float64 `yaml:"fhs,omitempty"`
	Qhs float64 `yaml:"qhs,omitempty"`
	Ghs float64 `yaml:"ghs,omitempty"`

	// Conv.
	Filename       string    `yaml:"filename,omitempty"`
	Channel        int       `yaml:"channel,omitempty"`
	Values         []float64 `yaml:"values,omitempty"`
	Length         int       `yaml:"length,omitempty"`
	Format         string    `yaml:"format,omitempty"`
	SkipBytesLines int       `yaml:"skip_bytes_lines,omitempty"`
	ReadBytesLines int       `yaml:"read_bytes_lines,omitempty"`

	// Gain, Volume, Loudness.
	Inverted       bool     `yaml:"inverted,omitempty"`
	Mute           bool     `yaml:"mute,omitempty"`
	Scale          string   `yaml:"scale,omitempty"`
	Fader          string   `yaml:"fader,omitempty"`
	RampTime       *float64 `yaml:"ramp_time,omitempty"`
	ReferenceLevel float64  `yaml:"reference_level,omitempty"`
	HighBoost      *float64 `yaml:"high_boost,omitempty"`
	LowBoost       *float64 `yaml:"low_boost,omitempty"`
	AttenuateMid   bool     `yaml:"attenuate_mid,omitempty"`

	// Delay.
	Delay     float64 `yaml:"delay,omitempty"`
	Unit      string  `yaml:"unit,omitempty"`
	Subsample bool    `yaml:"subsample,omitempty"`

	// Dither.
	Bits      int      `yaml:"bits,omitempty"`
	Amplitude *float64 `yaml:"amplitude,omitempty"`

	// Limiter.
	ClipLimit float64 `yaml:"clip_limit,omitempty"`
	SoftClip  bool    `yaml:"soft_clip,omitempty"`
}

// Processor is one named processor definition.
type Processor struct {
	Type        string          `yaml:"type"`
	Description *string         `yaml:"description,omitempty"`
	Parameters  ProcessorParams `yaml:"parameters"`
}

// ProcessorParams carries the parameters of all processor types.
type ProcessorParams struct {
	Channels        int     `yaml:"channels"`
	Attack          float64 `yaml:"attack,omitempty"`
	Release         float64 `yaml:"release,omitempty"`
	Threshold       float64 `yaml:"threshold,omitempty"`
	Factor          float64 `yaml:"factor,omitempty"`
	MakeupGain      float64 `yaml:"makeup_gain,omitempty"`
	Attenuation     float64 `yaml:"attenuation,omitempty"`
	MonitorChannels []int   `yaml:"monitor_channels,omitempty"`
	ProcessChannels []int   `yaml:"process_channels,omitempty"`
	SoftClip        bool    `yaml:"soft_clip,omitempty"`
	ClipLimit       float64 `yaml:"clip_limit,omitempty"`
}

// PipelineStep is one entry of the ordered pipeline.
type PipelineStep struct {
	Type        string  `yaml:"type"`
	Description *string `yaml:"description,omitempty"`
	Bypassed    bool    `yaml:"bypassed,omitempty"`

	// Filter steps.
	Channels []int    `yaml:"channels,omitempty"`
	Names    []string `yaml:"names,omitempty"`

	// Mixer and Processor steps.
	Name string `yaml:"name,omitempty"`
}

// Load reads, parses, substitutes tokens and fills defaults. The result is
// not yet validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(fmt.Sprintf("could not read config file: %v", err))
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		cfg.FilePath = abs
	} else {
		cfg.FilePath = path
	}
	return cfg, nil
}

// Parse parses a YAML document, substitutes tokens and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, newError(fmt.Sprintf("invalid config: %v", err))
	}
	cfg.substituteTokens()
	cfg.fillDefaults()
	return &cfg, nil
}

// Marshal serializes the normalized configuration. Serializing, parsing and
// serializing again yields the same document.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return out, nil
}

// Dir returns the directory of the config file, used to resolve relative
// coefficient paths.
func (c *Config) Dir() string {
	if c.FilePath == "" {
		return ""
	}
	return filepath.Dir(c.FilePath)
}
