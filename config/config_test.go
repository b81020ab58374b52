package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
title: "Crossover"
devices:
  samplerate: 48000
  chunksize: 1024
  enable_rate_adjust: true
  capture:
    type: File
    channels: 2
    format: S16LE
    filename: /tmp/input.raw
  playback:
    type: File
    channels: 4
    format: S32LE
    filename: /tmp/output.raw
mixers:
  to4ch:
    channels:
      in: 2
      out: 4
    mapping:
      - dest: 0
        sources:
          - channel: 0
            gain: 0
      - dest: 1
        sources:
          - channel: 1
            gain: 0
      - dest: 2
        sources:
          - channel: 0
            gain: 0
      - dest: 3
        sources:
          - channel: 1
            gain: 0
filters:
  lowpass:
    type: BiquadCombo
    parameters:
      type: ButterworthLowpass
      freq: 2000
      order: 4
  highpass:
    type: BiquadCombo
    parameters:
      type: ButterworthHighpass
      freq: 2000
      order: 4
pipeline:
  - type: Mixer
    name: to4ch
  - type: Filter
    channels: [0, 1]
    names: [lowpass]
  - type: Filter
    channels: [2, 3]
    names: [highpass]
`

func TestParseAndDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Crossover", *cfg.Title)
	assert.Equal(t, 48000, cfg.Devices.Samplerate)
	// Defaults are filled during normalization.
	require.NotNil(t, cfg.Devices.Queuelimit)
	assert.Equal(t, DefaultQueuelimit, *cfg.Devices.Queuelimit)
	require.NotNil(t, cfg.Devices.TargetLevel)
	assert.Equal(t, 1024, *cfg.Devices.TargetLevel)
	require.NotNil(t, cfg.Devices.AdjustPeriod)
	assert.Equal(t, DefaultAdjustPeriod, *cfg.Devices.AdjustPeriod)
	assert.Equal(t, "dB", cfg.Mixers["to4ch"].Mapping[0].Sources[0].Scale)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	first, err := cfg.Marshal()
	require.NoError(t, err)

	again, err := Parse(first)
	require.NoError(t, err)
	second, err := again.Marshal()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "normalized form must be stable")
}

func TestValidatePipelineChannels(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	// Filter step on a channel that does not exist after the mixer.
	cfg.Pipeline[1].Channels = []int{7}
	assert.Error(t, cfg.Validate())
}

func TestValidateUnknownReferences(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	cfg.Pipeline[1].Names = []string{"missing"}
	assert.Error(t, cfg.Validate())

	cfg, err = Parse([]byte(sampleConfig))
	require.NoError(t, err)
	cfg.Pipeline[0].Name = "missing"
	assert.Error(t, cfg.Validate())
}

func TestValidateEndChannelCount(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	cfg.Devices.Playback.Channels = 2
	assert.Error(t, cfg.Validate(), "pipeline ends with 4 channels, playback has 2")
}

func TestValidateTargetLevel(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	bad := 3000
	cfg.Devices.TargetLevel = &bad
	assert.Error(t, cfg.Validate())
}

func TestValidateNumericRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dither bits", func(c *Config) {
			c.Filters["bad"] = Filter{Type: "Dither", Parameters: FilterParams{Type: "Flat", Bits: 1}}
		}},
		{"negative delay", func(c *Config) {
			c.Filters["bad"] = Filter{Type: "Delay", Parameters: FilterParams{Delay: -1.0}}
		}},
		{"graphic eq gain", func(c *Config) {
			c.Filters["bad"] = Filter{Type: "BiquadCombo", Parameters: FilterParams{Type: "GraphicEqualizer", Gains: []float64{50.0}}}
		}},
		{"loudness boost", func(c *Config) {
			boost := 30.0
			c.Filters["bad"] = Filter{Type: "Loudness", Parameters: FilterParams{ReferenceLevel: -20.0, HighBoost: &boost}}
		}},
		{"odd LR order", func(c *Config) {
			c.Filters["bad"] = Filter{Type: "BiquadCombo", Parameters: FilterParams{Type: "LinkwitzRileyLowpass", Freq: 1000, Order: 3}}
		}},
		{"freq above nyquist", func(c *Config) {
			c.Filters["bad"] = Filter{Type: "Biquad", Parameters: FilterParams{Type: "Lowpass", Freq: 30000}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Parse([]byte(sampleConfig))
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTokenSubstitution(t *testing.T) {
	doc := `
devices:
  samplerate: 44100
  chunksize: 512
  capture:
    type: File
    channels: 2
    format: S16LE
    filename: /tmp/in.raw
  playback:
    type: File
    channels: 2
    format: S16LE
    filename: /tmp/out.raw
filters:
  ir_$samplerate$:
    type: Conv
    parameters:
      type: Raw
      filename: /tmp/ir_$samplerate$_$channels$.txt
      format: TEXT
pipeline:
  - type: Filter
    names: [ir_$samplerate$]
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	filt, ok := cfg.Filters["ir_44100"]
	require.True(t, ok, "filter name token must be substituted")
	assert.Equal(t, "/tmp/ir_44100_2.txt", filt.Parameters.Filename)
	assert.Equal(t, "ir_44100", cfg.Pipeline[0].Names[0])
}

func TestDiffClassification(t *testing.T) {
	base, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	same, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, Diff(base, same).Kind)

	// Scalar parameter change.
	scalar, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	filt := scalar.Filters["lowpass"]
	filt.Parameters.Freq = 2100
	scalar.Filters["lowpass"] = filt
	change := Diff(base, scalar)
	assert.Equal(t, ChangeFilterParams, change.Kind)
	assert.Equal(t, []string{"lowpass"}, change.Filters)

	// Pipeline change.
	pipe, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	pipe.Pipeline = pipe.Pipeline[:2]
	assert.Equal(t, ChangePipeline, Diff(base, pipe).Kind)

	// Device change.
	dev, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	dev.Devices.Chunksize = 2048
	assert.Equal(t, ChangeDevices, Diff(base, dev).Kind)
}

func TestValidateResampler(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	cfg.Devices.Resampler = &Resampler{Type: "AsyncSinc", Profile: "Balanced"}
	assert.NoError(t, cfg.Validate())

	cutoff := 1.5
	cfg.Devices.Resampler = &Resampler{Type: "AsyncSinc", SincLen: 64, OversamplingFactor: 128, Interpolation: "Linear", Window: "Hann", FCutoff: &cutoff}
	assert.Error(t, cfg.Validate())

	cfg.Devices.Resampler = &Resampler{Type: "AsyncPoly", Interpolation: "Cubic"}
	assert.NoError(t, cfg.Validate())

	cfg.Devices.Resampler = &Resampler{Type: "Warp"}
	assert.Error(t, cfg.Validate())
}

func TestCaptureRateRequiresResampler(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	other := 44100
	cfg.Devices.CaptureSamplerate = &other
	assert.Error(t, cfg.Validate())

	cfg.Devices.Resampler = &Resampler{Type: "Synchronous"}
	assert.NoError(t, cfg.Validate())
}
