// Package fader holds the shared state between the supervisor and the
// processing thread: the five volume faders, the clip counter and the
// processing load. All fields are atomics so the audio path never takes a
// lock.
package fader

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Fader indices. Volume and Loudness filters subscribe to one of these.
const (
	Main = iota
	Aux1
	Aux2
	Aux3
	Aux4
	Count
)

var faderNames = [Count]string{"Main", "Aux1", "Aux2", "Aux3", "Aux4"}

// Index resolves a fader name; the empty string means Main.
func Index(name string) (int, error) {
	if name == "" {
		return Main, nil
	}
	for i, n := range faderNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("fader: unknown fader %q", name)
}

// Name returns the name of a fader index.
func Name(index int) string {
	if index < 0 || index >= Count {
		return fmt.Sprintf("fader%d", index)
	}
	return faderNames[index]
}

type faderState struct {
	target  atomicFloat // target volume in dB, set by control commands
	current atomicFloat // ramped volume in dB, maintained by the Volume filter
	mute    atomic.Bool
}

// Params is the shared state block. The zero value has all faders at 0 dB,
// unmuted.
type Params struct {
	faders         [Count]faderState
	clippedSamples atomic.Uint64
	processingLoad atomicFloat
	captureRate    atomicFloat
	bufferLevel    atomic.Int64
}

// New returns a Params block with all faders at 0 dB.
func New() *Params {
	return &Params{}
}

// TargetVolume returns the commanded volume of a fader in dB.
func (p *Params) TargetVolume(fader int) float64 {
	return p.faders[fader].target.Load()
}

// SetTargetVolume commands a new volume. The Volume filter ramps the
// current volume toward it.
func (p *Params) SetTargetVolume(fader int, gainDB float64) {
	p.faders[fader].target.Store(gainDB)
}

// CurrentVolume returns the volume currently applied, which lags the
// target while a ramp is in progress.
func (p *Params) CurrentVolume(fader int) float64 {
	return p.faders[fader].current.Load()
}

// SetCurrentVolume records the ramped volume. Called by the Volume filter.
func (p *Params) SetCurrentVolume(fader int, gainDB float64) {
	p.faders[fader].current.Store(gainDB)
}

// IsMute returns the mute state of a fader.
func (p *Params) IsMute(fader int) bool {
	return p.faders[fader].mute.Load()
}

// SetMute sets the mute state of a fader.
func (p *Params) SetMute(fader int, mute bool) {
	p.faders[fader].mute.Store(mute)
}

// ToggleMute flips the mute state and returns the new value.
func (p *Params) ToggleMute(fader int) bool {
	state := &p.faders[fader].mute
	for {
		old := state.Load()
		if state.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// AddClipped adds to the global clipped-sample counter.
func (p *Params) AddClipped(n int) {
	if n > 0 {
		p.clippedSamples.Add(uint64(n))
	}
}

// ClippedSamples returns the clip count since the last reset.
func (p *Params) ClippedSamples() uint64 {
	return p.clippedSamples.Load()
}

// ResetClippedSamples zeroes the clip counter.
func (p *Params) ResetClippedSamples() {
	p.clippedSamples.Store(0)
}

// SetProcessingLoad records the most recent chunk processing load in
// percent of real time.
func (p *Params) SetProcessingLoad(load float64) {
	p.processingLoad.Store(load)
}

// ProcessingLoad returns the most recent processing load.
func (p *Params) ProcessingLoad() float64 {
	return p.processingLoad.Load()
}

// SetCaptureRate records the measured capture sample rate.
func (p *Params) SetCaptureRate(rate float64) {
	p.captureRate.Store(rate)
}

// CaptureRate returns the measured capture sample rate.
func (p *Params) CaptureRate() float64 {
	return p.captureRate.Load()
}

// SetBufferLevel records the last observed playback buffer level in frames.
func (p *Params) SetBufferLevel(level int) {
	p.bufferLevel.Store(int64(level))
}

// BufferLevel returns the last observed playback buffer level.
func (p *Params) BufferLevel() int {
	return int(p.bufferLevel.Load())
}

// atomicFloat is a float64 stored in a uint64 cell.
type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}
