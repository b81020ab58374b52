package fader

import (
	"sync"
	"testing"
)

func TestIndex(t *testing.T) {
	for name, want := range map[string]int{"": Main, "Main": Main, "Aux1": Aux1, "Aux4": Aux4} {
		got, err := Index(name)
		if err != nil || got != want {
			t.Errorf("Index(%q) = %d, %v; want %d", name, got, err, want)
		}
	}
	if _, err := Index("Aux5"); err == nil {
		t.Error("expected error for unknown fader")
	}
}

func TestVolumeAndMute(t *testing.T) {
	p := New()
	if v := p.TargetVolume(Main); v != 0 {
		t.Errorf("initial volume = %v, want 0", v)
	}
	p.SetTargetVolume(Aux2, -12.5)
	if v := p.TargetVolume(Aux2); v != -12.5 {
		t.Errorf("volume = %v, want -12.5", v)
	}
	if p.IsMute(Aux2) {
		t.Error("fader must start unmuted")
	}
	if got := p.ToggleMute(Aux2); !got {
		t.Error("toggle must return the new state")
	}
	if !p.IsMute(Aux2) {
		t.Error("fader must be muted after toggle")
	}
}

func TestClippedCounter(t *testing.T) {
	p := New()
	p.AddClipped(3)
	p.AddClipped(0)
	p.AddClipped(4)
	if got := p.ClippedSamples(); got != 7 {
		t.Errorf("clipped = %d, want 7", got)
	}
	p.ResetClippedSamples()
	if got := p.ClippedSamples(); got != 0 {
		t.Errorf("clipped after reset = %d, want 0", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				p.SetTargetVolume(Main, float64(n))
				_ = p.TargetVolume(Main)
				p.AddClipped(1)
				p.ToggleMute(Aux1)
			}
		}(i)
	}
	wg.Wait()
	if got := p.ClippedSamples(); got != 8000 {
		t.Errorf("clipped = %d, want 8000", got)
	}
	if p.IsMute(Aux1) {
		t.Error("even number of toggles must end unmuted")
	}
}
