package main

import (
	"testing"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

type recordingPlayer struct {
	played [][]note
}

func (p *recordingPlayer) Play(notes ...note) {
	p.played = append(p.played, notes)
}

func TestEffectsSink_Sounds(t *testing.T) {
	player := &recordingPlayer{}
	fx := newEffectsSink(player)

	fx.Cue(engine.Cue{Kind: engine.CueRotationSound})
	fx.Cue(engine.Cue{Kind: engine.CueTurnLeft})
	fx.Cue(engine.Cue{Kind: engine.CueWinSound})

	if len(player.played) != 2 {
		t.Fatalf("Expected 2 sounds, got %d", len(player.played))
	}
	if len(player.played[0]) != len(rotationTone) {
		t.Errorf("Expected rotation tone first, got %d notes", len(player.played[0]))
	}
	if len(player.played[1]) != len(victoryTune) {
		t.Errorf("Expected victory tune second, got %d notes", len(player.played[1]))
	}
}

func TestEffectsSink_ParticlesFlash(t *testing.T) {
	fx := newEffectsSink(nil)

	if fx.Flashing() {
		t.Fatal("Expected no flash before any cue")
	}

	fx.Cue(engine.Cue{Kind: engine.CueRotationParticles})
	for i := 0; i < flashFrames; i++ {
		if !fx.Flashing() {
			t.Fatalf("Expected flash to last %d frames, ended after %d", flashFrames, i)
		}
		fx.Advance()
	}
	if fx.Flashing() {
		t.Error("Expected flash to end")
	}
}

func TestEffectsSink_SwayAndFacing(t *testing.T) {
	fx := newEffectsSink(nil)

	fx.Cue(engine.Cue{Kind: engine.CueFacing, Value: 90})
	fx.Cue(engine.Cue{Kind: engine.CueSway, Value: 0.1})
	if fx.facing != 90 {
		t.Errorf("Expected facing 90, got %v", fx.facing)
	}
	if fx.sway != 0.1 {
		t.Errorf("Expected sway 0.1, got %v", fx.sway)
	}

	fx.Cue(engine.Cue{Kind: engine.CueSwayStop})
	if fx.sway != 0 {
		t.Errorf("Expected sway reset, got %v", fx.sway)
	}
}
