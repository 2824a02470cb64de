package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

const sampleRate = beep.SampleRate(44100)

// note is one tone of a cue.
type note struct {
	freq float64
	dur  time.Duration
}

var (
	rotationTone = []note{{freq: 660, dur: 60 * time.Millisecond}}
	victoryTune  = []note{
		{freq: 523.25, dur: 120 * time.Millisecond},
		{freq: 659.25, dur: 120 * time.Millisecond},
		{freq: 783.99, dur: 120 * time.Millisecond},
		{freq: 1046.5, dur: 300 * time.Millisecond},
	}
)

// tonePlayer plays a sequence of notes without blocking.
type tonePlayer interface {
	Play(notes ...note)
}

// speakerPlayer plays notes through the system speaker.
type speakerPlayer struct {
	volume float64
}

func newSpeakerPlayer() (*speakerPlayer, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &speakerPlayer{volume: -1.5}, nil
}

func (p *speakerPlayer) Play(notes ...note) {
	streams := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		sine, err := generators.SineTone(sampleRate, n.freq)
		if err != nil {
			continue
		}
		streams = append(streams, beep.Take(sampleRate.N(n.dur), sine))
	}
	if len(streams) == 0 {
		return
	}
	speaker.Play(&effects.Volume{Streamer: beep.Seq(streams...), Base: 2, Volume: p.volume})
}

func (p *speakerPlayer) Close() {
	speaker.Close()
}

// silentPlayer drops every note.
type silentPlayer struct{}

func (silentPlayer) Play(...note) {}

// flashFrames is how long a rotation particle burst stays on screen.
const flashFrames = 8

// effectsSink turns engine cues into sounds and a glyph flash around the bus.
// It is fed and read from the frame loop only.
type effectsSink struct {
	player tonePlayer
	flash  int
	facing float64
	sway   float64
}

func newEffectsSink(player tonePlayer) *effectsSink {
	if player == nil {
		player = silentPlayer{}
	}
	return &effectsSink{player: player}
}

// Cue implements engine.EffectsSink.
func (s *effectsSink) Cue(c engine.Cue) {
	switch c.Kind {
	case engine.CueRotationSound:
		s.player.Play(rotationTone...)
	case engine.CueWinSound:
		s.player.Play(victoryTune...)
	case engine.CueRotationParticles:
		s.flash = flashFrames
	case engine.CueFacing:
		s.facing = c.Value
	case engine.CueSway:
		s.sway = c.Value
	case engine.CueSwayStop:
		s.sway = 0
	}
}

// Flashing reports whether a particle burst is showing.
func (s *effectsSink) Flashing() bool { return s.flash > 0 }

// Advance ages the particle burst by one frame.
func (s *effectsSink) Advance() {
	if s.flash > 0 {
		s.flash--
	}
}

// Reset clears transient presentation state.
func (s *effectsSink) Reset() {
	s.flash = 0
	s.sway = 0
}
