package engine

// LevelProvider supplies the current level descriptor and notifies
// subscribers whenever a new level is generated.
type LevelProvider interface {
	Level() LevelDescriptor
	OnLevelGenerated(fn func(LevelDescriptor)) (unsubscribe func())
}

// GameSession tracks win/lose state for the play session. The vehicle
// listens for the start notification and signals Lose and Finish.
type GameSession interface {
	OnStart(fn func()) (unsubscribe func())
	Lose()
	Finish()
}

// InputSource is polled once per frame for turn requests.
type InputSource interface {
	TurnLeftRequested() bool
	TurnRightRequested() bool
}

// EffectsSink receives fire-and-forget presentation cues.
type EffectsSink interface {
	Cue(c Cue)
}

// CueKind names a presentation cue.
type CueKind string

const (
	CueTurnLeft          CueKind = "turn_left"
	CueTurnRight         CueKind = "turn_right"
	CueRotationParticles CueKind = "rotation_particles"
	CueRotationSound     CueKind = "rotation_sound"
	CueWinSound          CueKind = "win_sound"
	CueFacing            CueKind = "facing"
	CueSway              CueKind = "sway"
	CueSwayStop          CueKind = "sway_stop"
)

// Cue is a single presentation instruction. Value carries the facing angle
// for CueFacing and the vertical offset for CueSway.
type Cue struct {
	Kind  CueKind `json:"kind"`
	Value float64 `json:"value,omitempty"`
	Frame int     `json:"frame,omitempty"`
}

type noInput struct{}

func (noInput) TurnLeftRequested() bool  { return false }
func (noInput) TurnRightRequested() bool { return false }

type discardEffects struct{}

func (discardEffects) Cue(Cue) {}

// subscribers is an ordered callback list with per-entry unsubscription.
type subscribers[T any] struct {
	next    int
	entries []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.next++
	id := s.next
	s.entries = append(s.entries, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, e := range s.entries {
			if e.id == id {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers[T]) notify(v T) {
	// copy so a callback may unsubscribe while being notified
	entries := append([]subscriber[T](nil), s.entries...)
	for _, e := range entries {
		e.fn(v)
	}
}

func (s *subscribers[T]) len() int {
	return len(s.entries)
}
