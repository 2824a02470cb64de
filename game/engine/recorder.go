package engine

// SessionRecorder is the GameSession the engine hands to its vehicle. It
// records start, lose and finish signals and forwards lose and finish to an
// optional listener.
type SessionRecorder struct {
	start    subscribers[struct{}]
	signals  SessionSignals
	listener func(Outcome)
}

// NewSessionRecorder returns an empty recorder.
func NewSessionRecorder() *SessionRecorder {
	return &SessionRecorder{}
}

// OnStart registers fn for the session start notification.
func (r *SessionRecorder) OnStart(fn func()) func() {
	return r.start.add(func(struct{}) { fn() })
}

// Start emits the session start notification.
func (r *SessionRecorder) Start() {
	r.signals.Started++
	r.start.notify(struct{}{})
}

// Lose records a loss.
func (r *SessionRecorder) Lose() {
	r.signals.Lost++
	if r.listener != nil {
		r.listener(OutcomeLost)
	}
}

// Finish records a completed level.
func (r *SessionRecorder) Finish() {
	r.signals.Finished++
	if r.listener != nil {
		r.listener(OutcomeWon)
	}
}

// SetListener replaces the outcome listener.
func (r *SessionRecorder) SetListener(fn func(Outcome)) {
	r.listener = fn
}

// Signals returns the signal counters.
func (r *SessionRecorder) Signals() SessionSignals {
	return r.signals
}

// Restore sets the signal counters, used when loading persisted state.
func (r *SessionRecorder) Restore(s SessionSignals) {
	r.signals = s
}

// MaxRecentCues bounds the cue buffer kept by CueRecorder.
const MaxRecentCues = 32

// CueRecorder is an EffectsSink that keeps the most recent cues for state
// reporting and forwards every cue to an optional downstream sink.
type CueRecorder struct {
	recent     []Cue
	swayOffset float64
	frame      int
	next       EffectsSink
}

// NewCueRecorder creates a recorder that forwards to next, which may be nil.
func NewCueRecorder(next EffectsSink) *CueRecorder {
	return &CueRecorder{next: next}
}

// Cue records c. Sway cues only update the offset; they are emitted every
// frame and would flood the buffer.
func (r *CueRecorder) Cue(c Cue) {
	c.Frame = r.frame
	if c.Kind == CueSway || c.Kind == CueSwayStop {
		r.swayOffset = c.Value
	}
	if c.Kind != CueSway {
		r.recent = append(r.recent, c)
		if len(r.recent) > MaxRecentCues {
			r.recent = r.recent[len(r.recent)-MaxRecentCues:]
		}
	}
	if r.next != nil {
		r.next.Cue(c)
	}
}

// SetFrame stamps subsequent cues with frame.
func (r *CueRecorder) SetFrame(frame int) { r.frame = frame }

// Recent returns a copy of the buffered cues.
func (r *CueRecorder) Recent() []Cue {
	return append([]Cue(nil), r.recent...)
}

// SwayOffset returns the last cosmetic sway offset.
func (r *CueRecorder) SwayOffset() float64 { return r.swayOffset }

// Clear drops the buffered cues.
func (r *CueRecorder) Clear() { r.recent = nil }

// InputLatch is an InputSource fed by discrete requests. Each request is
// reported once, on the next poll.
type InputLatch struct {
	left, right bool
}

// Press latches a turn request.
func (l *InputLatch) Press(dir TurnDirection) {
	switch dir {
	case Left:
		l.left = true
	case Right:
		l.right = true
	}
}

// TurnLeftRequested reports and clears a latched left turn.
func (l *InputLatch) TurnLeftRequested() bool {
	v := l.left
	l.left = false
	return v
}

// TurnRightRequested reports and clears a latched right turn.
func (l *InputLatch) TurnRightRequested() bool {
	v := l.right
	l.right = false
	return v
}

// Pending reports whether a request is waiting for the next frame.
func (l *InputLatch) Pending() bool { return l.left || l.right }
