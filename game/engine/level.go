package engine

// LevelSource is the LevelProvider used by the engine. It holds the current
// descriptor and notifies subscribers every time a level is published.
type LevelSource struct {
	current     LevelDescriptor
	subscribers subscribers[LevelDescriptor]
	generated   int
}

// NewLevelSource creates a level source for the given descriptor.
func NewLevelSource(d LevelDescriptor) *LevelSource {
	return &LevelSource{current: d}
}

// Level returns the current descriptor.
func (s *LevelSource) Level() LevelDescriptor {
	return s.current
}

// OnLevelGenerated registers fn to be called on every Publish.
func (s *LevelSource) OnLevelGenerated(fn func(LevelDescriptor)) func() {
	return s.subscribers.add(fn)
}

// Publish makes d the current level and emits the level-generated
// notification.
func (s *LevelSource) Publish(d LevelDescriptor) {
	s.current = d
	s.generated++
	s.subscribers.notify(d)
}

// Regenerate republishes the current descriptor.
func (s *LevelSource) Regenerate() {
	s.Publish(s.current)
}

// Generated returns how many levels have been published.
func (s *LevelSource) Generated() int { return s.generated }

// Subscribers returns the number of registered callbacks.
func (s *LevelSource) Subscribers() int { return s.subscribers.len() }
