package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Manager owns the live bus sessions. Session ids are case-insensitive.
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	engineOpts  []engine.EngineOption
	log         zerolog.Logger
	mu          sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithEngineOptions are applied to every engine the manager creates.
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

// NewManager creates an in-memory session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*service.Session),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence creates a manager that writes every session
// change through to persistence and falls back to it on lookups.
func NewManagerWithPersistence(persistence SessionPersistence, opts ...Option) *Manager {
	m := NewManager(opts...)
	m.persistence = persistence
	return m
}

func sessionKey(id string) string {
	return strings.ToLower(id)
}

// validSessionID rejects ids that cannot double as a file name.
func validSessionID(id string) bool {
	if id == "" || len(id) > 64 || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\:`)
}

// Create starts a bus session on config. An empty id gets a generated one.
func (m *Manager) Create(id string, config *engine.LevelConfig) (*service.Session, error) {
	if id != "" && !validSessionID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.unusedIDLocked()
	} else if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := engine.NewEngine(config, m.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	now := time.Now()
	s := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[sessionKey(id)] = s
	m.persist(s, "create")

	m.log.Debug().Str("session", id).Str("level", config.Name).Msg("session created")
	return s, nil
}

// Get returns the session, loading it from persistence when it is not in
// memory.
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionKey(id)]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another caller may have loaded it meanwhile
	if s, ok := m.sessions[sessionKey(id)]; ok {
		return s, nil
	}
	m.sessions[sessionKey(id)] = loaded
	return loaded, nil
}

// GetOrCreate returns the session with id, creating it on config if it does
// not exist.
func (m *Manager) GetOrCreate(id string, config *engine.LevelConfig) (*service.Session, error) {
	s, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}
	return s, err
}

// List returns every session held in memory.
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*service.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Delete removes the session from memory and persistence.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.sessions[sessionKey(id)]
	delete(m.sessions, sessionKey(id))

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory drops the session from memory and leaves its file alone.
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionKey(id)]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionKey(id))
	return nil
}

// UpdateLastAccessed marks the session as used now and persists it, which
// also writes the current bus state.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionKey(id)]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastAccessedAt = time.Now()
	m.persist(s, "access")
	return nil
}

// Save writes one session to persistence. It is a no-op without one.
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	s, ok := m.sessions[sessionKey(id)]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return m.persistence.Save(s)
}

// CleanupExpiredSessions drops sessions idle for longer than maxAge from
// memory and returns how many went. Their files are kept, so a later Get
// brings them back.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, s := range m.sessions {
		if s.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			removed++
			m.log.Debug().Str("session", s.ID).Time("last_access", s.LastAccessedAt).Msg("session expired")
		}
	}
	return removed
}

// Count returns the number of sessions in memory.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions pulls every persisted session not yet in memory.
// Sessions that fail to load are logged and skipped.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if m.sessionExists(id) {
			continue
		}
		s, err := m.persistence.Load(id)
		if err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("failed to load persisted session")
			continue
		}
		m.sessions[sessionKey(id)] = s
		loaded++
	}

	if loaded > 0 {
		m.log.Info().Int("count", loaded).Msg("loaded persisted sessions")
	}
	return nil
}

// SaveAllSessions writes every in-memory session to persistence.
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	var failed int
	for _, s := range m.List() {
		if err := m.persistence.Save(s); err != nil {
			m.log.Warn().Err(err).Str("session", s.ID).Msg("failed to save session")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}

// persist writes s through when persistence is configured. Failures are
// logged; the in-memory session stays authoritative.
func (m *Manager) persist(s *service.Session, op string) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(s); err != nil {
		m.log.Warn().Err(err).Str("session", s.ID).Str("op", op).Msg("failed to persist session")
	}
}

// unusedIDLocked returns a fresh 4-character hex id.
func (m *Manager) unusedIDLocked() string {
	for {
		buf := make([]byte, 2)
		rand.Read(buf)
		if id := hex.EncodeToString(buf); !m.sessionExists(id) {
			return id
		}
	}
}

func (m *Manager) sessionExists(id string) bool {
	_, ok := m.sessions[sessionKey(id)]
	return ok
}
