package session

import (
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

// SessionPersistence stores sessions outside the process.
type SessionPersistence interface {
	Save(session *service.Session) error
	// Load returns ErrSessionNotFound when nothing is stored under id.
	Load(id string) (*service.Session, error)
	Delete(id string) error
	ListAll() ([]string, error)
	Exists(id string) bool
}

// PersistedSessionData is the on-disk form of a session.
type PersistedSessionData struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Level          *engine.LevelConfig `json:"level,omitempty"`
	GameState      *engine.GameState   `json:"game_state"`
}
