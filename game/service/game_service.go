package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	StartLevel(ctx context.Context, sessionID string) (*ActionResult, error)
	Turn(ctx context.Context, sessionID, direction string, ticks int) (*ActionResult, error)
	Tick(ctx context.Context, sessionID string, frames int, dt float64) (*ActionResult, error)
	Drive(ctx context.Context, sessionID string, turns []string, maxFrames int) (*DriveResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetTurnHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error
	GenerateLevel(ctx context.Context, req GenerateRequest) (*ConfigInfo, error)

	// Results
	ListResults(ctx context.Context, limit int) ([]*RunResult, error)

	// RunRealtime ticks every moving session at fps frames per second until
	// ctx is done. onFrame, if set, sees each session's state after its frame.
	RunRealtime(ctx context.Context, fps int, onFrame func(sessionID string, state *engine.GameState)) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *engine.LevelConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *engine.LevelConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles level configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.LevelConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.LevelConfig
	SaveConfig(name string, config *engine.LevelConfig) error
}

// ResultsStore records finished runs
type ResultsStore interface {
	Record(ctx context.Context, result *RunResult) error
	List(ctx context.Context, limit int) ([]*RunResult, error)
}

// Session represents an active game session
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.GameEngine
	Config         *engine.LevelConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
