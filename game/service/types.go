package service

import (
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string              `json:"id"`
	ConfigName     string              `json:"config_name"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	GameState      *engine.GameState   `json:"game_state"`
	GameConfig     *engine.LevelConfig `json:"game_config"`
}

// ActionResult contains the result of a start, turn or tick request
type ActionResult struct {
	Success   bool              `json:"success"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
	Frames    int               `json:"frames"`
}

// DriveResult contains the result of driving a whole turn plan
type DriveResult struct {
	// Summary
	TurnsRequested int               `json:"turns_requested"`
	TurnsApplied   int               `json:"turns_applied"`
	FramesRun      int               `json:"frames_run"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`   // Human-readable reason
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // victory|crash|frame_limit|plan_exhausted|game_over
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	// Start/end snapshot
	StartCell    engine.Position `json:"start_cell"`
	EndCell      engine.Position `json:"end_cell"`
	StartHeading engine.Heading  `json:"start_heading"`
	EndHeading   engine.Heading  `json:"end_heading"`

	// Per-turn compact trace (only for this call)
	Steps []StepInfo `json:"steps,omitempty"`

	// Final status aids
	GameOver     bool     `json:"game_over"`
	GameOverCode string   `json:"game_over_code,omitempty"`
	Message      string   `json:"message,omitempty"`
	LocalView3x3 []string `json:"local_view_3x3,omitempty"`
	NextAction   string   `json:"next_action,omitempty"`
}

// StepInfo is a compact record for each turn taken by a drive call
type StepInfo struct {
	Idx         int                  `json:"idx"`
	Dir         engine.TurnDirection `json:"dir"`
	Cell        engine.Position      `json:"cell"`
	Frame       int                  `json:"frame"`
	FromHeading engine.Heading       `json:"from_heading"`
	ToHeading   engine.Heading       `json:"to_heading"`
	Accepted    bool                 `json:"accepted"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string          `json:"type"` // "start", "turn", "turn_ignored", "enter", "exit", "finishing", "finish", "lose", "reset"
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Frame     int             `json:"frame"`
	Cell      engine.Position `json:"cell"`
}

// HistoryOptions configures turn history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated turn history
type HistoryResponse struct {
	Turns       []engine.TurnHistoryEntry `json:"turns"`
	TotalTurns  int                       `json:"total_turns"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a level configuration
type ConfigInfo struct {
	Filename       string         `json:"filename"`
	ConfigID       string         `json:"config_id"` // The identifier to use for session creation
	Name           string         `json:"name"`      // Display name
	Description    string         `json:"description"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	InitialHeading engine.Heading `json:"initial_heading"`
	RequiredTurns  int            `json:"required_turns"`
	Seed           uint64         `json:"seed,omitempty"`
}

// GenerateRequest asks for a new generated level
type GenerateRequest struct {
	ConfigID string `json:"config_id"` // Saved under this id; derived from the seed when empty
	Seed     uint64 `json:"seed"`      // Zero picks a random seed
	Turns    int    `json:"turns"`
}

// RunResult is one finished vehicle life recorded in the results ledger
type RunResult struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	ConfigName string          `json:"config_name"`
	Outcome    engine.Outcome  `json:"outcome"`
	Turns      int             `json:"turns"`
	Required   int             `json:"required_turns"`
	Frames     int             `json:"frames"`
	Elapsed    float64         `json:"elapsed"`
	Cell       engine.Position `json:"cell"`
	FinishedAt time.Time       `json:"finished_at"`
}

// DescribeConfig summarises a level configuration for listings.
func DescribeConfig(filename, id string, config *engine.LevelConfig) *ConfigInfo {
	width := 0
	if len(config.Layout) > 0 {
		width = len(config.Layout[0])
	}
	return &ConfigInfo{
		Filename:       filename,
		ConfigID:       id,
		Name:           config.Name,
		Description:    config.Description,
		Width:          width,
		Height:         len(config.Layout),
		InitialHeading: config.InitialHeading,
		RequiredTurns:  config.RequiredTurns,
		Seed:           config.Seed,
	}
}
