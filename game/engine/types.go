package engine

import "slices"

// CellType represents different types of track cells
type CellType string

const (
	Road         CellType = "road"
	Start        CellType = "start"
	Intersection CellType = "intersection"
	Finish       CellType = "finish"
	Building     CellType = "building"

	// Validation constants
	MinGridSize      = 5
	MaxGridSize      = 60
	MinRequiredTurns = 1
	MaxRequiredTurns = 20
	MinCellSize      = 1.0
	MaxCellSize      = 20.0
	MaxMovementSpeed = 20.0
	MaxTicksPerCall  = 1800

	// DefaultFrameDelta is the frame time used when a caller passes none (30 fps).
	DefaultFrameDelta    = 1.0 / 30.0
	DefaultCellSize      = 4.0
	DefaultMovementSpeed = 2.0
	WebSocketBufferSize  = 256
)

// Durations of the vehicle's timed tasks, in seconds.
const (
	TurnSmoothingDuration = 1.5
	FinishDelay           = 2.0
	FinishBlend           = 0.5

	SwayMinInterval   = 0.1
	SwayMaxInterval   = 0.3
	SwayStep          = 0.1
	SwayBound         = 0.1
	SwayTweenDuration = 1.0
)

// Phase is the lifecycle stage of the vehicle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseMoving     Phase = "moving"
	PhaseFinishing  Phase = "finishing"
	PhaseTerminated Phase = "terminated"
)

// Outcome records why a vehicle terminated.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
)

// Position represents x,y coordinates of a track cell (x = column, y = row)
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// LevelDescriptor is what the vehicle needs to know about the current level.
type LevelDescriptor struct {
	InitialHeading Heading `json:"initial_heading"`
	RequiredTurns  int     `json:"required_turns"`
}

// Messages are the player-facing texts of a level. Turn is formatted with
// (heading, turns taken, required turns); Victory with the turns taken.
type Messages struct {
	Welcome     string `json:"welcome"`
	Start       string `json:"start,omitempty"`
	Turn        string `json:"turn,omitempty"`
	TurnIgnored string `json:"turn_ignored,omitempty"`
	Finishing   string `json:"finishing,omitempty"`
	Victory     string `json:"victory"`
	Crash       string `json:"crash"`
}

// LevelConfig represents a level loaded from JSON
type LevelConfig struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	InitialHeading Heading           `json:"initial_heading"`
	RequiredTurns  int               `json:"required_turns"`
	CellSize       float64           `json:"cell_size"`
	MovementSpeed  float64           `json:"movement_speed"`
	Seed           uint64            `json:"seed,omitempty"`
	Layout         []string          `json:"layout"`
	Legend         map[string]string `json:"legend"`
	Messages       Messages          `json:"messages"`
}

// Descriptor returns the level descriptor published to the vehicle.
func (c *LevelConfig) Descriptor() LevelDescriptor {
	return LevelDescriptor{
		InitialHeading: c.InitialHeading,
		RequiredTurns:  c.RequiredTurns,
	}
}

// SessionSignals counts the signals the vehicle sent to its game session.
type SessionSignals struct {
	Started  int `json:"started"`
	Lost     int `json:"lost"`
	Finished int `json:"finished"`
}

// GameState represents the complete game state
type GameState struct {
	Grid       []string       `json:"grid"`
	Vehicle    VehicleState   `json:"vehicle"`
	Cell       Position       `json:"cell"`
	CellType   CellType       `json:"cell_type"`
	Phase      Phase          `json:"phase"`
	Outcome    Outcome        `json:"outcome,omitempty"`
	Message    string         `json:"message"`
	GameOver   bool           `json:"game_over"`
	Victory    bool           `json:"victory"`
	ConfigName string         `json:"config_name"`
	Required   int            `json:"required_turns"`
	Frame      int            `json:"frame"`
	Elapsed    float64        `json:"elapsed"`
	Signals    SessionSignals `json:"signals"`
	Cues       []Cue          `json:"cues,omitempty"`

	// TurnHistory is cumulative across resets; CurrentTurns covers only the
	// current level attempt.
	TurnHistory       []TurnHistoryEntry `json:"turn_history"`
	TotalTurns        int                `json:"total_turns"`
	CurrentTurns      []TurnHistoryEntry `json:"current_turns"`
	CurrentTurnsCount int                `json:"current_turns_count"`

	// Computed helper views
	LocalView3x3 []string `json:"local_view_3x3,omitempty"`
	NextAction   string   `json:"next_action,omitempty"`
}

// Clone returns a deep copy of the state. The engine keeps mutating the
// state it owns, so anything read outside the engine's lock must be a clone.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	c := *s
	c.Grid = slices.Clone(s.Grid)
	c.Vehicle = s.Vehicle.Clone()
	c.Cues = slices.Clone(s.Cues)
	c.TurnHistory = slices.Clone(s.TurnHistory)
	c.CurrentTurns = slices.Clone(s.CurrentTurns)
	c.LocalView3x3 = slices.Clone(s.LocalView3x3)
	return &c
}

// TurnHistoryEntry represents a single turn request in the game history
type TurnHistoryEntry struct {
	Direction   TurnDirection `json:"direction"`
	FromHeading Heading       `json:"from_heading"`
	ToHeading   Heading       `json:"to_heading"`
	Position    Vec3          `json:"position"`
	Cell        Position      `json:"cell"`
	Frame       int           `json:"frame"`
	Timestamp   int64         `json:"timestamp"`
	Accepted    bool          `json:"accepted"`
	TurnNumber  int           `json:"turn_number"`
}
