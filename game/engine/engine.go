package engine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	IsGameOver() bool
	IsVictory() bool

	// Frame loop
	Start() bool
	Tick(dt float64) *GameState
	Turn(dir TurnDirection) bool

	// Configuration
	GetConfig() *LevelConfig
	SetConfig(config *LevelConfig) error

	// History
	GetTurnHistory() []TurnHistoryEntry
	GetLastTurn() *TurnHistoryEntry

	// Track
	DescribeCell(p Position) CellType
}

// GameEngine implements Engine. It wires a Vehicle to a Track (the zone
// and collision sensor), a LevelSource, a SessionRecorder, an InputLatch
// and a CueRecorder. It is not safe for concurrent use.
type GameEngine struct {
	config  *LevelConfig
	state   *GameState
	track   *Track
	levels  *LevelSource
	session *SessionRecorder
	input   *InputLatch
	cues    *CueRecorder
	vehicle *Vehicle

	log      zerolog.Logger
	rng      *rand.Rand
	effects  EffectsSink
	listener func(Outcome, *GameState)
}

// EngineOption configures a GameEngine.
type EngineOption func(*GameEngine)

// WithEngineLogger sets the logger shared by the engine and its vehicle.
func WithEngineLogger(l zerolog.Logger) EngineOption {
	return func(e *GameEngine) { e.log = l }
}

// WithEngineRand sets the random source of the vehicle's sway animation.
func WithEngineRand(r *rand.Rand) EngineOption {
	return func(e *GameEngine) { e.rng = r }
}

// WithEffects forwards every presentation cue to sink.
func WithEffects(sink EffectsSink) EngineOption {
	return func(e *GameEngine) { e.effects = sink }
}

// WithOutcomeListener is called once per vehicle life when it wins or loses.
func WithOutcomeListener(fn func(Outcome, *GameState)) EngineOption {
	return func(e *GameEngine) { e.listener = fn }
}

// NewEngine creates a new game engine with the provided configuration
func NewEngine(config *LevelConfig, opts ...EngineOption) (*GameEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	ApplyDefaults(config)
	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.build(config); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the built-in level
func NewEngineWithDefaults(opts ...EngineOption) *GameEngine {
	e, err := NewEngine(DefaultLevelConfig(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default level config is invalid: %v", err))
	}
	return e
}

// build creates the track and collaborators for config and a fresh vehicle.
func (e *GameEngine) build(config *LevelConfig) error {
	track, err := NewTrack(config.Layout, config.CellSize)
	if err != nil {
		return err
	}

	if e.vehicle != nil {
		e.vehicle.Detach()
	}

	e.config = config
	e.track = track
	e.levels = NewLevelSource(config.Descriptor())
	e.session = NewSessionRecorder()
	e.session.SetListener(e.onOutcome)
	e.input = &InputLatch{}
	e.cues = NewCueRecorder(e.effects)

	e.vehicle = e.newVehicle()

	e.state = e.freshState(nil)
	e.sync()
	return nil
}

// newVehicle builds and attaches a bus on the current level.
func (e *GameEngine) newVehicle() *Vehicle {
	opts := []Option{
		WithLogger(e.log.With().Str("component", "vehicle").Logger()),
		WithMovementSpeed(e.config.MovementSpeed),
		WithTurnObserver(e.recordTurn),
	}
	if e.rng != nil {
		opts = append(opts, WithRand(e.rng))
	}
	v := NewVehicle(e.levels, e.session, e.input, e.cues, opts...)
	v.Attach()
	return v
}

func (e *GameEngine) freshState(prev *GameState) *GameState {
	s := &GameState{
		Message:      e.config.Messages.Welcome,
		ConfigName:   e.config.Name,
		Required:     e.config.RequiredTurns,
		TurnHistory:  []TurnHistoryEntry{},
		CurrentTurns: []TurnHistoryEntry{},
	}
	if prev != nil {
		s.TurnHistory = prev.TurnHistory
		s.TotalTurns = prev.TotalTurns
	}
	return s
}

// sync refreshes the derived fields of the state from the vehicle.
func (e *GameEngine) sync() {
	v := e.vehicle
	s := e.state
	s.Grid = append([]string(nil), e.config.Layout...)
	s.Vehicle = v.Snapshot()
	s.Cell = e.track.CellAt(v.Position())
	s.CellType = e.track.TypeAt(s.Cell)
	s.Phase = v.Phase()
	s.Outcome = v.Outcome()
	s.GameOver = v.Terminated()
	s.Victory = v.Outcome() == OutcomeWon
	s.ConfigName = e.config.Name
	s.Required = e.config.RequiredTurns
	s.Signals = e.session.Signals()
	s.Cues = e.cues.Recent()
	s.CurrentTurnsCount = len(s.CurrentTurns)
	s.LocalView3x3 = LocalView3x3(e.track, s.Cell, v.Heading())
	if s.GameOver {
		s.NextAction = ""
	} else {
		s.NextAction = NextAction(e.track, s.Cell, v.Heading(), v.InIntersection(), v.TurnedThisVisit())
	}
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// SetState restores a persisted game state
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Vehicle.Heading != "" && !state.Vehicle.Heading.Valid() {
		return fmt.Errorf("state has invalid heading %q", state.Vehicle.Heading)
	}

	e.vehicle.Restore(state.Vehicle)
	e.session.Restore(state.Signals)
	e.track.Prime(state.Vehicle.Position)
	e.input.TurnLeftRequested()
	e.input.TurnRightRequested()

	e.state = state
	if e.state.TurnHistory == nil {
		e.state.TurnHistory = []TurnHistoryEntry{}
	}
	if e.state.CurrentTurns == nil {
		e.state.CurrentTurns = []TurnHistoryEntry{}
	}
	e.sync()
	return nil
}

// Reset regenerates the level. Cumulative turn history survives.
func (e *GameEngine) Reset() *GameState {
	e.input.TurnLeftRequested()
	e.input.TurnRightRequested()
	e.cues.Clear()
	e.session.Restore(SessionSignals{})

	e.state = e.freshState(e.state)
	e.cues.SetFrame(0)
	// the level-generated notification drives the vehicle reset; a
	// terminated bus ignores it and is replaced
	e.levels.Publish(e.config.Descriptor())
	if e.vehicle.Terminated() {
		e.vehicle.Detach()
		e.vehicle = e.newVehicle()
	}
	e.track.Prime(e.vehicle.Position())

	e.sync()
	return e.state
}

// Start emits the session start notification. It returns false when the
// bus is already moving or the level is over.
func (e *GameEngine) Start() bool {
	if e.vehicle.Terminated() || e.vehicle.SpeedScale() > 0 {
		return false
	}
	e.session.Start()
	if e.config.Messages.Start != "" {
		e.state.Message = e.config.Messages.Start
	}
	e.sync()
	return true
}

// Turn latches a turn request; it is handed to the vehicle on the next
// Tick. It returns false for an invalid direction or a finished level.
func (e *GameEngine) Turn(dir TurnDirection) bool {
	if !dir.Valid() || e.vehicle.Terminated() {
		return false
	}
	e.input.Press(dir)
	return true
}

// Tick advances the game by one frame of dt seconds. A non-positive dt
// uses DefaultFrameDelta. Once the level is over Tick changes nothing.
func (e *GameEngine) Tick(dt float64) *GameState {
	if dt <= 0 {
		dt = DefaultFrameDelta
	}
	if e.vehicle.Terminated() {
		e.vehicle.Update(dt)
		return e.state
	}

	e.state.Frame++
	e.state.Elapsed += dt
	e.cues.SetFrame(e.state.Frame)

	wasFinishing := e.vehicle.Phase() == PhaseFinishing
	e.vehicle.Update(dt)

	for _, ev := range e.track.Sense(e.vehicle.Position()) {
		switch ev {
		case EventIntersectionExit:
			e.vehicle.OnIntersectionExit()
		case EventIntersectionEnter:
			e.vehicle.OnIntersectionEnter()
		case EventCollision:
			e.vehicle.OnCollision()
		}
	}

	if !wasFinishing && e.vehicle.Phase() == PhaseFinishing && e.config.Messages.Finishing != "" {
		e.state.Message = e.config.Messages.Finishing
	}

	e.sync()
	return e.state
}

func (e *GameEngine) recordTurn(r TurnResult) {
	if e.state == nil {
		return
	}
	entry := TurnHistoryEntry{
		Direction:   r.Direction,
		FromHeading: r.From,
		ToHeading:   r.To,
		Position:    r.Position,
		Cell:        e.track.CellAt(r.Position),
		Frame:       e.state.Frame,
		Timestamp:   time.Now().Unix(),
		Accepted:    r.Accepted,
		TurnNumber:  e.state.TotalTurns + 1,
	}
	e.state.TurnHistory = append(e.state.TurnHistory, entry)
	e.state.CurrentTurns = append(e.state.CurrentTurns, entry)
	e.state.TotalTurns++
	e.state.CurrentTurnsCount = len(e.state.CurrentTurns)

	if r.Accepted {
		if m := e.config.Messages.Turn; m != "" {
			e.state.Message = fmt.Sprintf(m, r.To, r.TurnsTaken, e.config.RequiredTurns)
		}
	} else if m := e.config.Messages.TurnIgnored; m != "" {
		e.state.Message = m
	}
}

func (e *GameEngine) onOutcome(o Outcome) {
	switch o {
	case OutcomeWon:
		e.state.Message = fmt.Sprintf(e.config.Messages.Victory, e.vehicle.TurnsTaken())
	case OutcomeLost:
		cell := e.track.CellAt(e.vehicle.Position())
		e.state.Message = fmt.Sprintf("%s (cell %d,%d)", e.config.Messages.Crash, cell.X, cell.Y)
	}
	e.log.Info().
		Str("config", e.config.Name).
		Str("outcome", string(o)).
		Int("turns", e.vehicle.TurnsTaken()).
		Int("frame", e.state.Frame).
		Msg("level over")

	if e.listener != nil {
		e.sync()
		e.listener(o, e.state)
	}
}

// IsGameOver returns whether the level is over
func (e *GameEngine) IsGameOver() bool {
	return e.vehicle.Terminated()
}

// IsVictory returns whether the bus finished the level
func (e *GameEngine) IsVictory() bool {
	return e.vehicle.Outcome() == OutcomeWon
}

// GetConfig returns the current level configuration
func (e *GameEngine) GetConfig() *LevelConfig {
	return e.config
}

// SetConfig switches to a new level configuration and resets the game
func (e *GameEngine) SetConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	ApplyDefaults(config)
	if err := ValidateLevelConfig(config); err != nil {
		return err
	}
	return e.build(config)
}

// GetTurnHistory returns the cumulative turn history
func (e *GameEngine) GetTurnHistory() []TurnHistoryEntry {
	return e.state.TurnHistory
}

// GetLastTurn returns the last turn request, or nil if there was none
func (e *GameEngine) GetLastTurn() *TurnHistoryEntry {
	if len(e.state.TurnHistory) == 0 {
		return nil
	}
	return &e.state.TurnHistory[len(e.state.TurnHistory)-1]
}

// DescribeCell returns the type of a track cell
func (e *GameEngine) DescribeCell(p Position) CellType {
	return e.track.TypeAt(p)
}

// SetOutcomeListener replaces the outcome listener. A nil fn removes it.
func (e *GameEngine) SetOutcomeListener(fn func(Outcome, *GameState)) {
	e.listener = fn
}

// Track returns the level track.
func (e *GameEngine) Track() *Track { return e.track }

// Vehicle returns the bus.
func (e *GameEngine) Vehicle() *Vehicle { return e.vehicle }

// Session returns the session recorder.
func (e *GameEngine) Session() *SessionRecorder { return e.session }

// Levels returns the level source.
func (e *GameEngine) Levels() *LevelSource { return e.levels }

// RunUntil ticks until done reports true, the level ends or maxFrames
// frames have run. It returns the number of frames run.
func (e *GameEngine) RunUntil(dt float64, maxFrames int, done func(*GameState) bool) int {
	frames := 0
	for frames < maxFrames && !e.IsGameOver() {
		e.Tick(dt)
		frames++
		if done != nil && done(e.state) {
			break
		}
	}
	return frames
}
