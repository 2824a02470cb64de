package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/level"
)

const (
	// DefaultDriveFrames bounds a Drive call when the caller gives no limit.
	DefaultDriveFrames = 3000
	// MaxDriveFrames is the hard frame cap of a single Drive call.
	MaxDriveFrames = 9000
	// MaxDrivePlan is the longest turn plan a Drive call accepts.
	MaxDrivePlan = 50
	// MaxFrameDelta is the largest frame time a Tick call accepts.
	MaxFrameDelta = 0.25
	// DefaultGeneratedTurns is used when a generate request names no turn count.
	DefaultGeneratedTurns = 3
	// MaxGeneratedTurns keeps generated tracks inside the grid limits.
	MaxGeneratedTurns = 12
	// MinRealtimeFPS and MaxRealtimeFPS bound the realtime loop cadence.
	MinRealtimeFPS = 1
	MaxRealtimeFPS = 240
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("config not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Option configures the game service.
type Option func(*gameServiceImpl)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *gameServiceImpl) { s.log = l }
}

// WithResults records every finished run in store.
func WithResults(store ResultsStore) Option {
	return func(s *gameServiceImpl) { s.results = store }
}

// WithMeter sets the meter used for the service counters.
func WithMeter(m metric.Meter) Option {
	return func(s *gameServiceImpl) { s.meter = m }
}

// WithEventListener is called with every game event the service produces,
// while the service lock is held. fn must not call back into the service.
func WithEventListener(fn func(sessionID string, ev GameEvent)) Option {
	return func(s *gameServiceImpl) { s.listeners = append(s.listeners, fn) }
}

// WithSeedSource replaces the source of random level seeds.
func WithSeedSource(fn func() uint64) Option {
	return func(s *gameServiceImpl) { s.seed = fn }
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  SessionManager
	configs   ConfigManager
	results   ResultsStore
	log       zerolog.Logger
	meter     metric.Meter
	metrics   *serviceMetrics
	listeners []func(sessionID string, ev GameEvent)
	seed      func() uint64
	mu        sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		log:      zerolog.Nop(),
		seed:     rand.Uint64,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter == nil {
		s.meter = meter()
	}

	m, err := newServiceMetrics(s.meter, s.countMoving)
	if err != nil {
		s.log.Warn().Err(err).Msg("metrics disabled")
		m, _ = newServiceMetrics(noop.Meter{}, s.countMoving)
	}
	s.metrics = m
	return s
}

// getConfigID returns the config_id for a session, used for consistent API responses
func (s *gameServiceImpl) getConfigID(sess *Session) string {
	if sess.ConfigID != "" {
		return sess.ConfigID
	}
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == sess.Config.Name {
				return cfg.ConfigID
			}
		}
	}
	if sess.Config.Name == "" {
		return "default"
	}
	return sess.Config.Name
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.getConfigID(sess),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState().Clone(),
		GameConfig:     sess.Config,
	}
}

// session looks up a session for a mutating call and attaches the outcome
// listener. The caller holds s.mu.
func (s *gameServiceImpl) session(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	s.watch(ctx, sess)
	return sess, nil
}

func (s *gameServiceImpl) watch(ctx context.Context, sess *Session) {
	ctx = context.WithoutCancel(ctx)
	sess.Engine.SetOutcomeListener(func(o engine.Outcome, state *engine.GameState) {
		s.recordOutcome(ctx, sess, o, state)
	})
}

func (s *gameServiceImpl) recordOutcome(ctx context.Context, sess *Session, o engine.Outcome, state *engine.GameState) {
	configID := s.getConfigID(sess)
	switch o {
	case engine.OutcomeWon:
		s.metrics.won.Add(ctx, 1, configAttr(configID))
	case engine.OutcomeLost:
		s.metrics.lost.Add(ctx, 1, configAttr(configID))
	}

	s.log.Info().
		Str("session", sess.ID).
		Str("config", configID).
		Str("outcome", string(o)).
		Int("frame", state.Frame).
		Msg("run finished")

	if s.results == nil {
		return
	}
	run := &RunResult{
		SessionID:  sess.ID,
		ConfigName: configID,
		Outcome:    o,
		Turns:      sess.Engine.Vehicle().TurnsTaken(),
		Required:   state.Required,
		Frames:     state.Frame,
		Elapsed:    state.Elapsed,
		Cell:       state.Cell,
		FinishedAt: time.Now(),
	}
	if err := s.results.Record(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID).Msg("failed to record run")
	}
}

func (s *gameServiceImpl) emit(sessionID string, events []GameEvent) {
	for _, ev := range events {
		for _, fn := range s.listeners {
			fn(sessionID, ev)
		}
	}
}

func (s *gameServiceImpl) save(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msgf("failed to persist session after %s", after)
	}
}

func (s *gameServiceImpl) countMoving() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, sess := range s.sessions.List() {
		switch sess.Engine.Vehicle().Phase() {
		case engine.PhaseMoving, engine.PhaseFinishing:
			n++
		}
	}
	return n
}

func newEvent(typ, message string, state *engine.GameState) GameEvent {
	return GameEvent{
		Type:      typ,
		Message:   message,
		Timestamp: time.Now(),
		Frame:     state.Frame,
		Cell:      state.Cell,
	}
}

// frame ticks sess once and reports what happened during the frame, in the
// order the engine processed it: turns, zone exit and entry, then the
// finish sequence and the outcome.
func (s *gameServiceImpl) frame(sess *Session, dt float64) []GameEvent {
	eng := sess.Engine
	v := eng.Vehicle()
	wasInZone := v.InIntersection()
	wasPhase := v.Phase()
	seen := len(eng.GetTurnHistory())

	state := eng.Tick(dt)

	var events []GameEvent
	for _, t := range eng.GetTurnHistory()[seen:] {
		if t.Accepted {
			events = append(events, newEvent("turn",
				fmt.Sprintf("Turned %s, now heading %s", t.Direction, t.ToHeading), state))
		} else {
			events = append(events, newEvent("turn_ignored",
				fmt.Sprintf("Turn %s ignored outside a crossroads", t.Direction), state))
		}
	}

	inZone := v.InIntersection()
	switch {
	case wasInZone && !inZone:
		events = append(events, newEvent("exit", "Left the crossroads", state))
	case !wasInZone && inZone:
		events = append(events, newEvent("enter",
			fmt.Sprintf("Entered crossroads at (%d,%d)", state.Cell.X, state.Cell.Y), state))
	}

	phase := v.Phase()
	if phase != wasPhase {
		switch {
		case phase == engine.PhaseFinishing:
			events = append(events, newEvent("finishing", "All turns taken, heading for the finish", state))
		case state.Outcome == engine.OutcomeWon:
			events = append(events, newEvent("finish", state.Message, state))
		case state.Outcome == engine.OutcomeLost:
			events = append(events, newEvent("lose", state.Message, state))
		}
	}
	return events
}

// run ticks sess up to frames times, stopping when the level ends.
func (s *gameServiceImpl) run(ctx context.Context, sess *Session, frames int, dt float64) ([]GameEvent, int) {
	events := []GameEvent{}
	ran := 0
	for ran < frames && !sess.Engine.IsGameOver() {
		events = append(events, s.frame(sess, dt)...)
		ran++
	}
	s.countFrames(ctx, sess, ran, events)
	return events, ran
}

func (s *gameServiceImpl) countFrames(ctx context.Context, sess *Session, frames int, events []GameEvent) {
	if frames == 0 {
		return
	}
	attr := configAttr(s.getConfigID(sess))
	s.metrics.frames.Add(ctx, int64(frames), attr)
	turns := 0
	for _, ev := range events {
		if ev.Type == "turn" {
			turns++
		}
	}
	if turns > 0 {
		s.metrics.turns.Add(ctx, int64(turns), attr)
	}
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.LevelConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess.ConfigID = strings.TrimSuffix(configName, ".json")
	sess.ConfigID = s.getConfigID(sess)
	s.watch(ctx, sess)
	s.save(sess.ID, "create")

	s.log.Info().Str("session", sess.ID).Str("config", sess.ConfigID).Msg("session created")
	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// StartLevel sets the bus of a session in motion
func (s *gameServiceImpl) StartLevel(ctx context.Context, sessionID string) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	started := sess.Engine.Start()
	state := sess.Engine.GetState().Clone()
	result := &ActionResult{
		Success:   started,
		GameState: state,
		Message:   state.Message,
		Events:    []GameEvent{},
	}
	if !started {
		if state.GameOver {
			result.Message = "Level is over, reset to play again"
		} else {
			result.Message = "Bus is already moving"
		}
		return result, nil
	}

	result.Events = append(result.Events, newEvent("start", state.Message, state))
	s.emit(sessionID, result.Events)
	s.save(sessionID, "start")
	return result, nil
}

// Turn latches a turn request and runs ticks frames so the bus can act on it
func (s *gameServiceImpl) Turn(ctx context.Context, sessionID, direction string, ticks int) (*ActionResult, error) {
	dir, err := engine.ParseTurnDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if ticks <= 0 {
		ticks = 1
	}
	if ticks > engine.MaxTicksPerCall {
		return nil, fmt.Errorf("%w: ticks must be at most %d", ErrInvalidArgument, engine.MaxTicksPerCall)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.Engine.Turn(dir) {
		state := sess.Engine.GetState().Clone()
		return &ActionResult{
			Success:   false,
			GameState: state,
			Message:   state.Message,
			Events:    []GameEvent{},
		}, nil
	}

	seen := len(sess.Engine.GetTurnHistory())
	events, frames := s.run(ctx, sess, ticks, engine.DefaultFrameDelta)
	state := sess.Engine.GetState().Clone()

	accepted := false
	if history := sess.Engine.GetTurnHistory(); len(history) > seen {
		accepted = history[seen].Accepted
	}

	s.emit(sessionID, events)
	s.save(sessionID, "turn")

	return &ActionResult{
		Success:   accepted,
		GameState: state,
		Message:   state.Message,
		Events:    events,
		Frames:    frames,
	}, nil
}

// Tick advances a session by frames frames of dt seconds
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, frames int, dt float64) (*ActionResult, error) {
	if frames <= 0 {
		frames = 1
	}
	if frames > engine.MaxTicksPerCall {
		return nil, fmt.Errorf("%w: frames must be at most %d", ErrInvalidArgument, engine.MaxTicksPerCall)
	}
	if dt == 0 {
		dt = engine.DefaultFrameDelta
	}
	if dt < 0 || dt > MaxFrameDelta {
		return nil, fmt.Errorf("%w: dt must be between 0 and %g seconds", ErrInvalidArgument, MaxFrameDelta)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events, ran := s.run(ctx, sess, frames, dt)
	state := sess.Engine.GetState().Clone()

	s.emit(sessionID, events)
	s.save(sessionID, "tick")

	return &ActionResult{
		Success:   ran > 0,
		GameState: state,
		Message:   state.Message,
		Events:    events,
		Frames:    ran,
	}, nil
}

// Drive starts the bus if needed and plays a plan of turns, one per
// crossroads, until the level ends, the frame budget runs out or the bus
// reaches a crossroads with the plan used up.
func (s *gameServiceImpl) Drive(ctx context.Context, sessionID string, turns []string, maxFrames int) (*DriveResult, error) {
	plan := make([]engine.TurnDirection, 0, len(turns))
	for i, t := range turns {
		dir, err := engine.ParseTurnDirection(t)
		if err != nil {
			return nil, fmt.Errorf("%w: turn %d: %v", ErrInvalidArgument, i+1, err)
		}
		plan = append(plan, dir)
	}
	if maxFrames <= 0 {
		maxFrames = DefaultDriveFrames
	}
	if maxFrames > MaxDriveFrames {
		maxFrames = MaxDriveFrames
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	eng := sess.Engine
	v := eng.Vehicle()

	state := eng.GetState()
	result := &DriveResult{
		TurnsRequested: len(plan),
		Events:         []GameEvent{},
		Success:        true,
		StartCell:      state.Cell,
		StartHeading:   v.Heading(),
	}

	if len(plan) > MaxDrivePlan {
		result.Truncated = true
		result.Limit = MaxDrivePlan
		plan = plan[:MaxDrivePlan]
	}

	if eng.IsGameOver() {
		result.Success = false
		result.StoppedReason = "level is already over"
		result.StopReasonCode = "game_over"
	} else {
		if v.Phase() == engine.PhaseIdle && eng.Start() {
			result.Events = append(result.Events, newEvent("start", eng.GetState().Message, eng.GetState()))
		}

		next := 0
		for result.FramesRun < maxFrames && !eng.IsGameOver() {
			if next < len(plan) && v.InIntersection() && !v.TurnedThisVisit() {
				eng.Turn(plan[next])
			}

			seen := len(eng.GetTurnHistory())
			events := s.frame(sess, engine.DefaultFrameDelta)
			result.FramesRun++
			result.Events = append(result.Events, events...)

			for _, t := range eng.GetTurnHistory()[seen:] {
				if next >= len(plan) {
					break
				}
				result.Steps = append(result.Steps, StepInfo{
					Idx:         next + 1,
					Dir:         t.Direction,
					Cell:        t.Cell,
					Frame:       t.Frame,
					FromHeading: t.FromHeading,
					ToHeading:   t.ToHeading,
					Accepted:    t.Accepted,
				})
				if t.Accepted {
					result.TurnsApplied++
					next++
				}
			}

			if next == len(plan) && !eng.IsGameOver() && v.Phase() == engine.PhaseMoving && entered(events) {
				result.StoppedReason = "reached a crossroads with no turns left in the plan"
				result.StopReasonCode = "plan_exhausted"
				break
			}
		}
		s.countFrames(ctx, sess, result.FramesRun, result.Events)
	}

	end := eng.GetState().Clone()
	result.GameState = end
	result.EndCell = end.Cell
	result.EndHeading = v.Heading()
	result.GameOver = end.GameOver
	result.Message = end.Message
	result.LocalView3x3 = end.LocalView3x3
	result.NextAction = end.NextAction

	if result.StopReasonCode == "" {
		switch end.Outcome {
		case engine.OutcomeWon:
			result.StoppedReason = "reached the finish"
			result.StopReasonCode = "victory"
		case engine.OutcomeLost:
			result.StoppedReason = "crashed"
			result.StopReasonCode = "crash"
		default:
			result.StoppedReason = fmt.Sprintf("frame limit %d reached", maxFrames)
			result.StopReasonCode = "frame_limit"
		}
	}
	switch end.Outcome {
	case engine.OutcomeWon:
		result.GameOverCode = "victory"
	case engine.OutcomeLost:
		result.GameOverCode = "crash"
		result.Success = false
	}

	s.emit(sessionID, result.Events)
	s.save(sessionID, "drive")
	return result, nil
}

func entered(events []GameEvent) bool {
	for _, ev := range events {
		if ev.Type == "enter" {
			return true
		}
	}
	return false
}

// Reset resets a game session to initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.Reset().Clone()
	s.emit(sessionID, []GameEvent{newEvent("reset", "Level reset", state)})
	s.save(sessionID, "reset")
	return state, nil
}

// GetGameState returns a snapshot of the session's game state. It takes the
// write lock because touching the session persists it.
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.GetState().Clone(), nil
}

// GetTurnHistory returns paginated turn history
func (s *gameServiceImpl) GetTurnHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	history := sess.Engine.GetTurnHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var turns []engine.TurnHistoryEntry
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			turns = append(turns, history[i])
		}
	} else if start < total {
		turns = slices.Clone(history[start:end])
	}

	if turns == nil {
		turns = []engine.TurnHistoryEntry{}
	}

	return &HistoryResponse{
		Turns:       turns,
		TotalTurns:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available level configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific level configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LevelConfig, error) {
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		if strings.Contains(err.Error(), "configuration not found") {
			return nil, fmt.Errorf("%w: '%s'", ErrConfigNotFound, configName)
		}
		return nil, err
	}
	return config, nil
}

// SaveConfig validates and stores a level configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LevelConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is required", ErrInvalidArgument)
	}
	if err := s.configs.SaveConfig(configName, config); err != nil {
		return err
	}
	s.log.Info().Str("config", configName).Msg("config saved")
	return nil
}

// GenerateLevel builds a new level from a seed and saves it as a config
func (s *gameServiceImpl) GenerateLevel(ctx context.Context, req GenerateRequest) (*ConfigInfo, error) {
	if req.Turns == 0 {
		req.Turns = DefaultGeneratedTurns
	}
	if req.Turns < engine.MinRequiredTurns || req.Turns > MaxGeneratedTurns {
		return nil, fmt.Errorf("%w: turns must be between %d and %d", ErrInvalidArgument, engine.MinRequiredTurns, MaxGeneratedTurns)
	}
	for req.Seed == 0 {
		req.Seed = s.seed()
	}

	config, err := level.New(req.Seed).Generate(req.ConfigID, req.Turns)
	if err != nil {
		return nil, err
	}
	id := req.ConfigID
	if id == "" {
		id = config.Name
	}
	if err := s.configs.SaveConfig(id, config); err != nil {
		return nil, fmt.Errorf("failed to save generated level: %w", err)
	}

	s.log.Info().
		Str("config", id).
		Uint64("seed", req.Seed).
		Int("turns", req.Turns).
		Msg("level generated")
	return DescribeConfig(id+".json", id, config), nil
}

// ListResults returns the most recent finished runs
func (s *gameServiceImpl) ListResults(ctx context.Context, limit int) ([]*RunResult, error) {
	if s.results == nil {
		return []*RunResult{}, nil
	}
	return s.results.List(ctx, limit)
}

// RunRealtime ticks every driving session once per frame until ctx is done.
// onFrame runs under the service lock and must not call back into the
// service. The state it receives is a snapshot it may keep.
func (s *gameServiceImpl) RunRealtime(ctx context.Context, fps int, onFrame func(sessionID string, state *engine.GameState)) error {
	if fps < MinRealtimeFPS || fps > MaxRealtimeFPS {
		return fmt.Errorf("%w: fps must be between %d and %d", ErrInvalidArgument, MinRealtimeFPS, MaxRealtimeFPS)
	}
	dt := 1.0 / float64(fps)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	s.log.Info().Int("fps", fps).Msg("realtime loop started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("realtime loop stopped")
			return nil
		case <-ticker.C:
			s.realtimeFrame(ctx, dt, onFrame)
		}
	}
}

func (s *gameServiceImpl) realtimeFrame(ctx context.Context, dt float64, onFrame func(string, *engine.GameState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions.List() {
		switch sess.Engine.Vehicle().Phase() {
		case engine.PhaseMoving, engine.PhaseFinishing:
		default:
			continue
		}

		s.watch(ctx, sess)
		events, _ := s.run(ctx, sess, 1, dt)
		s.emit(sess.ID, events)
		if onFrame != nil {
			onFrame(sess.ID, sess.Engine.GetState().Clone())
		}
		if sess.Engine.IsGameOver() {
			s.save(sess.ID, "level end")
		}
	}
}
