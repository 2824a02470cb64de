package engine

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// VehicleState is the serialisable snapshot of a vehicle.
type VehicleState struct {
	Heading         Heading         `json:"heading"`
	TargetMove      Vec3            `json:"target_move"`
	CurrentMove     Vec3            `json:"current_move"`
	Position        Vec3            `json:"position"`
	SpeedScale      float64         `json:"speed_scale"`
	TurnsTaken      int             `json:"turns_taken"`
	InIntersection  bool            `json:"in_intersection"`
	TurnedThisVisit bool            `json:"turned_this_visit"`
	Terminated      bool            `json:"terminated"`
	Phase           Phase           `json:"phase"`
	Outcome         Outcome         `json:"outcome,omitempty"`
	FacingY         float64         `json:"facing_y"`
	SwayOffset      float64         `json:"sway_offset"`
	Smoothing       *SmoothingState `json:"smoothing,omitempty"`
	Finish          *FinishState    `json:"finish,omitempty"`
}

// Clone copies the state along with its task snapshots.
func (s VehicleState) Clone() VehicleState {
	if s.Smoothing != nil {
		sm := *s.Smoothing
		s.Smoothing = &sm
	}
	if s.Finish != nil {
		f := *s.Finish
		s.Finish = &f
	}
	return s
}

// SmoothingState is a running direction-smoothing task.
type SmoothingState struct {
	Origin   Vec3    `json:"origin"`
	Target   Vec3    `json:"target"`
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
}

// FinishState is the finish task once it has been started.
type FinishState struct {
	Elapsed float64 `json:"elapsed"`
	Fired   bool    `json:"fired"`
}

// TurnResult describes one turn request as seen by the vehicle.
type TurnResult struct {
	Direction  TurnDirection
	From       Heading
	To         Heading
	Accepted   bool
	TurnsTaken int
	Position   Vec3
}

// Vehicle is the bus: heading, turn counter and the smoothed movement
// model. It is driven by Update once per frame and by sensor callbacks.
// A Vehicle is not safe for concurrent use.
type Vehicle struct {
	level   LevelProvider
	session GameSession
	input   InputSource
	effects EffectsSink

	log           zerolog.Logger
	rng           *rand.Rand
	movementSpeed float64
	onTurn        func(TurnResult)

	heading         Heading
	targetMove      Vec3
	currentMove     Vec3
	position        Vec3
	speedScale      float64
	turnsTaken      int
	inIntersection  bool
	turnedThisVisit bool
	terminated      bool
	outcome         Outcome
	facing          float64

	smoothing *smoothTask
	finish    *finishTask
	sway      *swayTask

	unsubscribe []func()
}

// Option configures a Vehicle.
type Option func(*Vehicle)

// WithLogger sets the vehicle logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(v *Vehicle) { v.log = l }
}

// WithRand sets the random source used by the sway animation.
func WithRand(r *rand.Rand) Option {
	return func(v *Vehicle) { v.rng = r }
}

// WithMovementSpeed sets the smoothing rate used by both movement laws.
func WithMovementSpeed(speed float64) Option {
	return func(v *Vehicle) {
		if speed > 0 {
			v.movementSpeed = speed
		}
	}
}

// WithTurnObserver registers a callback invoked for every turn request,
// accepted or not.
func WithTurnObserver(fn func(TurnResult)) Option {
	return func(v *Vehicle) { v.onTurn = fn }
}

// NewVehicle builds a vehicle for the level's initial heading. Nil input or
// effects collaborators are replaced by no-op implementations. Call Attach
// to start receiving level and session notifications.
func NewVehicle(level LevelProvider, session GameSession, input InputSource, effects EffectsSink, opts ...Option) *Vehicle {
	if input == nil {
		input = noInput{}
	}
	if effects == nil {
		effects = discardEffects{}
	}
	v := &Vehicle{
		level:         level,
		session:       session,
		input:         input,
		effects:       effects,
		log:           zerolog.Nop(),
		movementSpeed: DefaultMovementSpeed,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		now := uint64(time.Now().UnixNano())
		v.rng = rand.New(rand.NewPCG(now, now>>1))
	}
	v.OnLevelReset(level.Level())
	return v
}

// Attach subscribes the vehicle to level-generated and session-start
// notifications. Calling Attach twice is a no-op.
func (v *Vehicle) Attach() {
	if len(v.unsubscribe) > 0 {
		return
	}
	v.unsubscribe = append(v.unsubscribe,
		v.level.OnLevelGenerated(v.OnLevelReset),
		v.session.OnStart(v.OnLevelStart),
	)
}

// Detach removes every subscription registered by Attach.
func (v *Vehicle) Detach() {
	for _, unsub := range v.unsubscribe {
		unsub()
	}
	v.unsubscribe = nil
}

// OnLevelStart sets the bus moving.
func (v *Vehicle) OnLevelStart() {
	if v.terminated {
		return
	}
	v.speedScale = 1
	v.log.Debug().Str("heading", string(v.heading)).Msg("level started")
}

// OnLevelReset puts the bus back at the origin, stopped, facing the
// descriptor's initial heading. Any running smoothing or finish task is
// dropped. A terminated bus is left as it is.
func (v *Vehicle) OnLevelReset(d LevelDescriptor) {
	if v.terminated {
		return
	}
	heading := d.InitialHeading
	if !heading.Valid() {
		heading = North
	}

	v.speedScale = 0
	v.position = Vec3{}
	v.heading = heading
	v.targetMove = heading.Vector()
	v.currentMove = v.targetMove
	v.smoothing = nil
	v.finish = nil
	v.turnsTaken = 0
	v.inIntersection = false
	v.turnedThisVisit = false
	v.outcome = OutcomeNone

	offset := 0.0
	if v.sway != nil {
		offset = v.sway.offset
		v.sway.cancel()
	}
	v.sway = newSwayTask(v.rng, offset)

	v.facing = Facing(heading)
	v.effects.Cue(Cue{Kind: CueFacing, Value: v.facing})
	v.log.Debug().Str("heading", string(heading)).Int("required_turns", d.RequiredTurns).Msg("level reset")
}

// OnIntersectionEnter marks the bus as inside an intersection zone. It does
// not re-arm turning: only an exit does that.
func (v *Vehicle) OnIntersectionEnter() {
	v.inIntersection = true
}

// OnIntersectionExit leaves the zone and re-arms turning for the next one.
func (v *Vehicle) OnIntersectionExit() {
	v.inIntersection = false
	v.turnedThisVisit = false
}

// OnCollision terminates the vehicle and signals the loss.
func (v *Vehicle) OnCollision() {
	if v.terminated {
		return
	}
	v.terminated = true
	v.outcome = OutcomeLost
	v.stopSway()
	v.log.Info().Interface("position", v.position).Msg("collision")
	v.session.Lose()
}

// RequestTurn turns the bus if it is inside an intersection zone and has not
// turned during this visit yet. It reports whether the turn was accepted.
func (v *Vehicle) RequestTurn(dir TurnDirection) bool {
	from := v.heading
	accepted := dir.Valid() && v.inIntersection && !v.turnedThisVisit && !v.terminated
	if accepted {
		v.heading = from.Turn(dir)
		v.turnsTaken++
		v.turnedThisVisit = true
		v.smoothing = newSmoothTask(v.targetMove, v.heading.Vector(), TurnSmoothingDuration)
		v.facing = Facing(v.heading)

		if dir == Left {
			v.effects.Cue(Cue{Kind: CueTurnLeft})
		} else {
			v.effects.Cue(Cue{Kind: CueTurnRight})
		}
		v.effects.Cue(Cue{Kind: CueRotationParticles})
		v.effects.Cue(Cue{Kind: CueRotationSound})
		v.effects.Cue(Cue{Kind: CueFacing, Value: v.facing})

		v.log.Debug().
			Str("direction", string(dir)).
			Str("from", string(from)).
			Str("to", string(v.heading)).
			Int("turns", v.turnsTaken).
			Msg("turn accepted")
	}

	if v.onTurn != nil {
		v.onTurn(TurnResult{
			Direction:  dir,
			From:       from,
			To:         v.heading,
			Accepted:   accepted,
			TurnsTaken: v.turnsTaken,
			Position:   v.position,
		})
	}
	return accepted
}

// Update advances the vehicle by dt seconds.
func (v *Vehicle) Update(dt float64) {
	if v.terminated {
		v.log.Debug().Str("outcome", string(v.outcome)).Msg("update ignored, vehicle terminated")
		return
	}
	if dt < 0 {
		dt = 0
	}

	// Both queries are made every frame so a latched request never leaks
	// into a later frame.
	left := v.input.TurnLeftRequested()
	right := v.input.TurnRightRequested()
	if left {
		v.RequestTurn(Left)
	}
	if right {
		v.RequestTurn(Right)
	}

	if s := v.smoothing; s != nil {
		finished := s.done()
		v.targetMove = s.advance(dt)
		if finished {
			v.smoothing = nil
		}
	}

	v.currentMove = SmoothStep(v.currentMove, v.targetMove, dt, v.movementSpeed)
	v.position = SmoothStep(v.position, v.position.Add(v.currentMove.Scale(v.speedScale)), dt, v.movementSpeed)

	if v.finish == nil && v.turnsTaken >= v.level.Level().RequiredTurns {
		v.finish = &finishTask{}
		v.log.Debug().Int("turns", v.turnsTaken).Msg("finish sequence started")
	}
	if v.finish != nil && v.finish.advance(dt) {
		v.completeFinish()
		return
	}

	if v.sway != nil {
		v.effects.Cue(Cue{Kind: CueSway, Value: v.sway.advance(dt)})
	}
}

func (v *Vehicle) completeFinish() {
	zero := Vec3{}
	v.currentMove = Lerp(v.currentMove, zero, FinishBlend)
	v.targetMove = Lerp(v.targetMove, zero, FinishBlend)
	v.smoothing = nil
	v.terminated = true
	v.outcome = OutcomeWon
	v.stopSway()

	v.log.Info().Int("turns", v.turnsTaken).Msg("level finished")
	v.session.Finish()
	v.effects.Cue(Cue{Kind: CueWinSound})
}

func (v *Vehicle) stopSway() {
	if v.sway == nil {
		return
	}
	v.sway.cancel()
	v.effects.Cue(Cue{Kind: CueSwayStop, Value: v.sway.offset})
}

// Phase derives the lifecycle phase from the vehicle state.
func (v *Vehicle) Phase() Phase {
	switch {
	case v.terminated:
		return PhaseTerminated
	case v.finish != nil:
		return PhaseFinishing
	case v.speedScale > 0:
		return PhaseMoving
	default:
		return PhaseIdle
	}
}

// Heading returns the direction the bus is travelling in.
func (v *Vehicle) Heading() Heading { return v.heading }

// TurnsTaken counts the turns accepted since the last level reset.
func (v *Vehicle) TurnsTaken() int { return v.turnsTaken }

// SpeedScale is 0 while idle and 1 once the level has started.
func (v *Vehicle) SpeedScale() float64 { return v.speedScale }

// Position returns the bus position in world units, origin at the start cell.
func (v *Vehicle) Position() Vec3 { return v.position }

// CurrentMove is the smoothed movement vector applied each update.
func (v *Vehicle) CurrentMove() Vec3 { return v.currentMove }

// TargetMove is the movement vector the smoothing task is heading for.
func (v *Vehicle) TargetMove() Vec3 { return v.targetMove }

// InIntersection reports whether the bus is inside a crossroads zone.
func (v *Vehicle) InIntersection() bool { return v.inIntersection }

// TurnedThisVisit reports whether a turn was taken since the last zone exit.
func (v *Vehicle) TurnedThisVisit() bool { return v.turnedThisVisit }

// Terminated reports whether the bus crashed or finished.
func (v *Vehicle) Terminated() bool { return v.terminated }

// Outcome tells why the bus terminated, or OutcomeNone.
func (v *Vehicle) Outcome() Outcome { return v.outcome }

// Smoothing reports whether a turn smoothing task is running.
func (v *Vehicle) Smoothing() bool { return v.smoothing != nil }

// FacingY returns the facing rotation in degrees.
func (v *Vehicle) FacingY() float64 { return v.facing }

// SwayCancelled reports whether the sway task is stopped.
func (v *Vehicle) SwayCancelled() bool { return v.sway == nil || v.sway.cancelled }

// MovementSpeed returns the speed in world units per second.
func (v *Vehicle) MovementSpeed() float64 { return v.movementSpeed }

// Attached reports whether the bus is subscribed to its notifications.
func (v *Vehicle) Attached() bool { return len(v.unsubscribe) > 0 }

// Level returns the descriptor of the current level.
func (v *Vehicle) Level() LevelDescriptor { return v.level.Level() }

// Snapshot copies the vehicle state out for persistence.
func (v *Vehicle) Snapshot() VehicleState {
	s := VehicleState{
		Heading:         v.heading,
		TargetMove:      v.targetMove,
		CurrentMove:     v.currentMove,
		Position:        v.position,
		SpeedScale:      v.speedScale,
		TurnsTaken:      v.turnsTaken,
		InIntersection:  v.inIntersection,
		TurnedThisVisit: v.turnedThisVisit,
		Terminated:      v.terminated,
		Phase:           v.Phase(),
		Outcome:         v.outcome,
		FacingY:         v.facing,
	}
	if v.sway != nil {
		s.SwayOffset = v.sway.offset
	}
	if v.smoothing != nil {
		s.Smoothing = v.smoothing.snapshot()
	}
	if v.finish != nil {
		s.Finish = &FinishState{Elapsed: v.finish.elapsed, Fired: v.finish.fired}
	}
	return s
}

// Restore loads a snapshot taken by Snapshot. The sway tween is restarted
// from the stored offset.
func (v *Vehicle) Restore(s VehicleState) {
	v.heading = s.Heading
	if !v.heading.Valid() {
		v.heading = North
	}
	v.targetMove = s.TargetMove
	v.currentMove = s.CurrentMove
	v.position = s.Position
	v.speedScale = clamp01(s.SpeedScale)
	v.turnsTaken = max(s.TurnsTaken, 0)
	v.inIntersection = s.InIntersection
	v.turnedThisVisit = s.TurnedThisVisit
	v.terminated = s.Terminated
	v.outcome = s.Outcome
	v.facing = Facing(v.heading)

	v.smoothing = nil
	if s.Smoothing != nil && s.Smoothing.Duration > 0 {
		v.smoothing = &smoothTask{
			origin:   s.Smoothing.Origin,
			target:   s.Smoothing.Target,
			elapsed:  s.Smoothing.Elapsed,
			duration: s.Smoothing.Duration,
		}
	}
	v.finish = nil
	if s.Finish != nil {
		v.finish = &finishTask{elapsed: s.Finish.Elapsed, fired: s.Finish.Fired}
	}

	v.sway = newSwayTask(v.rng, s.SwayOffset)
	if v.terminated {
		v.sway.cancel()
	}
}
