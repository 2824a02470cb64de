package engine

import "math/rand/v2"

// smoothTask linearly moves the target movement vector from origin to
// target over duration seconds. A newer task replaces an older one outright.
type smoothTask struct {
	origin   Vec3
	target   Vec3
	elapsed  float64
	duration float64
}

func newSmoothTask(origin, target Vec3, duration float64) *smoothTask {
	return &smoothTask{origin: origin, target: target, duration: duration}
}

// advance returns the interpolated vector for the current frame, then moves
// the clock forward by dt.
func (t *smoothTask) advance(dt float64) Vec3 {
	if t.done() {
		return t.target
	}
	v := Lerp(t.origin, t.target, t.elapsed/t.duration)
	t.elapsed += dt
	return v
}

func (t *smoothTask) done() bool {
	return t.elapsed >= t.duration
}

func (t *smoothTask) snapshot() *SmoothingState {
	return &SmoothingState{
		Origin:   t.origin,
		Target:   t.target,
		Elapsed:  t.elapsed,
		Duration: t.duration,
	}
}

// finishTask waits FinishDelay seconds and then fires once.
type finishTask struct {
	elapsed float64
	fired   bool
}

// advance reports true exactly once, on the frame the delay runs out.
func (t *finishTask) advance(dt float64) bool {
	if t.fired {
		return false
	}
	t.elapsed += dt
	if t.elapsed >= FinishDelay {
		t.fired = true
		return true
	}
	return false
}

// swayTask is the cosmetic up/down body wiggle.
type swayTask struct {
	rng       *rand.Rand
	wait      float64
	offset    float64
	from, to  float64
	tween     float64
	tweening  bool
	cancelled bool
}

func newSwayTask(rng *rand.Rand, offset float64) *swayTask {
	s := &swayTask{rng: rng, offset: offset}
	s.wait = s.between(SwayMinInterval, SwayMaxInterval)
	return s
}

func (s *swayTask) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// advance returns the offset for this frame.
func (s *swayTask) advance(dt float64) float64 {
	if s.cancelled {
		return s.offset
	}

	s.wait -= dt
	if s.wait <= 0 {
		s.from = s.offset
		s.to = clamp(s.offset+s.between(-SwayStep, SwayStep), -SwayBound, SwayBound)
		s.tween = 0
		s.tweening = true
		s.wait += s.between(SwayMinInterval, SwayMaxInterval)
	}

	if s.tweening {
		s.tween += dt
		t := clamp01(s.tween / SwayTweenDuration)
		s.offset = lerpFloat(s.from, s.to, t)
		if t >= 1 {
			s.tweening = false
		}
	}
	return s.offset
}

func (s *swayTask) cancel() {
	s.cancelled = true
}
