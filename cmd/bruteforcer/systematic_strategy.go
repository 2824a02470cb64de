package main

import "github.com/wricardo/mcp-training/crossroadbus/game/service"

// SystematicStrategy enumerates turn plans of a fixed length in order,
// left before right, like counting in binary. When a drive crashes after
// its n-th accepted turn, every plan sharing those first n turns is
// skipped at once.
type SystematicStrategy struct {
	plan      []bool // true = right
	exhausted bool
	tried     int
}

func NewSystematicStrategy(turns int) *SystematicStrategy {
	if turns < 1 {
		turns = 1
	}
	return &SystematicStrategy{plan: make([]bool, turns)}
}

// Plan returns the next plan to try, or nil when every plan has been ruled out.
func (s *SystematicStrategy) Plan() []string {
	if s.exhausted {
		return nil
	}
	out := make([]string, len(s.plan))
	for i, right := range s.plan {
		out[i] = "left"
		if right {
			out[i] = "right"
		}
	}
	return out
}

// Tried is the number of plans reported so far.
func (s *SystematicStrategy) Tried() int { return s.tried }

// Report feeds back the result of driving the current plan and reports
// whether it won.
func (s *SystematicStrategy) Report(result *service.DriveResult) bool {
	s.tried++
	if result.GameOverCode == "victory" {
		return true
	}

	// The last accepted turn is the first one that can be wrong.
	bad := len(s.plan)
	if result.StopReasonCode == "crash" && result.TurnsApplied > 0 && result.TurnsApplied < len(s.plan) {
		bad = result.TurnsApplied
	}
	s.advance(bad - 1)
	return false
}

// advance moves to the next plan that differs within the first pos+1
// turns: increment at pos with carry and clear everything after it.
func (s *SystematicStrategy) advance(pos int) {
	for i := pos + 1; i < len(s.plan); i++ {
		s.plan[i] = false
	}
	for i := pos; i >= 0; i-- {
		if !s.plan[i] {
			s.plan[i] = true
			return
		}
		s.plan[i] = false
	}
	s.exhausted = true
}
