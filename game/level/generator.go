// Package level generates crossroad bus levels.
//
// A generated level is a single course: straight road segments joined by
// intersections where only one side continues, ending in a finish street.
// Generation is deterministic for a given seed.
package level

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// FinishApron is the number of finish cells after the last intersection.
const FinishApron = 3

const maxAttempts = 500

var ErrGenerationFailed = errors.New("level generation failed")

// Options tune the generator.
type Options struct {
	// MinSegment and MaxSegment bound the number of road cells between two
	// intersections.
	MinSegment int
	MaxSegment int
}

// DefaultOptions returns segment lengths that give a player a couple of
// seconds between crossroads at the default speed.
func DefaultOptions() Options {
	return Options{MinSegment: 2, MaxSegment: 4}
}

// Generator builds level configs from a seeded random source.
type Generator struct {
	seed uint64
	rng  *rand.Rand
	opts Options
}

// New creates a generator for seed with default options.
func New(seed uint64) *Generator {
	return NewWithOptions(seed, DefaultOptions())
}

// NewWithOptions creates a generator for seed.
func NewWithOptions(seed uint64, opts Options) *Generator {
	if opts.MinSegment < 1 {
		opts.MinSegment = 1
	}
	if opts.MaxSegment < opts.MinSegment {
		opts.MaxSegment = opts.MinSegment
	}
	return &Generator{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		opts: opts,
	}
}

// Generate builds a validated level that needs turns turns. An empty name
// is replaced by one derived from the seed.
func (g *Generator) Generate(name string, turns int) (*engine.LevelConfig, error) {
	if turns < engine.MinRequiredTurns || turns > engine.MaxRequiredTurns {
		return nil, fmt.Errorf("%w: turns must be between %d and %d, got %d",
			ErrGenerationFailed, engine.MinRequiredTurns, engine.MaxRequiredTurns, turns)
	}
	if name == "" {
		name = fmt.Sprintf("generated-%d-%d", g.seed, turns)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		c, ok := g.walk(turns)
		if !ok {
			continue
		}
		layout, ok := c.layout()
		if !ok {
			continue
		}

		config := &engine.LevelConfig{
			Name:           name,
			Description:    fmt.Sprintf("Generated level with %d turns (seed %d)", turns, g.seed),
			InitialHeading: c.heading,
			RequiredTurns:  turns,
			Seed:           g.seed,
			Layout:         layout,
			Messages:       engine.DefaultMessages(),
		}
		engine.ApplyDefaults(config)
		if err := engine.ValidateLevelConfig(config); err != nil {
			continue
		}
		return config, nil
	}
	return nil, fmt.Errorf("%w: no valid layout after %d attempts", ErrGenerationFailed, maxAttempts)
}

// course is a walk on an unbounded grid.
type course struct {
	heading engine.Heading
	cells   map[engine.Position]byte
	last    engine.Position
}

func (c *course) step(p engine.Position, h engine.Heading) engine.Position {
	dx, dy := h.Delta()
	return engine.Position{X: p.X + dx, Y: p.Y + dy}
}

// place adds a cell unless it would touch the course anywhere but the
// previous cell. That keeps every intersection closed on the unused sides.
func (c *course) place(p engine.Position, ch byte) bool {
	if _, taken := c.cells[p]; taken {
		return false
	}
	for _, h := range engine.Headings {
		n := c.step(p, h)
		if n == c.last {
			continue
		}
		if _, taken := c.cells[n]; taken {
			return false
		}
	}
	c.cells[p] = ch
	c.last = p
	return true
}

func (g *Generator) walk(turns int) (*course, bool) {
	heading := engine.Headings[g.rng.IntN(len(engine.Headings))]
	origin := engine.Position{}
	c := &course{
		heading: heading,
		cells:   map[engine.Position]byte{origin: 'S'},
		last:    origin,
	}

	pos := origin
	for i := 0; i < turns; i++ {
		n := g.opts.MinSegment + g.rng.IntN(g.opts.MaxSegment-g.opts.MinSegment+1)
		for j := 0; j < n; j++ {
			pos = c.step(pos, heading)
			if !c.place(pos, 'R') {
				return nil, false
			}
		}
		pos = c.step(pos, heading)
		if !c.place(pos, 'X') {
			return nil, false
		}
		if g.rng.IntN(2) == 0 {
			heading = heading.Turn(engine.Left)
		} else {
			heading = heading.Turn(engine.Right)
		}
	}
	for j := 0; j < FinishApron; j++ {
		pos = c.step(pos, heading)
		if !c.place(pos, 'F') {
			return nil, false
		}
	}
	return c, true
}

// layout crops the course to its bounding box with a one-cell building
// border, padded to the minimum grid size.
func (c *course) layout() ([]string, bool) {
	minX, minY, maxX, maxY := 0, 0, 0, 0
	for p := range c.cells {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	minX, minY, maxX, maxY = minX-1, minY-1, maxX+1, maxY+1
	for maxX-minX+1 < engine.MinGridSize {
		maxX++
	}
	for maxY-minY+1 < engine.MinGridSize {
		maxY++
	}
	if maxX-minX+1 > engine.MaxGridSize || maxY-minY+1 > engine.MaxGridSize {
		return nil, false
	}

	rows := make([]string, 0, maxY-minY+1)
	for y := minY; y <= maxY; y++ {
		row := make([]byte, 0, maxX-minX+1)
		for x := minX; x <= maxX; x++ {
			ch, ok := c.cells[engine.Position{X: x, Y: y}]
			if !ok {
				ch = 'B'
			}
			row = append(row, ch)
		}
		rows = append(rows, string(row))
	}
	return rows, true
}

// Solution returns the turns that complete config.
func Solution(config *engine.LevelConfig) ([]engine.TurnDirection, error) {
	c, err := engine.TraceCourse(config.Layout, config.InitialHeading)
	if err != nil {
		return nil, err
	}
	if len(c.Turns) < config.RequiredTurns {
		return nil, fmt.Errorf("course has %d turns, need %d", len(c.Turns), config.RequiredTurns)
	}
	return c.Turns[:config.RequiredTurns], nil
}
