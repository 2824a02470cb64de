package engine

import (
	"fmt"
	"math"
)

// SensorEvent is a zone or collision event detected by the track.
type SensorEvent string

const (
	EventIntersectionExit  SensorEvent = "intersection_exit"
	EventIntersectionEnter SensorEvent = "intersection_enter"
	EventCollision         SensorEvent = "collision"
)

// Track is the grid the bus drives on. It maps world positions to cells and
// acts as the zone/collision sensor for the vehicle.
type Track struct {
	layout   []string
	cellSize float64
	start    Position
	prev     Position
}

// NewTrack builds a track from layout rows. The layout must contain exactly
// one start cell.
func NewTrack(layout []string, cellSize float64) (*Track, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("track: layout is empty")
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("track: cell size must be positive, got %v", cellSize)
	}

	starts := 0
	var start Position
	for y, row := range layout {
		for x, ch := range row {
			if ch == 'S' {
				starts++
				start = Position{X: x, Y: y}
			}
		}
	}
	if starts != 1 {
		return nil, fmt.Errorf("track: layout must contain exactly one start (S) cell, found %d", starts)
	}

	rows := make([]string, len(layout))
	copy(rows, layout)
	return &Track{layout: rows, cellSize: cellSize, start: start, prev: start}, nil
}

// Start returns the start cell; world origin is its centre.
func (t *Track) Start() Position { return t.start }

// CellSize returns the edge length of one cell in world units.
func (t *Track) CellSize() float64 { return t.cellSize }

// Layout returns the track rows.
func (t *Track) Layout() []string { return t.layout }

// Height returns the number of rows.
func (t *Track) Height() int { return len(t.layout) }

// Width returns the length of the longest row.
func (t *Track) Width() int {
	w := 0
	for _, row := range t.layout {
		w = max(w, len(row))
	}
	return w
}

// CellAt maps a world position to a grid cell. World z grows towards row 0.
func (t *Track) CellAt(pos Vec3) Position {
	return Position{
		X: t.start.X + int(math.Round(pos.X/t.cellSize)),
		Y: t.start.Y - int(math.Round(pos.Z/t.cellSize)),
	}
}

// WorldAt returns the world position of a cell centre.
func (t *Track) WorldAt(p Position) Vec3 {
	return Vec3{
		X: float64(p.X-t.start.X) * t.cellSize,
		Z: float64(t.start.Y-p.Y) * t.cellSize,
	}
}

// CharAt returns the layout character of a cell; 'B' outside the layout.
func (t *Track) CharAt(p Position) byte {
	if p.Y < 0 || p.Y >= len(t.layout) {
		return 'B'
	}
	row := t.layout[p.Y]
	if p.X < 0 || p.X >= len(row) {
		return 'B'
	}
	return row[p.X]
}

// TypeAt returns the cell type at p.
func (t *Track) TypeAt(p Position) CellType {
	return CellTypeFromChar(t.CharAt(p))
}

// Prime sets the previously sensed cell without emitting events.
func (t *Track) Prime(pos Vec3) {
	t.prev = t.CellAt(pos)
}

// Previous returns the last sensed cell.
func (t *Track) Previous() Position { return t.prev }

// Sense compares the cell under pos with the previously sensed cell and
// returns the events to deliver, in order: exit, enter, collision.
func (t *Track) Sense(pos Vec3) []SensorEvent {
	cur := t.CellAt(pos)
	wasZone := t.TypeAt(t.prev) == Intersection
	inZone := t.TypeAt(cur) == Intersection
	t.prev = cur

	var events []SensorEvent
	if wasZone && !inZone {
		events = append(events, EventIntersectionExit)
	}
	if inZone && !wasZone {
		events = append(events, EventIntersectionEnter)
	}
	if t.TypeAt(cur) == Building {
		events = append(events, EventCollision)
	}
	return events
}
