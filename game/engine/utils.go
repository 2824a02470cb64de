package engine

import (
	"fmt"
	"strings"
)

// CellTypeFromChar maps a layout character to its cell type. Unknown
// characters are treated as buildings.
func CellTypeFromChar(ch byte) CellType {
	switch ch {
	case 'S':
		return Start
	case 'R':
		return Road
	case 'X':
		return Intersection
	case 'F':
		return Finish
	default:
		return Building
	}
}

// Course is the path the bus takes from the start cell when it turns at
// every junction where going straight would hit a building.
type Course struct {
	Cells    []Position      `json:"cells"`
	Turns    []TurnDirection `json:"turns"`
	TurnAt   []int           `json:"turn_at"` // index into Cells of each turn
	Headings []Heading       `json:"headings"`
	Finish   bool            `json:"finish"`
}

// RunwayAfter returns how many cells the course continues for after the
// n-th turn (1-based).
func (c *Course) RunwayAfter(n int) int {
	if n <= 0 || n > len(c.TurnAt) {
		return 0
	}
	return len(c.Cells) - 1 - c.TurnAt[n-1]
}

// TraceCourse follows the road from S. At an intersection it goes straight
// when it can; otherwise it takes the single open side. A junction with both
// sides open and no straight exit is ambiguous and reported as an error.
func TraceCourse(layout []string, heading Heading) (*Course, error) {
	track, err := NewTrack(layout, DefaultCellSize)
	if err != nil {
		return nil, err
	}
	if !heading.Valid() {
		return nil, fmt.Errorf("invalid heading %q", heading)
	}

	open := func(p Position, h Heading) bool {
		dx, dy := h.Delta()
		return track.TypeAt(Position{X: p.X + dx, Y: p.Y + dy}) != Building
	}

	type visit struct {
		p Position
		h Heading
	}
	seen := map[visit]bool{}

	course := &Course{}
	pos := track.Start()
	limit := track.Width() * track.Height() * 4
	for step := 0; step < limit; step++ {
		course.Cells = append(course.Cells, pos)
		course.Headings = append(course.Headings, heading)

		if seen[visit{pos, heading}] {
			return nil, fmt.Errorf("course loops at (%d,%d)", pos.X, pos.Y)
		}
		seen[visit{pos, heading}] = true

		cell := track.TypeAt(pos)
		if cell == Finish {
			course.Finish = true
		}

		if cell == Intersection && !open(pos, heading) {
			left, right := open(pos, heading.Turn(Left)), open(pos, heading.Turn(Right))
			switch {
			case left && right:
				return nil, fmt.Errorf("ambiguous intersection at (%d,%d)", pos.X, pos.Y)
			case left:
				course.Turns = append(course.Turns, Left)
				heading = heading.Turn(Left)
			case right:
				course.Turns = append(course.Turns, Right)
				heading = heading.Turn(Right)
			}
			if left || right {
				course.TurnAt = append(course.TurnAt, len(course.Cells)-1)
			}
		}

		if !open(pos, heading) {
			return course, nil
		}
		dx, dy := heading.Delta()
		pos = Position{X: pos.X + dx, Y: pos.Y + dy}
	}
	return nil, fmt.Errorf("course does not terminate")
}

// HeadingGlyph returns the character used to draw the bus.
func HeadingGlyph(h Heading) byte {
	switch h {
	case North:
		return '^'
	case East:
		return '>'
	case South:
		return 'v'
	case West:
		return '<'
	}
	return '?'
}

// LocalView3x3 returns the 3x3 neighbourhood of a cell, north row first,
// with the bus drawn in the centre.
func LocalView3x3(track *Track, cell Position, heading Heading) []string {
	rows := make([]string, 0, 3)
	for dy := -1; dy <= 1; dy++ {
		var b strings.Builder
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				b.WriteByte(HeadingGlyph(heading))
				continue
			}
			b.WriteByte(track.CharAt(Position{X: cell.X + dx, Y: cell.Y + dy}))
		}
		rows = append(rows, b.String())
	}
	return rows
}

// NextAction describes what the driver has to do next, looking straight
// ahead from cell along heading.
func NextAction(track *Track, cell Position, heading Heading, inZone, turned bool) string {
	if inZone && !turned {
		if side := openSide(track, cell, heading); side != "" {
			return fmt.Sprintf("turn %s now", side)
		}
	}

	dx, dy := heading.Delta()
	p := cell
	for dist := 1; dist <= track.Width()+track.Height(); dist++ {
		p = Position{X: p.X + dx, Y: p.Y + dy}
		switch track.TypeAt(p) {
		case Building:
			return fmt.Sprintf("building ahead in %d cells", dist)
		case Intersection:
			if side := openSide(track, p, heading); side != "" {
				return fmt.Sprintf("turn %s at the crossroads in %d cells", side, dist)
			}
		case Finish:
			return fmt.Sprintf("finish in %d cells", dist)
		}
	}
	return "keep driving"
}

// openSide returns the side to turn at an intersection when straight ahead
// is blocked and exactly one side is open.
func openSide(track *Track, p Position, heading Heading) TurnDirection {
	open := func(h Heading) bool {
		dx, dy := h.Delta()
		return track.TypeAt(Position{X: p.X + dx, Y: p.Y + dy}) != Building
	}
	if open(heading) {
		return ""
	}
	left, right := open(heading.Turn(Left)), open(heading.Turn(Right))
	switch {
	case left && !right:
		return Left
	case right && !left:
		return Right
	}
	return ""
}
