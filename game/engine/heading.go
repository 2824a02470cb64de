package engine

import (
	"fmt"
	"strings"
)

// Heading is the cardinal direction the bus travels in.
type Heading string

const (
	North Heading = "north"
	East  Heading = "east"
	South Heading = "south"
	West  Heading = "west"
)

// Headings lists every heading in clockwise order starting at North.
var Headings = []Heading{North, East, South, West}

// TurnDirection is the side a turn is taken to.
type TurnDirection string

const (
	Left  TurnDirection = "left"
	Right TurnDirection = "right"
)

// ParseHeading parses a heading name. The legacy screen-space names
// up/right/down/left are accepted as aliases of north/east/south/west.
func ParseHeading(s string) (Heading, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "up", "n":
		return North, nil
	case "east", "right", "e":
		return East, nil
	case "south", "down", "s":
		return South, nil
	case "west", "left", "w":
		return West, nil
	}
	return "", fmt.Errorf("invalid heading %q", s)
}

// UnmarshalText decodes a heading through ParseHeading, so stored configs
// may use the legacy aliases. Empty text decodes to the zero heading and is
// left to config validation.
func (h *Heading) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*h = ""
		return nil
	}
	parsed, err := ParseHeading(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseTurnDirection parses "left" or "right" (case-insensitive, "l"/"r" allowed).
func ParseTurnDirection(s string) (TurnDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return "", fmt.Errorf("invalid turn direction %q", s)
}

// Valid reports whether h is one of the four cardinal headings.
func (h Heading) Valid() bool {
	switch h {
	case North, East, South, West:
		return true
	}
	return false
}

// Valid reports whether d is Left or Right.
func (d TurnDirection) Valid() bool {
	return d == Left || d == Right
}

// Turn returns the heading after turning to the given side. An invalid
// direction leaves the heading unchanged.
func (h Heading) Turn(d TurnDirection) Heading {
	switch d {
	case Left:
		switch h {
		case North:
			return West
		case East:
			return North
		case South:
			return East
		case West:
			return South
		}
	case Right:
		switch h {
		case North:
			return East
		case East:
			return South
		case South:
			return West
		case West:
			return North
		}
	}
	return h
}

// Vector returns the unit movement vector for the heading. North is +Z,
// East is +X.
func (h Heading) Vector() Vec3 {
	switch h {
	case North:
		return Vec3{Z: 1}
	case East:
		return Vec3{X: 1}
	case South:
		return Vec3{Z: -1}
	case West:
		return Vec3{X: -1}
	}
	return Vec3{}
}

// Delta returns the grid step for the heading; row 0 is the northern edge.
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Facing returns the rotation about the vertical axis, in degrees, used to
// orient the bus model for a heading.
func Facing(h Heading) float64 {
	switch h {
	case West:
		return 0
	case North:
		return 90
	case East:
		return 180
	case South:
		return 270
	}
	return 0
}
