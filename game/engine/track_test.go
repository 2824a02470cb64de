package engine

import (
	"reflect"
	"strings"
	"testing"
)

func testTrack(t *testing.T) *Track {
	t.Helper()
	track, err := NewTrack(DefaultLevelConfig().Layout, 4)
	if err != nil {
		t.Fatalf("Failed to create track: %v", err)
	}
	return track
}

func TestNewTrack_Errors(t *testing.T) {
	if _, err := NewTrack(nil, 4); err == nil {
		t.Error("Expected error for empty layout")
	}
	if _, err := NewTrack([]string{"RRR"}, 4); err == nil {
		t.Error("Expected error for missing start")
	}
	if _, err := NewTrack([]string{"SRS"}, 4); err == nil {
		t.Error("Expected error for two starts")
	}
	if _, err := NewTrack([]string{"SRR"}, 0); err == nil {
		t.Error("Expected error for zero cell size")
	}
}

func TestTrack_CellMapping(t *testing.T) {
	track := testTrack(t)

	if track.Start() != (Position{X: 2, Y: 7}) {
		t.Fatalf("Expected start at (2,7), got %v", track.Start())
	}

	tests := []struct {
		pos  Vec3
		want Position
	}{
		{Vec3{}, Position{2, 7}},
		{Vec3{Z: 1.9}, Position{2, 7}},
		{Vec3{Z: 2}, Position{2, 6}},
		{Vec3{Z: 12}, Position{2, 4}},
		{Vec3{X: 20, Z: 12}, Position{7, 4}},
		{Vec3{X: -2.1}, Position{1, 7}},
	}
	for _, tt := range tests {
		if got := track.CellAt(tt.pos); got != tt.want {
			t.Errorf("CellAt(%v): expected %v, got %v", tt.pos, tt.want, got)
		}
	}

	if got := track.WorldAt(Position{7, 4}); got != (Vec3{X: 20, Z: 12}) {
		t.Errorf("Expected world (20,0,12), got %v", got)
	}
}

func TestTrack_OutOfBoundsIsBuilding(t *testing.T) {
	track := testTrack(t)
	for _, p := range []Position{{-1, 0}, {0, -1}, {100, 3}, {3, 100}} {
		if got := track.TypeAt(p); got != Building {
			t.Errorf("TypeAt(%v): expected building, got %s", p, got)
		}
	}
	if got := track.TypeAt(Position{2, 4}); got != Intersection {
		t.Errorf("Expected intersection, got %s", got)
	}
	if got := track.TypeAt(Position{7, 2}); got != Finish {
		t.Errorf("Expected finish, got %s", got)
	}
}

func TestTrack_SenseEvents(t *testing.T) {
	track := testTrack(t)
	track.Prime(Vec3{})

	if ev := track.Sense(Vec3{Z: 4}); len(ev) != 0 {
		t.Errorf("Expected no events on road, got %v", ev)
	}
	if ev := track.Sense(Vec3{Z: 12}); !reflect.DeepEqual(ev, []SensorEvent{EventIntersectionEnter}) {
		t.Errorf("Expected enter, got %v", ev)
	}
	if ev := track.Sense(Vec3{Z: 12.5}); len(ev) != 0 {
		t.Errorf("Expected no events while inside the zone, got %v", ev)
	}
	// straight ahead of the first crossroads is a building
	if ev := track.Sense(Vec3{Z: 16}); !reflect.DeepEqual(ev, []SensorEvent{EventIntersectionExit, EventCollision}) {
		t.Errorf("Expected exit then collision, got %v", ev)
	}
}

func TestTrack_SenseExitToRoad(t *testing.T) {
	track := testTrack(t)
	track.Prime(Vec3{Z: 12})
	if ev := track.Sense(Vec3{X: 4, Z: 12}); !reflect.DeepEqual(ev, []SensorEvent{EventIntersectionExit}) {
		t.Errorf("Expected exit, got %v", ev)
	}
}

func TestTraceCourse_Default(t *testing.T) {
	course, err := TraceCourse(DefaultLevelConfig().Layout, North)
	if err != nil {
		t.Fatalf("Failed to trace course: %v", err)
	}
	if !reflect.DeepEqual(course.Turns, []TurnDirection{Right, Left}) {
		t.Errorf("Expected turns [right left], got %v", course.Turns)
	}
	if !course.Finish {
		t.Error("Expected course to reach the finish")
	}
	if got := course.RunwayAfter(2); got != 3 {
		t.Errorf("Expected runway 3, got %d", got)
	}
	if got := course.RunwayAfter(3); got != 0 {
		t.Errorf("Expected runway 0 for a missing turn, got %d", got)
	}
}

func TestTraceCourse_Ambiguous(t *testing.T) {
	layout := []string{
		"BBBBB",
		"BRXRB",
		"BBRBB",
		"BBSBB",
		"BBBBB",
	}
	if _, err := TraceCourse(layout, North); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Expected ambiguous intersection error, got %v", err)
	}
}

func TestLocalView3x3(t *testing.T) {
	track := testTrack(t)
	view := LocalView3x3(track, Position{2, 4}, North)
	want := []string{"BBB", "B^R", "BRB"}
	if !reflect.DeepEqual(view, want) {
		t.Errorf("Expected %v, got %v", want, view)
	}
}

func TestNextAction(t *testing.T) {
	track := testTrack(t)

	if got := NextAction(track, Position{2, 7}, North, false, false); got != "turn right at the crossroads in 3 cells" {
		t.Errorf("Unexpected action from start: %q", got)
	}
	if got := NextAction(track, Position{2, 4}, North, true, false); got != "turn right now" {
		t.Errorf("Unexpected action in zone: %q", got)
	}
	if got := NextAction(track, Position{7, 4}, North, true, true); got != "finish in 1 cells" {
		t.Errorf("Unexpected action after last turn: %q", got)
	}
}
