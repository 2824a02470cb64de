package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// action is what a terminal event asks the game to do.
type action int

const (
	actNone action = iota
	actTurnLeft
	actTurnRight
	actStart
	actReset
	actQuit
)

var (
	styleRoad     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBuilding = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleJunction = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleFinish   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleStart    = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleBus      = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorRed).Bold(true)
	styleFlash    = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleWon      = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleLost     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// Game plays one driver on a terminal screen.
type Game struct {
	screen tcell.Screen
	drv    driver
	fx     *effectsSink
	fps    int
	log    zerolog.Logger

	// mouse buttons held during the previous mouse event
	buttons tcell.ButtonMask
}

// NewGame plays drv on screen. fx must be the sink drv delivers cues to.
func NewGame(screen tcell.Screen, drv driver, fx *effectsSink, fps int, log zerolog.Logger) *Game {
	if fps <= 0 {
		fps = 30
	}
	return &Game{screen: screen, drv: drv, fx: fx, fps: fps, log: log}
}

// Run polls terminal events and advances the engine once per frame until
// the player quits or ctx is done.
func (g *Game) Run(ctx context.Context) error {
	g.screen.EnableMouse()
	g.screen.HideCursor()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	dt := 1.0 / float64(g.fps)
	ticker := time.NewTicker(time.Second / time.Duration(g.fps))
	defer ticker.Stop()

	g.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if g.handle(ev) == actQuit {
				return nil
			}
		case <-ticker.C:
			g.frame(dt)
		}
	}
}

// handle applies one terminal event and returns what it asked for.
func (g *Game) handle(ev tcell.Event) action {
	var act action
	switch ev := ev.(type) {
	case *tcell.EventResize:
		g.screen.Sync()
	case *tcell.EventKey:
		act = keyAction(ev)
	case *tcell.EventMouse:
		width, _ := g.screen.Size()
		act = g.mouseAction(ev, width)
	}

	switch act {
	case actTurnLeft:
		g.drv.Turn(engine.Left)
	case actTurnRight:
		g.drv.Turn(engine.Right)
	case actStart:
		g.drv.Start()
	case actReset:
		g.fx.Reset()
		g.drv.Reset()
		g.render()
	}
	return act
}

// keyAction maps keys: A/D or the arrows turn, space starts, R resets.
func keyAction(ev *tcell.EventKey) action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return actQuit
	case tcell.KeyLeft:
		return actTurnLeft
	case tcell.KeyRight:
		return actTurnRight
	case tcell.KeyEnter:
		return actStart
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a', 'A':
			return actTurnLeft
		case 'd', 'D':
			return actTurnRight
		case ' ':
			return actStart
		case 'r', 'R':
			return actReset
		case 'q', 'Q':
			return actQuit
		}
	}
	return actNone
}

// mouseAction turns a primary-button press into a turn toward the half of
// the screen that was clicked. Holding the button does not repeat.
func (g *Game) mouseAction(ev *tcell.EventMouse, width int) action {
	pressed := ev.Buttons()&tcell.Button1 != 0
	held := g.buttons&tcell.Button1 != 0
	g.buttons = ev.Buttons()
	if !pressed || held {
		return actNone
	}
	x, _ := ev.Position()
	return clickAction(x, width)
}

// clickAction is the half-screen rule: left of centre turns left.
func clickAction(x, width int) action {
	if x < width/2 {
		return actTurnLeft
	}
	return actTurnRight
}

func (g *Game) frame(dt float64) {
	g.drv.Frame(dt)
	g.fx.Advance()
	g.render()
}

func cellStyle(ch byte) (rune, tcell.Style) {
	switch engine.CellTypeFromChar(ch) {
	case engine.Road:
		return '·', styleRoad
	case engine.Intersection:
		return '+', styleJunction
	case engine.Finish:
		return 'F', styleFinish
	case engine.Start:
		return 'S', styleStart
	}
	return '█', styleBuilding
}

// render draws the track, the bus and a status block below them.
func (g *Game) render() {
	state := g.drv.State()
	g.screen.Clear()
	if state == nil {
		g.drawText(0, 0, styleStatus, "waiting for the server...")
		g.screen.Show()
		return
	}

	for y, row := range state.Grid {
		for x := 0; x < len(row); x++ {
			r, style := cellStyle(row[x])
			g.screen.SetContent(x, y, r, nil, style)
		}
	}

	if g.fx.Flashing() {
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			x, y := state.Cell.X+d[0], state.Cell.Y+d[1]
			if y >= 0 && y < len(state.Grid) && x >= 0 && x < len(state.Grid[y]) {
				g.screen.SetContent(x, y, '*', nil, styleFlash)
			}
		}
	}
	g.screen.SetContent(state.Cell.X, state.Cell.Y, rune(engine.HeadingGlyph(state.Vehicle.Heading)), nil, styleBus)

	row := len(state.Grid) + 1
	g.drawText(0, row, styleStatus, fmt.Sprintf("%s | heading %s | turns %d/%d | %s",
		state.ConfigName, state.Vehicle.Heading, state.Vehicle.TurnsTaken, state.Required, state.Phase))
	g.drawText(0, row+1, styleStatus, fmt.Sprintf("frame %d (%.1fs) facing %.0f° sway %+.2f",
		state.Frame, state.Elapsed, g.fx.facing, g.fx.sway))

	msgStyle := styleStatus
	switch state.Outcome {
	case engine.OutcomeWon:
		msgStyle = styleWon
	case engine.OutcomeLost:
		msgStyle = styleLost
	}
	g.drawText(0, row+2, msgStyle, state.Message)
	g.drawText(0, row+4, styleStatus, "space: start  A/D or click left/right half: turn  R: reset  Q: quit")

	g.screen.Show()
}

func (g *Game) drawText(x, y int, style tcell.Style, text string) {
	for _, r := range text {
		g.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
