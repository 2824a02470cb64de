package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

// wsMessage mirrors what the server hub pushes.
type wsMessage struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty"`
	Event     string            `json:"event,omitempty"`
}

// wsCommand mirrors what the server hub accepts.
type wsCommand struct {
	Action    string `json:"action"`
	Direction string `json:"direction,omitempty"`
}

// remoteDriver plays a server session over its WebSocket. States pushed by
// the server replace the local view; cues newer than the last seen frame
// are queued and replayed into fx on the next Frame.
type remoteDriver struct {
	conn *websocket.Conn
	fx   engine.EffectsSink
	log  zerolog.Logger

	mu       sync.Mutex
	state    *engine.GameState
	cueFrame int
	pending  []engine.Cue
	err      error
	writeMu  sync.Mutex
}

// wsURL turns a server base URL into the session's WebSocket URL.
func wsURL(server, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	return u.String(), nil
}

func dialRemote(server, sessionID string, fx engine.EffectsSink, log zerolog.Logger) (*remoteDriver, error) {
	target, err := wsURL(server, sessionID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}

	d := &remoteDriver{conn: conn, fx: fx, log: log}
	go d.listen()

	// the hub only pushes on change, so ask for the current state
	d.send(wsCommand{Action: "state"})
	return d, nil
}

func (d *remoteDriver) listen() {
	for {
		_, data, err := d.conn.ReadMessage()
		if err != nil {
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			d.log.Debug().Err(err).Msg("ignoring malformed message")
			continue
		}
		if msg.GameState != nil {
			d.apply(msg.GameState)
		}
	}
}

func (d *remoteDriver) apply(state *engine.GameState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if state.Frame < d.cueFrame {
		// the session was reset
		d.cueFrame = 0
	}
	for _, c := range state.Cues {
		if c.Frame > d.cueFrame {
			d.pending = append(d.pending, c)
		}
	}
	d.cueFrame = state.Frame
	d.state = state
}

func (d *remoteDriver) send(cmd wsCommand) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if err := d.conn.WriteJSON(cmd); err != nil {
		d.log.Debug().Err(err).Str("action", cmd.Action).Msg("send failed")
	}
}

func (d *remoteDriver) Start() { d.send(wsCommand{Action: "start"}) }
func (d *remoteDriver) Turn(dir engine.TurnDirection) { d.send(wsCommand{Action: "turn", Direction: string(dir)}) }
func (d *remoteDriver) Reset() { d.send(wsCommand{Action: "reset"}) }

func (d *remoteDriver) Frame(float64) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if d.fx == nil {
		return
	}
	for _, c := range pending {
		d.fx.Cue(c)
	}
}

func (d *remoteDriver) State() *engine.GameState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the error that ended the connection, if any.
func (d *remoteDriver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *remoteDriver) Close() error {
	return d.conn.Close()
}
