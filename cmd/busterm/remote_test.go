package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

func TestWsURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws?session=abc", false},
		{"https://bus.example.com/", "wss://bus.example.com/ws?session=abc", false},
		{"ws://localhost:8080", "ws://localhost:8080/ws?session=abc", false},
		{"ftp://localhost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := wsURL(tt.server, "abc")
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %s", tt.server)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// fakeServer answers every command with the next canned state.
func fakeServer(t *testing.T, states ...*engine.GameState) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, state := range states {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			msg := wsMessage{SessionID: r.URL.Query().Get("session"), GameState: state, Event: cmd.Action}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		// hold the connection until the client closes it
		conn.ReadMessage()
	}))
	t.Cleanup(server.Close)
	return server
}

func waitForState(t *testing.T, d *remoteDriver, frame int) *engine.GameState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if state := d.State(); state != nil && state.Frame == frame {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for frame %d", frame)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemoteDriver_StateAndCues(t *testing.T) {
	server := fakeServer(t,
		&engine.GameState{Phase: engine.PhaseIdle},
		&engine.GameState{Phase: engine.PhaseMoving, Frame: 3, Cues: []engine.Cue{
			{Kind: engine.CueRotationSound, Frame: 2},
			{Kind: engine.CueRotationParticles, Frame: 2},
		}},
		&engine.GameState{Phase: engine.PhaseMoving, Frame: 4, Cues: []engine.Cue{
			{Kind: engine.CueRotationSound, Frame: 2},
			{Kind: engine.CueWinSound, Frame: 4},
		}},
	)

	player := &recordingPlayer{}
	fx := newEffectsSink(player)
	d, err := dialRemote(server.URL, "abc", fx, zerolog.Nop())
	if err != nil {
		t.Fatalf("dialRemote failed: %v", err)
	}
	defer d.Close()

	if state := waitForState(t, d, 0); state.Phase != engine.PhaseIdle {
		t.Errorf("Expected phase idle, got %s", state.Phase)
	}

	d.Start()
	waitForState(t, d, 3)
	d.Frame(engine.DefaultFrameDelta)
	if !fx.Flashing() {
		t.Error("Expected rotation particles to start the flash")
	}
	if len(player.played) != 1 {
		t.Fatalf("Expected 1 sound after frame 3, got %d", len(player.played))
	}

	d.Turn(engine.Left)
	waitForState(t, d, 4)
	d.Frame(engine.DefaultFrameDelta)
	if len(player.played) != 2 {
		t.Errorf("Expected only the new cue to replay, got %d sounds", len(player.played))
	}

	d.Frame(engine.DefaultFrameDelta)
	if len(player.played) != 2 {
		t.Errorf("Expected drained cues not to replay, got %d sounds", len(player.played))
	}
}

func TestRemoteDriver_ResetReplaysCues(t *testing.T) {
	d := &remoteDriver{}
	d.apply(&engine.GameState{Frame: 10, Cues: []engine.Cue{{Kind: engine.CueWinSound, Frame: 9}}})
	d.apply(&engine.GameState{Frame: 2, Cues: []engine.Cue{{Kind: engine.CueRotationSound, Frame: 1}}})

	if len(d.pending) != 2 {
		t.Errorf("Expected cues after a reset to queue, got %d pending", len(d.pending))
	}
}

func TestDialRemote_Unreachable(t *testing.T) {
	if _, err := dialRemote("http://127.0.0.1:1", "abc", nil, zerolog.Nop()); err == nil {
		t.Error("Expected error dialing a closed port")
	}
}
