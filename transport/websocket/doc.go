// Package websocket provides WebSocket transport for the crossroad bus game.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - State broadcasting after every change, including realtime frames
//   - Game event forwarding (start, turn, enter, exit, finishing, finish, lose, reset)
//   - Client commands that start, turn or reset the bus
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. Messages are JSON-encoded by the broadcaster and queued
// without blocking; a full queue drops the message.
//
// Message Protocol:
//
// Outgoing messages have the structure
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//	{"session_id": "ab12", "event": "lose", "data": {"type": "lose", "message": "...", "frame": 140}}
//
// Incoming commands:
//
//	{"action": "start"}
//	{"action": "turn", "direction": "left"}
//	{"action": "reset"}
//
// Clients specify their session via query parameter (?session=ab12) when
// establishing the connection.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithHubLogger(log))
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
