// Package api provides HTTP REST API handlers for the crossroad bus game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/unified - Sessions of one config side by side
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Driving:
//   - POST /api/sessions/{id}/start - Put the bus in motion
//   - POST /api/sessions/{id}/turn - Request a turn ({"direction": "left", "ticks": 30})
//   - POST /api/sessions/{id}/tick - Advance frames ({"frames": 60, "dt": 0.0333})
//   - POST /api/sessions/{id}/drive - Run a turn plan ({"turns": ["right", "left"], "max_frames": 3000})
//   - POST /api/sessions/{id}/reset - Rebuild the level
//   - GET /api/sessions/{id}/state - Current game state
//   - GET /api/sessions/{id}/history - Turn history (?page=1&limit=20&order=desc)
//   - GET /api/sessions/{id}/cell - Describe one cell (?x=2&y=4)
//
// Levels and results:
//   - GET /api/configs - List level configurations
//   - POST /api/configs - Save a level configuration
//   - GET /api/configs/{name} - Get one configuration
//   - POST /api/levels/generate - Generate a level ({"seed": 42, "turns": 3})
//   - GET /api/results - Finished runs, newest first (?limit=N)
//
// Drive responses carry a per-call trace: turns_requested, turns_applied,
// frames_run, steps, stop_reason_code (victory|crash|frame_limit|
// plan_exhausted|game_over), local_view_3x3 and next_action.
//
// Every mutating call also pushes the new state to the session's WebSocket
// clients (GET /ws?session={id}).
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes: 404 for an
// unknown session or configuration, 400 for invalid arguments and 500
// otherwise.
//
//	{
//	  "error": "error message"
//	}
package api
