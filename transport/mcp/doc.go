// Package mcp provides the Model Context Protocol interface of the crossroad
// bus game.
//
// The Client registers the game's tools on an mcp-go server and answers each
// call by proxying to the REST API, so an MCP agent sees exactly what HTTP
// clients see. Tool failures are reported as tool error results, not
// protocol errors.
//
// MCP Tools:
//   - create_session, get_session, list_sessions: session management
//   - game_state: grid with the bus drawn in, heading, phase and turn count
//   - start_level: put the bus in motion
//   - turn: request a left/right turn and advance some frames
//   - tick: advance frames without turning
//   - drive: run a whole turn plan with a per-call step trace
//   - reset_game: rebuild the level
//   - turn_history: paginated turn requests, accepted and ignored
//   - list_configs, generate_level: levels
//   - list_results: finished runs
//   - game_instructions: rules and strategy
//   - describe_cell: exact type of one grid cell
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: server.ServeStdio for local MCP clients
//   - HTTP: POST /mcp, handled by MCPServer.HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal().Err(err).Msg("stdio server")
//	}
package mcp
