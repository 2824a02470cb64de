// Package service provides the business logic layer for the crossroad bus
// game.
//
// The service package implements:
//   - Multi-session game management
//   - Frame stepping, turn requests and whole-plan driving
//   - Level configuration access and seeded level generation
//   - The realtime loop that ticks every driving bus
//   - Run outcome recording and metrics
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages level configuration loading and validation.
// ResultsStore keeps the ledger of finished runs.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Engines are not safe for concurrent use, so every call
// that reads or advances an engine holds the service lock, and the realtime
// loop takes the same lock once per frame.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithLogger(log),
//		service.WithResults(ledger),
//	)
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal().Err(err).Msg("create session")
//	}
//
//	// Drive to the finish turning right then left
//	result, err := gameService.Drive(ctx, info.ID, []string{"right", "left"}, 0)
//
// Events:
//
// Operations report what happened frame by frame as GameEvents: start,
// turn, turn_ignored, enter, exit, finishing, finish, lose and reset.
// Listeners registered with WithEventListener see every event, including
// those produced by the realtime loop.
package service
