// Package engine provides the core game logic for the crossroad bus game.
//
// The engine package implements:
//   - the bus directional state machine (Vehicle) with its timed tasks
//   - the grid track that senses intersection zones and collisions
//   - level configuration loading and validation
//   - the GameEngine facade used by the service layer
//
// Core Types:
//
// Vehicle owns heading, turn counter and the smoothed movement vector. It
// never looks up its collaborators: a LevelProvider, a GameSession, an
// InputSource and an EffectsSink are passed to NewVehicle, and Attach /
// Detach manage the lifecycle subscriptions.
//
// GameEngine wires a Vehicle to a Track, a LevelSource, a SessionRecorder,
// an InputLatch and a CueRecorder, and exposes a frame-based API.
//
// Usage:
//
//	config, err := engine.LoadConfigByName("classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine.Start()
//	for !gameEngine.IsGameOver() {
//		if gameEngine.GetState().Vehicle.InIntersection {
//			gameEngine.Turn(engine.Right)
//		}
//		gameEngine.Tick(engine.DefaultFrameDelta)
//	}
//
// Game Rules:
//
// The bus drives on its own once the level starts. Inside an intersection
// zone the player may turn left or right once. After the required number
// of turns the bus coasts for two seconds and the level is won. Driving
// into a building loses the level.
package engine
