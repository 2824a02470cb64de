// Package config provides level configuration management for the crossroad
// bus game.
//
// The config package handles:
//   - Loading level configurations from JSON files
//   - Validation through the engine validator
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Levels are stored as JSON files in the configs directory. Each level
// defines:
//   - A grid layout (S=start, R=road, X=crossroads, F=finish, B=building)
//   - The initial heading and the number of turns that finish the level
//   - Cell size and movement speed
//   - Player messages
//
// Shipped levels:
//   - classic: two crossroads, the default
//   - easy: a single crossroads
//   - zigzag: four crossroads
//   - grand_tour: six crossroads
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadConfig("zigzag")
//	defaultLevel := manager.GetDefault()
//	levels, err := manager.ListConfigs()
package config
