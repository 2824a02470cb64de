package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MinFinishRunway is the number of road cells a course needs after the
// final required turn so the bus can coast through the finish delay.
const MinFinishRunway = 2

// DefaultLegend returns the legend every level config must carry.
func DefaultLegend() map[string]string {
	return map[string]string{
		"S": "start",
		"R": "road",
		"X": "intersection",
		"F": "finish",
		"B": "building",
	}
}

// DefaultMessages returns the built-in player messages.
func DefaultMessages() Messages {
	return Messages{
		Welcome:     "Welcome aboard! Start the bus and turn at the crossroads.",
		Start:       "The bus is rolling. Turn left or right inside the crossroads.",
		Turn:        "Turned, now heading %s (%d/%d turns)",
		TurnIgnored: "No turn here. Wait for the next crossroads.",
		Finishing:   "Last turn done! Coasting to the finish...",
		Victory:     "Level complete with %d turns!",
		Crash:       "Crash! The bus hit a building.",
	}
}

// ApplyDefaults fills in zero-valued optional fields.
func ApplyDefaults(config *LevelConfig) {
	if config.CellSize == 0 {
		config.CellSize = DefaultCellSize
	}
	if config.MovementSpeed == 0 {
		config.MovementSpeed = DefaultMovementSpeed
	}
	if config.Legend == nil {
		config.Legend = DefaultLegend()
	}
	defaults := DefaultMessages()
	m := &config.Messages
	if m.Start == "" {
		m.Start = defaults.Start
	}
	if m.Turn == "" {
		m.Turn = defaults.Turn
	}
	if m.TurnIgnored == "" {
		m.TurnIgnored = defaults.TurnIgnored
	}
	if m.Finishing == "" {
		m.Finishing = defaults.Finishing
	}
}

// ValidateLevelConfig validates a level configuration for correctness and
// playability.
func ValidateLevelConfig(config *LevelConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}
	if !config.InitialHeading.Valid() {
		return fmt.Errorf("config validation: initial_heading must be one of north, east, south, west, got %q", config.InitialHeading)
	}
	if config.RequiredTurns < MinRequiredTurns || config.RequiredTurns > MaxRequiredTurns {
		return fmt.Errorf("config validation: required_turns must be between %d and %d, got %d",
			MinRequiredTurns, MaxRequiredTurns, config.RequiredTurns)
	}
	if config.CellSize < MinCellSize || config.CellSize > MaxCellSize {
		return fmt.Errorf("config validation: cell_size must be between %v and %v, got %v", MinCellSize, MaxCellSize, config.CellSize)
	}
	if config.MovementSpeed <= 0 || config.MovementSpeed > MaxMovementSpeed {
		return fmt.Errorf("config validation: movement_speed must be in (0, %v], got %v", MaxMovementSpeed, config.MovementSpeed)
	}

	// Layout
	height := len(config.Layout)
	if height < MinGridSize || height > MaxGridSize {
		return fmt.Errorf("config validation: layout must have between %d and %d rows, got %d", MinGridSize, MaxGridSize, height)
	}
	width := len(config.Layout[0])
	if width < MinGridSize || width > MaxGridSize {
		return fmt.Errorf("config validation: layout rows must have between %d and %d characters, got %d", MinGridSize, MaxGridSize, width)
	}

	starts, zones, finishes := 0, 0, 0
	for i, row := range config.Layout {
		if len(row) != width {
			return fmt.Errorf("config validation: row %d must have %d characters, got %d", i+1, width, len(row))
		}
		for j, char := range row {
			switch char {
			case 'R', 'B':
			case 'S':
				starts++
			case 'X':
				zones++
			case 'F':
				finishes++
			default:
				return fmt.Errorf("config validation: invalid character '%c' at row %d, col %d", char, i+1, j+1)
			}
		}
	}
	if starts != 1 {
		return fmt.Errorf("config validation: layout must contain exactly one start (S) cell, found %d", starts)
	}
	if zones < config.RequiredTurns {
		return fmt.Errorf("config validation: layout has %d intersection (X) cells, need at least %d", zones, config.RequiredTurns)
	}
	if finishes == 0 {
		return fmt.Errorf("config validation: layout must contain at least one finish (F) cell")
	}

	for key, expected := range DefaultLegend() {
		if value, ok := config.Legend[key]; !ok || value != expected {
			return fmt.Errorf("config validation: legend['%s'] must be '%s', got '%s'", key, expected, value)
		}
	}

	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.Victory == "" {
		return fmt.Errorf("config validation: messages.victory is required")
	}
	if config.Messages.Crash == "" {
		return fmt.Errorf("config validation: messages.crash is required")
	}
	if !strings.Contains(config.Messages.Victory, "%d") {
		return fmt.Errorf("config validation: messages.victory must contain %%d for the turn count")
	}
	if config.Messages.Turn != "" && strings.Count(config.Messages.Turn, "%") != 3 {
		return fmt.Errorf("config validation: messages.turn must contain %%s, %%d and %%d")
	}

	// Winnability: following the course from S must reach the required
	// number of turns and leave enough runway for the finish.
	course, err := TraceCourse(config.Layout, config.InitialHeading)
	if err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if len(course.Turns) < config.RequiredTurns {
		return fmt.Errorf("config validation: course from start has %d turns, need %d", len(course.Turns), config.RequiredTurns)
	}
	if runway := course.RunwayAfter(config.RequiredTurns); runway < MinFinishRunway {
		return fmt.Errorf("config validation: course leaves %d cells after turn %d, need at least %d",
			runway, config.RequiredTurns, MinFinishRunway)
	}

	return nil
}

// LoadLevelConfig loads a level configuration from a JSON file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	// CONFIG_DIR replaces a leading "configs/" in the path
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseLevelConfig(data)
}

// ParseLevelConfig decodes, defaults and validates a JSON level config.
func ParseLevelConfig(data []byte) (*LevelConfig, error) {
	var config LevelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	ApplyDefaults(&config)
	if err := ValidateLevelConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigByName loads a level configuration by name from the configs directory
func LoadConfigByName(configName string) (*LevelConfig, error) {
	if !strings.HasSuffix(configName, ".json") {
		configName = configName + ".json"
	}

	configPath := filepath.Join("configs", configName)
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		configPath = filepath.Join(configDir, configName)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file '%s' not found", configName)
	}

	config, err := LoadLevelConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
	}
	return config, nil
}

// DefaultLevelConfig returns the built-in two-turn level.
func DefaultLevelConfig() *LevelConfig {
	config := &LevelConfig{
		Name:           "Default",
		Description:    "Two crossroads: right, then left onto the finish street",
		InitialHeading: North,
		RequiredTurns:  2,
		Layout: []string{
			"BBBBBBBBBB",
			"BBBBBBBFBB",
			"BBBBBBBFBB",
			"BBBBBBBFBB",
			"BBXRRRRXBB",
			"BBRBBBBBBB",
			"BBRBBBBBBB",
			"BBSBBBBBBB",
			"BBBBBBBBBB",
		},
		Messages: DefaultMessages(),
	}
	ApplyDefaults(config)
	return config
}
