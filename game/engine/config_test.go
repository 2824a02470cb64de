package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createValidConfig() *LevelConfig {
	return &LevelConfig{
		Name:           "Test Config",
		Description:    "A valid test configuration",
		InitialHeading: East,
		RequiredTurns:  1,
		CellSize:       4,
		MovementSpeed:  2,
		Layout: []string{
			"BBBBBB",
			"BBBFBB",
			"BBBFBB",
			"BSRXBB",
			"BBBBBB",
		},
		Legend:   DefaultLegend(),
		Messages: DefaultMessages(),
	}
}

func TestValidateLevelConfig_ValidConfig(t *testing.T) {
	if err := ValidateLevelConfig(createValidConfig()); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
	if err := ValidateLevelConfig(DefaultLevelConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got error: %v", err)
	}
}

func TestValidateLevelConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LevelConfig)
		want   string
	}{
		{"missing name", func(c *LevelConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *LevelConfig) { c.Description = "" }, "description is required"},
		{"bad heading", func(c *LevelConfig) { c.InitialHeading = "sideways" }, "initial_heading"},
		{"zero turns", func(c *LevelConfig) { c.RequiredTurns = 0 }, "required_turns"},
		{"too many turns", func(c *LevelConfig) { c.RequiredTurns = MaxRequiredTurns + 1 }, "required_turns"},
		{"cell size", func(c *LevelConfig) { c.CellSize = 0.5 }, "cell_size"},
		{"speed", func(c *LevelConfig) { c.MovementSpeed = 0 }, "movement_speed"},
		{"too few rows", func(c *LevelConfig) { c.Layout = c.Layout[:4] }, "rows"},
		{"ragged rows", func(c *LevelConfig) { c.Layout[1] = "BBBFB" }, "row 2"},
		{"bad character", func(c *LevelConfig) { c.Layout[1] = "BBBFBQ" }, "invalid character 'Q'"},
		{"no start", func(c *LevelConfig) { c.Layout[3] = "BRRXBB" }, "start (S)"},
		{"no finish", func(c *LevelConfig) {
			c.Layout[1] = "BBBRBB"
			c.Layout[2] = "BBBRBB"
		}, "finish (F)"},
		{"legend", func(c *LevelConfig) { c.Legend["X"] = "crossing" }, "legend['X']"},
		{"missing crash", func(c *LevelConfig) { c.Messages.Crash = "" }, "messages.crash"},
		{"victory format", func(c *LevelConfig) { c.Messages.Victory = "You win" }, "messages.victory"},
		{"turn format", func(c *LevelConfig) { c.Messages.Turn = "Turned %s" }, "messages.turn"},
		{"not enough turns", func(c *LevelConfig) {
			c.Layout = []string{
				"BBBBBB",
				"BBBBBB",
				"BSRRFB",
				"BBBXBB",
				"BBBBBB",
			}
		}, "course from start has 0 turns"},
		{"short runway", func(c *LevelConfig) {
			c.Layout[1] = "BBBBBB"
		}, "need at least 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidConfig()
			tt.mutate(cfg)
			err := ValidateLevelConfig(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &LevelConfig{Messages: Messages{Welcome: "hi"}}
	ApplyDefaults(cfg)

	if cfg.CellSize != DefaultCellSize || cfg.MovementSpeed != DefaultMovementSpeed {
		t.Errorf("Expected default cell size and speed, got %v and %v", cfg.CellSize, cfg.MovementSpeed)
	}
	if cfg.Legend["X"] != "intersection" {
		t.Errorf("Expected default legend, got %v", cfg.Legend)
	}
	if cfg.Messages.Welcome != "hi" {
		t.Errorf("Expected welcome kept, got %q", cfg.Messages.Welcome)
	}
	if cfg.Messages.Turn == "" || cfg.Messages.TurnIgnored == "" {
		t.Error("Expected optional messages filled in")
	}
}

func writeConfig(t *testing.T, dir, name string, cfg *LevelConfig) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

func TestLoadLevelConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "valid.json", createValidConfig())

	cfg, err := LoadLevelConfig(filepath.Join(dir, "valid.json"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Name != "Test Config" || cfg.InitialHeading != East {
		t.Errorf("Unexpected config %+v", cfg)
	}

	if _, err := LoadLevelConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadLevelConfig(filepath.Join(dir, "broken.json")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestParseLevelConfig_Defaults(t *testing.T) {
	raw := `{
		"name": "Minimal",
		"description": "Only the required fields",
		"initial_heading": "east",
		"required_turns": 1,
		"layout": ["BBBBBB", "BBBFBB", "BBBFBB", "BSRXBB", "BBBBBB"],
		"messages": {"welcome": "Hi", "victory": "Won in %d", "crash": "Boom"}
	}`
	cfg, err := ParseLevelConfig([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if cfg.CellSize != DefaultCellSize {
		t.Errorf("Expected default cell size, got %v", cfg.CellSize)
	}
}

func TestParseLevelConfig_HeadingAliases(t *testing.T) {
	config := DefaultLevelConfig()
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	raw := strings.Replace(string(data), `"initial_heading":"north"`, `"initial_heading":"up"`, 1)
	cfg, err := ParseLevelConfig([]byte(raw))
	if err != nil {
		t.Fatalf("Expected the up alias to load, got %v", err)
	}
	if cfg.InitialHeading != North {
		t.Errorf("Expected heading north, got %s", cfg.InitialHeading)
	}

	tests := []struct {
		in   string
		want Heading
	}{
		{"up", North},
		{"right", East},
		{"down", South},
		{"left", West},
		{"South", South},
		{"w", West},
		{"", ""},
	}
	for _, tt := range tests {
		var d LevelDescriptor
		if err := json.Unmarshal([]byte(`{"initial_heading":"`+tt.in+`"}`), &d); err != nil {
			t.Errorf("Unmarshal heading %q: %v", tt.in, err)
			continue
		}
		if d.InitialHeading != tt.want {
			t.Errorf("Heading %q: expected %q, got %q", tt.in, tt.want, d.InitialHeading)
		}
	}

	raw = strings.Replace(string(data), `"initial_heading":"north"`, `"initial_heading":"sideways"`, 1)
	if _, err := ParseLevelConfig([]byte(raw)); err == nil || !strings.Contains(err.Error(), `invalid heading "sideways"`) {
		t.Errorf("Expected invalid heading error, got %v", err)
	}
}

func TestLoadConfigByName(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	writeConfig(t, dir, "simple.json", createValidConfig())

	cfg, err := LoadConfigByName("simple")
	if err != nil {
		t.Fatalf("Failed to load config by name: %v", err)
	}
	if cfg.Name != "Test Config" {
		t.Errorf("Expected name Test Config, got %q", cfg.Name)
	}

	if _, err := LoadConfigByName("simple.json"); err != nil {
		t.Errorf("Expected name with extension to load, got %v", err)
	}

	if _, err := LoadConfigByName("nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not found error, got %v", err)
	}

	bad := createValidConfig()
	bad.RequiredTurns = 5
	writeConfig(t, dir, "bad.json", bad)
	if _, err := LoadConfigByName("bad"); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("Expected invalid config error, got %v", err)
	}
}
