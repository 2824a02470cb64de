package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

func writeConfig(t *testing.T, dir, name string, config *engine.LevelConfig) string {
	t.Helper()
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestAnalyzeConfig_ValidLevel(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "default.json", engine.DefaultLevelConfig())

	a, err := analyzeConfig(path)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	if !a.OK() {
		t.Fatalf("Expected no problems, got %v", a.Problems)
	}
	if a.Width != 10 || a.Height != 9 {
		t.Errorf("Expected 10x9 grid, got %dx%d", a.Width, a.Height)
	}
	if len(a.Course.Turns) != 2 {
		t.Fatalf("Expected 2 turns on the course, got %d", len(a.Course.Turns))
	}
	if a.Course.Turns[0] != engine.Right || a.Course.Turns[1] != engine.Left {
		t.Errorf("Expected turns [right left], got %v", a.Course.Turns)
	}
	if a.Runway != 3 {
		t.Errorf("Expected runway 3, got %d", a.Runway)
	}
}

func TestAnalyzeConfig_TooFewTurns(t *testing.T) {
	config := engine.DefaultLevelConfig()
	config.RequiredTurns = 3
	path := writeConfig(t, t.TempDir(), "short.json", config)

	a, err := analyzeConfig(path)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	if a.OK() {
		t.Fatal("Expected a problem for a course with too few turns")
	}
	if !strings.Contains(a.Problems[0], "course has 2 turns, level requires 3") {
		t.Errorf("Unexpected problem: %s", a.Problems[0])
	}
}

func TestAnalyzeConfig_UntraceableCourse(t *testing.T) {
	config := engine.DefaultLevelConfig()
	config.Layout = []string{
		"BBBBB",
		"BRXRB",
		"BBRBB",
		"BBSBB",
		"BBBBB",
	}
	path := writeConfig(t, t.TempDir(), "fork.json", config)

	a, err := analyzeConfig(path)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}
	if a.OK() {
		t.Fatal("Expected a problem for an ambiguous junction")
	}
	if a.Course != nil {
		t.Error("Expected no course for an ambiguous junction")
	}
}

func TestAnalyzeConfig_InvalidFile(t *testing.T) {
	if _, err := analyzeConfig("/non/existent/file.json"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestAnalyzeConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"name": "test", invalid json}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := analyzeConfig(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestConfigFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "b.json", engine.DefaultLevelConfig())
	writeConfig(t, dir, "a.json", engine.DefaultLevelConfig())
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	files, err := configFiles(dir)
	if err != nil {
		t.Fatalf("configFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if filepath.Base(files[0]) != "a.json" {
		t.Errorf("Expected files sorted by name, got %v", files)
	}

	if _, err := configFiles(t.TempDir()); err == nil {
		t.Error("Expected error for an empty directory")
	}
}

func TestPrintAnalysis(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "default.json", engine.DefaultLevelConfig())
	a, err := analyzeConfig(path)
	if err != nil {
		t.Fatalf("analyzeConfig failed: %v", err)
	}

	var buf bytes.Buffer
	printAnalysis(&buf, a)
	out := buf.String()

	for _, want := range []string{"Grid Size: 10 x 9", "right@(2,4) left@(7,4)", "Runway after turn 2: 3 cells", "✅"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestShippedConfigs(t *testing.T) {
	files, err := configFiles("../../configs")
	if err != nil {
		t.Skipf("Skipping test - configs directory not found: %v", err)
	}

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			a, err := analyzeConfig(file)
			if err != nil {
				t.Fatalf("analyzeConfig failed: %v", err)
			}
			if !a.OK() {
				t.Errorf("Expected shipped level to pass, got %v", a.Problems)
			}
		})
	}
}
