package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/config"
	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	configManager, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	persistence, err := NewFilePersistence(dir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager, dir
}

func newTestSession(t *testing.T, id string, level *engine.LevelConfig) *service.Session {
	t.Helper()
	eng, err := engine.NewEngine(level)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         level,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
}

func TestFilePersistence(t *testing.T) {
	persistence, configManager, _ := newTestPersistence(t)
	session := newTestSession(t, "test1", configManager.GetDefault())

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loaded.ID)
		}
		if loaded.Config.Name != session.Config.Name {
			t.Errorf("Expected level %s, got %s", session.Config.Name, loaded.Config.Name)
		}
		if loaded.ConfigID != "classic" {
			t.Errorf("Expected config id classic, got %s", loaded.ConfigID)
		}
		if got, want := loaded.Engine.GetState().Vehicle.Heading, session.Engine.GetState().Vehicle.Heading; got != want {
			t.Errorf("Expected heading %s, got %s", want, got)
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		// Drive to the first crossroads and turn right
		session.Engine.Start()
		session.Engine.RunUntil(engine.DefaultFrameDelta, 1000, func(*engine.GameState) bool {
			return session.Engine.Vehicle().InIntersection()
		})
		session.Engine.Turn(engine.Right)
		session.Engine.Tick(engine.DefaultFrameDelta)
		session.Engine.Tick(engine.DefaultFrameDelta)

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save updated session: %v", err)
		}

		loadedSession, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load updated session: %v", err)
		}

		want := session.Engine.Vehicle()
		got := loadedSession.Engine.Vehicle()
		if got.Position() != want.Position() {
			t.Errorf("Bus position not persisted correctly: expected %v, got %v", want.Position(), got.Position())
		}
		if got.Heading() != engine.East || got.TurnsTaken() != 1 {
			t.Errorf("Expected east after 1 turn, got %s after %d", got.Heading(), got.TurnsTaken())
		}
		if !got.Smoothing() {
			t.Error("Expected the in-flight direction smoothing to be persisted")
		}
		if got.SpeedScale() != 1 {
			t.Errorf("Expected speed scale 1, got %v", got.SpeedScale())
		}
		if len(loadedSession.Engine.GetTurnHistory()) != len(session.Engine.GetTurnHistory()) {
			t.Errorf("Turn history not persisted correctly")
		}
		if loadedSession.Engine.GetState().Frame != session.Engine.GetState().Frame {
			t.Errorf("Frame counter not persisted correctly")
		}

		// both copies keep driving identically apart from the sway
		for i := 0; i < 30; i++ {
			session.Engine.Tick(engine.DefaultFrameDelta)
			loadedSession.Engine.Tick(engine.DefaultFrameDelta)
		}
		if !got.Position().ApproxEqual(want.Position(), 1e-9) {
			t.Errorf("Expected restored bus to follow the same path, got %v and %v", got.Position(), want.Position())
		}
	})

	t.Run("List and Delete", func(t *testing.T) {
		if err := persistence.Save(newTestSession(t, "test2", configManager.GetDefault())); err != nil {
			t.Fatalf("Failed to save second session: %v", err)
		}

		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		found := map[string]bool{}
		for _, id := range ids {
			found[id] = true
		}
		if len(ids) != 2 || !found["test1"] || !found["test2"] {
			t.Errorf("Expected test1 and test2, got %v", ids)
		}

		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}
		if _, err := persistence.Load("test2"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound loading a deleted session, got %v", err)
		}
	})

	t.Run("Error Cases", func(t *testing.T) {
		if _, err := persistence.Load("nonexistent"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if err := persistence.Delete("nonexistent"); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if err := persistence.Save(nil); err == nil {
			t.Error("Expected error saving a nil session")
		}
	})
}

func TestFilePersistence_FileFormat(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)
	if err := persistence.Save(newTestSession(t, "file_test", configManager.GetDefault())); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "file_test.json"))
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Session file is not a JSON object: %v", err)
	}
	for _, key := range []string{"id", "config_name", "created_at", "last_accessed_at", "level", "game_state"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected field %q in session file", key)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the session file, found %d entries", len(entries))
	}
}

func TestFilePersistence_StoredLevelWins(t *testing.T) {
	persistence, _, dir := newTestPersistence(t)

	// a level that exists in no config file
	level := engine.DefaultLevelConfig()
	level.Name = "Detour"
	session := newTestSession(t, "detour", level)
	session.ConfigID = "gone"
	session.Engine.Start()
	for i := 0; i < 3; i++ {
		session.Engine.Tick(engine.DefaultFrameDelta)
	}
	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	loaded, err := persistence.Load("detour")
	if err != nil {
		t.Fatalf("Expected the stored level to be used, got %v", err)
	}
	if loaded.Config.Name != "Detour" {
		t.Errorf("Expected level Detour, got %s", loaded.Config.Name)
	}
	if loaded.Engine.GetState().Frame != 3 {
		t.Errorf("Expected frame 3, got %d", loaded.Engine.GetState().Frame)
	}

	t.Run("without a stored level the config must exist", func(t *testing.T) {
		raw, _ := os.ReadFile(filepath.Join(dir, "detour.json"))
		var data map[string]json.RawMessage
		json.Unmarshal(raw, &data)
		delete(data, "level")
		stripped, _ := json.Marshal(data)
		if err := os.WriteFile(filepath.Join(dir, "detour.json"), stripped, 0o644); err != nil {
			t.Fatalf("Failed to rewrite session file: %v", err)
		}

		if _, err := persistence.Load("detour"); err == nil {
			t.Error("Expected error for a missing config")
		}
	})
}

func TestFilePersistence_ListSkipsTempFiles(t *testing.T) {
	persistence, _, dir := newTestPersistence(t)
	for _, name := range []string{".abcd-123.tmp", "notes.txt", "abcd.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	os.Mkdir(filepath.Join(dir, "nested.json"), 0o755)

	ids, err := persistence.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "abcd" {
		t.Errorf("Expected [abcd], got %v", ids)
	}
}
