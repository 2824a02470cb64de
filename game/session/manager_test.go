package session

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
)

func createTestConfig() *engine.LevelConfig {
	return &engine.LevelConfig{
		Name:           "Test Config",
		Description:    "Test configuration",
		InitialHeading: engine.East,
		RequiredTurns:  1,
		Layout: []string{
			"BBBBBB",
			"BBBFBB",
			"BBBFBB",
			"BSRXBB",
			"BBBBBB",
		},
		Messages: engine.DefaultMessages(),
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Engine == nil {
			t.Error("Expected engine to be initialized")
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID == "" {
			t.Error("Expected auto-generated session ID")
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character session ID, got %d characters", len(session.ID))
		}
	})

	t.Run("duplicate session ID", func(t *testing.T) {
		_, err := manager.Create("test-session", config)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("case-insensitive duplicate check", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", config)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists for case variant, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		invalidConfig := createTestConfig()
		invalidConfig.Name = "" // Make config invalid
		_, err := manager.Create("invalid-test", invalidConfig)
		if err == nil {
			t.Error("Expected error for invalid config")
		}
	})
}

func TestManager_CreateRejectsUnsafeIDs(t *testing.T) {
	manager := NewManager()

	for _, id := range []string{"../escape", `a\b`, "c:d", "..", strings.Repeat("x", 65)} {
		t.Run(id, func(t *testing.T) {
			_, err := manager.Create(id, createTestConfig())
			if !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Expected ErrInvalidSessionID for %q, got %v", id, err)
			}
		})
	}
	if manager.Count() != 0 {
		t.Errorf("Expected no sessions, got %d", manager.Count())
	}
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	// Create test session
	created, _ := manager.Create("get-test", config)

	t.Run("get existing session", func(t *testing.T) {
		session, err := manager.Get("get-test")
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session.ID != created.ID {
			t.Errorf("Expected session ID '%s', got '%s'", created.ID, session.ID)
		}
	})

	t.Run("case-insensitive get", func(t *testing.T) {
		session, err := manager.Get("GET-TEST")
		if err != nil {
			t.Fatalf("Failed to get session with different case: %v", err)
		}
		if session.ID != created.ID {
			t.Errorf("Expected same session regardless of case")
		}
	})

	t.Run("get non-existent session", func(t *testing.T) {
		_, err := manager.Get("non-existent")
		if err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()

	first, err := manager.GetOrCreate("route-7", createTestConfig())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	first.Engine.Start()

	again, err := manager.GetOrCreate("ROUTE-7", createTestConfig())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if again != first {
		t.Error("Expected the existing session to be returned")
	}
	if phase := again.Engine.GetState().Phase; phase != engine.PhaseMoving {
		t.Errorf("Expected the running bus to be kept, got phase %s", phase)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	tests := []struct {
		name    string
		create  string
		delete  string
		wantErr error
	}{
		{"same case", "depot", "depot", nil},
		{"other case", "depot", "DEPOT", nil},
		{"unknown", "depot", "garage", ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager()
			if _, err := manager.Create(tt.create, createTestConfig()); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			err := manager.Delete(tt.delete)
			if err != tt.wantErr {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}

			_, getErr := manager.Get(tt.create)
			if tt.wantErr == nil && getErr != ErrSessionNotFound {
				t.Errorf("Expected session to be gone, got %v", getErr)
			}
			if tt.wantErr != nil && getErr != nil {
				t.Errorf("Expected session to survive, got %v", getErr)
			}
		})
	}
}

func TestManager_DeleteFromMemory(t *testing.T) {
	manager := NewManager()
	manager.Create("depot", createTestConfig())

	if err := manager.DeleteFromMemory("Depot"); err != nil {
		t.Fatalf("DeleteFromMemory failed: %v", err)
	}
	if err := manager.DeleteFromMemory("depot"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	want := map[string]bool{"line-1": true, "line-2": true, "line-3": true}
	for id := range want {
		if _, err := manager.Create(id, createTestConfig()); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	sessions := manager.List()
	if len(sessions) != len(want) {
		t.Fatalf("Expected %d sessions, got %d", len(want), len(sessions))
	}
	for _, s := range sessions {
		if !want[s.ID] {
			t.Errorf("Unexpected session %s in list", s.ID)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	// Create sessions with different last access times
	active, _ := manager.Create("active", config)
	expired, _ := manager.Create("expired", config)

	// Simulate expired session
	expired.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	active.LastAccessedAt = time.Now()

	// Clean up sessions older than 1 hour
	deleted := manager.CleanupExpiredSessions(1 * time.Hour)

	if deleted != 1 {
		t.Errorf("Expected 1 session to be deleted, got %d", deleted)
	}

	// Verify expired session is deleted
	_, err := manager.Get("expired")
	if err != ErrSessionNotFound {
		t.Error("Expected expired session to be deleted")
	}

	// Verify active session still exists
	_, err = manager.Get("active")
	if err != nil {
		t.Error("Expected active session to still exist")
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	session, _ := manager.Create("access-test", config)
	originalTime := session.LastAccessedAt

	// Wait a bit to ensure time difference
	time.Sleep(10 * time.Millisecond)

	err := manager.UpdateLastAccessed("access-test")
	if err != nil {
		t.Fatalf("Failed to update last accessed: %v", err)
	}

	// Get session again to verify update
	updated, _ := manager.Get("access-test")
	if !updated.LastAccessedAt.After(originalTime) {
		t.Error("Expected LastAccessedAt to be updated")
	}
}

func TestManager_Exists(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	manager.Create("exists-test", config)

	t.Run("existing session", func(t *testing.T) {
		if !manager.sessionExists("exists-test") {
			t.Error("Expected session to exist")
		}
	})

	t.Run("case-insensitive existence check", func(t *testing.T) {
		if !manager.sessionExists("EXISTS-TEST") {
			t.Error("Expected session to exist regardless of case")
		}
	})

	t.Run("non-existent session", func(t *testing.T) {
		if manager.sessionExists("non-existent") {
			t.Error("Expected session not to exist")
		}
	})
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	// Test concurrent session creation
	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sessionID := strings.ToLower(generateRandomID())
			_, err := manager.Create(sessionID, config)
			if err != nil && err != ErrSessionAlreadyExists {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	// Check for unexpected errors
	for err := range errs {
		t.Errorf("Unexpected error during concurrent access: %v", err)
	}

	// Verify sessions were created
	sessions := manager.List()
	if len(sessions) == 0 {
		t.Error("Expected sessions to be created")
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	session1, _ := manager.Create("iso-1", config)
	session2, _ := manager.Create("iso-2", config)

	session1.Engine.Start()
	for i := 0; i < 10; i++ {
		session1.Engine.Tick(engine.DefaultFrameDelta)
	}

	if session2.Engine.GetState().Frame != 0 {
		t.Error("Session 2 should not be affected by session 1 frames")
	}
	if session2.Engine.Vehicle().Position() != (engine.Vec3{}) {
		t.Errorf("Expected session 2 bus at the origin, got %v", session2.Engine.Vehicle().Position())
	}
	if session1.Engine.Vehicle().Position() == session2.Engine.Vehicle().Position() {
		t.Error("Sessions should have independent game state")
	}
}

func TestManager_EngineOptions(t *testing.T) {
	var outcomes []engine.Outcome
	manager := NewManager(WithEngineOptions(engine.WithOutcomeListener(func(o engine.Outcome, _ *engine.GameState) {
		outcomes = append(outcomes, o)
	})))

	// no turn: the bus drives into the building past the crossroads
	session, err := manager.Create("opts", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	session.Engine.Start()
	session.Engine.RunUntil(engine.DefaultFrameDelta, 2000, nil)

	if len(outcomes) != 1 || outcomes[0] != engine.OutcomeLost {
		t.Errorf("Expected one lost outcome, got %v", outcomes)
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	generatedIDs := make(map[string]bool)

	// Generate multiple sessions and check for uniqueness
	for i := 0; i < 50; i++ {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if generatedIDs[session.ID] {
			t.Errorf("Duplicate session ID generated: %s", session.ID)
		}
		generatedIDs[session.ID] = true

		// Verify ID format (4 alphanumeric characters)
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got %d", len(session.ID))
		}
	}
}

// Helper function to generate random ID for testing
func generateRandomID() string {
	return "test-" + time.Now().Format("150405")
}
