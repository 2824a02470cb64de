package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/crossroadbus/api"
	"github.com/wricardo/mcp-training/crossroadbus/game/config"
	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
	"github.com/wricardo/mcp-training/crossroadbus/game/session"
)

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

// newBackend serves the real REST API over an in-memory game service with
// the built-in two-turn level as default.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	gameService := service.NewGameService(session.NewManager(), configs)
	server := httptest.NewServer(api.NewServer(gameService, nil))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON POST, got %s %q", r.Method, r.Header.Get("Content-Type"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"echo": body["direction"]})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]string
	err := client.apiCall(context.Background(), "POST", "/api/x", map[string]string{"direction": "left"}, &response)
	if err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["echo"] != "left" {
		t.Errorf("Expected echo left, got %v", response["echo"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	err := client.apiCall(context.Background(), "GET", "/api", nil, nil)
	if err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/json") {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/api", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "API error") {
		t.Errorf("Expected 'API error', got: %v", err)
	}

	err = client.apiCall(context.Background(), "GET", "/api/json", nil, nil)
	if err == nil || err.Error() != "session not found" {
		t.Errorf("Expected server error message, got: %v", err)
	}
}

func TestArguments(t *testing.T) {
	args := arguments(mcp.CallToolRequest{})
	if args == nil || len(args) != 0 {
		t.Errorf("Expected empty arguments, got %v", args)
	}

	args = arguments(callRequest("turn", map[string]interface{}{
		"ticks": float64(30),
		"turns": []interface{}{"left", 3, "right"},
	}))
	if n, ok := intArg(args, "ticks"); !ok || n != 30 {
		t.Errorf("Expected ticks 30, got %d %v", n, ok)
	}
	if _, ok := intArg(args, "missing"); ok {
		t.Error("Expected missing int argument to report false")
	}
	if turns := stringsArg(args, "turns"); len(turns) != 2 || turns[1] != "right" {
		t.Errorf("Expected non-string items skipped, got %v", turns)
	}
}

func TestFormatGameState(t *testing.T) {
	state := &engine.GameState{
		Grid:       []string{"BXB", "BRB", "BSB"},
		Vehicle:    engine.VehicleState{Heading: engine.North, TurnsTaken: 0},
		Cell:       engine.Position{X: 1, Y: 1},
		CellType:   engine.Road,
		Phase:      engine.PhaseMoving,
		Required:   2,
		Frame:      45,
		Elapsed:    1.5,
		Message:    "Welcome aboard!",
		NextAction: "turn right at the crossroads in 1 cells",
	}

	result := formatGameState(state)

	expected := []string{
		"Cell: (1,1) road",
		"Heading: north",
		"Phase: moving",
		"Turns: 0/2",
		"Frame: 45 (1.5s)",
		"Next: turn right at the crossroads in 1 cells",
		"BXB\nB^B\nBSB\n",
		"Message: Welcome aboard!",
	}
	for _, field := range expected {
		if !strings.Contains(result, field) {
			t.Errorf("Expected '%s' in formatted output, got: %s", field, result)
		}
	}
}

func TestFormatGameState_Outcomes(t *testing.T) {
	crashed := formatGameState(&engine.GameState{GameOver: true, Outcome: engine.OutcomeLost})
	if !strings.Contains(crashed, "💥 CRASHED") {
		t.Errorf("Expected crash marker, got: %s", crashed)
	}

	won := formatGameState(&engine.GameState{GameOver: true, Victory: true, Outcome: engine.OutcomeWon})
	if !strings.Contains(won, "🎉 VICTORY!") {
		t.Errorf("Expected victory marker, got: %s", won)
	}

	if formatGameState(nil) != "No game state available" {
		t.Error("Expected placeholder for nil state")
	}
}

func TestFormatActionResult(t *testing.T) {
	result := formatActionResult("Turn left", &service.ActionResult{
		Success: false,
		Frames:  1,
		Events: []service.GameEvent{
			{Type: "turn_ignored", Message: "Not at a crossroads", Frame: 12, Cell: engine.Position{X: 2, Y: 6}},
		},
		GameState: &engine.GameState{},
	})

	for _, field := range []string{"✗ Turn left not applied (1 frames)", "[frame 12] turn_ignored at (2,6): Not at a crossroads"} {
		if !strings.Contains(result, field) {
			t.Errorf("Expected '%s' in output, got: %s", field, result)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	result := formatHistory(&service.HistoryResponse{
		Turns: []engine.TurnHistoryEntry{
			{Direction: engine.Left, FromHeading: engine.East, ToHeading: engine.North, Cell: engine.Position{X: 7, Y: 4}, Frame: 300, Accepted: true, TurnNumber: 2},
			{Direction: engine.Right, FromHeading: engine.North, ToHeading: engine.North, Cell: engine.Position{X: 2, Y: 6}, Frame: 10, TurnNumber: 1},
		},
		TotalTurns: 2,
		Page:       1,
		TotalPages: 1,
	})

	for _, field := range []string{
		"Page 1/1",
		"2. left at (7,4) frame 300, heading east→north ✓",
		"1. right at (2,6) frame 10, heading north→north ✗ ignored",
	} {
		if !strings.Contains(result, field) {
			t.Errorf("Expected '%s' in output, got: %s", field, result)
		}
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleGameInstructions(context.Background(), callRequest("game_instructions", nil))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}
	text := resultText(t, result)

	for _, content := range []string{
		"Crossroad Bus - Complete Instructions",
		"GAME OBJECTIVE:",
		"GRID LEGEND:",
		"STRATEGY:",
		"CRITICAL PITFALLS TO AVOID:",
		"VICTORY CONDITIONS:",
	} {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions", content)
		}
	}
}

func TestClient_ToolErrors(t *testing.T) {
	client := NewClient(newBackend(t).URL)
	ctx := context.Background()

	result, err := client.handleGameState(ctx, callRequest("game_state", map[string]interface{}{"session_id": "zzzz"}))
	if err != nil {
		t.Fatalf("Expected tool error result, got error %v", err)
	}
	if !result.IsError {
		t.Error("Expected an error result for an unknown session")
	}

	result, _ = client.handleCreateSession(ctx, callRequest("create_session", map[string]interface{}{"config_id": "nope"}))
	if !result.IsError || !strings.Contains(resultText(t, result), "Available configs") {
		t.Errorf("Expected config-not-found error, got %+v", result)
	}

	result, _ = client.handleDescribeCell(ctx, callRequest("describe_cell", map[string]interface{}{"session_id": "zzzz"}))
	if !result.IsError {
		t.Error("Expected an error result without coordinates")
	}
}

func TestClient_Integration(t *testing.T) {
	client := NewClient(newBackend(t).URL)
	ctx := context.Background()

	result, err := client.handleCreateSession(ctx, callRequest("create_session", nil))
	if err != nil {
		t.Fatalf("create_session failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasPrefix(text, "Created session: ") {
		t.Fatalf("Unexpected create output: %s", text)
	}
	sessionID := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(text, "Created session: "), "\n", 2)[0])

	// The built-in level: start at (2,7) heading north, crossroads at (2,4)
	result, _ = client.handleDescribeCell(ctx, callRequest("describe_cell", map[string]interface{}{
		"session_id": sessionID, "x": float64(2), "y": float64(4),
	}))
	if text := resultText(t, result); !strings.Contains(text, "Type: intersection") {
		t.Errorf("Expected an intersection at (2,4), got: %s", text)
	}

	result, _ = client.handleTurn(ctx, callRequest("turn", map[string]interface{}{
		"session_id": sessionID, "direction": "left", "intent": "too early on purpose",
	}))
	if text := resultText(t, result); !strings.Contains(text, "not applied") {
		t.Errorf("Expected idle turn to be ignored, got: %s", text)
	}

	result, _ = client.handleDrive(ctx, callRequest("drive", map[string]interface{}{
		"session_id": sessionID,
		"turns":      []interface{}{"right", "left"},
		"intent":     "right at the first crossroads, left onto the finish street",
	}))
	text = resultText(t, result)
	if result.IsError {
		t.Fatalf("drive failed: %s", text)
	}
	for _, field := range []string{"Applied 2/2 turns", "(victory)", "🎉 VICTORY!"} {
		if !strings.Contains(text, field) {
			t.Errorf("Expected '%s' in drive output, got: %s", field, text)
		}
	}

	result, _ = client.handleTurnHistory(ctx, callRequest("turn_history", map[string]interface{}{
		"session_id": sessionID, "order": "asc",
	}))
	text = resultText(t, result)
	if !strings.Contains(text, "Total (cumulative): 3") {
		t.Errorf("Expected 3 turn requests in history, got: %s", text)
	}

	result, _ = client.handleReset(ctx, callRequest("reset_game", map[string]interface{}{"session_id": sessionID}))
	if text := resultText(t, result); !strings.Contains(text, "Game reset successfully") || !strings.Contains(text, "Phase: idle") {
		t.Errorf("Unexpected reset output: %s", text)
	}

	result, _ = client.handleListSessions(ctx, callRequest("list_sessions", nil))
	if text := resultText(t, result); !strings.Contains(text, "Active Sessions (1)") || !strings.Contains(text, sessionID) {
		t.Errorf("Unexpected session list: %s", text)
	}

	result, _ = client.handleListConfigs(ctx, callRequest("list_configs", nil))
	if result.IsError {
		t.Errorf("list_configs failed: %s", resultText(t, result))
	}

	result, _ = client.handleGenerateLevel(ctx, callRequest("generate_level", map[string]interface{}{
		"config_id": "daily", "seed": float64(7), "turns": float64(2),
	}))
	if text := resultText(t, result); result.IsError || !strings.Contains(text, "config_id: daily") || !strings.Contains(text, "Required turns: 2") {
		t.Errorf("Unexpected generate output: %s", text)
	}

	result, _ = client.handleListResults(ctx, callRequest("list_results", nil))
	if text := resultText(t, result); !strings.Contains(text, "Finished runs (0)") {
		t.Errorf("Expected no recorded runs without a results store, got: %s", text)
	}
}
