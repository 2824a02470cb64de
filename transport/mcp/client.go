package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Crossroad Bus",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Crossroad Bus - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Drive the bus from the start (S) through the crossroads (X) and reach the finish street (F).
The bus drives on its own once started. You only decide when to turn left or right.
Each level requires an exact number of turns. Hitting a building (B) ends the run.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: Manage game sessions
- game_state: Current grid, bus position, heading and phase
- start_level: Put the bus in motion
- turn: Request a left/right turn, then advance some frames - requires intent explanation
- tick: Advance the simulation without turning
- drive: Run a whole turn plan until it is used up or the run ends - requires intent explanation
- reset_game: Rebuild the level and put the bus back at the start
- turn_history: View past turn requests
- list_configs / generate_level: Levels
- list_results: Finished runs
- game_instructions: Rules and strategy
- describe_cell: Exact type of one grid cell

NOTE: The 'intent' parameter on turn/drive serves as rubber duck debugging - explain your reasoning!`),
	)

	// Register all tools
	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional level selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Level config id to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_level",
		Description: "Start the bus. It then drives forward on its own.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleStart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "turn",
		Description: "Request a turn. It only takes effect inside a crossroads zone, once per crossroads.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"left", "right"},
					"description": "Side to turn to",
				},
				"ticks": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Frames to advance after the request (default 1, max %d)", engine.MaxTicksPerCall),
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this turn (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleTurn)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the simulation by a number of frames",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"frames": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Frames to advance (default 1, max %d)", engine.MaxTicksPerCall),
				},
				"dt": map[string]interface{}{
					"type":        "number",
					"description": "Seconds per frame (default 1/30)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: "Start the bus if needed and take the planned turns at successive crossroads, until the plan is used up or the run ends",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"turns": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"left", "right"},
					},
					"description": "Turns to take, one per crossroads",
				},
				"max_frames": map[string]interface{}{
					"type":        "integer",
					"description": "Frame budget for this call",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this plan (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "turns"},
		},
	}, c.handleDrive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Reset the level: the bus goes back to the start, idle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "turn_history",
		Description: "Get turn request history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTurnHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "generate_level",
		Description: "Generate and save a new level from a seed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Id to save the level under (optional)",
				},
				"seed": map[string]interface{}{
					"type":        "integer",
					"description": "Seed (optional, random when omitted)",
				},
				"turns": map[string]interface{}{
					"type":        "integer",
					"description": "Required turns (default 3)",
				},
			},
		},
	}, c.handleGenerateLevel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_results",
		Description: "List finished runs, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum runs to return",
				},
			},
		},
	}, c.handleListResults)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get the exact type of a grid cell. Useful for telling roads (R) from buildings (B).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell to describe (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell to describe (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// arguments returns the tool call arguments, empty when none were sent
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// intArg reads a numeric argument; JSON numbers arrive as float64
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func stringsArg(args map[string]interface{}, key string) []string {
	raw, _ := args[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nConfig: %s\n", session.ID, session.ConfigName)
	if session.GameState != nil {
		result += "\n" + formatGameState(session.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		phase := engine.Phase("unknown")
		if s.GameState != nil {
			phase = s.GameState.Phase
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Phase: %s, Created: %s)\n",
			s.ID, s.ConfigName, phase, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/start"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult("Start", &result)), nil
}

func (c *Client) handleTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	body := map[string]interface{}{"direction": direction}
	if ticks, ok := intArg(args, "ticks"); ok {
		body["ticks"] = ticks
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/turn"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult("Turn "+direction, &result)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{}
	if frames, ok := intArg(args, "frames"); ok {
		body["frames"] = frames
	}
	if dt, ok := args["dt"].(float64); ok {
		body["dt"] = dt
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatActionResult("Tick", &result)), nil
}

func (c *Client) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{"turns": stringsArg(args, "turns")}
	if maxFrames, ok := intArg(args, "max_frames"); ok {
		body["max_frames"] = maxFrames
	}

	var result service.DriveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/drive"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatDriveResult(sessionID, &result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}

	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleTurnHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatHistory(&history)

	// Also show the current attempt from live state
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err == nil {
		result += "\n" + formatCurrentAttempt(session.GameState)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Levels:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Grid: %dx%d, Start heading: %s, Required turns: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.Width, config.Height,
			config.InitialHeading, config.RequiredTurns)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGenerateLevel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	req := service.GenerateRequest{}
	req.ConfigID, _ = args["config_id"].(string)
	if seed, ok := intArg(args, "seed"); ok && seed > 0 {
		req.Seed = uint64(seed)
	}
	if turns, ok := intArg(args, "turns"); ok {
		req.Turns = turns
	}

	var info service.ConfigInfo
	if err := c.apiCall(ctx, "POST", "/api/levels/generate", req, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Generated level %q (config_id: %s)\nSeed: %d\nGrid: %dx%d, Start heading: %s, Required turns: %d\n\nUse create_session with config_id %q to play it.",
		info.Name, info.ConfigID, info.Seed, info.Width, info.Height, info.InitialHeading, info.RequiredTurns, info.ConfigID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/results"
	if limit, ok := intArg(arguments(request), "limit"); ok && limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Count   int                 `json:"count"`
		Results []service.RunResult `json:"results"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Finished runs (%d):\n\n", response.Count)
	for _, r := range response.Results {
		fmt.Fprintf(&b, "- %s %s on %s: %d/%d turns, %d frames, ended at (%d,%d)\n",
			r.FinishedAt.Format("2006-01-02 15:04:05"), strings.ToUpper(string(r.Outcome)),
			r.ConfigName, r.Turns, r.Required, r.Frames, r.Cell.X, r.Cell.Y)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `🚌 Crossroad Bus - Complete Instructions

GAME OBJECTIVE:
Get the bus from the start cell to the finish street, taking exactly the required number of turns.

GAME MECHANICS:
• The bus is idle until you start it. Once moving it drives straight ahead on its own.
• Turns are 90 degrees, left or right relative to the bus's heading.
• A turn request only counts inside a crossroads (X) zone, and only once per crossroads.
• Requests made anywhere else are ignored (they still show up in the turn history).
• Reaching a building (B) ends the run: you lose.
• After the last required turn the bus coasts for a moment, then the level is won.
• Turning too early or the wrong way usually means the bus hits a building.

GRID LEGEND:
• S = Start cell
• R = Road
• X = Crossroads (turn zone)
• F = Finish street
• B = Building (run ends here)
• ^ > v < = The bus and its heading (north, east, south, west)
Coordinates: x is the column, y is the row, (0,0) is the top-left corner. North is up.

HOW TO PLAY WITH TOOLS:
1. create_session (optionally with a config_id from list_configs)
2. game_state to read the grid. Trace the road from S and note where each X forces a turn.
3. Either:
   • drive with the whole plan, e.g. ["right", "left"], or
   • start_level, then tick until the bus is in a crossroads, then turn.
4. reset_game to try again. Finished runs are listed by list_results.

STRATEGY:
• At each crossroads, look at the cell straight ahead. If it is a building you must turn.
• The open side (left or right of the bus's heading) is the turn to take.
• Headings rotate: turning right from north faces east, turning left from north faces west.
• next_action in the state tells you what is coming up straight ahead.
• drive stops with stop_reason_code "plan_exhausted" when your plan is used up and the bus
  enters the next crossroads, so you can plan one crossroads at a time.

CRITICAL PITFALLS TO AVOID:
• Confusing left/right with screen directions. They are relative to the bus.
• Confusing R (road) with B (building). Use describe_cell when unsure.
• Turning before reaching the X cell. The request is ignored and the crossroads is missed.

VICTORY CONDITIONS:
• Take exactly the required turns and reach the finish street without hitting a building.

Good luck, driver! 🚏`

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}

	var cell struct {
		Char     string          `json:"char"`
		Type     engine.CellType `json:"type"`
		InBounds bool            `json:"in_bounds"`
		Passable bool            `json:"passable"`
		BusHere  bool            `json:"bus_here"`
	}
	path := sessionPath(sessionID, fmt.Sprintf("/cell?x=%d&y=%d", x, y))
	if err := c.apiCall(ctx, "GET", path, nil, &cell); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !cell.InBounds {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are outside the grid; everything outside counts as a building", x, y)), nil
	}

	description := cellDescription(cell.Type)
	if cell.BusHere {
		description += " The bus is here."
	}

	result := fmt.Sprintf(`Cell at position (%d, %d):
━━━━━━━━━━━━━━━━━━━━━━━━
Character: %s
Type: %s
Passable: %v
Description: %s
%s`,
		x, y, cell.Char, cell.Type, cell.Passable, description, getCharacterReminder(cell.Char))

	return mcp.NewToolResultText(result), nil
}

func cellDescription(t engine.CellType) string {
	switch t {
	case engine.Start:
		return "Start cell, where the bus waits."
	case engine.Road:
		return "Road, safe to drive through."
	case engine.Intersection:
		return "Crossroads: the only place a turn request counts."
	case engine.Finish:
		return "Finish street, the end of the course."
	case engine.Building:
		return "Building: the run ends if the bus reaches it."
	}
	return "Unknown cell type."
}

func getCharacterReminder(char string) string {
	switch char {
	case "R":
		return "⚠️ REMINDER: 'R' (road) is often confused with 'B' (building). This is a ROAD."
	case "B":
		return "⚠️ REMINDER: 'B' (building) is often confused with 'R' (road). Driving into it ends the run!"
	case "X":
		return "↔️ Turn here. Only one turn per crossroads."
	case "F":
		return "🏁 Finish street."
	default:
		return ""
	}
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder

	fmt.Fprintf(&result, "Cell: (%d,%d) %s | Heading: %s | Phase: %s | Turns: %d/%d | Frame: %d (%.1fs)\n\n",
		state.Cell.X, state.Cell.Y, state.CellType,
		state.Vehicle.Heading, state.Phase,
		state.Vehicle.TurnsTaken, state.Required,
		state.Frame, state.Elapsed)

	if state.NextAction != "" {
		fmt.Fprintf(&result, "Next: %s\n", state.NextAction)
	}
	if len(state.LocalView3x3) == 3 {
		result.WriteString("Local 3x3:\n")
		result.WriteString(strings.Join(state.LocalView3x3, "\n"))
		result.WriteString("\n\n")
	}

	// Grid with the bus drawn on top
	glyph := engine.HeadingGlyph(state.Vehicle.Heading)
	for y, row := range state.Grid {
		line := []byte(row)
		if y == state.Cell.Y && state.Cell.X >= 0 && state.Cell.X < len(line) {
			line[state.Cell.X] = glyph
		}
		result.Write(line)
		result.WriteString("\n")
	}

	// Status
	if state.GameOver {
		if state.Victory {
			result.WriteString("\n🎉 VICTORY!")
		} else {
			result.WriteString("\n💥 CRASHED")
		}
	}

	if state.Message != "" {
		fmt.Fprintf(&result, "\nMessage: %s", state.Message)
	}

	return result.String()
}

func formatEvents(b *strings.Builder, events []service.GameEvent) {
	if len(events) == 0 {
		return
	}
	b.WriteString("Events:\n")
	for _, event := range events {
		fmt.Fprintf(b, "- [frame %d] %s at (%d,%d): %s\n",
			event.Frame, event.Type, event.Cell.X, event.Cell.Y, event.Message)
	}
}

func formatActionResult(what string, result *service.ActionResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ %s accepted", what)
	} else {
		fmt.Fprintf(&b, "✗ %s not applied", what)
	}
	if result.Frames > 0 {
		fmt.Fprintf(&b, " (%d frames)", result.Frames)
	}
	b.WriteString("\n")
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}

	formatEvents(&b, result.Events)

	b.WriteString("\n" + formatGameState(result.GameState))
	return b.String()
}

func formatDriveResult(sessionID string, result *service.DriveResult) string {
	var b strings.Builder

	configName := ""
	if result.GameState != nil {
		configName = result.GameState.ConfigName
	}
	fmt.Fprintf(&b, "Session: %s • Config: %s\n", sessionID, configName)

	fmt.Fprintf(&b, "Applied %d/%d turns in %d frames\n", result.TurnsApplied, result.TurnsRequested, result.FramesRun)
	if result.Truncated {
		fmt.Fprintf(&b, "Plan truncated to %d turns\n", result.Limit)
	}
	if result.StoppedReason != "" {
		fmt.Fprintf(&b, "Stopped: %s (%s)\n", result.StoppedReason, result.StopReasonCode)
	}
	fmt.Fprintf(&b, "From (%d,%d) %s to (%d,%d) %s\n",
		result.StartCell.X, result.StartCell.Y, result.StartHeading,
		result.EndCell.X, result.EndCell.Y, result.EndHeading)

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps (this call):\n")
		for _, s := range result.Steps {
			status := "✓"
			if !s.Accepted {
				status = "✗"
			}
			fmt.Fprintf(&b, "%d. %s at (%d,%d) frame %d %s→%s %s\n",
				s.Idx, s.Dir, s.Cell.X, s.Cell.Y, s.Frame, s.FromHeading, s.ToHeading, status)
		}
	}

	if len(result.Events) > 0 {
		b.WriteString("\n")
		formatEvents(&b, result.Events)
	}

	if result.NextAction != "" {
		fmt.Fprintf(&b, "\nNext: %s\n", result.NextAction)
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatTurnLine(num int, turn engine.TurnHistoryEntry) string {
	status := "✓"
	if !turn.Accepted {
		status = "✗ ignored"
	}
	return fmt.Sprintf("%d. %s at (%d,%d) frame %d, heading %s→%s %s\n",
		num, turn.Direction, turn.Cell.X, turn.Cell.Y, turn.Frame, turn.FromHeading, turn.ToHeading, status)
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn History (Page %d/%d), Total (cumulative): %d\n\n",
		history.Page, history.TotalPages, history.TotalTurns)

	for _, turn := range history.Turns {
		b.WriteString(formatTurnLine(turn.TurnNumber, turn))
	}

	return b.String()
}

func formatCurrentAttempt(state *engine.GameState) string {
	if state == nil {
		return "Current attempt: unavailable"
	}
	header := fmt.Sprintf("Current attempt, turn requests: %d\n\n", state.CurrentTurnsCount)
	if len(state.CurrentTurns) == 0 {
		return header + "(no turn requests yet)"
	}
	var b strings.Builder
	b.WriteString(header)
	for i, turn := range state.CurrentTurns {
		b.WriteString(formatTurnLine(i+1, turn))
	}
	return b.String()
}
