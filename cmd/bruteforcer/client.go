package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/crossroadbus/game/engine"
	"github.com/wricardo/mcp-training/crossroadbus/game/service"
)

// Client plays one session through the REST API.
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session the client is playing.
func (c *Client) SessionID() string { return c.sessionID }

// UseSession points the client at an existing session.
func (c *Client) UseSession(id string) { c.sessionID = id }

// CreateSession starts a new session on configID (server default when empty).
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var req interface{}
	if configID != "" {
		req = map[string]string{"config_id": configID}
	}

	var session service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = session.ID
	return &session, nil
}

// GetSession fetches the current session.
func (c *Client) GetSession(ctx context.Context) (*service.SessionInfo, error) {
	var session service.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+c.sessionID, nil, &session); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ResetResponse is the body of a reset call.
type ResetResponse struct {
	Message string            `json:"message"`
	State   *engine.GameState `json:"state"`
}

// Reset rebuilds the level.
func (c *Client) Reset(ctx context.Context) (*engine.GameState, error) {
	var resp ResetResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/reset", nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}

// Drive runs a whole turn plan.
func (c *Client) Drive(ctx context.Context, turns []string, maxFrames int) (*service.DriveResult, error) {
	req := map[string]interface{}{"turns": turns, "max_frames": maxFrames}

	var result service.DriveResult
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+c.sessionID+"/drive", req, &result); err != nil {
		return nil, fmt.Errorf("drive: %w", err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
