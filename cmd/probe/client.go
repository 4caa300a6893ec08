package main

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

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/service"
)

// Client drives one session on a running server through the REST API
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

// SessionID returns the session the client is bound to
func (c *Client) SessionID() string {
	return c.sessionID
}

// CreateSession starts a session on mapID (the server default when empty) and binds the client to it
func (c *Client) CreateSession(ctx context.Context, mapID string) (*service.SessionInfo, error) {
	var body interface{}
	if mapID != "" {
		body = map[string]string{"map_id": mapID}
	}

	var session service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = session.ID
	return &session, nil
}

// Resume binds the client to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	c.sessionID = sessionID
	var session service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &session); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	c.sessionID = session.ID
	return &session, nil
}

// GetState fetches the current map state
func (c *Client) GetState(ctx context.Context) (*engine.MapState, error) {
	var state engine.MapState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return &state, nil
}

// Reset restores the session's layout walls
func (c *Client) Reset(ctx context.Context) (*engine.MapState, error) {
	var resp struct {
		Message string           `json:"message"`
		State   *engine.MapState `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	return resp.State, nil
}

// FindPath runs a query between two cells
func (c *Client) FindPath(ctx context.Context, from, to engine.Point) (*engine.QueryResult, error) {
	req := service.PathRequest{From: &from, To: &to}
	var result engine.QueryResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/path"), req, &result); err != nil {
		return nil, fmt.Errorf("find path: %w", err)
	}
	return &result, nil
}

// Toggle flips one cell's walkability
func (c *Client) Toggle(ctx context.Context, p engine.Point) (*service.CellUpdate, error) {
	var update service.CellUpdate
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/toggle"), map[string]int{"x": p.X, "y": p.Y}, &update); err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	return &update, nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
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

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
