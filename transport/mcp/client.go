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

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/service"
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
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Path Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Path Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Each session holds one grid map. Cells are '.' open, '#' blocked, 'S' start, 'G' goal
and '*' marks a path. x is the column and y is the row, both 0-based.
Moves go in 8 directions: straight steps cost 10 and diagonal steps cost 14.

AVAILABLE TOOLS:
- create_session: Create a session on a map (default map when map_id is omitted)
- list_sessions: List active sessions
- get_session: Get session details
- map_state: Render the current map
- find_path: Run an A* query (defaults to S -> G)
- set_walkable: Open or block a cell
- toggle_cell: Flip a cell between open and blocked
- reset_map: Restore the map's original walls
- query_history: View past path queries
- list_maps: List available maps
- describe_cell: Describe one cell and its neighbors`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func intProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new map session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the map to use (optional, see list_maps)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active map sessions",
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

	// Map operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "map_state",
		Description: "Render the current map of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleMapState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "find_path",
		Description: "Find the cheapest 8-connected path between two cells. Omitted endpoints default to the map's S and G.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id":     sessionProperty(),
				"from_x":         intProperty("Start column"),
				"from_y":         intProperty("Start row"),
				"to_x":           intProperty("Goal column"),
				"to_y":           intProperty("Goal row"),
				"max_expansions": intProperty("Stop after expanding this many nodes (optional)"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleFindPath)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_walkable",
		Description: "Open or block a single cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x":          intProperty("Column (0-based)"),
				"y":          intProperty("Row (0-based)"),
				"walkable": map[string]interface{}{
					"type":        "boolean",
					"description": "true opens the cell, false blocks it",
				},
			},
			Required: []string{"session_id", "x", "y", "walkable"},
		},
	}, c.handleSetWalkable)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_cell",
		Description: "Flip a cell between open and blocked",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x":          intProperty("Column (0-based)"),
				"y":          intProperty("Row (0-based)"),
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleToggleCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_map",
		Description: "Restore the map's original walls",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleResetMap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "query_history",
		Description: "Get path query history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page":       intProperty("Page number"),
				"limit":      intProperty("Items per page"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleQueryHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List available maps",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe a grid cell: its character, whether it is walkable, its world-space center and its 8 neighbors",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x":          intProperty("Column (0-based)"),
				"y":          intProperty("Row (0-based)"),
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves single JSON-RPC messages over POST
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
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

// Argument helpers. JSON numbers arrive as float64.

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func requireSession(args map[string]interface{}) (string, *mcp.CallToolResult) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", mcp.NewToolResultError("session_id is required")
	}
	return sessionID, nil
}

func requireCell(args map[string]interface{}) (int, int, *mcp.CallToolResult) {
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return 0, 0, mcp.NewToolResultError("x and y are required integers")
	}
	return x, y, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if mapID, _ := args["map_id"].(string); mapID != "" {
		body["map_id"] = mapID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
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
		fmt.Fprintf(&b, "- %s (Map: %s, Created: %s)\n", s.ID, s.MapID, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleMapState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var state engine.MapState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMapState(&state)), nil
}

func (c *Client) handleFindPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}

	var req service.PathRequest
	if x, ok := intArg(args, "from_x"); ok {
		y, _ := intArg(args, "from_y")
		req.From = &engine.Point{X: x, Y: y}
	}
	if x, ok := intArg(args, "to_x"); ok {
		y, _ := intArg(args, "to_y")
		req.To = &engine.Point{X: x, Y: y}
	}
	if limit, ok := intArg(args, "max_expansions"); ok {
		req.MaxExpansions = limit
	}

	var result engine.QueryResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/path"), req, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatQueryResult(&result)), nil
}

func (c *Client) handleSetWalkable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}
	x, y, errResult := requireCell(args)
	if errResult != nil {
		return errResult, nil
	}
	walkable, ok := args["walkable"].(bool)
	if !ok {
		return mcp.NewToolResultError("walkable is required"), nil
	}

	body := map[string]interface{}{"x": x, "y": y, "walkable": walkable}
	var update service.CellUpdate
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/walkable"), body, &update); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellUpdate(&update)), nil
}

func (c *Client) handleToggleCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}
	x, y, errResult := requireCell(args)
	if errResult != nil {
		return errResult, nil
	}

	var update service.CellUpdate
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/toggle"), map[string]int{"x": x, "y": y}, &update); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellUpdate(&update)), nil
}

func (c *Client) handleResetMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireSession(arguments(request))
	if errResult != nil {
		return errResult, nil
	}

	var response struct {
		Message string           `json:"message"`
		State   *engine.MapState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatMapState(response.State))), nil
}

func (c *Client) handleQueryHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}

	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var maps []service.MapInfo
	if err := c.apiCall(ctx, "GET", "/api/maps", nil, &maps); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Maps:\n\n")
	for _, m := range maps {
		fmt.Fprintf(&b, "• %s (id: %s)\n  %s\n  Grid: %dx%d", m.Name, m.MapID, m.Description, m.Width, m.Height)
		if m.CornerPolicy != "" {
			fmt.Fprintf(&b, ", corners: %s", m.CornerPolicy)
		}
		b.WriteString("\n\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, errResult := requireSession(args)
	if errResult != nil {
		return errResult, nil
	}
	x, y, errResult := requireCell(args)
	if errResult != nil {
		return errResult, nil
	}

	var state engine.MapState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if x < 0 || x >= state.Width || y < 0 || y >= state.Height {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Grid is %dx%d (x 0-%d, y 0-%d)",
			x, y, state.Width, state.Height, state.Width-1, state.Height-1)), nil
	}

	// Ask the server for the world-space view through the cell's center
	center := fmt.Sprintf("?wx=%g&wy=%g",
		state.Origin.X+(float64(x)+0.5)*state.CellSize,
		state.Origin.Y+(float64(y)+0.5)*state.CellSize)
	var located service.LocateResult
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/locate")+center, nil, &located); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCell(&state, &located)), nil
}

// Formatting helpers

var cellDescriptions = map[byte]string{
	engine.CellOpen:    "Open cell - walkable",
	engine.CellBlocked: "Blocked cell - not walkable",
	engine.CellStart:   "Start marker (S) - walkable",
	engine.CellGoal:    "Goal marker (G) - walkable",
}

func formatCell(state *engine.MapState, located *service.LocateResult) string {
	char := state.Rows[located.Y][located.X]

	var b strings.Builder
	fmt.Fprintf(&b, "Cell at position (%d, %d):\n", located.X, located.Y)
	fmt.Fprintf(&b, "Character: %c\n", char)
	fmt.Fprintf(&b, "Walkable: %v\n", located.Walkable)
	fmt.Fprintf(&b, "Description: %s\n", cellDescriptions[char])
	fmt.Fprintf(&b, "World center: (%g, %g)\n", located.Center.X, located.Center.Y)

	if len(located.Neighbors) > 0 {
		b.WriteString("\nNeighbors:\n")
		for _, n := range located.Neighbors {
			status := "blocked"
			if n.Step {
				status = "reachable in one step"
			} else if n.Walkable {
				status = "open, corner rule forbids the step"
			}
			fmt.Fprintf(&b, "  (%d, %d) %s\n", n.X, n.Y, status)
		}
	}
	return b.String()
}

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nMap: %s (%s)\nCreated: %s\n",
		session.ID, session.MapName, session.MapID, session.CreatedAt.Format(time.RFC3339))
	if session.State != nil {
		result += "\n" + formatMapState(session.State)
	}
	return result
}

func formatPoint(p *engine.Point) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func formatMapState(state *engine.MapState) string {
	if state == nil {
		return "No state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Map: %s (%dx%d)\n", state.MapName, state.Width, state.Height)
	fmt.Fprintf(&b, "Start: %s  Goal: %s\n", formatPoint(state.Start), formatPoint(state.Goal))
	fmt.Fprintf(&b, "Corner policy: %s\n", state.CornerPolicy)
	fmt.Fprintf(&b, "Blocked cells: %d\n", state.Blocked)
	fmt.Fprintf(&b, "Queries: %d total, %d since reset\n\n", state.TotalQueries, state.CurrentQueriesCount)
	b.WriteString(formatRows(state.Rows))
	return b.String()
}

// formatRows prints rows with a y label on each line
func formatRows(rows []string) string {
	var b strings.Builder
	for y, row := range rows {
		fmt.Fprintf(&b, "%3d %s\n", y, row)
	}
	return b.String()
}

func formatQueryResult(result *engine.QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Path query %s -> %s: %s\n",
		formatPoint(&result.From), formatPoint(&result.To), result.Outcome)

	if !result.Found {
		fmt.Fprintf(&b, "No path (%s). Expanded %d nodes.\n", result.Error, result.Expanded)
		return b.String()
	}

	fmt.Fprintf(&b, "Cost: %d  Steps: %d  Expanded: %d\n", result.Cost, len(result.Path)-1, result.Expanded)
	points := make([]string, len(result.Path))
	for i, p := range result.Path {
		points[i] = fmt.Sprintf("(%d,%d)", p.X, p.Y)
	}
	fmt.Fprintf(&b, "Path: %s\n", strings.Join(points, " "))
	if len(result.Overlay) > 0 {
		b.WriteString("\n" + formatRows(result.Overlay))
	}
	return b.String()
}

func formatCellUpdate(update *service.CellUpdate) string {
	status := "blocked"
	if update.Walkable {
		status = "open"
	}
	result := fmt.Sprintf("Cell (%d, %d) is now %s\n", update.X, update.Y, status)
	if update.State != nil {
		result += "\n" + formatMapState(update.State)
	}
	return result
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query History (page %d/%d, %d total):\n\n", history.Page, history.TotalPages, history.TotalQueries)
	for _, q := range history.Queries {
		status := "no path"
		if q.Found {
			status = fmt.Sprintf("cost %d, %d steps", q.Cost, q.PathLength-1)
		}
		fmt.Fprintf(&b, "#%d (%d,%d) -> (%d,%d): %s, expanded %d\n",
			q.QueryNumber, q.From.X, q.From.Y, q.To.X, q.To.Y, status, q.Expanded)
	}
	if len(history.Queries) == 0 {
		b.WriteString("No queries yet\n")
	}
	return b.String()
}
