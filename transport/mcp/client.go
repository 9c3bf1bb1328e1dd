package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/minecart/game/engine"
	"github.com/wricardo/mcp-training/minecart/game/service"
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
		"Mine Cart Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Mine Cart Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Carts (^ > v <) ride a track of | - / \ and + pieces. Every tick each cart
moves one cell, in reading order (top row first, left to right). Two carts in
the same cell crash.

AVAILABLE TOOLS:
- create_session: Start a simulation on a track
- list_sessions / get_session: Inspect sessions
- sim_state: Current tick, carts and the rendered track
- tick: Advance N ticks (optionally reset first)
- run_until: Run to the first crash or until one cart is left
- reset_sim: Put every cart back at its start
- tick_history: Past ticks with crashes
- list_tracks: Available track files
- solve_track: Answer both questions for a raw layout without a session
- track_instructions: Full rules
- describe_cell: What is at x,y (piece, cart, crash)

Coordinates are X,Y with 0,0 at the top-left corner.`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
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
		Description: "Create a new simulation session on a track",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Track id from list_tracks (optional, defaults to the server's default track)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active simulation sessions",
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
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sim_state",
		Description: "Get the current simulation state with the rendered track",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleSimState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the simulation by one or more ticks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"ticks": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     engine.MaxTicksPerCall,
					"description": "Number of ticks to run (default 1)",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset before ticking",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_until",
		Description: "Run the simulation until the first crash or until one cart is left",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"until": map[string]interface{}{
					"type":        "string",
					"enum":        []string{service.UntilFirstCrash, service.UntilLastCart},
					"description": "Stop condition",
				},
			},
			Required: []string{"session_id", "until"},
		},
	}, c.handleRunUntil)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_sim",
		Description: "Reset every cart to its starting position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick_history",
		Description: "Get paginated tick history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Entries per page (default 20, max 100)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest first (asc) or newest first (desc, default)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTickHistory)

	// Tracks
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tracks",
		Description: "List available track files",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTracks)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "solve_track",
		Description: "Find the first crash and the last cart for a layout without creating a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"layout": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Track rows, leading spaces preserved",
				},
				"track": map[string]interface{}{
					"type":        "string",
					"description": "The whole map as one newline separated string (alternative to layout)",
				},
			},
		},
	}, c.handleSolveTrack)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "track_instructions",
		Description: "Get the simulation rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleTrackInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe the track piece, cart and crashes at a cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Column, 0 is the left edge",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Row, 0 is the top edge",
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
		data, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode, Body: data}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// apiError is a non-2xx response from the REST API.
type apiError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.Status)
}

// Argument helpers. JSON numbers arrive as float64.

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID := stringArg(args, "session_id")
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]string{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nTrack: %s\n\n%s", session.ID, session.ConfigName, formatSimState(session.SimState))
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
		tick, carts := 0, 0
		if s.SimState != nil {
			tick, carts = s.SimState.Tick, s.SimState.CartsRemaining
		}
		fmt.Fprintf(&b, "- %s (Track: %s, Tick: %d, Carts: %d, Created: %s)\n",
			s.ID, s.ConfigName, tick, carts, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request.GetArguments(), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", path, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleSimState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request.GetArguments(), "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.SimState
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSimState(&state)), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, err := sessionPath(args, "/tick")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ticks, ok := intArg(args, "ticks")
	if !ok {
		ticks = 1
	}
	reset, _ := args["reset"].(bool)

	body := map[string]interface{}{
		"ticks": ticks,
		"reset": reset,
	}

	var result service.TickResult
	if err := c.apiCall(ctx, "POST", path, body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTickResult(&result)), nil
}

func (c *Client) handleRunUntil(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, err := sessionPath(args, "/run")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	until := stringArg(args, "until")
	if until != service.UntilFirstCrash && until != service.UntilLastCart {
		return mcp.NewToolResultError(fmt.Sprintf("until must be %q or %q", service.UntilFirstCrash, service.UntilLastCart)), nil
	}

	var result service.RunResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"until": until}, &result); err != nil {
		// a run that hit the tick limit still carries its partial result
		var apiErr *apiError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity || json.Unmarshal(apiErr.Body, &result) != nil || !result.HitLimit {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return mcp.NewToolResultText(formatRunResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(request.GetArguments(), "/reset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string           `json:"message"`
		State   *engine.SimState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatSimState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleTickHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, err := sessionPath(args, "/history")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order := stringArg(args, "order"); order != "" {
		query.Set("order", order)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Tracks:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "- %s (%s)\n  %s\n  Size: %dx%d, Carts: %d, Crash mode: %s\n\n",
			config.ConfigID, config.Name, config.Description, config.Width, config.Height, config.Carts, config.CrashMode)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleSolveTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]interface{}{}
	if raw, ok := args["layout"].([]interface{}); ok && len(raw) > 0 {
		layout := make([]string, 0, len(raw))
		for _, row := range raw {
			line, _ := row.(string)
			layout = append(layout, line)
		}
		body["layout"] = layout
	} else if track := stringArg(args, "track"); track != "" {
		body["track"] = track
	} else {
		return mcp.NewToolResultError("either layout or track is required"), nil
	}

	var result service.SolveResult
	if err := c.apiCall(ctx, "POST", "/api/solve", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSolveResult(&result)), nil
}

func (c *Client) handleTrackInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Mine Cart Simulator - Rules

TRACK PIECES:
- | and - are straight rails
- / and \ are curves
- + is an intersection
- Carts are drawn as ^ > v < on top of a straight rail
- X marks a crash site in rendered views

COORDINATES:
- X is the column and Y is the row, both starting at 0 in the top-left corner
- Answers are written as X,Y (for example 7,3)

MOVEMENT:
- On every tick each cart moves exactly one cell
- Carts move in reading order: top row first, then left to right within a row
- The order is fixed at the start of the tick, so a cart that moved still counts
  at its new cell for carts moving after it

CURVES:
- / turns a cart heading up to the right, right to up, down to the left, left to down
- \ turns a cart heading up to the left, left to up, down to the right, right to down

INTERSECTIONS:
- Each cart cycles through turn left, go straight, turn right
- The first intersection a cart reaches is a left turn
- The cycle is per cart and survives crashes of other carts

CRASHES:
- When a cart moves into a cell occupied by another cart, both crash there
- The first crash is remembered and never changes until a reset
- remove mode: both carts leave the track at once and the rest keep going
- stop mode: the simulation finishes as soon as the first crash happens

FINISHING:
- remove mode ends when at most one cart is left; that cart's position is the last cart answer
- If every cart crashed there is no last cart
- A cart that leaves the rails derails and finishes the simulation with an error

TOOLS:
- tick advances a fixed number of ticks (max ` + fmt.Sprint(engine.MaxTicksPerCall) + ` per call)
- run_until first_crash answers "where is the first crash"
- run_until last_cart answers "where is the last cart after all others crashed"
- solve_track answers both for a layout without a session
- describe_cell checks what sits at one coordinate`

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, err := sessionPath(args, "/state")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}

	var state engine.SimState
	if err := c.apiCall(ctx, "GET", path, nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	description, err := describeCell(&state, engine.Position{X: x, Y: y})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(description), nil
}

// Formatting helpers

var pieceNames = map[byte]string{
	'|':  "vertical rail",
	'-':  "horizontal rail",
	'/':  "curve (/)",
	'\\': "curve (\\)",
	'+':  "intersection",
	' ':  "empty ground",
}

func describeCell(state *engine.SimState, pos engine.Position) (string, error) {
	height := len(state.Track)
	width := 0
	if height > 0 {
		width = len(state.Track[0])
	}
	if pos.Y < 0 || pos.Y >= height || pos.X < 0 || pos.X >= width {
		return "", fmt.Errorf("coordinates %s are out of bounds, the track is %dx%d (x 0-%d, y 0-%d)",
			engine.FormatPosition(pos), width, height, width-1, height-1)
	}

	piece := state.Track[pos.Y][pos.X]
	name, ok := pieceNames[piece]
	if !ok {
		name = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell %s\nPiece: '%c' %s\n", engine.FormatPosition(pos), piece, name)

	for _, cart := range state.Carts {
		if cart.Pos != pos {
			continue
		}
		if cart.Crashed {
			fmt.Fprintf(&b, "Crashed cart: %s (tick %d)\n", cart.ID, cart.CrashTick)
			continue
		}
		fmt.Fprintf(&b, "Cart: %s heading %s, next intersection: %s\n", cart.ID, cart.Dir, cart.NextTurn)
	}
	for _, crash := range state.Crashes {
		if crash.Pos == pos {
			fmt.Fprintf(&b, "Crash on tick %d between %s\n", crash.Tick, strings.Join(crash.CartIDs, " and "))
		}
	}
	return b.String(), nil
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nTrack: %s\nCreated: %s\nLast Accessed: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339),
		formatSimState(session.SimState))
}

func formatPositionPtr(p *engine.Position) string {
	if p == nil {
		return "none"
	}
	return engine.FormatPosition(*p)
}

// formatSimState renders a state with a column ruler so coordinates can be read off
func formatSimState(state *engine.SimState) string {
	if state == nil {
		return "State: unavailable"
	}

	var b strings.Builder
	status := "RUNNING"
	switch {
	case state.Derailed:
		status = "DERAILED"
	case state.Finished:
		status = "FINISHED"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Tick: %d (total %d)\n", state.Tick, state.TotalTicks)
	fmt.Fprintf(&b, "Carts remaining: %d of %d\n", state.CartsRemaining, len(state.Carts))
	fmt.Fprintf(&b, "Crash mode: %s\n", state.CrashMode)
	fmt.Fprintf(&b, "First crash: %s\n", formatPositionPtr(state.FirstCrash))
	if state.Finished {
		fmt.Fprintf(&b, "Last cart: %s\n", formatPositionPtr(state.LastCart))
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}

	rendered := state.Rendered
	if len(rendered) == 0 {
		rendered = engine.Render(state)
	}
	if len(rendered) > 0 {
		b.WriteString("\nTrack:\n")
		b.WriteString(formatGrid(rendered))
	}

	return b.String()
}

// formatGrid prefixes rows with their Y and adds a units ruler for X
func formatGrid(rows []string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var ruler strings.Builder
	for x := 0; x < width; x++ {
		ruler.WriteByte(byte('0' + x%10))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "    %s\n", ruler.String())
	for y, row := range rows {
		fmt.Fprintf(&b, "%3d %s\n", y, row)
	}
	return b.String()
}

func formatCrashes(crashes []engine.Crash) string {
	var b strings.Builder
	for _, crash := range crashes {
		fmt.Fprintf(&b, "  tick %d at %s (%s)\n", crash.Tick, engine.FormatPosition(crash.Pos), strings.Join(crash.CartIDs, ", "))
	}
	return b.String()
}

func formatTickResult(result *service.TickResult) string {
	var b strings.Builder

	requested := result.RequestedTicks
	if requested == 0 {
		requested = result.TicksRun
	}
	fmt.Fprintf(&b, "Ran %d/%d ticks (tick %d -> %d)\n", result.TicksRun, requested, result.StartTick, result.EndTick)
	if result.Truncated {
		fmt.Fprintf(&b, "Request truncated to %d ticks\n", result.Limit)
	}
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped: %s", result.StopReasonCode)
		if result.StoppedReason != "" {
			fmt.Fprintf(&b, " (%s)", result.StoppedReason)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Carts: %d -> %d\n", result.StartingCarts, result.EndingCarts)
	if len(result.Crashes) > 0 {
		fmt.Fprintf(&b, "Crashes (%d):\n%s", len(result.Crashes), formatCrashes(result.Crashes))
	}

	b.WriteString("\n")
	b.WriteString(formatSimState(result.SimState))
	return b.String()
}

func formatRunResult(result *service.RunResult) string {
	var b strings.Builder

	answer := result.Answer
	if answer == "" {
		answer = "none"
	}
	fmt.Fprintf(&b, "Run until %s: %s\n", result.Until, answer)
	fmt.Fprintf(&b, "Ticks run: %d, stop: %s\n", result.TicksRun, result.StopCode)
	if result.FinishedAt > 0 {
		fmt.Fprintf(&b, "Reached at tick %d\n", result.FinishedAt)
	}
	if result.HitLimit {
		fmt.Fprintf(&b, "Hit the tick limit of %d without an answer\n", result.TickLimit)
	}
	if len(result.Crashes) > 0 {
		fmt.Fprintf(&b, "Crashes (%d):\n%s", len(result.Crashes), formatCrashes(result.Crashes))
	}

	b.WriteString("\n")
	b.WriteString(formatSimState(result.SimState))
	return b.String()
}

func formatSolveResult(result *service.SolveResult) string {
	firstCrash, lastCart := result.FirstCrash, result.LastCart
	if firstCrash == "" {
		firstCrash = "none"
	}
	if lastCart == "" {
		lastCart = "none"
	}
	return fmt.Sprintf("Carts: %d\nFirst crash: %s (tick %d)\nLast cart: %s (tick %d)\nTotal crashes: %d\n",
		result.Carts, firstCrash, result.FirstCrashTick, lastCart, result.LastCartTick, result.Crashes)
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick History (Page %d/%d), total ticks: %d\n\n",
		history.Page, history.TotalPages, history.TotalTicks)

	if len(history.Ticks) == 0 {
		b.WriteString("(no ticks yet)\n")
		return b.String()
	}

	for _, entry := range history.Ticks {
		fmt.Fprintf(&b, "#%d tick %d: %d moved, %d left", entry.TickNumber, entry.Tick, entry.CartsMoved, entry.CartsRemaining)
		for _, crash := range entry.Crashes {
			fmt.Fprintf(&b, ", crash at %s", engine.FormatPosition(crash.Pos))
		}
		b.WriteString("\n")
	}

	return b.String()
}
