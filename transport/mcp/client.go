package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
	"github.com/openrescue/gridrescue/sim/service"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Grid Rescue Mission Control",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Grid Rescue - MCP Interface

This is a thin client that proxies all requests to the REST API server.

MISSION OBJECTIVE:
An autonomous robot explores a partially-known disaster field, rescues
victims (V) and extinguishes fires (F) before its battery runs out. The
field starts hidden; the robot reveals it with a 5x5 sensor sweep each tick.

AVAILABLE TOOLS:
- create_session: Create a new mission session
- list_sessions: List all active sessions
- get_session: Get session details
- mission_state: Current field, robot and battery state
- start_mission / pause_mission: Control the autonomous loop
- step_mission: Advance a paused mission by one tick
- reset_mission: Reinitialize the mission
- emergency_stop: Engage the terminal safety state
- mission_metrics: Cost/value telemetry and ROI
- mission_logs: Recent mission log entries
- list_scenarios / list_robots: Available profiles

GRID LEGEND:
'@' robot, '?' unrevealed, '.' empty, '#' wall, 'd' debris, 'F' fire,
'V' victim, 'S' charging base.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	sessionIDProp := map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}

	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new mission session with optional scenario and robot selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scenario_id": map[string]interface{}{
					"type":        "string",
					"description": "Scenario profile to use (optional)",
				},
				"robot_id": map[string]interface{}{
					"type":        "string",
					"description": "Robot profile to use (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active mission sessions",
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
				"session_id": sessionIDProp,
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Mission state
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "mission_state",
		Description: "Get the current mission state: field map, robot position, battery, status",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProp,
			},
			Required: []string{"session_id"},
		},
	}, c.handleMissionState)

	// Mission control
	for _, op := range []struct {
		name, desc, path string
	}{
		{"start_mission", "Launch the autonomous mission loop", "start"},
		{"pause_mission", "Pause the mission loop without losing state", "pause"},
		{"step_mission", "Advance a paused mission by exactly one tick", "step"},
		{"reset_mission", "Reinitialize the mission from its scenario", "reset"},
	} {
		op := op
		c.mcpServer.AddTool(mcp.Tool{
			Name:        op.name,
			Description: op.desc,
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"session_id": sessionIDProp,
				},
				Required: []string{"session_id"},
			},
		}, c.controlHandler(op.path))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "emergency_stop",
		Description: "Engage the emergency stop. This is terminal: only a reset recovers the mission",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProp,
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why the stop was engaged (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleEmergencyStop)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe one field cell: revealed state, contents, and traversal cost",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProp,
				"x": map[string]interface{}{
					"type":        "number",
					"description": "Cell X coordinate",
				},
				"y": map[string]interface{}{
					"type":        "number",
					"description": "Cell Y coordinate",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	// Telemetry
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "mission_metrics",
		Description: "Get cost/value telemetry and ROI for a mission",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProp,
			},
			Required: []string{"session_id"},
		},
	}, c.handleMissionMetrics)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "mission_logs",
		Description: "Get recent mission log entries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProp,
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum entries to return (default 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMissionLogs)

	// Profiles
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_scenarios",
		Description: "List available scenario profiles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListScenarios)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_robots",
		Description: "List available robot profiles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRobots)
}

// GetMCPServer returns the underlying MCP server for stdio serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
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

func stringArg(request mcp.CallToolRequest, key string) string {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := args[key].(string)
	return v
}

func numberArg(request mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return 0, false
	}
	v, ok := args[key].(float64)
	return v, ok
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if scenarioID := stringArg(request, "scenario_id"); scenarioID != "" {
		body["scenario_id"] = scenarioID
	}
	if robotID := stringArg(request, "robot_id"); robotID != "" {
		body["robot_id"] = robotID
	}

	var info service.SessionInfo
	if err := c.apiCall("POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall("GET", "/api/sessions", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if resp.Count == 0 {
		return mcp.NewToolResultText("No active sessions."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d active session(s):\n", resp.Count))
	for _, s := range resp.Sessions {
		sb.WriteString(fmt.Sprintf("- %s: scenario=%s robot=%s tick=%d battery=%.0f%% status=%s\n",
			s.ID, s.ScenarioID, s.RobotID, s.State.Tick, s.State.Robot.Battery, s.State.Robot.Status))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")

	var info service.SessionInfo
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s", sessionID), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleMissionState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")

	var snap scheduler.Snapshot
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/state", sessionID), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

// controlHandler builds a handler for the simple session-scoped POST
// operations that return updated session info.
func (c *Client) controlHandler(op string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := stringArg(request, "session_id")

		var result json.RawMessage
		if err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/%s", sessionID, op), nil, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// Reset wraps the session info; the other operations return it bare.
		var wrapped struct {
			Session *service.SessionInfo `json:"session"`
		}
		if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.Session != nil {
			return mcp.NewToolResultText(formatSessionInfo(wrapped.Session)), nil
		}

		var info service.SessionInfo
		if err := json.Unmarshal(result, &info); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatSessionInfo(&info)), nil
	}
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")
	x, okX := numberArg(request, "x")
	y, okY := numberArg(request, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y coordinates are required"), nil
	}

	var snap scheduler.Snapshot
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/state", sessionID), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cx, cy := int(x), int(y)
	if snap.Grid == nil || !snap.Grid.InBounds(cx, cy) {
		return mcp.NewToolResultError(fmt.Sprintf("cell (%d,%d) is outside the field", cx, cy)), nil
	}

	cell := snap.Grid.At(cx, cy)
	dist := engine.Manhattan(snap.Robot.Position, engine.Coord{X: cx, Y: cy})

	if !cell.Revealed {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Cell (%d,%d): unrevealed, %d cells from the robot. Move closer to scan it.",
			cx, cy, dist)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Cell (%d,%d): %s, %d cells from the robot\n", cx, cy, cell.Type, dist))
	if cell.Type == engine.Wall {
		sb.WriteString("Impassable.")
	} else {
		sb.WriteString(fmt.Sprintf("Traversal cost multiplier: x%.1f", cell.Difficulty()))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleEmergencyStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")
	reason := stringArg(request, "reason")

	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}

	var info service.SessionInfo
	if err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/estop", sessionID), body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("EMERGENCY STOP ENGAGED\n\n" + formatSessionInfo(&info)), nil
}

func (c *Client) handleMissionMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")

	var report service.MetricsReport
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/metrics", sessionID), nil, &report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMetrics(&report)), nil
}

func (c *Client) handleMissionLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request, "session_id")

	limit := 20
	if v, ok := numberArg(request, "limit"); ok && v > 0 {
		limit = int(v)
	}

	var resp service.LogsResponse
	path := fmt.Sprintf("/api/sessions/%s/logs?limit=%d", sessionID, limit)
	if err := c.apiCall("GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Entries) == 0 {
		return mcp.NewToolResultText("No log entries."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d of %d entries:\n", len(resp.Entries), resp.Total))
	for _, e := range resp.Entries {
		sb.WriteString(fmt.Sprintf("[%s] %s %s: %s\n",
			e.Timestamp.Format("15:04:05"), strings.ToUpper(string(e.Severity)), e.Source, e.Message))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var scenarios []*service.ScenarioInfo
	if err := c.apiCall("GET", "/api/scenarios", nil, &scenarios); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d scenario(s):\n", len(scenarios)))
	for _, s := range scenarios {
		sb.WriteString(fmt.Sprintf("- %s: %s (%dx%d, density %.2f, %d victims, %d fires)\n",
			s.ScenarioID, s.Name, s.GridSize, s.GridSize, s.ObstacleDensity, s.VictimCount, s.FireCount))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListRobots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var robots []*service.RobotInfo
	if err := c.apiCall("GET", "/api/robots", nil, &robots); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d robot(s):\n", len(robots)))
	for _, r := range robots {
		sb.WriteString(fmt.Sprintf("- %s: %s (speed x%.1f, drain x%.1f, health %.0f)\n",
			r.RobotID, r.Name, r.SpeedMultiplier, r.BatteryDrainRate, r.MaxHealth))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// Formatters

func formatSessionInfo(info *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nScenario: %s | Robot: %s\nCreated: %s\n\n%s",
		info.ID, info.ScenarioID, info.RobotID,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		formatSnapshot(&info.State))
}

func formatSnapshot(snap *scheduler.Snapshot) string {
	if snap == nil || snap.Grid == nil {
		return "No mission state available"
	}

	var sb strings.Builder
	robot := snap.Robot

	sb.WriteString(fmt.Sprintf("Tick: %d | Position: (%d,%d) | Battery: %.1f%% | Status: %s\n",
		snap.Tick, robot.Position.X, robot.Position.Y, robot.Battery, robot.Status))
	sb.WriteString(fmt.Sprintf("Rescued: %d | Extinguished: %d | Explored: %d/%d cells\n\n",
		robot.VictimsRescued, robot.FiresExtinguished,
		snap.Grid.RevealedCount(), snap.Grid.Size*snap.Grid.Size))

	for y := 0; y < snap.Grid.Size; y++ {
		for x := 0; x < snap.Grid.Size; x++ {
			if x == robot.Position.X && y == robot.Position.Y {
				sb.WriteString("@")
				continue
			}
			cell := snap.Grid.At(x, y)
			if !cell.Revealed {
				sb.WriteString("?")
				continue
			}
			switch cell.Type {
			case engine.Wall:
				sb.WriteString("#")
			case engine.Debris:
				sb.WriteString("d")
			case engine.Fire:
				sb.WriteString("F")
			case engine.Victim:
				sb.WriteString("V")
			case engine.Start:
				sb.WriteString("S")
			default:
				sb.WriteString(".")
			}
		}
		sb.WriteString("\n")
	}

	if snap.Halted {
		sb.WriteString(fmt.Sprintf("\nMISSION HALTED: %s", snap.HaltReason))
	} else if snap.Running {
		sb.WriteString("\nMission loop running.")
	} else {
		sb.WriteString("\nMission paused.")
	}

	return sb.String()
}

func formatMetrics(report *service.MetricsReport) string {
	m := report.Metrics
	return fmt.Sprintf(
		"Tick: %d\nSteps taken: %d\nBattery consumed: %.1f%%\nOperational cost: %.2f\nValue generated: %.2f\nNet value: %.2f\nROI: %.2f",
		report.Tick, m.StepsTaken, m.BatteryConsumed,
		m.OperationalCost, m.ValueGenerated, report.NetValue, report.ROI)
}
