package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
	"github.com/openrescue/gridrescue/sim/service"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080")

	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8080")
	}
	if c.httpClient == nil {
		t.Fatal("httpClient is nil")
	}
	if c.httpClient.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", c.httpClient.Timeout)
	}
	if c.mcpServer == nil {
		t.Error("mcpServer is nil")
	}
	if c.GetMCPServer() != c.mcpServer {
		t.Error("GetMCPServer did not return the underlying server")
	}
}

func TestAPICallGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/sessions" {
			t.Errorf("path = %s, want /api/sessions", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"count": 3})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	var result map[string]int
	if err := c.apiCall("GET", "/api/sessions", nil, &result); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if result["count"] != 3 {
		t.Errorf("count = %d, want 3", result["count"])
	}
}

func TestAPICallPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["scenario_id"] != "urban_collapse" {
			t.Errorf("scenario_id = %q", body["scenario_id"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "a1b2"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	var result map[string]string
	err := c.apiCall("POST", "/api/sessions", map[string]string{"scenario_id": "urban_collapse"}, &result)
	if err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if result["id"] != "a1b2" {
		t.Errorf("id = %q, want a1b2", result["id"])
	}
}

func TestAPICallErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	err := c.apiCall("GET", "/api/sessions/zzzz", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "session not found" {
		t.Errorf("error = %q, want api error message", err.Error())
	}
}

func TestAPICallNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream failure"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	err := c.apiCall("GET", "/api/sessions", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %q, want status code", err.Error())
	}
}

func TestAPICallConnectionError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")

	if err := c.apiCall("GET", "/api/sessions", nil, nil); err == nil {
		t.Fatal("expected connection error")
	}
}

func testSnapshot() scheduler.Snapshot {
	grid := engine.NewGrid(5)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			grid.At(x, y).Revealed = true
		}
	}
	grid.At(2, 0).Type = engine.Wall
	grid.At(1, 2).Type = engine.Victim
	grid.At(2, 2).Type = engine.Fire
	grid.At(2, 1).Type = engine.Debris

	return scheduler.Snapshot{
		Tick: 12,
		Grid: grid,
		Robot: engine.RobotState{
			Position:       engine.Coord{X: 1, Y: 1},
			Battery:        84.5,
			Status:         engine.StatusMoving,
			VictimsRescued: 1,
		},
	}
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestHandleMissionState(t *testing.T) {
	snap := testSnapshot()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/a1b2/state" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleMissionState(context.Background(), toolRequest("mission_state", map[string]interface{}{
		"session_id": "a1b2",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	text := resultText(t, res)
	if !strings.Contains(text, "Tick: 12") {
		t.Errorf("missing tick header in:\n%s", text)
	}
	if !strings.Contains(text, "Battery: 84.5%") {
		t.Errorf("missing battery in:\n%s", text)
	}
	// Row 0: start, empty, wall, then fog.
	if !strings.Contains(text, "S.#??") {
		t.Errorf("missing rendered top row in:\n%s", text)
	}
	// Row 1: robot at (1,1) with debris east of it.
	if !strings.Contains(text, ".@d??") {
		t.Errorf("missing robot row in:\n%s", text)
	}
	// Row 2: victim and fire.
	if !strings.Contains(text, ".VF??") {
		t.Errorf("missing hazard row in:\n%s", text)
	}
	if !strings.Contains(text, "?????") {
		t.Errorf("missing unrevealed row in:\n%s", text)
	}
}

func TestHandleMissionStateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleMissionState(context.Background(), toolRequest("mission_state", map[string]interface{}{
		"session_id": "zzzz",
	}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result")
	}
}

func TestHandleCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["robot_id"] != "scout" {
			t.Errorf("robot_id = %q, want scout", body["robot_id"])
		}
		info := service.SessionInfo{
			ID:         "c3d4",
			ScenarioID: "training_yard",
			RobotID:    "scout",
			State:      testSnapshot(),
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(info)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleCreateSession(context.Background(), toolRequest("create_session", map[string]interface{}{
		"robot_id": "scout",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	text := resultText(t, res)
	if !strings.Contains(text, "Session: c3d4") {
		t.Errorf("missing session id in:\n%s", text)
	}
	if !strings.Contains(text, "Robot: scout") {
		t.Errorf("missing robot id in:\n%s", text)
	}
}

func TestControlHandlerUnwrapsReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/a1b2/reset" {
			t.Errorf("path = %s", r.URL.Path)
		}
		info := service.SessionInfo{ID: "a1b2", ScenarioID: "training_yard", State: testSnapshot()}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "Mission reset successfully",
			"session": info,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.controlHandler("reset")(context.Background(), toolRequest("reset_mission", map[string]interface{}{
		"session_id": "a1b2",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, "Session: a1b2") {
		t.Errorf("wrapped session not unwrapped:\n%s", text)
	}
}

func TestHandleDescribeCell(t *testing.T) {
	snap := testSnapshot()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]interface{}{
		"session_id": "a1b2",
		"x":          float64(2),
		"y":          float64(2),
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "fire") {
		t.Errorf("missing cell type in:\n%s", text)
	}
	if !strings.Contains(text, "x3.0") {
		t.Errorf("missing traversal cost in:\n%s", text)
	}

	// Unrevealed cells report only distance.
	res, err = c.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]interface{}{
		"session_id": "a1b2",
		"x":          float64(4),
		"y":          float64(4),
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, "unrevealed") {
		t.Errorf("expected unrevealed report, got:\n%s", text)
	}

	// Out-of-bounds coordinates are an error result.
	res, err = c.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]interface{}{
		"session_id": "a1b2",
		"x":          float64(99),
		"y":          float64(0),
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for out-of-bounds cell")
	}
}

func TestHandleMissionMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := service.MetricsReport{
			Metrics: engine.Metrics{
				StepsTaken:      40,
				BatteryConsumed: 55.0,
				OperationalCost: 51.0,
				ValueGenerated:  250.0,
			},
			ROI:      4.9,
			NetValue: 199.0,
			Tick:     60,
		}
		json.NewEncoder(w).Encode(report)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleMissionMetrics(context.Background(), toolRequest("mission_metrics", map[string]interface{}{
		"session_id": "a1b2",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	text := resultText(t, res)
	for _, want := range []string{"Steps taken: 40", "Value generated: 250.00", "ROI: 4.90", "Net value: 199.00"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestHandleMissionLogsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q, want 5", got)
		}
		json.NewEncoder(w).Encode(service.LogsResponse{
			Entries: []engine.LogEntry{
				{Timestamp: time.Now(), Source: "scheduler", Severity: engine.SeverityInfo, Message: "mission started"},
			},
			Total: 9,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleMissionLogs(context.Background(), toolRequest("mission_logs", map[string]interface{}{
		"session_id": "a1b2",
		"limit":      float64(5),
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, "mission started") {
		t.Errorf("missing log message in:\n%s", text)
	}
}

func TestHandleListScenarios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*service.ScenarioInfo{
			{ScenarioID: "training_yard", Name: "Training Yard", GridSize: 15, ObstacleDensity: 0.15, VictimCount: 3, FireCount: 2},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	res, err := c.handleListScenarios(context.Background(), toolRequest("list_scenarios", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, "training_yard") {
		t.Errorf("missing scenario in:\n%s", text)
	}
}
