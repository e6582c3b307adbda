package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openrescue/gridrescue/sim/engine"
)

// ErrThrottled marks a classified rate-limit fault from the oracle. Only
// throttle faults are retried with backoff; everything else falls back
// immediately.
var ErrThrottled = errors.New("oracle throttled")

// TelemetrySnapshot is the robot summary sent with a decision request.
type TelemetrySnapshot struct {
	Battery  float64            `json:"battery"`
	Health   float64            `json:"health"`
	Position engine.Coord       `json:"position"`
	Status   engine.RobotStatus `json:"status"`
}

// Request is the wire request to the decision oracle: a telemetry summary
// plus the perception readings from the latest sensor sweep.
type Request struct {
	Telemetry  TelemetrySnapshot      `json:"telemetry"`
	Perception []engine.SensorReading `json:"perception"`
}

// wireDecision is the oracle's JSON response before validation.
type wireDecision struct {
	Reasoning string        `json:"reasoning"`
	Action    string        `json:"action"`
	Target    *engine.Coord `json:"target,omitempty"`
	Priority  string        `json:"priority"`
}

// Oracle answers decision requests. Implementations are treated as opaque
// collaborators; the orchestrator only cares whether an error is a throttle.
type Oracle interface {
	Decide(ctx context.Context, req Request) (engine.Decision, error)
}

// HTTPOracle is an Oracle over a plain HTTP JSON endpoint.
type HTTPOracle struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPOracle creates an oracle client for the given decide endpoint.
func NewHTTPOracle(endpoint string, logger *zap.Logger) *HTTPOracle {
	return &HTTPOracle{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("oracle"),
	}
}

// Decide posts the request and validates the response. Malformed or empty
// responses are faults; HTTP 429/503 are classified as throttling.
func (o *HTTPOracle) Decide(ctx context.Context, req Request) (engine.Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to marshal decision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to create oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to read oracle response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return engine.Decision{}, fmt.Errorf("%w: status %d", ErrThrottled, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return engine.Decision{}, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var wire wireDecision
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return engine.Decision{}, fmt.Errorf("malformed oracle response: %w", err)
	}

	d, err := validate(wire)
	if err != nil {
		return engine.Decision{}, err
	}

	o.logger.Debug("oracle decision received",
		zap.String("action", string(d.Action)),
		zap.String("priority", string(d.Priority)),
		zap.Duration("latency", time.Since(start)),
	)
	return d, nil
}

// validate converts a wire decision into a typed one, rejecting unknown
// actions or priorities as faults.
func validate(wire wireDecision) (engine.Decision, error) {
	action, err := engine.ParseAction(wire.Action)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("malformed oracle response: %w", err)
	}
	priority, err := engine.ParsePriority(wire.Priority)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("malformed oracle response: %w", err)
	}
	return engine.Decision{
		Reasoning: wire.Reasoning,
		Action:    action,
		Target:    wire.Target,
		Priority:  priority,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
