package service

import (
	"time"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
)

// Session is one active mission: a scheduler plus the profiles it was built
// from. Sessions are owned by the session manager.
type Session struct {
	ID             string
	Mission        *scheduler.Scheduler
	Scenario       engine.ScenarioProfile
	Robot          engine.RobotProfile
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// SessionInfo is the API-facing view of a session.
type SessionInfo struct {
	ID             string             `json:"id"`
	ScenarioID     string             `json:"scenario_id"`
	RobotID        string             `json:"robot_id"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	State          scheduler.Snapshot `json:"state"`
}

// MetricsReport is the telemetry summary for a mission.
type MetricsReport struct {
	Metrics  engine.Metrics `json:"metrics"`
	ROI      float64        `json:"roi"`
	NetValue float64        `json:"net_value"`
	Tick     uint64         `json:"tick"`
}

// LogOptions configures mission log retrieval.
type LogOptions struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// LogsResponse contains a page of mission log entries.
type LogsResponse struct {
	Entries []engine.LogEntry `json:"entries"`
	Total   int               `json:"total"`
	Offset  int               `json:"offset"`
	Limit   int               `json:"limit"`
}

// ScenarioInfo describes an available scenario profile.
type ScenarioInfo struct {
	Filename        string  `json:"filename"`
	ScenarioID      string  `json:"scenario_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	GridSize        int     `json:"grid_size"`
	ObstacleDensity float64 `json:"obstacle_density"`
	VictimCount     int     `json:"victim_count"`
	FireCount       int     `json:"fire_count"`
}

// RobotInfo describes an available robot profile.
type RobotInfo struct {
	Filename         string  `json:"filename"`
	RobotID          string  `json:"robot_id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	SpeedMultiplier  float64 `json:"speed_multiplier"`
	BatteryDrainRate float64 `json:"battery_drain_rate"`
	MaxHealth        float64 `json:"max_health"`
}
