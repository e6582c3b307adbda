package service

import (
	"context"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
)

// MissionService defines all mission-related operations.
type MissionService interface {
	// Session management
	CreateSession(ctx context.Context, scenarioID, robotID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Mission control
	Start(ctx context.Context, sessionID string) (*SessionInfo, error)
	Pause(ctx context.Context, sessionID string) (*SessionInfo, error)
	Reset(ctx context.Context, sessionID string) (*SessionInfo, error)
	Step(ctx context.Context, sessionID string) (*SessionInfo, error)
	EmergencyStop(ctx context.Context, sessionID, reason string) (*SessionInfo, error)

	// Mission state
	GetState(ctx context.Context, sessionID string) (*scheduler.Snapshot, error)
	GetMetrics(ctx context.Context, sessionID string) (*MetricsReport, error)
	GetLogs(ctx context.Context, sessionID string, opts LogOptions) (*LogsResponse, error)

	// Profiles
	ListScenarios(ctx context.Context) ([]*ScenarioInfo, error)
	ListRobots(ctx context.Context) ([]*RobotInfo, error)
}

// SessionManager defines session storage operations.
type SessionManager interface {
	Create(id string, scenario engine.ScenarioProfile, robot engine.RobotProfile) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles scenario and robot profile loading.
type ConfigManager interface {
	LoadScenario(name string) (*engine.ScenarioProfile, error)
	LoadRobot(name string) (*engine.RobotProfile, error)
	ListScenarios() ([]*ScenarioInfo, error)
	ListRobots() ([]*RobotInfo, error)
	DefaultScenario() *engine.ScenarioProfile
	DefaultRobot() *engine.RobotProfile
}
