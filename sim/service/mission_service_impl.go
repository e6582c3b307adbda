package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
)

// ErrMissionRunning is returned for operations that require the mission loop
// to be paused first.
var ErrMissionRunning = errors.New("mission loop is running")

// missionServiceImpl implements the MissionService interface.
type missionServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex
}

// NewMissionService creates a new mission service instance.
func NewMissionService(sessions SessionManager, configs ConfigManager) MissionService {
	return &missionServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new mission session from the named profiles. Empty
// IDs fall back to the configured defaults.
func (s *missionServiceImpl) CreateSession(ctx context.Context, scenarioID, robotID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scenario *engine.ScenarioProfile
	var err error
	if scenarioID != "" {
		scenario, err = s.configs.LoadScenario(scenarioID)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				available, listErr := s.configs.ListScenarios()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, sc := range available {
						ids = append(ids, sc.ScenarioID)
					}
					return nil, fmt.Errorf("scenario '%s' not found. Available scenarios: %v", scenarioID, ids)
				}
			}
			return nil, fmt.Errorf("failed to load scenario %s: %w", scenarioID, err)
		}
	} else {
		scenario = s.configs.DefaultScenario()
	}

	var robot *engine.RobotProfile
	if robotID != "" {
		robot, err = s.configs.LoadRobot(robotID)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				available, listErr := s.configs.ListRobots()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, r := range available {
						ids = append(ids, r.RobotID)
					}
					return nil, fmt.Errorf("robot '%s' not found. Available robots: %v", robotID, ids)
				}
			}
			return nil, fmt.Errorf("failed to load robot %s: %w", robotID, err)
		}
	} else {
		robot = s.configs.DefaultRobot()
	}

	// Let the session manager generate a proper 4-character ID.
	session, err := s.sessions.Create("", *scenario, *robot)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.toSessionInfo(session), nil
}

// GetSession retrieves session information by ID.
func (s *missionServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.toSessionInfo(session), nil
}

// ListSessions returns information about all active sessions.
func (s *missionServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	infos := make([]*SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, s.toSessionInfo(session))
	}
	return infos, nil
}

// DeleteSession removes a session, stopping its loop first.
func (s *missionServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.Mission.Pause()
	return s.sessions.Delete(sessionID)
}

// Start launches the mission loop. Starting an already-running mission is an
// error; starting a halted mission requires a reset first.
func (s *missionServiceImpl) Start(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Mission.Start(); err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.toSessionInfo(session), nil
}

// Pause stops the mission loop without touching mission state.
func (s *missionServiceImpl) Pause(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.Mission.Pause()
	s.sessions.UpdateLastAccessed(sessionID)
	return s.toSessionInfo(session), nil
}

// Reset reinitializes the mission for the session's scenario.
func (s *missionServiceImpl) Reset(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.Mission.Pause()
	if err := session.Mission.Reset(); err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	s.sessions.Save(sessionID)
	return s.toSessionInfo(session), nil
}

// Step advances a paused mission by exactly one tick.
func (s *missionServiceImpl) Step(ctx context.Context, sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Mission.Running() {
		return nil, ErrMissionRunning
	}
	if err := session.Mission.Tick(); err != nil && !errors.Is(err, scheduler.ErrMissionHalted) {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.toSessionInfo(session), nil
}

// EmergencyStop engages the terminal safety state for the session.
func (s *missionServiceImpl) EmergencyStop(ctx context.Context, sessionID, reason string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.Mission.EmergencyStop(reason)
	s.sessions.UpdateLastAccessed(sessionID)
	s.sessions.Save(sessionID)
	return s.toSessionInfo(session), nil
}

// GetState returns the full mission state snapshot.
func (s *missionServiceImpl) GetState(ctx context.Context, sessionID string) (*scheduler.Snapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	snap := session.Mission.Snapshot()
	return &snap, nil
}

// GetMetrics returns the telemetry summary for the session.
func (s *missionServiceImpl) GetMetrics(ctx context.Context, sessionID string) (*MetricsReport, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snap := session.Mission.Snapshot()
	return &MetricsReport{
		Metrics:  snap.Metrics,
		ROI:      snap.Metrics.ROI(),
		NetValue: snap.Metrics.ValueGenerated - snap.Metrics.OperationalCost,
		Tick:     snap.Tick,
	}, nil
}

// GetLogs returns a page of the session's mission log.
func (s *missionServiceImpl) GetLogs(ctx context.Context, sessionID string, opts LogOptions) (*LogsResponse, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	entries, total := session.Mission.Logs(opts.Offset, opts.Limit)
	return &LogsResponse{
		Entries: entries,
		Total:   total,
		Offset:  opts.Offset,
		Limit:   opts.Limit,
	}, nil
}

// ListScenarios returns all available scenario profiles.
func (s *missionServiceImpl) ListScenarios(ctx context.Context) ([]*ScenarioInfo, error) {
	return s.configs.ListScenarios()
}

// ListRobots returns all available robot profiles.
func (s *missionServiceImpl) ListRobots(ctx context.Context) ([]*RobotInfo, error) {
	return s.configs.ListRobots()
}

func (s *missionServiceImpl) toSessionInfo(session *Session) *SessionInfo {
	return &SessionInfo{
		ID:             session.ID,
		ScenarioID:     session.Scenario.ID,
		RobotID:        session.Robot.ID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		State:          session.Mission.Snapshot(),
	}
}
