package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/service"
)

// FilePersistence implements SessionPersistence using file system storage.
// Each session is one JSON file named <id>.json under the sessions
// directory.
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
	factory       MissionFactory
}

// NewFilePersistence creates a file-based session persistence layer.
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager, factory MissionFactory) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
		factory:       factory,
	}, nil
}

// Save persists a session to a JSON file.
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := PersistedSessionData{
		ID:             session.ID,
		ScenarioID:     session.Scenario.ID,
		RobotID:        session.Robot.ID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		State:          session.Mission.Snapshot(),
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := os.WriteFile(fp.getFilePath(session.ID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load retrieves a session from a JSON file and rebuilds its mission.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	filePath := fp.getFilePath(id)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	scenario, robot, err := fp.resolveProfiles(data)
	if err != nil {
		return nil, err
	}

	mission, err := fp.factory(data.ID, *scenario, *robot)
	if err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}

	if err := mission.Restore(data.State); err != nil {
		return nil, fmt.Errorf("failed to restore mission state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		Mission:        mission,
		Scenario:       *scenario,
		Robot:          *robot,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// resolveProfiles looks the persisted profile IDs up against the config
// manager, falling back to the snapshot's embedded copies for sessions whose
// profile files no longer exist.
func (fp *FilePersistence) resolveProfiles(data PersistedSessionData) (*engine.ScenarioProfile, *engine.RobotProfile, error) {
	scenario, err := fp.configManager.LoadScenario(data.ScenarioID)
	if err != nil {
		embedded := data.State.Scenario
		if embedded.GridSize == 0 {
			return nil, nil, fmt.Errorf("failed to load scenario '%s': %w", data.ScenarioID, err)
		}
		scenario = &embedded
	}

	robot, err := fp.configManager.LoadRobot(data.RobotID)
	if err != nil {
		embedded := data.State.Profile
		if embedded.MaxHealth == 0 {
			return nil, nil, fmt.Errorf("failed to load robot '%s': %w", data.RobotID, err)
		}
		robot = &embedded
	}

	return scenario, robot, nil
}

// Delete removes a session file.
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ListAll returns all persisted session IDs.
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}
	return sessionIDs, nil
}

// Exists checks if a session file exists.
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", id))
}
