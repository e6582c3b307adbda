package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/service"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

const (
	scenarioSubdir = "scenarios"
	robotSubdir    = "robots"

	defaultScenarioID = "training_yard"
	defaultRobotID    = "pathfinder"
)

// Manager handles scenario and robot profile loading and caching. Profiles
// are JSON files under <configDir>/scenarios and <configDir>/robots.
type Manager struct {
	configDir       string
	defaultScenario *engine.ScenarioProfile
	defaultRobot    *engine.RobotProfile
	scenarios       map[string]*engine.ScenarioProfile
	robots          map[string]*engine.RobotProfile
	mu              sync.RWMutex
}

// NewManager creates a new profile manager rooted at configDir.
func NewManager(configDir string) (*Manager, error) {
	for _, sub := range []string{scenarioSubdir, robotSubdir} {
		dir := filepath.Join(configDir, sub)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("profile directory does not exist: %s", dir)
		}
	}

	m := &Manager{
		configDir: configDir,
		scenarios: make(map[string]*engine.ScenarioProfile),
		robots:    make(map[string]*engine.RobotProfile),
	}

	if err := m.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load default profiles: %w", err)
	}

	return m, nil
}

// LoadScenario loads a scenario profile by name.
func (m *Manager) LoadScenario(name string) (*engine.ScenarioProfile, error) {
	m.mu.RLock()
	if profile, exists := m.scenarios[name]; exists {
		m.mu.RUnlock()
		return profile, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if profile, exists := m.scenarios[name]; exists {
		return profile, nil
	}

	var profile engine.ScenarioProfile
	if err := m.readProfile(scenarioSubdir, name, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		profile.ID = name
	}
	if err := ValidateScenario(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	m.scenarios[name] = &profile
	return &profile, nil
}

// LoadRobot loads a robot profile by name.
func (m *Manager) LoadRobot(name string) (*engine.RobotProfile, error) {
	m.mu.RLock()
	if profile, exists := m.robots[name]; exists {
		m.mu.RUnlock()
		return profile, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if profile, exists := m.robots[name]; exists {
		return profile, nil
	}

	var profile engine.RobotProfile
	if err := m.readProfile(robotSubdir, name, &profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		profile.ID = name
	}
	if err := ValidateRobot(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	m.robots[name] = &profile
	return &profile, nil
}

// readProfile reads and unmarshals a JSON profile file.
func (m *Manager) readProfile(subdir, name string, out any) error {
	filename := name
	if !strings.HasSuffix(filename, ".json") {
		filename = name + ".json"
	}

	path := filepath.Join(m.configDir, subdir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to read profile file: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse profile: %w", err)
	}
	return nil
}

// ListScenarios returns information about all available scenario profiles.
func (m *Manager) ListScenarios() ([]*service.ScenarioInfo, error) {
	entries, err := os.ReadDir(filepath.Join(m.configDir, scenarioSubdir))
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var infos []*service.ScenarioInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")

		profile, err := m.LoadScenario(name)
		if err != nil {
			// Skip invalid profiles.
			continue
		}

		infos = append(infos, &service.ScenarioInfo{
			Filename:        entry.Name(),
			ScenarioID:      name,
			Name:            profile.Name,
			Description:     profile.Description,
			GridSize:        profile.GridSize,
			ObstacleDensity: profile.ObstacleDensity,
			VictimCount:     profile.VictimCount,
			FireCount:       profile.FireCount,
		})
	}
	return infos, nil
}

// ListRobots returns information about all available robot profiles.
func (m *Manager) ListRobots() ([]*service.RobotInfo, error) {
	entries, err := os.ReadDir(filepath.Join(m.configDir, robotSubdir))
	if err != nil {
		return nil, fmt.Errorf("failed to read robot directory: %w", err)
	}

	var infos []*service.RobotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")

		profile, err := m.LoadRobot(name)
		if err != nil {
			continue
		}

		infos = append(infos, &service.RobotInfo{
			Filename:         entry.Name(),
			RobotID:          name,
			Name:             profile.Name,
			Description:      profile.Description,
			SpeedMultiplier:  profile.SpeedMultiplier,
			BatteryDrainRate: profile.BatteryDrainRate,
			MaxHealth:        profile.MaxHealth,
		})
	}
	return infos, nil
}

// DefaultScenario returns the default scenario profile.
func (m *Manager) DefaultScenario() *engine.ScenarioProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultScenario
}

// DefaultRobot returns the default robot profile.
func (m *Manager) DefaultRobot() *engine.RobotProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultRobot
}

// RefreshCache reloads all cached profiles from disk.
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.scenarios = make(map[string]*engine.ScenarioProfile)
	m.robots = make(map[string]*engine.RobotProfile)
	m.mu.Unlock()

	return m.loadDefaults()
}

// loadDefaults resolves the default profiles, falling back to the first
// available profile and finally to built-in minimal profiles.
func (m *Manager) loadDefaults() error {
	scenario, err := m.LoadScenario(defaultScenarioID)
	if err != nil {
		scenario = m.firstScenario()
	}

	robot, err := m.LoadRobot(defaultRobotID)
	if err != nil {
		robot = m.firstRobot()
	}

	m.mu.Lock()
	m.defaultScenario = scenario
	m.defaultRobot = robot
	m.mu.Unlock()
	return nil
}

func (m *Manager) firstScenario() *engine.ScenarioProfile {
	if infos, err := m.ListScenarios(); err == nil && len(infos) > 0 {
		if profile, err := m.LoadScenario(infos[0].ScenarioID); err == nil {
			return profile
		}
	}
	return minimalScenario()
}

func (m *Manager) firstRobot() *engine.RobotProfile {
	if infos, err := m.ListRobots(); err == nil && len(infos) > 0 {
		if profile, err := m.LoadRobot(infos[0].RobotID); err == nil {
			return profile
		}
	}
	return minimalRobot()
}

func minimalScenario() *engine.ScenarioProfile {
	return &engine.ScenarioProfile{
		ID:              "default",
		Name:            "Default Field",
		Description:     "Built-in fallback scenario",
		GridSize:        15,
		ObstacleDensity: 0.15,
		VictimCount:     3,
		FireCount:       2,
	}
}

func minimalRobot() *engine.RobotProfile {
	return &engine.RobotProfile{
		ID:               "default",
		Name:             "Default Unit",
		Description:      "Built-in fallback robot",
		SpeedMultiplier:  1.0,
		BatteryDrainRate: 1.0,
		MaxHealth:        100,
	}
}

// SaveScenario saves a scenario profile to disk.
func (m *Manager) SaveScenario(name string, profile *engine.ScenarioProfile) error {
	if err := ValidateScenario(profile); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := m.writeProfile(scenarioSubdir, name, profile); err != nil {
		return err
	}

	m.mu.Lock()
	m.scenarios[strings.TrimSuffix(name, ".json")] = profile
	m.mu.Unlock()
	return nil
}

// SaveRobot saves a robot profile to disk.
func (m *Manager) SaveRobot(name string, profile *engine.RobotProfile) error {
	if err := ValidateRobot(profile); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := m.writeProfile(robotSubdir, name, profile); err != nil {
		return err
	}

	m.mu.Lock()
	m.robots[strings.TrimSuffix(name, ".json")] = profile
	m.mu.Unlock()
	return nil
}

func (m *Manager) writeProfile(subdir, name string, profile any) error {
	filename := name
	if !strings.HasSuffix(filename, ".json") {
		filename = name + ".json"
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	path := filepath.Join(m.configDir, subdir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}
