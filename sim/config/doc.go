// Package config loads and caches scenario and robot profiles.
//
// Profiles are JSON files stored under a config directory:
//
//	configs/
//	  scenarios/   field layouts: grid size, obstacle density, hazard counts
//	  robots/      unit capabilities: speed, drain rate, max health
//
// Files are validated on load and cached; LoadScenario and LoadRobot are
// safe for concurrent use.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	scenario, err := manager.LoadScenario("urban_collapse")
//	robot, err := manager.LoadRobot("scout")
//
//	// Fall back to defaults when the caller names nothing.
//	scenario = manager.DefaultScenario()
package config
