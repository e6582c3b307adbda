// Command validate provides a small CLI that validates profile JSON files in
// the ../configs directory. It checks:
//   - JSON structure and required fields
//   - Scenario ranges (grid size, obstacle density, victim/fire counts)
//   - Robot ranges (speed multiplier, drain rate, max health)
//   - Hazard capacity: requested victims and fires must fit the grid
//   - Generation probe: for seeded scenarios, how many hazards actually
//     placed after obstacles are laid down
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openrescue/gridrescue/sim/config"
	"github.com/openrescue/gridrescue/sim/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateScenarioFile loads and validates a single scenario profile.
func validateScenarioFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var scenario engine.ScenarioProfile
	if err := json.Unmarshal(data, &scenario); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := config.ValidateScenario(&scenario); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", scenario.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", scenario.GridSize, scenario.GridSize))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Obstacle density: %.2f", scenario.ObstacleDensity))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Victims: %d, Fires: %d", scenario.VictimCount, scenario.FireCount))

	// Seeded scenarios generate the same field every time, so we can report
	// exactly how many hazards survive placement. Unseeded ones vary per run.
	if scenario.Seed != 0 {
		result.Errors = append(result.Errors, probeGeneration(scenario)...)
	} else {
		result.Errors = append(result.Errors, "  (no seed: placement varies per mission)")
	}

	return result
}

// probeGeneration generates the field once and reports hazard placement,
// including any silent shortfall when obstacles crowd out victims or fires.
func probeGeneration(scenario engine.ScenarioProfile) []string {
	grid, err := engine.GenerateWorld(scenario)
	if err != nil {
		return []string{fmt.Sprintf("Generation probe failed: %v", err)}
	}

	victims := grid.CountType(engine.Victim)
	fires := grid.CountType(engine.Fire)
	walls := grid.CountType(engine.Wall)
	debris := grid.CountType(engine.Debris)

	out := []string{
		fmt.Sprintf("✓ Generated: %d walls, %d debris", walls, debris),
	}
	if victims < scenario.VictimCount || fires < scenario.FireCount {
		out = append(out, fmt.Sprintf("⚠ Placement shortfall: %d/%d victims, %d/%d fires placed",
			victims, scenario.VictimCount, fires, scenario.FireCount))
	} else {
		out = append(out, fmt.Sprintf("✓ Placement: all %d victims and %d fires fit", victims, fires))
	}
	return out
}

// validateRobotFile loads and validates a single robot profile.
func validateRobotFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var robot engine.RobotProfile
	if err := json.Unmarshal(data, &robot); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := config.ValidateRobot(&robot); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", robot.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Speed: x%.1f, Drain: x%.1f", robot.SpeedMultiplier, robot.BatteryDrainRate))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Max health: %.0f", robot.MaxHealth))
	return result
}

func report(result ValidationResult, allValid *bool) {
	fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

	if result.Valid {
		fmt.Println("✅ VALID")
		for _, info := range result.Errors {
			fmt.Println("  " + info)
		}
	} else {
		fmt.Println("❌ INVALID")
		*allValid = false
		for _, err := range result.Errors {
			fmt.Println("  ❌ " + err)
		}
	}
}

// main scans ../configs for profile JSON files and validates each one,
// printing a concise report and exiting with non-zero status if any are
// invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	scenarioFiles, err := filepath.Glob(filepath.Join(configDir, "scenarios", "*.json"))
	if err != nil {
		fmt.Printf("Error finding scenario files: %v\n", err)
		os.Exit(1)
	}
	robotFiles, err := filepath.Glob(filepath.Join(configDir, "robots", "*.json"))
	if err != nil {
		fmt.Printf("Error finding robot files: %v\n", err)
		os.Exit(1)
	}

	if len(scenarioFiles) == 0 && len(robotFiles) == 0 {
		fmt.Printf("No profile files found under %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range scenarioFiles {
		result := validateScenarioFile(file)
		report(result, &allValid)
	}
	for _, file := range robotFiles {
		result := validateRobotFile(file)
		report(result, &allValid)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All profiles are valid!")
	} else {
		fmt.Println("❌ Some profiles have errors")
		os.Exit(1)
	}
}
