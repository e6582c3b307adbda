package config

import (
	"fmt"

	"github.com/openrescue/gridrescue/sim/engine"
)

// ValidateScenario checks a scenario profile against the engine's accepted
// ranges. Unlike Clamp, validation rejects out-of-range files instead of
// silently correcting them.
func ValidateScenario(p *engine.ScenarioProfile) error {
	if p == nil {
		return fmt.Errorf("scenario is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if p.GridSize < engine.MinGridSize || p.GridSize > engine.MaxGridSize {
		return fmt.Errorf("grid_size %d out of range [%d, %d]", p.GridSize, engine.MinGridSize, engine.MaxGridSize)
	}
	if p.ObstacleDensity < 0 || p.ObstacleDensity > 1 {
		return fmt.Errorf("obstacle_density %.2f out of range [0, 1]", p.ObstacleDensity)
	}
	if p.VictimCount < 0 {
		return fmt.Errorf("victim_count must not be negative")
	}
	if p.FireCount < 0 {
		return fmt.Errorf("fire_count must not be negative")
	}
	cells := p.GridSize * p.GridSize
	if p.VictimCount+p.FireCount >= cells {
		return fmt.Errorf("victim_count + fire_count (%d) exceeds grid capacity (%d cells)", p.VictimCount+p.FireCount, cells)
	}
	return nil
}

// ValidateRobot checks a robot profile against the engine's accepted ranges.
func ValidateRobot(p *engine.RobotProfile) error {
	if p == nil {
		return fmt.Errorf("robot profile is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("robot name is required")
	}
	if p.SpeedMultiplier < engine.MinSpeedMultiplier || p.SpeedMultiplier > engine.MaxSpeedMultiplier {
		return fmt.Errorf("speed_multiplier %.2f out of range [%.1f, %.1f]", p.SpeedMultiplier, engine.MinSpeedMultiplier, engine.MaxSpeedMultiplier)
	}
	if p.BatteryDrainRate < engine.MinBatteryDrainRate || p.BatteryDrainRate > engine.MaxBatteryDrainRate {
		return fmt.Errorf("battery_drain_rate %.2f out of range [%.1f, %.1f]", p.BatteryDrainRate, engine.MinBatteryDrainRate, engine.MaxBatteryDrainRate)
	}
	if p.MaxHealth < engine.MinMaxHealth || p.MaxHealth > engine.MaxMaxHealth {
		return fmt.Errorf("max_health %.1f out of range [%.0f, %.0f]", p.MaxHealth, engine.MinMaxHealth, engine.MaxMaxHealth)
	}
	return nil
}
