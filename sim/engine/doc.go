// Package engine provides the core simulation logic for the gridrescue
// search-and-rescue simulator.
//
// The engine package implements the mission mechanics including:
//   - Ground-truth world generation from scenario profiles
//   - Sensor-driven belief updates (fog of war)
//   - A* path planning over the belief grid
//   - Physics steps with an energy model and hazard interactions
//   - The robot operating state machine
//   - Per-tick telemetry aggregation
//
// Core Types:
//
// Grid is the N×N world owned by the mission scheduler. RobotState is the
// mutable per-mission robot state, RobotProfile and ScenarioProfile are the
// immutable mission inputs, and Decision is one unit of high-level intent
// from the external oracle.
//
// Usage:
//
//	grid, err := engine.GenerateWorld(scenario)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	robot := engine.NewRobotState(profile)
//	engine.Scan(grid, robot.Position)
//	path := engine.Plan(robot.Position, target, grid)
//	result := engine.ExecuteStep(grid, robot.Position, path[0], robot.Battery, profile)
//
// Ownership:
//
// The grid and robot state are mutated only by the scheduler's tick loop.
// Everything the engine hands to other components is either a value copy or
// an explicit Clone, so no live handle into scheduler state escapes a tick.
package engine
