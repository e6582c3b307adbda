package engine

import "fmt"

// StepResult is the outcome of one physics step.
type StepResult struct {
	Success      bool    `json:"success"`
	NewBattery   float64 `json:"new_battery"`
	NewPosition  Coord   `json:"new_position"`
	Rescued      bool    `json:"rescued"`
	Extinguished bool    `json:"extinguished"`
	Message      string  `json:"message"`
}

// ExecuteStep applies one physics step from pos onto next.
//
//   - Wall: collision fault. The planner never routes through a revealed
//     wall, so this is a defensive guard; battery is unchanged.
//   - Fire: suppression. The cell becomes Debris, battery drains by
//     5 × drain rate, and the position does not advance this step.
//   - Victim: rescue. The cell becomes Empty, the position advances, and
//     battery drains by 10 × drain rate.
//   - Otherwise: ordinary move costing
//     0.5 × difficulty × speed multiplier × drain rate.
//
// Battery is floored at 0, never negative. The grid is mutated in place for
// hazard clears and the touched cell recorded in the dirty list.
func ExecuteStep(g *Grid, pos, next Coord, battery float64, profile RobotProfile) StepResult {
	if !g.InBounds(next.X, next.Y) {
		return StepResult{
			Success:     false,
			NewBattery:  battery,
			NewPosition: pos,
			Message:     fmt.Sprintf("collision: (%d,%d) is out of bounds", next.X, next.Y),
		}
	}

	cell := g.At(next.X, next.Y)

	switch cell.Type {
	case Wall:
		return StepResult{
			Success:     false,
			NewBattery:  battery,
			NewPosition: pos,
			Message:     fmt.Sprintf("collision: wall at (%d,%d)", next.X, next.Y),
		}

	case Fire:
		cell.Type = Debris
		g.MarkDirty(next.X, next.Y)
		return StepResult{
			Success:      true,
			NewBattery:   floorBattery(battery - 5.0*profile.BatteryDrainRate),
			NewPosition:  pos,
			Extinguished: true,
			Message:      fmt.Sprintf("fire at (%d,%d) suppressed", next.X, next.Y),
		}

	case Victim:
		cell.Type = Empty
		g.MarkDirty(next.X, next.Y)
		return StepResult{
			Success:     true,
			NewBattery:  floorBattery(battery - 10.0*profile.BatteryDrainRate),
			NewPosition: next,
			Rescued:     true,
			Message:     fmt.Sprintf("victim at (%d,%d) rescued", next.X, next.Y),
		}

	default:
		drain := 0.5 * cell.Difficulty() * profile.SpeedMultiplier * profile.BatteryDrainRate
		return StepResult{
			Success:     true,
			NewBattery:  floorBattery(battery - drain),
			NewPosition: next,
			Message:     fmt.Sprintf("moved to (%d,%d)", next.X, next.Y),
		}
	}
}

func floorBattery(b float64) float64 {
	if b < 0 {
		return 0
	}
	return b
}
