package engine

import "fmt"

// IsTerminal reports whether the status admits no further transitions.
// EmergencyStop is terminal until an external reset reinitializes the mission.
func IsTerminal(s RobotStatus) bool {
	return s == StatusEmergencyStop
}

// allowedTransition is the robot operating state machine.
//
// Critical is an operating condition, not a lockout: it is entered from any
// working state when battery falls below the critical threshold, behaves like
// Idle/Moving for scheduling purposes, and exits back to the working states.
func allowedTransition(from, to RobotStatus) bool {
	if to == StatusEmergencyStop {
		return from != StatusEmergencyStop
	}
	switch from {
	case StatusIdle:
		return to == StatusPlanning || to == StatusRecharging || to == StatusCritical
	case StatusPlanning:
		return to == StatusMoving || to == StatusIdle || to == StatusCritical
	case StatusMoving:
		return to == StatusActing || to == StatusIdle || to == StatusRecharging || to == StatusCritical
	case StatusActing:
		return to == StatusMoving || to == StatusIdle || to == StatusCritical
	case StatusRecharging:
		return to == StatusIdle
	case StatusCritical:
		return to == StatusIdle || to == StatusPlanning || to == StatusMoving || to == StatusRecharging
	case StatusEmergencyStop:
		return false
	}
	return false
}

// TransitionTo performs a validated state transition.
func (rs *RobotState) TransitionTo(to RobotStatus) error {
	if rs.Status == to {
		return nil
	}
	if !allowedTransition(rs.Status, to) {
		return fmt.Errorf("invalid robot transition: %s -> %s", rs.Status, to)
	}
	rs.Status = to
	return nil
}

// CanTransition reports whether the transition from -> to is legal.
func CanTransition(from, to RobotStatus) bool {
	if from == to {
		return true
	}
	return allowedTransition(from, to)
}
