package engine

import (
	"fmt"
	"time"
)

// CellType represents different types of grid cells
type CellType string

const (
	Empty  CellType = "empty"
	Wall   CellType = "wall"
	Debris CellType = "debris"
	Fire   CellType = "fire"
	Victim CellType = "victim"
	Start  CellType = "start"
)

const (
	// Validation constants
	MinGridSize = 5
	MaxGridSize = 50
	MaxBattery  = 100.0

	// SensorRadius is the half-width of the square sensor window.
	SensorRadius = 2

	// PlacementAttemptCap bounds rejection sampling during world generation.
	// A scenario that exhausts the cap silently contains fewer hazards than
	// requested.
	PlacementAttemptCap = 200

	// RechargePerTick is the battery gained per tick while recharging.
	RechargePerTick = 10.0

	// CriticalBattery is the level below which the robot reports Critical.
	CriticalBattery = 20.0
)

// Profile clamp bounds.
const (
	MinSpeedMultiplier  = 0.5
	MaxSpeedMultiplier  = 2.0
	MinBatteryDrainRate = 0.5
	MaxBatteryDrainRate = 1.5
	MinMaxHealth        = 50.0
	MaxMaxHealth        = 150.0
)

// AllCellTypes lists every cell type. Lookup tables keyed by cell type are
// checked against this list at startup.
var AllCellTypes = []CellType{Empty, Wall, Debris, Fire, Victim, Start}

// movementDifficulty is the per-type traversal cost. Wall has no entry on
// purpose: walls are impassable and callers must check Passable first.
var movementDifficulty = map[CellType]float64{
	Empty:  1.0,
	Start:  1.0,
	Victim: 1.0,
	Debris: 1.8,
	Fire:   3.0,
}

func init() {
	for _, ct := range AllCellTypes {
		if ct == Wall {
			continue
		}
		if _, ok := movementDifficulty[ct]; !ok {
			panic(fmt.Sprintf("engine: no movement difficulty for cell type %q", ct))
		}
	}
}

// MovementDifficulty returns the traversal cost for a cell type.
// Walls are impassable; asking for their difficulty is a programming error
// caught by the ok flag.
func MovementDifficulty(ct CellType) (float64, bool) {
	d, ok := movementDifficulty[ct]
	return d, ok
}

// Passable reports whether a cell of this type can ever be entered.
func (ct CellType) Passable() bool {
	return ct != Wall
}

// Coord is an x,y grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Manhattan returns the Manhattan distance between two coordinates.
func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Cell is a single grid cell.
type Cell struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Type     CellType `json:"type"`
	Revealed bool     `json:"revealed"`
}

// Difficulty returns the movement cost of entering this cell.
func (c *Cell) Difficulty() float64 {
	d, ok := movementDifficulty[c.Type]
	if !ok {
		return 0
	}
	return d
}

// RobotStatus is a state-machine value for the robot's operating state.
type RobotStatus string

const (
	StatusIdle          RobotStatus = "idle"
	StatusPlanning      RobotStatus = "planning"
	StatusMoving        RobotStatus = "moving"
	StatusActing        RobotStatus = "acting"
	StatusRecharging    RobotStatus = "recharging"
	StatusCritical      RobotStatus = "critical"
	StatusEmergencyStop RobotStatus = "emergency_stop"
)

// RobotProfile describes a robot chassis. Immutable for the life of a mission.
type RobotProfile struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	SpeedMultiplier  float64 `json:"speed_multiplier"`
	BatteryDrainRate float64 `json:"battery_drain_rate"`
	MaxHealth        float64 `json:"max_health"`
}

// Clamp forces numeric fields into their documented ranges. Out-of-range
// input from external configuration is corrected, not rejected.
func (p *RobotProfile) Clamp() {
	p.SpeedMultiplier = clamp(p.SpeedMultiplier, MinSpeedMultiplier, MaxSpeedMultiplier)
	p.BatteryDrainRate = clamp(p.BatteryDrainRate, MinBatteryDrainRate, MaxBatteryDrainRate)
	p.MaxHealth = clamp(p.MaxHealth, MinMaxHealth, MaxMaxHealth)
}

// ScenarioProfile describes a mission scenario.
type ScenarioProfile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	GridSize        int     `json:"grid_size"`
	ObstacleDensity float64 `json:"obstacle_density"`
	VictimCount     int     `json:"victim_count"`
	FireCount       int     `json:"fire_count"`
	Seed            int64   `json:"seed,omitempty"`
}

// Clamp forces numeric fields into valid ranges.
func (s *ScenarioProfile) Clamp() {
	if s.GridSize < MinGridSize {
		s.GridSize = MinGridSize
	}
	if s.GridSize > MaxGridSize {
		s.GridSize = MaxGridSize
	}
	s.ObstacleDensity = clamp(s.ObstacleDensity, 0, 1)
	if s.VictimCount < 0 {
		s.VictimCount = 0
	}
	if s.FireCount < 0 {
		s.FireCount = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RobotState is the mutable per-mission robot state. It is owned by the
// scheduler; everything handed to other components is a copy.
type RobotState struct {
	Position          Coord       `json:"position"`
	Battery           float64     `json:"battery"`
	Health            float64     `json:"health"`
	Status            RobotStatus `json:"status"`
	VictimsRescued    int         `json:"victims_rescued"`
	FiresExtinguished int         `json:"fires_extinguished"`
	Path              []Coord     `json:"path"`
	CurrentGoal       *Coord      `json:"current_goal,omitempty"`
}

// NewRobotState returns the initial robot state for a mission.
func NewRobotState(profile RobotProfile) *RobotState {
	return &RobotState{
		Position: Coord{0, 0},
		Battery:  MaxBattery,
		Health:   profile.MaxHealth,
		Status:   StatusIdle,
	}
}

// Clone returns a deep copy of the robot state.
func (rs *RobotState) Clone() *RobotState {
	cp := *rs
	cp.Path = append([]Coord(nil), rs.Path...)
	if rs.CurrentGoal != nil {
		goal := *rs.CurrentGoal
		cp.CurrentGoal = &goal
	}
	return &cp
}

// Action is a high-level intent from the decision oracle.
type Action string

const (
	ActionMove       Action = "MOVE"
	ActionRescue     Action = "RESCUE"
	ActionExtinguish Action = "EXTINGUISH"
	ActionExplore    Action = "EXPLORE"
	ActionRecharge   Action = "RECHARGE"
)

// ParseAction validates an oracle-supplied action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionMove, ActionRescue, ActionExtinguish, ActionExplore, ActionRecharge:
		return Action(s), nil
	}
	return "", fmt.Errorf("invalid action %q", s)
}

// Priority is the urgency attached to a decision.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority validates an oracle-supplied priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// Decision is one unit of high-level intent. It is consumed on the tick it
// influences and never persisted.
type Decision struct {
	Reasoning string   `json:"reasoning"`
	Action    Action   `json:"action"`
	Target    *Coord   `json:"target,omitempty"`
	Priority  Priority `json:"priority"`
}

// Severity classifies a mission log entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// LogEntry is one append-only mission log record.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Severity  Severity  `json:"severity"`
}
