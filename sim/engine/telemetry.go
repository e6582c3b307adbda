package engine

// Telemetry pricing constants.
const (
	CostPerStep           = 1.0
	CostPerBatteryPercent = 0.2
	ValuePerRescue        = 100.0
	ValuePerHazard        = 50.0
)

// Metrics is the per-mission telemetry accumulator. Histories are append-only
// and OperationalCost/ValueGenerated are monotonically non-decreasing by
// construction.
type Metrics struct {
	StepsTaken      int       `json:"steps_taken"`
	BatteryHistory  []float64 `json:"battery_history"`
	ExplorationRate []float64 `json:"exploration_rate"`
	OperationalCost float64   `json:"operational_cost"`
	ValueGenerated  float64   `json:"value_generated"`

	// BatteryConsumed is the cumulative battery drained over the mission.
	// Recharging does not decrease it, which keeps OperationalCost monotone
	// regardless of battery fluctuation.
	BatteryConsumed float64 `json:"battery_consumed"`

	lastBattery float64
	hasBattery  bool
}

// UpdateMetrics folds one tick of telemetry into a fresh Metrics value.
func UpdateMetrics(prev Metrics, batteryLevel float64, exploredCount, totalCells, victimsRescued, firesExtinguished int) Metrics {
	m := prev
	m.BatteryHistory = append(append([]float64(nil), prev.BatteryHistory...), batteryLevel)

	rate := 0.0
	if totalCells > 0 {
		rate = float64(exploredCount) / float64(totalCells)
	}
	m.ExplorationRate = append(append([]float64(nil), prev.ExplorationRate...), rate)

	if m.hasBattery && batteryLevel < m.lastBattery {
		m.BatteryConsumed += m.lastBattery - batteryLevel
	}
	m.lastBattery = batteryLevel
	m.hasBattery = true

	m.OperationalCost = float64(m.StepsTaken)*CostPerStep + m.BatteryConsumed*CostPerBatteryPercent
	m.ValueGenerated = float64(victimsRescued)*ValuePerRescue + float64(firesExtinguished)*ValuePerHazard

	return m
}

// SeedBattery primes the drain baseline at a known battery level. The baseline
// does not survive serialization, so restored metrics must be re-seeded before
// the next tick or the first post-restore drain is lost.
func (m *Metrics) SeedBattery(level float64) {
	m.lastBattery = level
	m.hasBattery = true
}

// ROI is value generated minus operational cost.
func (m Metrics) ROI() float64 {
	return m.ValueGenerated - m.OperationalCost
}
