// Command analyze prints quick, human-readable mission reports from persisted
// session files. It summarizes progress, battery economics, exploration
// coverage, and the cost/value balance, and flags missions that ended badly.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/session"
)

// Report is the digest computed for one persisted session.
type Report struct {
	SessionID         string
	ScenarioID        string
	RobotID           string
	Tick              uint64
	StepsTaken        int
	VictimsRescued    int
	FiresExtinguished int
	BatteryConsumed   float64
	OperationalCost   float64
	ValueGenerated    float64
	NetValue          float64
	ROI               float64
	Coverage          float64
	RemainingVictims  int
	RemainingFires    int
	Halted            bool
	HaltReason        string
}

// computeReport derives the mission digest from persisted session data.
func computeReport(data session.PersistedSessionData) Report {
	state := data.State
	m := state.Metrics

	r := Report{
		SessionID:         data.ID,
		ScenarioID:        data.ScenarioID,
		RobotID:           data.RobotID,
		Tick:              state.Tick,
		StepsTaken:        m.StepsTaken,
		VictimsRescued:    state.Robot.VictimsRescued,
		FiresExtinguished: state.Robot.FiresExtinguished,
		BatteryConsumed:   m.BatteryConsumed,
		OperationalCost:   m.OperationalCost,
		ValueGenerated:    m.ValueGenerated,
		NetValue:          m.ValueGenerated - m.OperationalCost,
		Halted:            state.Halted,
		HaltReason:        state.HaltReason,
	}

	if m.OperationalCost > 0 {
		r.ROI = m.ValueGenerated / m.OperationalCost
	}

	if state.Grid != nil && state.Grid.Size > 0 {
		total := state.Grid.Size * state.Grid.Size
		r.Coverage = float64(state.Grid.RevealedCount()) / float64(total)
		r.RemainingVictims = state.Grid.CountType(engine.Victim)
		r.RemainingFires = state.Grid.CountType(engine.Fire)
	}

	return r
}

// analyzeSession loads one persisted session file and prints its report.
func analyzeSession(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return
	}

	var persisted session.PersistedSessionData
	if err := json.Unmarshal(data, &persisted); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		return
	}

	printReport(computeReport(persisted))
}

func printReport(r Report) {
	fmt.Printf("Session: %s (scenario=%s robot=%s)\n", r.SessionID, r.ScenarioID, r.RobotID)
	fmt.Printf("Ticks: %d | Steps: %d\n", r.Tick, r.StepsTaken)
	fmt.Printf("Rescued: %d victims | Extinguished: %d fires\n", r.VictimsRescued, r.FiresExtinguished)
	fmt.Printf("Remaining on field: %d victims, %d fires\n", r.RemainingVictims, r.RemainingFires)
	fmt.Printf("Coverage: %.0f%% of field revealed\n", r.Coverage*100)
	fmt.Printf("Battery consumed: %.1f%%\n", r.BatteryConsumed)
	fmt.Printf("Cost: %.2f | Value: %.2f | Net: %.2f\n", r.OperationalCost, r.ValueGenerated, r.NetValue)
	if r.OperationalCost > 0 {
		fmt.Printf("ROI: %.2f\n", r.ROI)
	} else {
		fmt.Printf("ROI: n/a (no cost incurred yet)\n")
	}

	if r.Halted {
		fmt.Printf("⚠️  Mission halted: %s\n", r.HaltReason)
	} else if r.RemainingVictims == 0 && r.RemainingFires == 0 && r.VictimsRescued+r.FiresExtinguished > 0 {
		fmt.Printf("✅ Field clear\n")
	}
}

// main scans the sessions directory (or the files given as arguments) and
// prints a report per persisted mission.
func main() {
	paths := os.Args[1:]

	if len(paths) == 0 {
		var err error
		paths, err = filepath.Glob(filepath.Join("sessions", "*.json"))
		if err != nil || len(paths) == 0 {
			fmt.Println("No session files found. Pass file paths or run next to a sessions/ directory.")
			os.Exit(1)
		}
	}

	for _, path := range paths {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(path))
		analyzeSession(path)
	}
}
