package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openrescue/gridrescue/sim/engine"
	"github.com/openrescue/gridrescue/sim/scheduler"
	"github.com/openrescue/gridrescue/sim/session"
)

func samplePersisted() session.PersistedSessionData {
	grid := engine.NewGrid(10)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			grid.At(x, y).Revealed = true
		}
	}
	grid.At(8, 8).Type = engine.Victim
	grid.At(3, 3).Type = engine.Fire

	return session.PersistedSessionData{
		ID:             "ab12",
		ScenarioID:     "training_yard",
		RobotID:        "pathfinder",
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
		State: scheduler.Snapshot{
			Tick: 50,
			Grid: grid,
			Robot: engine.RobotState{
				Position:          engine.Coord{X: 4, Y: 4},
				Battery:           60,
				Status:            engine.StatusIdle,
				VictimsRescued:    2,
				FiresExtinguished: 1,
			},
			Metrics: engine.Metrics{
				StepsTaken:      30,
				BatteryConsumed: 50,
				OperationalCost: 40,
				ValueGenerated:  250,
			},
		},
	}
}

func TestComputeReport(t *testing.T) {
	r := computeReport(samplePersisted())

	if r.SessionID != "ab12" {
		t.Errorf("SessionID = %q, want ab12", r.SessionID)
	}
	if r.Tick != 50 {
		t.Errorf("Tick = %d, want 50", r.Tick)
	}
	if r.VictimsRescued != 2 || r.FiresExtinguished != 1 {
		t.Errorf("rescued/extinguished = %d/%d, want 2/1", r.VictimsRescued, r.FiresExtinguished)
	}
	if r.NetValue != 210 {
		t.Errorf("NetValue = %.2f, want 210", r.NetValue)
	}
	if r.ROI != 6.25 {
		t.Errorf("ROI = %.2f, want 6.25", r.ROI)
	}
	if r.Coverage != 0.25 {
		t.Errorf("Coverage = %.2f, want 0.25", r.Coverage)
	}
	if r.RemainingVictims != 1 || r.RemainingFires != 1 {
		t.Errorf("remaining = %d/%d, want 1/1", r.RemainingVictims, r.RemainingFires)
	}
}

func TestComputeReportZeroCost(t *testing.T) {
	data := samplePersisted()
	data.State.Metrics = engine.Metrics{}

	r := computeReport(data)
	if r.ROI != 0 {
		t.Errorf("ROI = %.2f, want 0 when no cost incurred", r.ROI)
	}
}

func TestComputeReportHalted(t *testing.T) {
	data := samplePersisted()
	data.State.Halted = true
	data.State.HaltReason = "battery depleted"

	r := computeReport(data)
	if !r.Halted || r.HaltReason != "battery depleted" {
		t.Errorf("halt = %v %q, want true with reason", r.Halted, r.HaltReason)
	}
}

func TestComputeReportNilGrid(t *testing.T) {
	data := samplePersisted()
	data.State.Grid = nil

	r := computeReport(data)
	if r.Coverage != 0 {
		t.Errorf("Coverage = %.2f, want 0 for nil grid", r.Coverage)
	}
}

func TestAnalyzeSession_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ab12.json")

	raw, err := json.Marshal(samplePersisted())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("analyzeSession panicked: %v", r)
		}
	}()

	analyzeSession(path)
}

func TestAnalyzeSession_MissingFile(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("analyzeSession panicked with missing file: %v", r)
		}
	}()

	analyzeSession("/non/existent/session.json")
}

func TestAnalyzeSession_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte(`{"id": "x", not json}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("analyzeSession panicked with invalid JSON: %v", r)
		}
	}()

	analyzeSession(path)
}
