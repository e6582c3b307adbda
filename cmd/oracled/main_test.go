package main

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/openrescue/gridrescue/sim/decision"
	"github.com/openrescue/gridrescue/sim/engine"
)

func testHandler() *oracleHandler {
	return &oracleHandler{
		logger:     zap.NewNop(),
		rng:        rand.New(rand.NewSource(1)),
		rechargeAt: 35,
	}
}

func request(battery float64, readings ...engine.SensorReading) decision.Request {
	return decision.Request{
		Telemetry: decision.TelemetrySnapshot{
			Battery:  battery,
			Health:   100,
			Position: engine.Coord{X: 5, Y: 5},
			Status:   engine.StatusPlanning,
		},
		Perception: readings,
	}
}

func TestDecideLowBatteryOrdersRecharge(t *testing.T) {
	h := testHandler()

	d := h.decide(request(20, engine.SensorReading{X: 6, Y: 5, Type: engine.Victim, Distance: 1}))

	if d.Action != string(engine.ActionRecharge) {
		t.Errorf("action = %s, want RECHARGE even with a victim visible", d.Action)
	}
	if d.Target == nil || d.Target.X != 0 || d.Target.Y != 0 {
		t.Errorf("target = %v, want base (0,0)", d.Target)
	}
	if d.Priority != string(engine.PriorityHigh) {
		t.Errorf("priority = %s, want HIGH", d.Priority)
	}
}

func TestDecidePrefersVictimOverFire(t *testing.T) {
	h := testHandler()

	d := h.decide(request(80,
		engine.SensorReading{X: 4, Y: 5, Type: engine.Fire, Distance: 1},
		engine.SensorReading{X: 7, Y: 5, Type: engine.Victim, Distance: 2},
	))

	if d.Action != string(engine.ActionRescue) {
		t.Errorf("action = %s, want RESCUE over EXTINGUISH", d.Action)
	}
	if d.Target == nil || d.Target.X != 7 {
		t.Errorf("target = %v, want the victim at (7,5)", d.Target)
	}
}

func TestDecidePicksNearestVictim(t *testing.T) {
	h := testHandler()

	d := h.decide(request(80,
		engine.SensorReading{X: 7, Y: 7, Type: engine.Victim, Distance: 4},
		engine.SensorReading{X: 6, Y: 5, Type: engine.Victim, Distance: 1},
	))

	if d.Target == nil || d.Target.X != 6 || d.Target.Y != 5 {
		t.Errorf("target = %v, want nearest victim (6,5)", d.Target)
	}
}

func TestDecideExtinguishesFireWhenNoVictims(t *testing.T) {
	h := testHandler()

	d := h.decide(request(80,
		engine.SensorReading{X: 3, Y: 5, Type: engine.Fire, Distance: 2},
		engine.SensorReading{X: 4, Y: 5, Type: engine.Empty, Distance: 1},
	))

	if d.Action != string(engine.ActionExtinguish) {
		t.Errorf("action = %s, want EXTINGUISH", d.Action)
	}
	if d.Priority != string(engine.PriorityMedium) {
		t.Errorf("priority = %s, want MEDIUM", d.Priority)
	}
}

func TestDecideExploresWhenNothingVisible(t *testing.T) {
	h := testHandler()

	d := h.decide(request(80,
		engine.SensorReading{X: 4, Y: 5, Type: engine.Empty, Distance: 1},
		engine.SensorReading{X: 5, Y: 4, Type: engine.Wall, Distance: 1},
	))

	if d.Action != string(engine.ActionExplore) {
		t.Errorf("action = %s, want EXPLORE", d.Action)
	}
	if d.Target != nil {
		t.Errorf("explore should carry no target, got %v", d.Target)
	}
	if d.Priority != string(engine.PriorityLow) {
		t.Errorf("priority = %s, want LOW", d.Priority)
	}
}

func TestNearestOfTypeScanOrderTieBreak(t *testing.T) {
	readings := []engine.SensorReading{
		{X: 4, Y: 5, Type: engine.Fire, Distance: 1},
		{X: 6, Y: 5, Type: engine.Fire, Distance: 1},
	}

	got := nearestOfType(readings, engine.Fire)
	if got == nil || got.X != 4 {
		t.Errorf("nearestOfType = %v, want first reading at equal distance", got)
	}
}
