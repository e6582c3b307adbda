package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrescue/gridrescue/sim/decision"
	"github.com/openrescue/gridrescue/sim/engine"
)

// scriptedOracle replays a fixed sequence of decisions, repeating the last
// one once the script runs out.
type scriptedOracle struct {
	mu        sync.Mutex
	decisions []engine.Decision
	calls     int
}

func (o *scriptedOracle) Decide(_ context.Context, _ decision.Request) (engine.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := o.calls
	o.calls++
	if idx >= len(o.decisions) {
		idx = len(o.decisions) - 1
	}
	return o.decisions[idx], nil
}

func (o *scriptedOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func testScenario() engine.ScenarioProfile {
	return engine.ScenarioProfile{
		ID:              "test",
		Name:            "Test Field",
		GridSize:        10,
		ObstacleDensity: 0,
		VictimCount:     0,
		FireCount:       0,
		Seed:            42,
	}
}

func testProfile() engine.RobotProfile {
	return engine.RobotProfile{
		ID:               "test-bot",
		Name:             "Test Bot",
		SpeedMultiplier:  1.0,
		BatteryDrainRate: 1.0,
		MaxHealth:        100,
	}
}

func newTestScheduler(t *testing.T, oracle decision.Oracle) *Scheduler {
	t.Helper()
	orch := decision.NewOrchestrator(oracle, zap.NewNop())
	s, err := New(testScenario(), testProfile(), orch, zap.NewNop())
	require.NoError(t, err)
	return s
}

// tickUntilSettled ticks until no decision request is outstanding, giving
// the orchestrator goroutine time to resolve between ticks.
func tickUntilSettled(t *testing.T, s *Scheduler, ticks int) {
	t.Helper()
	for i := 0; i < ticks; i++ {
		if err := s.Tick(); err != nil {
			return
		}
		// The oracle fakes resolve immediately; a short poll is enough for
		// the result to land on the pending channel.
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			s.mu.Lock()
			pending := s.pending && len(s.pendingCh) == 0
			s.mu.Unlock()
			if !pending {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func TestNewPerformsInitialScan(t *testing.T) {
	s := newTestScheduler(t, &scriptedOracle{decisions: []engine.Decision{{Action: engine.ActionExplore, Priority: engine.PriorityLow}}})

	snap := s.Snapshot()
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, engine.StatusIdle, snap.Robot.Status)
	assert.Equal(t, engine.MaxBattery, snap.Robot.Battery)

	// The 3x3 corner window around (0,0) is revealed before the first tick.
	assert.Equal(t, 9, snap.Grid.RevealedCount())
}

func TestMoveDecisionProducesMovement(t *testing.T) {
	target := engine.Coord{X: 3, Y: 0}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh, Reasoning: "head east"},
	}}
	s := newTestScheduler(t, oracle)

	// Tick 1 dispatches the decision; following ticks apply it and walk.
	tickUntilSettled(t, s, 6)

	snap := s.Snapshot()
	assert.Equal(t, target, snap.Robot.Position)
	assert.GreaterOrEqual(t, snap.Metrics.StepsTaken, 3)
	assert.Less(t, snap.Robot.Battery, engine.MaxBattery)
}

func TestExploreExpandsRevealedArea(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow, Reasoning: "map the area"},
	}}
	s := newTestScheduler(t, oracle)

	before := s.Snapshot().Grid.RevealedCount()
	tickUntilSettled(t, s, 12)
	after := s.Snapshot().Grid.RevealedCount()

	assert.Greater(t, after, before)
}

func TestOutOfBoundsTargetReturnsToIdle(t *testing.T) {
	target := engine.Coord{X: 99, Y: 99}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 3)

	snap := s.Snapshot()
	assert.Equal(t, engine.Coord{X: 0, Y: 0}, snap.Robot.Position)
	assert.Empty(t, snap.Robot.Path)
}

func TestRechargeAtBaseWithFullBatteryStaysIdle(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionRecharge, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 3)

	snap := s.Snapshot()
	assert.NotEqual(t, engine.StatusRecharging, snap.Robot.Status)
	assert.Equal(t, engine.MaxBattery, snap.Robot.Battery)
}

func TestRechargingRestoresBattery(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionRecharge, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	s.mu.Lock()
	s.robot.Battery = 55
	s.mu.Unlock()

	tickUntilSettled(t, s, 10)

	snap := s.Snapshot()
	assert.Equal(t, engine.MaxBattery, snap.Robot.Battery)
	assert.NotEqual(t, engine.StatusRecharging, snap.Robot.Status)
}

func TestBatteryDepletionHaltsMission(t *testing.T) {
	target := engine.Coord{X: 5, Y: 0}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	s.mu.Lock()
	s.robot.Battery = 0.5
	s.mu.Unlock()

	tickUntilSettled(t, s, 8)

	halted, reason := s.Halted()
	assert.True(t, halted)
	assert.Contains(t, reason, "battery depleted")

	err := s.Tick()
	assert.ErrorIs(t, err, ErrMissionHalted)
}

func TestEmergencyStopIsTerminal(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	s := newTestScheduler(t, oracle)

	s.EmergencyStop("operator request")

	snap := s.Snapshot()
	assert.Equal(t, engine.StatusEmergencyStop, snap.Robot.Status)
	assert.True(t, snap.Halted)
	assert.Contains(t, snap.HaltReason, "operator request")

	err := s.Tick()
	assert.ErrorIs(t, err, ErrMissionHalted)
}

func TestDecisionAfterEmergencyStopIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	oracle := &gatedOracle{release: release, decision: engine.Decision{
		Action: engine.ActionExplore, Priority: engine.PriorityLow,
	}}
	s := newTestScheduler(t, oracle)

	// First tick dispatches a request that blocks inside the oracle.
	require.NoError(t, s.Tick())
	s.mu.Lock()
	require.True(t, s.pending)
	s.mu.Unlock()

	s.EmergencyStop("")
	close(release)

	// The resolution lands after the stop; a reset clears halt and the next
	// tick must discard it rather than move the robot.
	require.NoError(t, s.Reset())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Tick())

	snap := s.Snapshot()
	assert.Equal(t, engine.Coord{X: 0, Y: 0}, snap.Robot.Position)
	assert.Empty(t, snap.Robot.Path)
}

type gatedOracle struct {
	release  <-chan struct{}
	decision engine.Decision
}

func (o *gatedOracle) Decide(ctx context.Context, _ decision.Request) (engine.Decision, error) {
	select {
	case <-o.release:
	case <-ctx.Done():
	}
	return o.decision, nil
}

func TestResetStartsFreshMission(t *testing.T) {
	target := engine.Coord{X: 4, Y: 0}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 7)
	require.NotEqual(t, engine.Coord{X: 0, Y: 0}, s.Snapshot().Robot.Position)

	require.NoError(t, s.Reset())

	snap := s.Snapshot()
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, engine.Coord{X: 0, Y: 0}, snap.Robot.Position)
	assert.Equal(t, engine.MaxBattery, snap.Robot.Battery)
	assert.Equal(t, engine.StatusIdle, snap.Robot.Status)
	assert.Equal(t, 0, snap.Metrics.StepsTaken)
	assert.False(t, snap.Halted)
}

func TestCriticalBelowThreshold(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionRecharge, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	s.mu.Lock()
	s.robot.Battery = 10
	s.mu.Unlock()

	require.NoError(t, s.Tick())

	s.mu.Lock()
	status := s.robot.Status
	s.mu.Unlock()

	// Critical is flagged before decision dispatch moves the robot into
	// Planning, and the robot stays operable.
	assert.Contains(t, []engine.RobotStatus{engine.StatusCritical, engine.StatusPlanning}, status)

	tickUntilSettled(t, s, 15)
	assert.Equal(t, engine.MaxBattery, s.Snapshot().Robot.Battery)
}

func TestSingleDecisionRequestInFlight(t *testing.T) {
	release := make(chan struct{})
	oracle := &gatedOracle{release: release, decision: engine.Decision{
		Action: engine.ActionExplore, Priority: engine.PriorityLow,
	}}
	s := newTestScheduler(t, oracle)
	defer close(release)

	require.NoError(t, s.Tick())
	require.NoError(t, s.Tick())
	require.NoError(t, s.Tick())

	s.mu.Lock()
	pending := s.pending
	status := s.robot.Status
	s.mu.Unlock()

	assert.True(t, pending)
	assert.Equal(t, engine.StatusPlanning, status)
}

func TestTelemetryAdvancesEveryTick(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 5)

	snap := s.Snapshot()
	assert.Len(t, snap.Metrics.BatteryHistory, int(snap.Tick))
	assert.Len(t, snap.Metrics.ExplorationRate, int(snap.Tick))
}

func TestStartPauseResume(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	orch := decision.NewOrchestrator(oracle, zap.NewNop())
	s, err := New(testScenario(), testProfile(), orch, zap.NewNop(),
		WithTickInterval(5*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		return s.Snapshot().Tick > 2
	}, 2*time.Second, 5*time.Millisecond)

	s.Pause()
	assert.False(t, s.Running())
	// Let any tick that was mid-flight when Pause fired finish first.
	time.Sleep(20 * time.Millisecond)
	paused := s.Snapshot().Tick
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, s.Snapshot().Tick)

	require.NoError(t, s.Start())
	s.Pause()
}

func TestStartRefusedWhileHalted(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	s := newTestScheduler(t, oracle)

	s.EmergencyStop("")
	assert.ErrorIs(t, s.Start(), ErrMissionHalted)

	require.NoError(t, s.Reset())
	require.NoError(t, s.Start())
	s.Pause()
}

func TestTickListenerReceivesSnapshots(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	orch := decision.NewOrchestrator(oracle, zap.NewNop())

	var mu sync.Mutex
	var ticks []uint64
	s, err := New(testScenario(), testProfile(), orch, zap.NewNop(),
		WithTickListener(func(snap Snapshot) {
			mu.Lock()
			ticks = append(ticks, snap.Tick)
			mu.Unlock()
		}))
	require.NoError(t, err)

	require.NoError(t, s.Tick())
	require.NoError(t, s.Tick())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, ticks)
}

func TestLogsPagination(t *testing.T) {
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionExplore, Priority: engine.PriorityLow},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 5)

	all, total := s.Logs(0, 0)
	require.NotEmpty(t, all)
	assert.Equal(t, total, len(all))

	page, total2 := s.Logs(1, 2)
	assert.Equal(t, total, total2)
	assert.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)

	none, _ := s.Logs(total+10, 5)
	assert.Empty(t, none)
}

func TestRestoreRoundTrip(t *testing.T) {
	target := engine.Coord{X: 3, Y: 3}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 9)
	saved := s.Snapshot()

	fresh := newTestScheduler(t, oracle)
	require.NoError(t, fresh.Restore(saved))

	got := fresh.Snapshot()
	assert.Equal(t, saved.Tick, got.Tick)
	assert.Equal(t, saved.Robot.Position, got.Robot.Position)
	assert.InDelta(t, saved.Robot.Battery, got.Robot.Battery, 1e-9)
	assert.Equal(t, saved.Metrics.StepsTaken, got.Metrics.StepsTaken)
}

// ctxWatchOracle blocks until released and records the context the
// orchestrator handed it.
type ctxWatchOracle struct {
	mu       sync.Mutex
	ctx      context.Context
	release  <-chan struct{}
	decision engine.Decision
}

func (o *ctxWatchOracle) Decide(ctx context.Context, _ decision.Request) (engine.Decision, error) {
	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()
	select {
	case <-o.release:
		return o.decision, nil
	case <-ctx.Done():
		return engine.Decision{}, ctx.Err()
	}
}

func (o *ctxWatchOracle) requestCtx() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ctx
}

func TestDispatchOutlivesSingleTickCaller(t *testing.T) {
	release := make(chan struct{})
	target := engine.Coord{X: 3, Y: 0}
	oracle := &ctxWatchOracle{release: release, decision: engine.Decision{
		Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh,
	}}
	s := newTestScheduler(t, oracle)

	// A one-shot caller advances a single tick and goes away, like a manual
	// step over HTTP.
	require.NoError(t, s.Tick())

	// The oracle request must still be live well after that caller returned.
	var reqCtx context.Context
	require.Eventually(t, func() bool {
		reqCtx = oracle.requestCtx()
		return reqCtx != nil
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	select {
	case <-reqCtx.Done():
		t.Fatalf("oracle request canceled while mission still active: %v", reqCtx.Err())
	default:
	}

	// Once the oracle answers, the decision is applied, not a fallback.
	close(release)
	tickUntilSettled(t, s, 6)
	assert.Equal(t, target, s.Snapshot().Robot.Position)
}

func TestEmergencyStopCancelsInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	oracle := &ctxWatchOracle{release: release, decision: engine.Decision{
		Action: engine.ActionExplore, Priority: engine.PriorityLow,
	}}
	s := newTestScheduler(t, oracle)
	defer close(release)

	require.NoError(t, s.Tick())
	var reqCtx context.Context
	require.Eventually(t, func() bool {
		reqCtx = oracle.requestCtx()
		return reqCtx != nil
	}, time.Second, time.Millisecond)

	s.EmergencyStop("")

	select {
	case <-reqCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("oracle request not canceled by emergency stop")
	}
}

func TestRestoreResumesBatteryAccounting(t *testing.T) {
	target := engine.Coord{X: 8, Y: 0}
	oracle := &scriptedOracle{decisions: []engine.Decision{
		{Action: engine.ActionMove, Target: &target, Priority: engine.PriorityHigh},
	}}
	s := newTestScheduler(t, oracle)

	tickUntilSettled(t, s, 4)
	saved := s.Snapshot()
	require.Greater(t, saved.Metrics.BatteryConsumed, 0.0)
	require.NotEmpty(t, saved.Robot.Path)

	// Round-trip through JSON the way the session store persists snapshots,
	// which drops the drain baseline held inside Metrics.
	data, err := json.Marshal(saved)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	fresh := newTestScheduler(t, oracle)
	require.NoError(t, fresh.Restore(decoded))

	before := fresh.Snapshot()
	tickUntilSettled(t, fresh, 2)
	after := fresh.Snapshot()

	// Every percent drained after the restore shows up in BatteryConsumed,
	// including the very first post-restore tick.
	drained := before.Robot.Battery - after.Robot.Battery
	require.Greater(t, drained, 0.0)
	assert.InDelta(t, before.Metrics.BatteryConsumed+drained, after.Metrics.BatteryConsumed, 1e-9)
}
