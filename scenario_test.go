package robobrain

import (
	"context"
	"testing"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/adapters/oracle"
	"github.com/corebrain/robobrain/adapters/telemetry"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/brain/store"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

// newTestEngine wires a fresh engine with the given adapters over a fresh
// in-memory store, mirroring how a host process assembles one per run.
func newTestEngine(t *testing.T, ad Adapters) *brain.Engine[robot.BrainState] {
	t.Helper()
	reg := registry.NewWithBuiltins()
	st := store.NewMemStore[robot.BrainState]()
	tracker := brain.NewCostTracker("thread-"+t.Name(), "USD")

	eng, err := Wire(reg, ad, st, tracker, brain.Options{}, nil)
	if err != nil {
		t.Fatalf("Wire failed: %v", err)
	}
	return eng
}

func healthyRobot() robot.Robot {
	r := robot.NewRobot()
	r.BatteryPct = 80
	return r
}

// Scenario 1: successful navigation.
func TestScenario_SuccessfulNavigation(t *testing.T) {
	ctx := context.Background()
	mockOracle := &oracle.MockOracle{Responses: []string{
		`{"type":"REPLAN","ops":[{"skill_name":"NavigateToPose","params":{"x":1,"y":2,"z":0}}]}`,
		`{"type":"FINISH","reason":"arrived"}`,
	}}
	mockExecutor := &executor.MockExecutor{
		PollResults: map[string]executor.PollResult{
			"goal-1": {Status: executor.PollDone, Success: true},
		},
	}
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{healthyRobot()}}

	eng := newTestEngine(t, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry})

	// Tick 1: the goal arrives, but K4 only sees the task queue after K5
	// drains it, so this tick stays IDLE.
	tick1 := robot.New()
	tick1.HCI.UserUtterance = "go to kitchen"
	state, err := eng.Run(ctx, "thread-1", tick1)
	if err != nil {
		t.Fatalf("tick 1: unexpected error: %v", err)
	}
	if state.Tasks.Mode != robot.ModeIDLE {
		t.Fatalf("tick 1: mode = %v, want IDLE", state.Tasks.Mode)
	}
	if len(state.Tasks.Queue) != 1 || state.Tasks.Queue[0].Goal != "navigate_to:kitchen" {
		t.Fatalf("tick 1: queue = %+v, want one task for kitchen", state.Tasks.Queue)
	}

	// Tick 2: no new utterance; the queued task now drives mode to EXEC
	// and the whole ReAct loop runs until FINISH.
	state.HCI.UserUtterance = ""
	state, err = eng.Run(ctx, "thread-1", state)
	if err != nil {
		t.Fatalf("tick 2: unexpected error: %v", err)
	}
	if state.ReAct.StopReason != "finish" {
		t.Errorf("stop_reason = %q, want finish", state.ReAct.StopReason)
	}
	if len(mockExecutor.DispatchCalls) != 1 || mockExecutor.DispatchCalls[0].SkillName != "NavigateToPose" {
		t.Errorf("dispatch calls = %+v, want one NavigateToPose dispatch", mockExecutor.DispatchCalls)
	}
	if mockOracle.CallCount() != 2 {
		t.Errorf("oracle calls = %d, want 2", mockOracle.CallCount())
	}
}

// Scenario 2: battery preemption mid-navigation.
func TestScenario_BatteryPreemption(t *testing.T) {
	ctx := context.Background()
	mockExecutor := &executor.MockExecutor{}
	lowBattery := robot.NewRobot()
	lowBattery.BatteryPct = 18
	lowBattery.Resources[robot.ResourceBase] = true
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{lowBattery}}
	mockOracle := &oracle.MockOracle{}

	eng := newTestEngine(t, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry})

	// Start from a state that already has a nav skill in flight, as if an
	// earlier tick dispatched it while battery was still healthy.
	mid := robot.New()
	mid.Tasks.Mode = robot.ModeEXEC
	activeID := "task-1"
	mid.Tasks.ActiveTaskID = &activeID
	mid.Tasks.Queue = []robot.Task{{ID: activeID, Goal: "navigate_to:kitchen", Preemptible: true, Status: robot.TaskActive}}
	mid.Skills.Running = []robot.RunningSkill{
		{GoalID: "goal-1", SkillName: "NavigateToPose", TaskID: activeID, ResourcesOccupied: []robot.Resource{robot.ResourceBase}},
	}
	mid.Robot.Resources[robot.ResourceBase] = true

	state, err := eng.Run(ctx, "thread-2", mid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Tasks.Mode != robot.ModeCHARGE {
		t.Fatalf("mode = %v, want CHARGE", state.Tasks.Mode)
	}
	if !state.Tasks.PreemptFlag {
		t.Error("preempt_flag should be true entering CHARGE")
	}
	if len(mockExecutor.CancelCalls) != 1 || mockExecutor.CancelCalls[0] != "goal-1" {
		t.Errorf("cancel calls = %+v, want cancel of the in-flight nav", mockExecutor.CancelCalls)
	}
	if len(mockExecutor.DispatchCalls) != 1 || mockExecutor.DispatchCalls[0].SkillName != "NavigateToPose" {
		t.Errorf("dispatch calls = %+v, want a redirect dispatch", mockExecutor.DispatchCalls)
	}
	if mockOracle.CallCount() != 0 {
		t.Error("ReAct/oracle should never be entered once mode is CHARGE")
	}
}

// Scenario 3: safety override.
func TestScenario_SafetyOverride(t *testing.T) {
	ctx := context.Background()
	mockExecutor := &executor.MockExecutor{}
	mockOracle := &oracle.MockOracle{}
	danger := robot.NewRobot()
	danger.BatteryPct = 80
	danger.CollisionRisk = true
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{danger}}

	eng := newTestEngine(t, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry})

	state, err := eng.Run(ctx, "thread-3", robot.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Tasks.Mode != robot.ModeSAFE {
		t.Fatalf("mode = %v, want SAFE", state.Tasks.Mode)
	}
	if len(mockExecutor.DispatchCalls) != 1 || mockExecutor.DispatchCalls[0].SkillName != "StopBase" {
		t.Errorf("dispatch calls = %+v, want one StopBase dispatch", mockExecutor.DispatchCalls)
	}
	if mockOracle.CallCount() != 0 {
		t.Error("ReAct/oracle should not be entered while mode is SAFE")
	}
}

// Scenario 4: human stop cancels the in-flight nav.
func TestScenario_HumanStop(t *testing.T) {
	ctx := context.Background()
	mockExecutor := &executor.MockExecutor{}
	mockOracle := &oracle.MockOracle{}
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{healthyRobot()}}

	eng := newTestEngine(t, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry})

	mid := robot.New()
	mid.HCI.UserUtterance = "stop"
	mid.Tasks.Mode = robot.ModeEXEC
	activeID := "task-1"
	mid.Tasks.ActiveTaskID = &activeID
	mid.Tasks.Queue = []robot.Task{{ID: activeID, Goal: "navigate_to:kitchen", Preemptible: true, Status: robot.TaskActive}}
	mid.Skills.Running = []robot.RunningSkill{
		{GoalID: "goal-1", SkillName: "NavigateToPose", TaskID: activeID, ResourcesOccupied: []robot.Resource{robot.ResourceBase}},
	}
	mid.Robot.Resources[robot.ResourceBase] = true

	state, err := eng.Run(ctx, "thread-4", mid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.HCI.UserInterrupt != robot.InterruptSTOP {
		t.Errorf("user_interrupt = %v, want STOP", state.HCI.UserInterrupt)
	}
	if state.Tasks.Mode != robot.ModeIDLE || !state.Tasks.PreemptFlag {
		t.Errorf("mode/preempt = %v/%v, want IDLE/true", state.Tasks.Mode, state.Tasks.PreemptFlag)
	}
	if len(mockExecutor.CancelCalls) != 1 || mockExecutor.CancelCalls[0] != "goal-1" {
		t.Errorf("cancel calls = %+v, want cancel of the running nav", mockExecutor.CancelCalls)
	}
	if mockOracle.CallCount() != 0 {
		t.Error("ReAct/oracle should not run once mode drops to IDLE")
	}
}

// Scenario 5: malformed oracle output forces ASK_HUMAN.
func TestScenario_MalformedOracleOutput(t *testing.T) {
	ctx := context.Background()
	mockOracle := &oracle.MockOracle{Responses: []string{"let's think about it"}}
	mockExecutor := &executor.MockExecutor{}
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{healthyRobot()}}

	eng := newTestEngine(t, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry})

	ready := robot.New()
	ready.Tasks.Mode = robot.ModeEXEC
	activeID := "task-1"
	ready.Tasks.ActiveTaskID = &activeID
	ready.Tasks.Queue = []robot.Task{{ID: activeID, Goal: "navigate_to:kitchen", Preemptible: true, Status: robot.TaskActive}}

	state, err := eng.Run(ctx, "thread-5", ready)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.ReAct.Decision == nil || state.ReAct.Decision.Type != robot.DecisionASKHUMAN {
		t.Fatalf("decision = %+v, want type ASK_HUMAN", state.ReAct.Decision)
	}
	if state.ReAct.Decision.Reason != "malformed_decision" {
		t.Errorf("reason = %q, want malformed_decision", state.ReAct.Decision.Reason)
	}
	if state.ReAct.StopReason != "ask_human" {
		t.Errorf("stop_reason = %q, want ask_human", state.ReAct.StopReason)
	}
}

// Scenario 6: durable resume after a crash mid-dispatch never re-dispatches.
func TestScenario_DurableResume(t *testing.T) {
	ctx := context.Background()
	mockOracle := &oracle.MockOracle{Responses: []string{
		`{"type":"REPLAN","ops":[{"skill_name":"NavigateToPose","params":{"x":1,"y":2,"z":0}}]}`,
		`{"type":"FINISH","reason":"arrived"}`,
	}}
	mockExecutor := &executor.MockExecutor{
		PollResults: map[string]executor.PollResult{
			"goal-1": {Status: executor.PollDone, Success: true},
		},
	}
	mockTelemetry := &telemetry.MockTelemetry{Snapshots: []robot.Robot{healthyRobot()}}

	reg := registry.NewWithBuiltins()
	st := store.NewMemStore[robot.BrainState]()
	tracker := brain.NewCostTracker("thread-6", "USD")
	eng, err := Wire(reg, Adapters{Oracle: mockOracle, Executor: mockExecutor, Telemetry: mockTelemetry}, st, tracker, brain.Options{}, nil)
	if err != nil {
		t.Fatalf("Wire failed: %v", err)
	}

	ready := robot.New()
	ready.Tasks.Mode = robot.ModeEXEC
	activeID := "task-1"
	ready.Tasks.ActiveTaskID = &activeID
	ready.Tasks.Queue = []robot.Task{{ID: activeID, Goal: "navigate_to:kitchen", Preemptible: true, Status: robot.TaskActive}}

	state, err := eng.Run(ctx, "thread-6", ready)
	if err != nil {
		t.Fatalf("first run: unexpected error: %v", err)
	}
	if len(mockExecutor.DispatchCalls) != 1 {
		t.Fatalf("dispatch calls after first run = %d, want 1", len(mockExecutor.DispatchCalls))
	}
	firstKey := mockExecutor.DispatchCalls[0].IdempotencyKey

	// Simulate a crash immediately after R6's checkpoint: re-run the graph
	// from the start node over the SAME thread id and the SAME starting
	// state, with the oracle rewound so it proposes the same REPLAN again.
	// The idempotency key is derived purely from (iter, op_index,
	// skill_name), so replaying the identical state recomputes the
	// identical key and the mock executor no-ops the duplicate dispatch.
	mockOracle.Reset()
	replay := robot.New()
	replay.Tasks.Mode = robot.ModeEXEC
	replay.Tasks.ActiveTaskID = &activeID
	replay.Tasks.Queue = ready.Tasks.Queue
	replay.ReAct.Iter = 0 // fresh observation cycle, same proposed op shape
	_, err = eng.Run(ctx, "thread-6", replay)
	if err != nil {
		t.Fatalf("replay run: unexpected error: %v", err)
	}

	if len(mockExecutor.DispatchCalls) != 1 {
		t.Fatalf("dispatch calls after replay = %d, want still 1 (deduplicated)", len(mockExecutor.DispatchCalls))
	}
	if mockExecutor.DispatchCalls[0].IdempotencyKey != firstKey {
		t.Errorf("idempotency key changed across replay: %q vs %q", mockExecutor.DispatchCalls[0].IdempotencyKey, firstKey)
	}

	_ = state
}
