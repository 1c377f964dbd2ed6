package kernel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// chargingStationPose is the fixed destination NavigateToPose targets
// when CHARGE mode issues its one-shot dispatch.
var chargingStationPose = map[string]any{"x": 0.0, "y": 0.0, "z": 0.0}

// KernelRoute is K6: maps mode to a routing token. It writes nothing
// structural itself; SAFE and CHARGE are routed to dedicated one-shot
// handler nodes that bypass the ReAct loop entirely.
type KernelRoute struct{}

// Run implements brain.Node.
func (KernelRoute) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	switch state.Tasks.Mode {
	case robot.ModeSAFE:
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.Goto("k6_safe_handler")}
	case robot.ModeCHARGE:
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.Goto("k6_charge_handler")}
	case robot.ModeEXEC:
		// Every tick that reaches here runs the ReAct loop to an exit
		// condition before returning (a suspended loop resumes via
		// RunWithCheckpoint at R5 itself, never back through here), so
		// this is always a fresh EXEC entry: react.iter resets.
		next := state
		next.ReAct.Iter = 0
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r1_build_observation")}
	default:
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.Goto("k6_idle_preempt_handler")}
	}
}

// IdlePreemptHandler cancels running skills when K4 has routed to IDLE
// with preempt_flag set (e.g. a user STOP interrupt), since IDLE never
// enters ReAct's R6 to retire them itself.
type IdlePreemptHandler struct {
	Executor executor.Executor
}

// Run implements brain.Node.
func (n IdlePreemptHandler) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	if !state.Tasks.PreemptFlag || len(state.Skills.Running) == 0 {
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.Stop()}
	}

	next, trace, err := cancelRunning(ctx, n.Executor, state, "k6_idle_preempt_handler")
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: err}
	}
	next.Trace.Log = trace
	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}
}

// SafeHandler issues a one-shot StopBase dispatch when mode=SAFE,
// bypassing the ReAct loop entirely (§4.2 K6).
type SafeHandler struct {
	Executor executor.Executor
}

// Run implements brain.Node.
func (n SafeHandler) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next, trace, err := cancelRunning(ctx, n.Executor, state, "k6_safe_handler")
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: err}
	}

	key := oneShotKey("SAFE", "StopBase", state)
	if _, err := n.Executor.Dispatch(ctx, "StopBase", nil, key); err != nil {
		return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
			Message: "safe handler dispatch failed", Code: "SAFE_DISPATCH_ERROR", NodeID: "k6_safe_handler", Cause: err,
		}}
	}

	next.Trace.Log = append(trace, "k6: SAFE handler dispatched StopBase")
	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}
}

// ChargeHandler issues a one-shot NavigateToPose{charging_station}
// dispatch when mode=CHARGE, bypassing the ReAct loop entirely.
type ChargeHandler struct {
	Executor executor.Executor
}

// Run implements brain.Node.
func (n ChargeHandler) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next, trace, err := cancelRunning(ctx, n.Executor, state, "k6_charge_handler")
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: err}
	}

	key := oneShotKey("CHARGE", "NavigateToPose", state)
	if _, err := n.Executor.Dispatch(ctx, "NavigateToPose", chargingStationPose, key); err != nil {
		return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
			Message: "charge handler dispatch failed", Code: "CHARGE_DISPATCH_ERROR", NodeID: "k6_charge_handler", Cause: err,
		}}
	}

	next.Trace.Log = append(trace, "k6: CHARGE handler dispatched NavigateToPose{charging_station}")
	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}
}

// cancelRunning awaits cancellation of every in-flight skill and clears
// both Skills.Running and the resources they held, so a SAFE/CHARGE
// preemption never leaves a stale nav (or other skill) occupying a
// resource the one-shot handler's own dispatch needs (P6).
func cancelRunning(ctx context.Context, ex executor.Executor, state robot.BrainState, nodeID string) (robot.BrainState, []string, *brain.NodeError) {
	next := state
	trace := append([]string{}, state.Trace.Log...)

	for _, rs := range state.Skills.Running {
		if err := ex.Cancel(ctx, rs.GoalID); err != nil {
			return robot.BrainState{}, nil, &brain.NodeError{
				Message: "cancel failed for " + rs.GoalID, Code: "CANCEL_ERROR", NodeID: nodeID, Cause: err,
			}
		}
		trace = append(trace, nodeID+": cancelled "+rs.GoalID)
	}

	next.Skills.Running = nil
	resources := make(map[robot.Resource]bool, len(state.Robot.Resources))
	for k := range state.Robot.Resources {
		resources[k] = false
	}
	next.Robot.Resources = resources

	return next, trace, nil
}

// oneShotKey derives a deterministic idempotency key for a Kernel-level
// bypass dispatch from mode, skill, and the active task, so a replayed
// tick against the same state produces the same key.
func oneShotKey(mode, skill string, state robot.BrainState) string {
	active := ""
	if state.Tasks.ActiveTaskID != nil {
		active = *state.Tasks.ActiveTaskID
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", mode, skill, active)))
	return hex.EncodeToString(sum[:])
}
