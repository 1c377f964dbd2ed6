// Package react implements R1-R8, the inner ReAct loop that runs while
// the Kernel's mode is EXEC: observation, oracle decision, op compilation,
// guardrails, optional human approval, dispatch, result observation, and
// the stop/loop exit ladder.
package react

import (
	"context"
	"encoding/json"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// BuildObservation is R1: composes a structured observation from world
// summary, robot telemetry, the active task, running skills, and the
// last result, then increments the iteration counter.
type BuildObservation struct{}

// Run implements brain.Node.
func (BuildObservation) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	next.ReAct.Iter = state.ReAct.Iter + 1

	observation := map[string]any{
		"world_summary":      state.World.Summary,
		"pose":               state.Robot.Pose,
		"battery_pct":        state.Robot.BatteryPct,
		"resources":          state.Robot.Resources,
		"active_task":        activeTaskSummary(state),
		"running_skills":     state.Skills.Running,
		"last_result":        state.Skills.LastResult,
	}
	next.ReAct.Observation = observation

	payload, err := json.Marshal(observation)
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
			Message: "failed to marshal observation", Code: "OBSERVATION_MARSHAL_ERROR", NodeID: "r1_build_observation", Cause: err,
		}}
	}

	next.Messages = append(append([]robot.Message{}, state.Messages...), robot.Message{
		Role: "user", Content: string(payload),
	})

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r2_react_decide")}
}

func activeTaskSummary(state robot.BrainState) map[string]any {
	if state.Tasks.ActiveTaskID == nil {
		return nil
	}
	for _, t := range state.Tasks.Queue {
		if t.ID == *state.Tasks.ActiveTaskID {
			return map[string]any{"id": t.ID, "goal": t.Goal, "priority": t.Priority}
		}
	}
	return nil
}
