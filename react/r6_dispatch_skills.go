package react

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

// DispatchSkills is R6, the sole side-effecting node in the ReAct loop.
// Cancels are issued and awaited before dispatches in the same pass (§5);
// every dispatch and speak call carries a deterministic idempotency key so
// a replayed pass against the same state no-ops. Cancels carry no key.
type DispatchSkills struct {
	Executor executor.Executor
	Registry *registry.Registry
}

// Run implements brain.Node.
func (n DispatchSkills) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state
	ops := state.ReAct.ProposedOps
	if ops == nil {
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r7_observe_result")}
	}

	running := append([]robot.RunningSkill{}, state.Skills.Running...)
	trace := append([]string{}, state.Trace.Log...)
	resources := make(map[robot.Resource]bool, len(state.Robot.Resources))
	for k, v := range state.Robot.Resources {
		resources[k] = v
	}
	next.Robot.Resources = resources

	for _, goalID := range ops.ToCancel {
		if err := n.Executor.Cancel(ctx, goalID); err != nil {
			return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
				Message: "cancel failed for " + goalID, Code: "CANCEL_ERROR", NodeID: "r6_dispatch_skills", Cause: err,
			}}
		}
		running = removeRunning(running, goalID)
		trace = append(trace, "r6: cancelled "+goalID)
	}

	for i, op := range ops.ToDispatch {
		key := opKey(state.ReAct.Iter, i, op.SkillName)
		goalID, err := n.Executor.Dispatch(ctx, op.SkillName, op.Params, key)
		if err != nil {
			return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
				Message: "dispatch failed for " + op.SkillName, Code: "DISPATCH_ERROR", NodeID: "r6_dispatch_skills", Cause: err,
			}}
		}

		def, _ := n.Registry.Lookup(op.SkillName)
		running = append(running, robot.RunningSkill{
			GoalID: goalID, SkillName: op.SkillName, TaskID: op.TaskID, Params: op.Params,
			StartTime: time.Now(), TimeoutS: def.TimeoutS, ResourcesOccupied: def.ResourcesRequired,
		})
		for _, r := range def.ResourcesRequired {
			next.Robot.Resources[r] = true
		}
		trace = append(trace, fmt.Sprintf("r6: dispatched %s -> %s", op.SkillName, goalID))
	}

	for i, text := range ops.ToSpeak {
		key := opKey(state.ReAct.Iter, i, "speak")
		if err := n.Executor.Speak(ctx, text, key); err != nil {
			return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
				Message: "speak failed", Code: "SPEAK_ERROR", NodeID: "r6_dispatch_skills", Cause: err,
			}}
		}
		trace = append(trace, "r6: spoke "+text)
	}

	next.Skills.Running = running
	next.Trace.Log = trace

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r7_observe_result")}
}

func removeRunning(running []robot.RunningSkill, goalID string) []robot.RunningSkill {
	out := running[:0]
	for _, rs := range running {
		if rs.GoalID != goalID {
			out = append(out, rs)
		}
	}
	return out
}

// opKey derives a deterministic idempotency key from iteration, op index,
// and skill name, standing in for (thread_id, react.iter, op_index): nodes
// only receive (ctx, state), not the engine's thread id, and each
// BrainState is already scoped to a single thread by construction.
func opKey(iter, index int, skillName string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d:%s", iter, index, skillName)))
	return hex.EncodeToString(sum[:])
}
