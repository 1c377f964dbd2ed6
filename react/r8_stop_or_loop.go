package react

import (
	"context"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// MaxIter is the default iteration cap (§4.3 R8, condition 2).
const MaxIter = 20

// consecutiveFailureCap is the per-skill failure count that forces
// ASK_HUMAN (§4.3 R8, condition 3).
const consecutiveFailureCap = 3

// StopOrLoop is R8: the exit-condition ladder, evaluated top-down. The
// first matching condition wins and sets stop_reason; otherwise the
// engine loops back to R1.
type StopOrLoop struct{}

// Run implements brain.Node.
func (StopOrLoop) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	decisionType := robot.DecisionType("")
	if state.ReAct.Decision != nil {
		decisionType = state.ReAct.Decision.Type
	}

	switch {
	case decisionType == robot.DecisionFINISH:
		next.ReAct.StopReason = "finish"
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case decisionType == robot.DecisionABORT:
		next.ReAct.StopReason = "abort"
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case decisionType == robot.DecisionASKHUMAN:
		next.ReAct.StopReason = "ask_human"
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case state.ReAct.Iter >= MaxIter:
		next.ReAct.StopReason = "iter_cap"
		next.ReAct.Decision = &robot.Decision{Type: robot.DecisionASKHUMAN, Reason: "iter_cap"}
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case anyConsecutiveFailureAtCap(state.ReAct.ConsecutiveFailures):
		next.ReAct.StopReason = "consecutive_failure"
		next.ReAct.Decision = &robot.Decision{Type: robot.DecisionASKHUMAN, Reason: "consecutive_failure"}
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case state.Tasks.Mode == robot.ModeSAFE || state.Tasks.Mode == robot.ModeCHARGE:
		next.ReAct.StopReason = "mode_preempt"
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	case state.HCI.ApprovalResponse == robot.ApprovalREJECT:
		next.ReAct.StopReason = "user_rejected"
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Stop()}

	default:
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r1_build_observation")}
	}
}

func anyConsecutiveFailureAtCap(failures map[string]int) bool {
	for _, count := range failures {
		if count >= consecutiveFailureCap {
			return true
		}
	}
	return false
}
