package react

import (
	"context"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// CompileOps is R3: translates the decision into a ProposedOps value
// per the decision-type mapping in §4.3.
type CompileOps struct{}

// Run implements brain.Node.
func (CompileOps) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state
	decision := state.ReAct.Decision
	if decision == nil {
		decision = &robot.Decision{Type: robot.DecisionASKHUMAN, Reason: "missing_decision"}
	}

	runningIDs := runningGoalIDs(state.Skills.Running)
	ops := robot.ProposedOps{}

	switch decision.Type {
	case robot.DecisionCONTINUE:
		// keep running skills; no dispatch.

	case robot.DecisionRETRY:
		activeRunning := activeTaskRunning(state)
		ops.ToCancel = runningGoalIDs(activeRunning)
		for _, rs := range activeRunning {
			ops.ToDispatch = append(ops.ToDispatch, robot.DispatchOp{
				SkillName: rs.SkillName, TaskID: rs.TaskID, Params: rs.Params,
			})
		}

	case robot.DecisionREPLAN:
		ops.ToCancel = runningIDs
		for _, patch := range decision.Ops {
			ops.ToDispatch = append(ops.ToDispatch, robot.DispatchOp{
				SkillName: patch.SkillName, TaskID: activeTaskID(state), Params: patch.Params,
			})
		}

	case robot.DecisionSWITCHTASK:
		ops.ToCancel = runningIDs
		if len(decision.Ops) > 0 {
			patch := decision.Ops[0]
			ops.NeedApproval = true
			ops.ApprovalPayload = map[string]any{"reason": decision.Reason, "skill_name": patch.SkillName, "params": patch.Params}
			ops.ToDispatch = append(ops.ToDispatch, robot.DispatchOp{
				SkillName: patch.SkillName, TaskID: activeTaskID(state), Params: patch.Params,
			})
		}

	case robot.DecisionASKHUMAN:
		ops.NeedApproval = true
		candidateOps := make([]map[string]any, 0, len(decision.Ops))
		for _, patch := range decision.Ops {
			candidateOps = append(candidateOps, map[string]any{"skill_name": patch.SkillName, "params": patch.Params})
		}
		ops.ApprovalPayload = map[string]any{"reason": decision.Reason, "candidate_ops": candidateOps}

	case robot.DecisionFINISH, robot.DecisionABORT:
		ops.ToCancel = runningIDs
		if decision.Reason != "" {
			ops.ToSpeak = []string{decision.Reason}
		}
	}

	next.ReAct.ProposedOps = &ops
	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r4_guardrails_check")}
}

func runningGoalIDs(running []robot.RunningSkill) []string {
	out := make([]string, 0, len(running))
	for _, rs := range running {
		out = append(out, rs.GoalID)
	}
	return out
}

func activeTaskID(state robot.BrainState) string {
	if state.Tasks.ActiveTaskID == nil {
		return ""
	}
	return *state.Tasks.ActiveTaskID
}

func activeTaskRunning(state robot.BrainState) []robot.RunningSkill {
	id := activeTaskID(state)
	if id == "" {
		return nil
	}
	var out []robot.RunningSkill
	for _, rs := range state.Skills.Running {
		if rs.TaskID == id {
			out = append(out, rs)
		}
	}
	return out
}
