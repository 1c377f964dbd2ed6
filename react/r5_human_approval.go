package react

import (
	"context"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// HumanApproval is R5: passes through if no approval is required;
// otherwise suspends the graph carrying approval_payload, and on resume
// applies APPROVE/EDIT/REJECT semantics.
type HumanApproval struct {
	// Guardrails re-validates ops after an EDIT substitutes params.
	Guardrails GuardrailsCheck
}

// Run implements brain.Node.
func (n HumanApproval) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	ops := state.ReAct.ProposedOps
	if ops == nil || !ops.NeedApproval {
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.Goto("r6_dispatch_skills")}
	}

	switch state.HCI.ApprovalResponse {
	case robot.ApprovalNone:
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.SuspendFor()}

	case robot.ApprovalAPPROVE:
		next := state
		approved := *ops
		approved.NeedApproval = false
		next.ReAct.ProposedOps = &approved
		next.HCI.ApprovalResponse = robot.ApprovalNone
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r6_dispatch_skills")}

	case robot.ApprovalEDIT:
		next := state
		edited := *ops
		edited.NeedApproval = false
		edited.ToDispatch = make([]robot.DispatchOp, len(ops.ToDispatch))
		for i, op := range ops.ToDispatch {
			params := make(map[string]any, len(op.Params)+len(state.HCI.EditParams))
			for k, v := range op.Params {
				params[k] = v
			}
			for k, v := range state.HCI.EditParams {
				params[k] = v
			}
			edited.ToDispatch[i] = robot.DispatchOp{SkillName: op.SkillName, TaskID: op.TaskID, Params: params}
		}
		next.ReAct.ProposedOps = &edited
		next.HCI.ApprovalResponse = robot.ApprovalNone
		return n.Guardrails.Run(ctx, next)

	case robot.ApprovalREJECT:
		next := state
		rejected := *ops
		rejected.ToDispatch = nil
		rejected.NeedApproval = false
		next.ReAct.ProposedOps = &rejected
		next.ReAct.Decision = &robot.Decision{Type: robot.DecisionABORT, Reason: "user_rejected"}
		next.HCI.ApprovalResponse = robot.ApprovalREJECT
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r6_dispatch_skills")}

	default:
		return brain.NodeResult[robot.BrainState]{Delta: state, Route: brain.SuspendFor()}
	}
}
