package react

import (
	"context"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

// canonicalResponse maps a preempting mode to the one skill its SAFE/CHARGE
// kernel handler dispatches; a ReAct-proposed op for that skill is not
// demoted even while the mode holds resources.
var canonicalResponse = map[robot.Mode]string{
	robot.ModeSAFE:   "StopBase",
	robot.ModeCHARGE: "NavigateToPose",
}

// GuardrailsCheck is R4: rejects ops that name an unregistered skill, fail
// arg-schema validation, or conflict with a resource held by a
// non-preemptible running skill. It also demotes resource-owning dispatch
// while mode is SAFE/CHARGE unless the op is the mode's own canonical
// response.
type GuardrailsCheck struct {
	Registry *registry.Registry
}

// Run implements brain.Node.
func (n GuardrailsCheck) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state
	ops := state.ReAct.ProposedOps
	if ops == nil {
		return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
	}

	rejected := *ops

	for _, op := range ops.ToDispatch {
		def, ok := n.Registry.Lookup(op.SkillName)
		if !ok {
			next = n.reject(next, "REJECT_UNKNOWN_SKILL", "skill "+op.SkillName+" is not registered", false)
			return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
		}
		if err := validateParams(def, op.Params); err != "" {
			next = n.reject(next, "REJECT_PARAMS", err, false)
			return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
		}
		if conflict := n.resourceConflict(state, def); conflict {
			next = n.reject(next, "REJECT_RESOURCE_CONFLICT", "resource held by a non-preemptible running skill", true)
			return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
		}
		if state.Tasks.Mode == robot.ModeSAFE || state.Tasks.Mode == robot.ModeCHARGE {
			if len(def.ResourcesRequired) > 0 && op.SkillName != canonicalResponse[state.Tasks.Mode] {
				next.ReAct.Decision = &robot.Decision{Type: robot.DecisionASKHUMAN, Reason: "resource_owning_dispatch_during_" + string(state.Tasks.Mode)}
				rejected.ToDispatch = nil
				next.ReAct.ProposedOps = &rejected
				return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
			}
		}
	}

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r5_human_approval")}
}

// reject writes a synthetic last_result, rewrites decision.type, and clears
// to_dispatch. recoverable ops rewrite to REPLAN; unrecoverable ops rewrite
// to ASK_HUMAN.
func (n GuardrailsCheck) reject(state robot.BrainState, errorCode, errorMsg string, recoverable bool) robot.BrainState {
	next := state
	next.Skills.LastResult = &robot.LastResult{Status: robot.ResultFAILED, ErrorCode: errorCode, ErrorMsg: errorMsg}

	decisionType := robot.DecisionASKHUMAN
	if recoverable {
		decisionType = robot.DecisionREPLAN
	}
	reason := errorCode
	if state.ReAct.Decision != nil {
		reason = state.ReAct.Decision.Reason
	}
	next.ReAct.Decision = &robot.Decision{Type: decisionType, Reason: reason}

	ops := robot.ProposedOps{}
	if state.ReAct.ProposedOps != nil {
		ops = *state.ReAct.ProposedOps
	}
	ops.ToDispatch = nil
	next.ReAct.ProposedOps = &ops

	return next
}

func (n GuardrailsCheck) resourceConflict(state robot.BrainState, def robot.SkillDef) bool {
	for _, required := range def.ResourcesRequired {
		for _, rs := range state.Skills.Running {
			for _, occupied := range rs.ResourcesOccupied {
				if occupied != required {
					continue
				}
				heldDef, ok := n.Registry.Lookup(rs.SkillName)
				if !ok || !heldDef.Preemptible {
					return true
				}
			}
		}
	}
	return false
}

func validateParams(def robot.SkillDef, params map[string]any) string {
	for key, typ := range def.ArgSchema {
		val, ok := params[key]
		if !ok {
			return "missing required param " + key
		}
		if !paramTypeMatches(val, typ) {
			return "param " + key + " does not match expected type " + typ
		}
	}
	return ""
}

func paramTypeMatches(val any, typ string) bool {
	switch typ {
	case "float64":
		_, ok := val.(float64)
		return ok
	case "string":
		_, ok := val.(string)
		return ok
	case "bool":
		_, ok := val.(bool)
		return ok
	default:
		return true
	}
}
