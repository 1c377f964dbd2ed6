package react

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/corebrain/robobrain/adapters/oracle"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/registry"
	"github.com/corebrain/robobrain/robot"
)

// ReActDecide is R2: calls the oracle and parses its raw text into a
// Decision. Parsing falls back in three stages: strict JSON, the largest
// balanced `{...}` substring, then ASK_HUMAN if both fail or `type` is not
// one of the seven valid values.
type ReActDecide struct {
	Oracle      oracle.Oracle
	Registry    *registry.Registry
	CostTracker *brain.CostTracker
}

// Run implements brain.Node.
func (n ReActDecide) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	raw, err := n.Oracle.Decide(ctx, state.Messages, state.ReAct.Observation, n.Registry.Describe())
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
			Message: "oracle call failed", Code: "ORACLE_ERROR", NodeID: "r2_react_decide", Cause: err,
		}}
	}

	if reporter, ok := n.Oracle.(oracle.UsageReporter); ok {
		usage := reporter.LastUsage()
		_ = n.CostTracker.RecordLLMCall(usage.Model, usage.InputTokens, usage.OutputTokens, "r2_react_decide")
	}

	decision := parseDecision(raw)
	next.ReAct.Decision = &decision
	next.Trace.Log = append(append([]string{}, state.Trace.Log...), "r2: decision="+string(decision.Type)+" reason="+decision.Reason)

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r3_compile_ops")}
}

// parseDecision implements the three-stage fallback ladder: strict JSON,
// then the largest balanced `{...}` substring, then ASK_HUMAN.
func parseDecision(raw string) robot.Decision {
	var d robot.Decision
	if err := json.Unmarshal([]byte(raw), &d); err == nil && robot.ValidDecisionTypes[d.Type] {
		return d
	}

	if candidate := largestBalancedObject(raw); candidate != "" {
		if d, ok := decisionFromGJSON(candidate); ok {
			return d
		}
	}

	return robot.Decision{Type: robot.DecisionASKHUMAN, Reason: "malformed_decision"}
}

// decisionFromGJSON tolerates a candidate object that doesn't unmarshal
// cleanly into Decision's exact shape (extra prose fields, subtly wrong
// types) by pulling out just the fields the schema requires via gjson.
func decisionFromGJSON(raw string) (robot.Decision, bool) {
	if !gjson.Valid(raw) {
		return robot.Decision{}, false
	}
	result := gjson.Parse(raw)
	typ := robot.DecisionType(strings.TrimSpace(result.Get("type").String()))
	if !robot.ValidDecisionTypes[typ] {
		return robot.Decision{}, false
	}
	d := robot.Decision{Type: typ, Reason: result.Get("reason").String()}
	result.Get("ops").ForEach(func(_, op gjson.Result) bool {
		d.Ops = append(d.Ops, robot.PlanPatch{
			SkillName: op.Get("skill_name").String(),
			Params:    jsonObjectToMap(op.Get("params")),
		})
		return true
	})
	return d, true
}

func jsonObjectToMap(r gjson.Result) map[string]any {
	if !r.IsObject() {
		return nil
	}
	out := map[string]any{}
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.Value()
		return true
	})
	return out
}

// largestBalancedObject returns the longest balanced `{...}` substring of
// raw, or "" if none is found. Used as the fallback-parse candidate when a
// strict top-level JSON parse fails (e.g. the oracle wrapped its JSON in
// prose).
func largestBalancedObject(raw string) string {
	best := ""
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		depth := 0
		for j := i; j < len(raw); j++ {
			switch raw[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					if j-i+1 > len(best) {
						best = raw[i : j+1]
					}
					j = len(raw)
				}
			}
		}
	}
	return best
}
