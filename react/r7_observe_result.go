package react

import (
	"context"
	"fmt"
	"time"

	"github.com/corebrain/robobrain/adapters/executor"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// ObserveResult is R7: polls every running skill, removes completed or
// timed-out entries, publishes the most recent result, and threads
// feedback back into messages as a tool result.
type ObserveResult struct {
	Executor executor.Executor
}

// Run implements brain.Node.
func (n ObserveResult) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state
	messages := append([]robot.Message{}, state.Messages...)

	var still []robot.RunningSkill
	var lastResult *robot.LastResult
	failures := copyFailures(state.ReAct.ConsecutiveFailures)
	resources := make(map[robot.Resource]bool, len(state.Robot.Resources))
	for k, v := range state.Robot.Resources {
		resources[k] = v
	}

	for _, rs := range state.Skills.Running {
		if rs.TimeoutS > 0 && time.Since(rs.StartTime) > time.Duration(rs.TimeoutS)*time.Second {
			lastResult = &robot.LastResult{Status: robot.ResultFAILED, ErrorCode: "TIMEOUT", ErrorMsg: "skill exceeded timeout_s"}
			failures[rs.SkillName]++
			messages = append(messages, robot.Message{Role: "tool", Content: fmt.Sprintf("%s timed out", rs.SkillName)})
			freeResources(resources, rs.ResourcesOccupied)
			continue
		}

		poll, err := n.Executor.Poll(ctx, rs.GoalID)
		if err != nil {
			return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
				Message: "poll failed for " + rs.GoalID, Code: "POLL_ERROR", NodeID: "r7_observe_result", Cause: err,
			}}
		}

		if poll.Status == executor.PollRunning {
			still = append(still, rs)
			continue
		}

		if poll.Success {
			lastResult = &robot.LastResult{Status: robot.ResultSUCCESS}
			failures[rs.SkillName] = 0
		} else {
			lastResult = &robot.LastResult{Status: robot.ResultFAILED, ErrorCode: poll.ErrorCode, ErrorMsg: poll.ErrorMsg}
			failures[rs.SkillName]++
		}
		messages = append(messages, robot.Message{Role: "tool", Content: fmt.Sprintf("%s result: %s", rs.SkillName, poll.Status)})
		freeResources(resources, rs.ResourcesOccupied)
	}

	next.Skills.Running = still
	if lastResult != nil {
		next.Skills.LastResult = lastResult
	}
	next.ReAct.ConsecutiveFailures = failures
	next.Messages = messages
	next.Robot.Resources = resources

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("r8_stop_or_loop")}
}

func copyFailures(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// freeResources marks every resource a retired skill held as no longer
// occupied, so a finished or timed-out skill doesn't leave a stale true
// lingering until the next telemetry snapshot overwrites it.
func freeResources(resources map[robot.Resource]bool, occupied []robot.Resource) {
	for _, r := range occupied {
		resources[r] = false
	}
}
