package kernel

import (
	"context"
	"fmt"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// EventArbitrate is K4, the only priority authority over mode. Evaluated
// top-down; first match wins. Ties always resolve to the lower rank.
type EventArbitrate struct{}

// Run implements brain.Node.
func (EventArbitrate) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	next := state

	mode, preempt, reason := arbitrate(state)

	next.Tasks.Mode = mode
	next.Tasks.PreemptFlag = preempt
	next.Tasks.PreemptReason = reason
	next.Trace.Log = append(append([]string{}, state.Trace.Log...),
		fmt.Sprintf("k4: mode=%s preempt=%v reason=%s", mode, preempt, reason))

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("k5_task_queue")}
}

func arbitrate(state robot.BrainState) (robot.Mode, bool, string) {
	r := state.Robot

	switch {
	case r.BatteryPct < 5 || r.CollisionRisk:
		return robot.ModeSAFE, true, "SAFETY"
	case r.BatteryPct < 20:
		return robot.ModeCHARGE, true, "BATTERY"
	case state.HCI.UserInterrupt == robot.InterruptSTOP:
		return robot.ModeIDLE, true, "USER_STOP"
	case state.HCI.UserInterrupt == robot.InterruptPAUSE:
		return robot.ModeIDLE, false, "USER_PAUSE"
	case queueNonEmpty(state.Tasks):
		return robot.ModeEXEC, false, ""
	default:
		return robot.ModeIDLE, false, ""
	}
}

func queueNonEmpty(t robot.Tasks) bool {
	if t.ActiveTaskID != nil {
		return true
	}
	return len(t.Queue) > 0
}
