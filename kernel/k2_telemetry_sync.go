package kernel

import (
	"context"

	"github.com/corebrain/robobrain/adapters/telemetry"
	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// TelemetrySync is K2: pulls one snapshot from the telemetry adapter with
// no derivation, setting robot fields directly from adapter output.
type TelemetrySync struct {
	Telemetry telemetry.Telemetry
}

// Run implements brain.Node.
func (n TelemetrySync) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	snapshot, err := n.Telemetry.Snapshot(ctx)
	if err != nil {
		return brain.NodeResult[robot.BrainState]{Err: &brain.NodeError{
			Message: "telemetry snapshot failed", Code: "TELEMETRY_ERROR", NodeID: "k2_telemetry_sync", Cause: err,
		}}
	}

	next := state
	next.Robot = snapshot

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("k3_world_update")}
}
