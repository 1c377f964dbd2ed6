// Package kernel implements K1-K6, the outer rule-based arbitration loop
// (§4.2): a fixed chain of pure BrainState transitions run once per tick.
package kernel

import (
	"context"

	"github.com/corebrain/robobrain/brain"
	"github.com/corebrain/robobrain/robot"
)

// HCIIngress is K1: classifies the pending utterance into an interrupt
// kind, preserving the original text verbatim.
type HCIIngress struct{}

// Run implements brain.Node.
func (HCIIngress) Run(ctx context.Context, state robot.BrainState) brain.NodeResult[robot.BrainState] {
	kind, payload := classify(state.HCI.UserUtterance)

	next := state
	next.HCI.UserInterrupt = kind
	next.HCI.InterruptPayload = payload

	return brain.NodeResult[robot.BrainState]{Delta: next, Route: brain.Goto("k2_telemetry_sync")}
}
