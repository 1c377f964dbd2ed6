// Package telemetry adapts the telemetry source (§6): a single snapshot
// call returning objective robot state, pulled once per tick by K2.
package telemetry

import (
	"context"

	"github.com/corebrain/robobrain/robot"
)

// Telemetry is the adapter contract K2 calls once per tick.
type Telemetry interface {
	// Snapshot returns the current objective robot state.
	Snapshot(ctx context.Context) (robot.Robot, error)
}
