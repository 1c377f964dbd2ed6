package telemetry

import (
	"context"
	"sync"

	"github.com/corebrain/robobrain/robot"
)

// MockTelemetry feeds a scripted sequence of Robot snapshots, letting
// end-to-end scenario tests drive battery drain, collision risk, and pose
// changes tick by tick (§8 scenarios 2, 3, 4).
type MockTelemetry struct {
	// Snapshots is the sequence returned in order; the last entry repeats
	// once exhausted.
	Snapshots []robot.Robot

	Err error

	mu    sync.Mutex
	index int
}

// Snapshot implements Telemetry.
func (m *MockTelemetry) Snapshot(ctx context.Context) (robot.Robot, error) {
	if ctx.Err() != nil {
		return robot.Robot{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return robot.Robot{}, m.Err
	}
	if len(m.Snapshots) == 0 {
		return robot.NewRobot(), nil
	}

	idx := m.index
	if idx >= len(m.Snapshots) {
		idx = len(m.Snapshots) - 1
	} else {
		m.index++
	}
	return m.Snapshots[idx], nil
}

// Reset rewinds the snapshot sequence to its start.
func (m *MockTelemetry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
