package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockExecutor is a deterministic test double generalized from the
// teacher's tool.MockTool: configurable response queues per operation,
// call history, error injection, and the idempotency-key dedup table §5
// requires of every executor adapter.
type MockExecutor struct {
	// DispatchGoalIDs is the sequence of goal ids Dispatch returns, in
	// call order (repeating the last once exhausted). Defaults to a
	// counter-based id if empty.
	DispatchGoalIDs []string

	// PollResults, keyed by goal id, is consulted by Poll.
	PollResults map[string]PollResult

	DispatchErr error
	CancelErr   error
	SpeakErr    error

	DispatchCalls []DispatchCall
	CancelCalls   []string
	SpeakCalls    []SpeakCall

	mu            sync.Mutex
	dispatchIndex int
	seenKeys      map[string]string // idempotency key -> goal id (or "" for speak)
}

// DispatchCall records one Dispatch invocation.
type DispatchCall struct {
	SkillName      string
	Params         map[string]any
	IdempotencyKey string
}

// SpeakCall records one Speak invocation.
type SpeakCall struct {
	Text           string
	IdempotencyKey string
}

// Dispatch implements Executor.
func (m *MockExecutor) Dispatch(ctx context.Context, skillName string, params map[string]any, idempotencyKey string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seenKeys == nil {
		m.seenKeys = map[string]string{}
	}
	if goalID, ok := m.seenKeys[idempotencyKey]; ok {
		return goalID, nil
	}

	m.DispatchCalls = append(m.DispatchCalls, DispatchCall{SkillName: skillName, Params: params, IdempotencyKey: idempotencyKey})

	if m.DispatchErr != nil {
		return "", m.DispatchErr
	}

	var goalID string
	if len(m.DispatchGoalIDs) == 0 {
		goalID = fmt.Sprintf("goal-%d", len(m.DispatchCalls))
	} else {
		idx := m.dispatchIndex
		if idx >= len(m.DispatchGoalIDs) {
			idx = len(m.DispatchGoalIDs) - 1
		} else {
			m.dispatchIndex++
		}
		goalID = m.DispatchGoalIDs[idx]
	}

	m.seenKeys[idempotencyKey] = goalID
	return goalID, nil
}

// Cancel implements Executor.
func (m *MockExecutor) Cancel(ctx context.Context, goalID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls = append(m.CancelCalls, goalID)
	return m.CancelErr
}

// Poll implements Executor.
func (m *MockExecutor) Poll(ctx context.Context, goalID string) (PollResult, error) {
	if ctx.Err() != nil {
		return PollResult{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if res, ok := m.PollResults[goalID]; ok {
		return res, nil
	}
	return PollResult{Status: PollRunning}, nil
}

// Speak implements Executor.
func (m *MockExecutor) Speak(ctx context.Context, text string, idempotencyKey string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seenKeys == nil {
		m.seenKeys = map[string]string{}
	}
	if _, ok := m.seenKeys[idempotencyKey]; ok {
		return nil
	}

	m.SpeakCalls = append(m.SpeakCalls, SpeakCall{Text: text, IdempotencyKey: idempotencyKey})
	if m.SpeakErr != nil {
		return m.SpeakErr
	}
	m.seenKeys[idempotencyKey] = ""
	return nil
}

// Reset clears all call history and the idempotency dedup table.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DispatchCalls = nil
	m.CancelCalls = nil
	m.SpeakCalls = nil
	m.dispatchIndex = 0
	m.seenKeys = nil
}
