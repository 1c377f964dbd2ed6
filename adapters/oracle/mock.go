package oracle

import (
	"context"
	"sync"

	"github.com/corebrain/robobrain/robot"
)

// MockOracle is a deterministic, configurable test double, generalized
// from the teacher's model.MockChatModel: a response queue, call history,
// and error injection, all behind a mutex.
type MockOracle struct {
	// Responses is the queue of raw decision texts returned in order. Once
	// exhausted, the last response repeats.
	Responses []string

	// Err, if set, is returned instead of a response.
	Err error

	Calls []MockOracleCall

	mu        sync.Mutex
	callIndex int
}

// MockOracleCall records one Decide invocation.
type MockOracleCall struct {
	Messages        []robot.Message
	Observation     map[string]any
	RegistrySummary string
}

// Decide implements Oracle.
func (m *MockOracle) Decide(ctx context.Context, messages []robot.Message, observation map[string]any, registrySummary string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockOracleCall{Messages: messages, Observation: observation, RegistrySummary: registrySummary})

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// LastUsage implements UsageReporter with a fixed stand-in value so R2's
// cost-tracking path is exercised in tests without a real provider.
func (m *MockOracle) LastUsage() Usage {
	return Usage{Model: "mock-oracle", InputTokens: 10, OutputTokens: 10}
}

// Reset clears call history for reuse across test cases.
func (m *MockOracle) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of Decide invocations.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
