// Package oracle adapts the language-model oracle contract (§6) that R2
// calls every ReAct iteration: raw text in, raw text out, with the core
// responsible for all Decision parsing and fallback.
package oracle

import (
	"context"

	"github.com/corebrain/robobrain/robot"
)

// Oracle mirrors the teacher's model.ChatModel shape, narrowed to the
// three inputs §6 names: conversation history, the current structured
// observation, and a registry summary for grounding skill names.
type Oracle interface {
	// Decide sends the conversation plus observation and registry summary
	// to the model and returns its raw text response. The raw text must
	// contain a JSON Decision object; R2 performs parsing and fallback, not
	// this adapter.
	Decide(ctx context.Context, messages []robot.Message, observation map[string]any, registrySummary string) (raw string, err error)
}

// Usage reports token counts for a single Decide call, used by R2 to feed
// the cost tracker.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
}

// UsageReporter is implemented by adapters that can report token usage for
// their most recent call. R2 type-asserts for it; adapters that can't
// report usage simply don't implement it.
type UsageReporter interface {
	LastUsage() Usage
}
