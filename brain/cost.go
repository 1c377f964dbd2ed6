package brain

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing defines input and output token costs for LLM models, in USD
// per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the oracle adapters R2 can call (anthropic,
// openai, google). Update as providers adjust pricing.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                 {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":            {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":            {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":          {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-sonnet-20240229":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":         {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":       {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.0-pro":         {InputPer1M: 0.50, OutputPer1M: 1.50},
}

// LLMCall records one oracle invocation's token usage and cost, attributed
// to the node that made it (always "r2_react_decide" today, but kept
// general in case a future ReAct node queries an LLM directly).
type LLMCall struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
	NodeID       string
}

// CostTracker accumulates LLM spend for one robot thread across its whole
// ReAct life, so a host can budget-cap a deliberation session or export
// spend-per-thread to billing.
type CostTracker struct {
	ThreadID string
	Currency string

	Pricing map[string]ModelPricing

	Calls      []LLMCall
	TotalCost  float64
	ModelCosts map[string]float64

	InputTokens  int64
	OutputTokens int64

	CreatedAt time.Time

	mu      sync.RWMutex
	enabled bool
}

// NewCostTracker creates a cost tracker for threadID using default pricing.
func NewCostTracker(threadID, currency string) *CostTracker {
	return &CostTracker{
		ThreadID:   threadID,
		Currency:   currency,
		Pricing:    defaultModelPricing,
		Calls:      make([]LLMCall, 0, 16),
		ModelCosts: make(map[string]float64),
		CreatedAt:  time.Now(),
		enabled:    true,
	}
}

// RecordLLMCall records one oracle call's token usage and computes its
// cost from the pricing table. An unrecognized model is recorded with zero
// cost rather than rejected outright.
func (ct *CostTracker) RecordLLMCall(model string, inputTokens, outputTokens int, nodeID string) error {
	if ct == nil || !ct.isEnabled() {
		return nil
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing, ok := ct.Pricing[model]
	if !ok {
		pricing = ModelPricing{}
	}

	inputCost := (float64(inputTokens) / 1_000_000.0) * pricing.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000.0) * pricing.OutputPer1M
	totalCost := inputCost + outputCost

	ct.Calls = append(ct.Calls, LLMCall{
		Model: model, InputTokens: inputTokens, OutputTokens: outputTokens,
		CostUSD: totalCost, Timestamp: time.Now(), NodeID: nodeID,
	})

	ct.TotalCost += totalCost
	ct.ModelCosts[model] += totalCost
	ct.InputTokens += int64(inputTokens)
	ct.OutputTokens += int64(outputTokens)

	return nil
}

func (ct *CostTracker) isEnabled() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.enabled
}

// GetTotalCost returns the cumulative cost across all recorded calls.
func (ct *CostTracker) GetTotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.TotalCost
}

// GetCostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) GetCostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	costs := make(map[string]float64, len(ct.ModelCosts))
	for model, cost := range ct.ModelCosts {
		costs[model] = cost
	}
	return costs
}

// GetCallHistory returns a copy of all recorded calls in order.
func (ct *CostTracker) GetCallHistory() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	calls := make([]LLMCall, len(ct.Calls))
	copy(calls, ct.Calls)
	return calls
}

// GetTokenUsage returns total input and output token counts.
func (ct *CostTracker) GetTokenUsage() (inputTokens, outputTokens int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.InputTokens, ct.OutputTokens
}

// SetCustomPricing overrides the default pricing for model, for enterprise
// rates or a provider price change.
func (ct *CostTracker) SetCustomPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.Pricing == nil {
		ct.Pricing = make(map[string]ModelPricing)
	}
	ct.Pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// Disable stops further cost recording. RecordLLMCall becomes a no-op.
func (ct *CostTracker) Disable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = false
}

// Enable resumes cost recording after Disable.
func (ct *CostTracker) Enable() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.enabled = true
}

// Reset clears recorded calls and cumulative totals, preserving pricing.
func (ct *CostTracker) Reset() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.Calls = make([]LLMCall, 0, 16)
	ct.TotalCost = 0
	ct.ModelCosts = make(map[string]float64)
	ct.InputTokens = 0
	ct.OutputTokens = 0
}

// String returns a human-readable summary, for log lines at thread end.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return fmt.Sprintf(
		"CostTracker{ThreadID: %s, Calls: %d, TotalCost: $%.4f %s, InputTokens: %d, OutputTokens: %d}",
		ct.ThreadID, len(ct.Calls), ct.TotalCost, ct.Currency, ct.InputTokens, ct.OutputTokens,
	)
}
