package emit

// Event is an observability event emitted during graph execution: node
// start/end, routing decisions, errors, and suspend/resume transitions.
type Event struct {
	// RunID identifies the thread (conversation/task session) that emitted
	// this event.
	RunID string

	// Step is the sequential step number within the thread (1-indexed).
	Step int

	// NodeID identifies which node emitted this event.
	NodeID string

	// Msg is a short event kind: "node_start", "node_end", "node_error",
	// "routing_decision".
	Msg string

	// Meta carries event-specific structured data, e.g. "error", "next_node",
	// "suspended", "tokens_in", "tokens_out", "cost_usd".
	Meta map[string]interface{}
}
