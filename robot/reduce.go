package robot

// Reduce merges a node's delta into the accumulated state. Every kernel and
// react node is handed the full current state and returns its Delta as a
// complete copy with only the sub-states it owns modified (the one-writer
// rule from §4); Trace.Log and Messages are append-only, but since nodes
// copy the prior slice before appending, the delta already carries the
// full accumulated history. Reduce therefore adopts the delta as-is.
func Reduce(prev, delta BrainState) BrainState {
	return delta
}
