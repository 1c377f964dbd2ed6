// Package brain provides the checkpointable graph execution engine that
// drives the robot decision core: a single-threaded, sequential scheduler
// over a directed graph of pure state-transition nodes.
package brain

import "context"

// Node is a single pure transition in the graph: given the current
// aggregate state, it produces a partial update (Delta) and a routing
// decision. Kernel nodes (K1-K6) and ReAct nodes (R1-R8) are both Nodes
// instantiated over the same concrete state type.
//
// Type parameter S is the state type shared across the graph.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult is the output of a node execution.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node. It is
	// merged into the accumulated state via the engine's Reducer.
	Delta S

	// Route specifies where the engine goes next. Use Stop() for
	// terminal nodes, Goto(id) for explicit routing.
	Route Next

	// Err is a node-level error. A non-nil Err halts the run.
	Err error
}

// Next specifies the next step after a node completes.
//
// Exactly one of Terminal or To should be set; the engine treats Many
// as reserved for a future fan-out mode but the sequential scheduler
// never produces it itself (§5 requires single-threaded cooperative
// execution, no concurrent branches).
type Next struct {
	// To names the next node to execute.
	To string

	// Many is reserved; unused by the sequential scheduler.
	Many []string

	// Terminal stops execution with a natural finish (R8's FINISH/ABORT/etc
	// exits, or SAFE/CHARGE's one-shot handlers).
	Terminal bool

	// Suspend pauses the graph and checkpoints so the host can resume
	// later at the same node once external input (an approval response)
	// arrives. Only R5 (Human_Approval) ever sets this.
	Suspend bool
}

// Stop returns a Next that terminates execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the named node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// SuspendFor returns a Next that pauses the graph for human approval.
func SuspendFor() Next {
	return Next{Suspend: true}
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements Node.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeError is a structured node-level error.
type NodeError struct {
	Message string
	Code    string
	NodeID  string
	Cause   error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
