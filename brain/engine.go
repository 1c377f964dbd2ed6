package brain

import (
	"context"
	"sync"
	"time"

	"github.com/corebrain/robobrain/brain/emit"
	"github.com/corebrain/robobrain/brain/store"
)

// Reducer merges a node's partial state update (delta) into the
// accumulated state. Reducers must be deterministic. In the robot brain
// every node returns a full copy of the state with only the sub-state it
// owns changed (the "one writer per sub-state" rule, §3, §4), so its
// reducer, robot.Reduce, adopts the delta as-is.
type Reducer[S any] func(prev, delta S) S

// Engine sequences a graph of Nodes over one accumulated state value,
// checkpointing after every step.
//
// The engine is deliberately single-threaded and sequential: §5 of the
// robot brain's concurrency model mandates cooperative, per-thread
// execution with no fan-out, so unlike a general-purpose workflow engine
// there is no concurrent frontier or worker pool here — one node runs to
// completion, is checkpointed, and only then does the next node start.
type Engine[S any] struct {
	mu sync.RWMutex

	reducer      Reducer[S]
	nodes        map[string]Node[S]
	nodePolicies map[string]*NodePolicy
	edges        []Edge[S]
	startNode    string

	store   store.Store[S]
	emitter emit.Emitter

	metrics     *PrometheusMetrics
	costTracker *CostTracker

	opts Options
}

// Add registers a node under nodeID. Nodes must be added before StartAt or Run.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	return e.AddWithPolicy(nodeID, node, nil)
}

// AddWithPolicy registers a node under nodeID with a NodePolicy governing
// its timeout and retry behavior. R2 (oracle calls) and R6 (dispatch/cancel
// calls) are the nodes expected to need one; pass nil for the rest.
func (e *Engine[S]) AddWithPolicy(nodeID string, node Node[S], policy *NodePolicy) error {
	if nodeID == "" {
		return &EngineError{Message: "node id cannot be empty", Code: "INVALID_NODE_ID"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil", Code: "NIL_NODE"}
	}
	if policy != nil && policy.RetryPolicy != nil {
		if err := policy.RetryPolicy.Validate(); err != nil {
			return &EngineError{Message: "invalid retry policy for node " + nodeID + ": " + err.Error(), Code: "INVALID_RETRY_POLICY"}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{Message: "node already exists: " + nodeID, Code: "DUPLICATE_NODE"}
	}
	e.nodes[nodeID] = node
	if policy != nil {
		e.nodePolicies[nodeID] = policy
	}
	return nil
}

// StartAt sets the graph's entry node.
func (e *Engine[S]) StartAt(nodeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{Message: "start node does not exist: " + nodeID, Code: "NODE_NOT_FOUND"}
	}
	e.startNode = nodeID
	return nil
}

// Connect adds a fallback edge used when a node's NodeResult does not set
// an explicit Route.To. Wire registers no edges: every Kernel and ReAct
// node sets its route explicitly.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[from]; !exists {
		return &EngineError{Message: "edge source node does not exist: " + from, Code: "NODE_NOT_FOUND"}
	}
	if _, exists := e.nodes[to]; !exists {
		return &EngineError{Message: "edge target node does not exist: " + to, Code: "NODE_NOT_FOUND"}
	}
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// Run drives the graph from the start node over threadID until a node
// returns Stop() (finished) or SuspendFor() (paused, e.g. R5 awaiting
// approval). It returns ErrSuspended in the latter case; callers should
// mutate the returned state and call RunWithCheckpoint to continue.
func (e *Engine[S]) Run(ctx context.Context, threadID string, initial S) (S, error) {
	var zero S

	if e == nil {
		return zero, &EngineError{Message: "engine is nil", Code: "NIL_ENGINE"}
	}
	if e.reducer == nil {
		return zero, &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if e.store == nil {
		return zero, &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if e.startNode == "" {
		return zero, &EngineError{Message: "start node not set (call StartAt before Run)", Code: "NO_START_NODE"}
	}

	e.mu.RLock()
	_, exists := e.nodes[e.startNode]
	e.mu.RUnlock()
	if !exists {
		return zero, &EngineError{Message: "start node does not exist: " + e.startNode, Code: "NODE_NOT_FOUND"}
	}

	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunWallClockBudget)
		defer cancel()
	}

	return e.runFrom(ctx, threadID, e.startNode, initial, 0)
}

// RunWithCheckpoint resumes execution at checkpoint.NextNode with
// checkpoint.State, re-running that node (this is how R5's suspend/resume
// protocol works: the host loads the latest checkpoint, sets
// hci.approval_response, and calls RunWithCheckpoint; Human_Approval runs
// again and this time proceeds instead of suspending).
func (e *Engine[S]) RunWithCheckpoint(ctx context.Context, checkpoint Checkpoint[S]) (S, error) {
	var zero S

	if e.reducer == nil {
		return zero, &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}
	if e.store == nil {
		return zero, &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if checkpoint.NextNode == "" {
		return zero, &EngineError{Message: "checkpoint has no next node to resume at", Code: "NO_RESUME_NODE"}
	}

	return e.runFrom(ctx, checkpoint.ThreadID, checkpoint.NextNode, checkpoint.State, checkpoint.StepID)
}

// ErrSuspended is returned by Run/RunWithCheckpoint when a node suspends
// the graph (R5 awaiting approval). It is not an execution failure.
var ErrSuspended = &EngineError{Message: "graph suspended, awaiting resume", Code: "SUSPENDED"}

func (e *Engine[S]) runFrom(ctx context.Context, threadID string, startNode string, initial S, startStep int) (S, error) {
	var zero S

	currentState := initial
	currentNode := startNode
	step := startStep

	for {
		step++

		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			return zero, &EngineError{Message: "workflow exceeded MaxSteps limit", Code: "MAX_STEPS_EXCEEDED"}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		e.mu.RLock()
		nodeImpl, exists := e.nodes[currentNode]
		e.mu.RUnlock()
		if !exists {
			return zero, &EngineError{Message: "node not found during execution: " + currentNode, Code: "NODE_NOT_FOUND"}
		}

		e.emitNodeStart(threadID, currentNode, step)

		result := e.runNodeWithRetry(ctx, currentNode, nodeImpl, currentState)

		if result.Err != nil {
			e.emitError(threadID, currentNode, step, result.Err)
			if e.metrics != nil {
				e.metrics.RecordNodeError(currentNode)
			}
			return zero, result.Err
		}

		currentState = e.reducer(currentState, result.Delta)

		if err := e.store.SaveStep(ctx, threadID, step, currentNode, currentState); err != nil {
			return zero, &EngineError{Message: "failed to save step: " + err.Error(), Code: "STORE_ERROR"}
		}
		e.emitNodeEnd(threadID, currentNode, step, result.Delta)

		if e.metrics != nil {
			e.metrics.RecordStep(currentNode)
		}

		if result.Route.Suspend {
			key, err := computeIdempotencyKey(threadID, step, currentState)
			if err != nil {
				return zero, &EngineError{Message: "failed to compute idempotency key: " + err.Error(), Code: "CHECKPOINT_ERROR"}
			}
			cp := Checkpoint[S]{
				ThreadID:       threadID,
				StepID:         step,
				NodeID:         currentNode,
				NextNode:       currentNode,
				State:          currentState,
				IdempotencyKey: key,
				Timestamp:      time.Now(),
				Label:          "suspended:" + currentNode,
			}
			if err := e.store.SaveCheckpointV2(ctx, toStoreCheckpoint(cp)); err != nil {
				return zero, &EngineError{Message: "failed to save checkpoint: " + err.Error(), Code: "CHECKPOINT_SAVE_FAILED"}
			}
			e.emitRoutingDecision(threadID, currentNode, step, map[string]interface{}{"suspended": true})
			return currentState, ErrSuspended
		}

		if result.Route.Terminal {
			e.emitRoutingDecision(threadID, currentNode, step, map[string]interface{}{"terminal": true})
			return currentState, nil
		}

		nextNode := result.Route.To
		if nextNode == "" {
			nextNode = e.evaluateEdges(currentNode, currentState)
		}
		if nextNode == "" {
			return zero, &EngineError{Message: "no valid route from node: " + currentNode, Code: "NO_ROUTE"}
		}

		e.emitRoutingDecision(threadID, currentNode, step, map[string]interface{}{"next_node": nextNode})
		currentNode = nextNode
	}
}

func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}

func (e *Engine[S]) emitNodeStart(threadID, nodeID string, step int) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{RunID: threadID, Step: step, NodeID: nodeID, Msg: "node_start"})
}

func (e *Engine[S]) emitNodeEnd(threadID, nodeID string, step int, delta S) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{RunID: threadID, Step: step, NodeID: nodeID, Msg: "node_end"})
}

func (e *Engine[S]) emitError(threadID, nodeID string, step int, err error) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID: threadID, Step: step, NodeID: nodeID, Msg: "node_error",
		Meta: map[string]interface{}{"error": err.Error()},
	})
}

func (e *Engine[S]) emitRoutingDecision(threadID, nodeID string, step int, meta map[string]interface{}) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{RunID: threadID, Step: step, NodeID: nodeID, Msg: "routing_decision", Meta: meta})
}

// toStoreCheckpoint adapts a brain.Checkpoint to the store package's
// CheckpointV2 wire shape (kept distinct so the store package has no
// import-cycle dependency back on brain).
func toStoreCheckpoint[S any](cp Checkpoint[S]) store.CheckpointV2[S] {
	return store.CheckpointV2[S]{
		ThreadID:       cp.ThreadID,
		StepID:         cp.StepID,
		NodeID:         cp.NodeID,
		NextNode:       cp.NextNode,
		State:          cp.State,
		IdempotencyKey: cp.IdempotencyKey,
		Timestamp:      cp.Timestamp,
		Label:          cp.Label,
	}
}

// FromStoreCheckpoint adapts a store.CheckpointV2 back to a brain.Checkpoint,
// for use by hosts that load the latest checkpoint before resuming (R5).
func FromStoreCheckpoint[S any](cp store.CheckpointV2[S]) Checkpoint[S] {
	return Checkpoint[S]{
		ThreadID:       cp.ThreadID,
		StepID:         cp.StepID,
		NodeID:         cp.NodeID,
		NextNode:       cp.NextNode,
		State:          cp.State,
		IdempotencyKey: cp.IdempotencyKey,
		Timestamp:      cp.Timestamp,
		Label:          cp.Label,
	}
}

// EngineError is a structured engine-level error (bad graph wiring,
// max-step overrun, store failures) distinct from NodeError.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	return e.Message
}
