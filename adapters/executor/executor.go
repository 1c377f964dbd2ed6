// Package executor adapts the skill execution contract (§6): dispatch,
// cancel, poll, and speak operations against the external skill runtime
// (navigation stack, base stop, speech output).
package executor

import "context"

// PollStatus is the outcome of a Poll call.
type PollStatus string

const (
	PollRunning PollStatus = "RUNNING"
	PollDone    PollStatus = "DONE"
)

// PollResult is what Poll returns for one goal id.
type PollResult struct {
	Status    PollStatus
	Feedback  map[string]any
	Result    map[string]any
	ErrorCode string
	ErrorMsg  string
	Success   bool
}

// Executor is the four-operation skill executor contract R6 drives.
//
// Dispatch and Speak take an idempotencyKey; implementations must store
// the set of keys already seen and no-op (return the prior result without
// re-invoking the side effect) on a duplicate, since R6's replay safety
// depends entirely on this deduplication (§5, §9).
type Executor interface {
	// Dispatch invokes skillName with params, returning an allocated goal
	// id. A repeated idempotencyKey returns the goal id from the original
	// call without dispatching again.
	Dispatch(ctx context.Context, skillName string, params map[string]any, idempotencyKey string) (goalID string, err error)

	// Cancel requests termination of a running goal.
	Cancel(ctx context.Context, goalID string) error

	// Poll returns the current status of a goal.
	Poll(ctx context.Context, goalID string) (PollResult, error)

	// Speak invokes the speech skill. A repeated idempotencyKey is a no-op.
	Speak(ctx context.Context, text string, idempotencyKey string) error
}
