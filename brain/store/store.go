// Package store provides persistence for the robot brain's checkpointed
// graph state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/corebrain/robobrain/brain/emit"
)

// ErrNotFound is returned when a requested thread id or checkpoint does
// not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for decision-core state and checkpoints.
//
// Implementations can use in-memory maps (testing, see memory.go), a
// single JSON file per thread (field deployments, see file.go), or
// SQLite (multi-thread fleets, see sqlite.go).
//
// Type parameter S is the state type to persist (robot.BrainState in
// practice).
type Store[S any] interface {
	// SaveStep persists the state after a node execution step, identified
	// by threadID + step number.
	SaveStep(ctx context.Context, threadID string, step int, nodeID string, state S) error

	// LoadLatest retrieves the most recently saved state for threadID, used
	// to resume execution after a process restart.
	LoadLatest(ctx context.Context, threadID string) (state S, step int, err error)

	// SaveCheckpoint creates a named snapshot of state, independent of the
	// step-by-step history. Used for operator-labeled save points.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a named checkpoint by cpID.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)

	// SaveCheckpointV2 persists a full resume checkpoint (thread id, step,
	// node, next node, state, idempotency key). This is what R5's
	// suspend/resume protocol uses: Human_Approval suspends the graph,
	// the engine saves a CheckpointV2, and the host later resumes from it.
	//
	// Returns an error if the idempotency key has already been committed
	// (duplicate commit prevention).
	SaveCheckpointV2(ctx context.Context, checkpoint CheckpointV2[S]) error

	// LoadCheckpointV2 retrieves a checkpoint by thread id and step id.
	LoadCheckpointV2(ctx context.Context, threadID string, stepID int) (CheckpointV2[S], error)

	// LoadLatestCheckpointV2 retrieves the most recent checkpoint for a
	// thread, used by a host to find the latest suspend point to resume
	// from without tracking step numbers itself.
	LoadLatestCheckpointV2(ctx context.Context, threadID string) (CheckpointV2[S], error)

	// CheckIdempotency reports whether an idempotency key has already been
	// used, preventing duplicate dispatch/cancel calls on retry (R6).
	CheckIdempotency(ctx context.Context, key string) (bool, error)

	// PendingEvents retrieves events from the transactional outbox that
	// have not yet been emitted to telemetry, up to limit.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)

	// MarkEventsEmitted marks events as successfully emitted so
	// PendingEvents will not return them again.
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error
}

// StepRecord is a single execution step in a thread's history.
type StepRecord[S any] struct {
	Step   int
	NodeID string
	State  S
}

// Checkpoint is a named snapshot of state, independent of step history.
type Checkpoint[S any] struct {
	ID    string
	State S
	Step  int
}

// CheckpointV2 is the resume checkpoint written whenever a node suspends
// the graph (R5 awaiting human approval) or the host otherwise wants a
// durable resume point. It deliberately carries no RNG seed or recorded
// I/O: replay safety for the robot brain comes from R6's deterministic
// idempotency keys, not from engine-level I/O hash comparison.
type CheckpointV2[S any] struct {
	// ThreadID identifies the logical conversation/task session this
	// checkpoint belongs to.
	ThreadID string `json:"thread_id"`

	// StepID is the step number at checkpoint time, monotonic within a thread.
	StepID int `json:"step_id"`

	// NodeID is the node that just completed (the checkpoint reflects the
	// state after this node ran).
	NodeID string `json:"node_id"`

	// NextNode is where execution resumes, empty if the run already
	// finished terminally.
	NextNode string `json:"next_node,omitempty"`

	// State is the accumulated state after NodeID ran.
	State S `json:"state"`

	// IdempotencyKey guards against committing the same checkpoint twice.
	IdempotencyKey string `json:"idempotency_key"`

	Timestamp time.Time `json:"timestamp"`

	// Label names a suspended checkpoint, e.g. "suspended:human_approval".
	Label string `json:"label,omitempty"`
}
