package brain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoProgress names the case where no next node can be determined (no
// explicit Route and no matching edge). The engine itself reports that case
// as an *EngineError with Code "NO_ROUTE", not as this sentinel.
var ErrNoProgress = errors.New("no progress: no route from node")

// ErrIdempotencyViolation names a checkpoint commit that reuses an
// idempotency key already recorded by a store. No engine or store code in
// this module returns it.
var ErrIdempotencyViolation = errors.New("idempotency violation: checkpoint already committed")

// Checkpoint is the durable snapshot the engine writes when a node
// suspends the run (R5); every completed node is also recorded through
// Store.SaveStep. Keyed by (ThreadID, StepID); storage is pluggable
// (store.Store[S]).
//
// Unlike a general-purpose replay system, this checkpoint carries no
// recorded I/O or RNG seed: replay safety for the robot brain comes
// entirely from R6's deterministic idempotency keys (§9 "Side effects"),
// not from engine-level I/O hash comparison.
type Checkpoint[S any] struct {
	// ThreadID identifies the logical conversation/task session.
	ThreadID string `json:"thread_id"`

	// StepID is the step number at checkpoint time, monotonic within a thread.
	StepID int `json:"step_id"`

	// NodeID is the node that just ran (the checkpoint reflects the state
	// *after* this node ran).
	NodeID string `json:"node_id"`

	// NextNode is where RunWithCheckpoint resumes. For a suspension it is
	// the suspending node itself, which runs again on resume.
	NextNode string `json:"next_node,omitempty"`

	// State is the accumulated state after NodeID ran.
	State S `json:"state"`

	// IdempotencyKey guards against committing the same checkpoint twice.
	IdempotencyKey string `json:"idempotency_key"`

	Timestamp time.Time `json:"timestamp"`

	// Label names a suspended checkpoint: "suspended:" followed by the
	// suspending node's id.
	Label string `json:"label,omitempty"`
}

// computeIdempotencyKey derives a deterministic key from (threadID, stepID,
// state), so retrying the exact same step after a crash produces the same
// key and the store can detect and reject the duplicate commit.
func computeIdempotencyKey[S any](threadID string, stepID int, state S) (string, error) {
	h := sha256.New()
	h.Write([]byte(threadID))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(stepID))
	h.Write(stepBytes)

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
