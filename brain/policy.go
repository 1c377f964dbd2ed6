package brain

import (
	"math/rand"
	"time"
)

// NodePolicy configures timeout and retry behavior for one node. If nil,
// Options.DefaultNodeTimeout applies and no retries are attempted.
type NodePolicy struct {
	// Timeout overrides Options.DefaultNodeTimeout for this node.
	Timeout time.Duration

	// RetryPolicy governs automatic retry of transient node errors. Wire
	// sets one on R2 (oracle calls) and R6 (dispatch/cancel/speak calls)
	// only; K2 and the K6 handlers also call adapters but are not retried.
	RetryPolicy *RetryPolicy

	// IdempotencyKeyFunc derives a custom idempotency key from the state.
	// No node registration in this module sets it: R6 derives its
	// operation keys itself, from react.iter, op index and skill name.
	IdempotencyKeyFunc func(state any) string
}

// RetryPolicy configures exponential backoff with jitter for a node's
// transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total attempt count including the first try. Must
	// be >= 1.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether a given error should be retried. If nil,
	// no error is considered retryable.
	Retryable func(error) bool
}

// Validate checks RetryPolicy invariants.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// SideEffectPolicy declares whether a node requires an idempotency key to
// make its external calls safe to replay. The engine does not read it and
// no node registration in this module sets it; R6 and the K6 SAFE/CHARGE
// handlers pass their own keys to the executor.
type SideEffectPolicy struct {
	RequiresIdempotency bool
}

// computeBackoff returns the delay before the next retry attempt, using
// exponential backoff with jitter: min(base*2^attempt, maxDelay) + jitter.
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry jitter, not security sensitive
		}
	}

	return delay + jitter
}
