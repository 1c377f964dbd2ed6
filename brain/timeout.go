package brain

import (
	"context"
	"math/rand"
	"time"
)

// nodeTimeout resolves the timeout for nodeID by precedence: per-node
// NodePolicy.Timeout override, then the engine-wide default, then 0
// (unlimited).
func (e *Engine[S]) nodeTimeout(nodeID string) time.Duration {
	e.mu.RLock()
	policy := e.nodePolicies[nodeID]
	e.mu.RUnlock()

	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	return e.opts.DefaultNodeTimeout
}

// runNodeWithRetry executes node under nodeID's timeout, retrying transient
// errors per its RetryPolicy (if any). R2's oracle calls and R6's
// dispatch/cancel calls are the only nodes expected to carry a RetryPolicy;
// every other node either cannot fail transiently or must not be retried
// (a retried side effect without an idempotency key would double-commit).
func (e *Engine[S]) runNodeWithRetry(ctx context.Context, nodeID string, node Node[S], state S) NodeResult[S] {
	e.mu.RLock()
	policy := e.nodePolicies[nodeID]
	e.mu.RUnlock()

	timeout := e.nodeTimeout(nodeID)

	run := func() NodeResult[S] {
		nodeCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result := node.Run(nodeCtx, state)
		if cancel != nil {
			cancel()
		}
		return result
	}

	if policy == nil || policy.RetryPolicy == nil {
		return run()
	}

	rp := policy.RetryPolicy
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- retry jitter, not security sensitive

	var result NodeResult[S]
	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		result = run()
		if result.Err == nil {
			return result
		}
		if rp.Retryable == nil || !rp.Retryable(result.Err) {
			return result
		}
		if attempt == rp.MaxAttempts-1 {
			return result
		}

		delay := computeBackoff(attempt, rp.BaseDelay, rp.MaxDelay, rng)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}
	return result
}
