package brain

import "errors"

// ErrMaxStepsExceeded names a run that went past its configured step
// ceiling without reaching a terminal node. For the robot brain this is a
// backstop distinct from R8's own MAX_ITER exit (react.stop_reason =
// "iter_cap"); it guards against a misconfigured graph wiring bug rather
// than a normal ReAct loop exit. The engine reports the overrun as an
// *EngineError with Code "MAX_STEPS_EXCEEDED", not as this sentinel.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrInvalidRetryPolicy indicates a NodePolicy.RetryPolicy is misconfigured.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// Sentinel errors for checkpoint and replay-safety handling live in
// checkpoint.go: ErrNoProgress, ErrIdempotencyViolation.
