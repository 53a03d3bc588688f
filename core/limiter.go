package core

import "fmt"

// AttemptLimiter bounds the number of embed-creation attempts one fallback
// chain may issue. It keeps the worst-case latency of a target at the
// readiness timeout plus max attempt timeouts.
//
// A limiter belongs to a single chain and is not safe for concurrent use.
type AttemptLimiter struct {
	max   int
	count int
}

// NewAttemptLimiter creates a limiter. If max == 0, unlimited attempts are allowed.
func NewAttemptLimiter(max int) *AttemptLimiter {
	return &AttemptLimiter{max: max}
}

// Increment records an attempt and returns an error once the budget is spent.
func (l *AttemptLimiter) Increment() error {
	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: max %d", ErrAttemptBudgetExceeded, l.max)
	}
	return nil
}
