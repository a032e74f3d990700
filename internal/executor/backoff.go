package executor

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds retries of transient collaborator failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay per retry.
	Multiplier float64
	// MaxDelay caps the delay.
	MaxDelay time.Duration
	// JitterFraction adds up to this fraction of the delay as random jitter.
	// Zero disables jitter, which tests rely on.
	JitterFraction float64
}

// DefaultRetryPolicy returns the default bounded backoff: 3 attempts,
// 2s base delay, doubling, with 25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		Multiplier:     2,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.25,
	}
}

// Delay returns the backoff delay after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		d += rand.Float64() * p.JitterFraction * d
	}
	return time.Duration(d)
}
