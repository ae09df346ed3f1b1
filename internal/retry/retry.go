// Package retry implements exponential backoff with jitter for calls whose
// failures are classified retryable.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// Policy describes the backoff schedule. Attempt n sleeps
// InitialDelay * Multiplier^(n-1), capped at MaxDelay, spread by ±Jitter.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// NewPolicy builds the schedule used for provider submissions.
func NewPolicy(maxAttempts int, initialDelay time.Duration) Policy {
	return Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     5 * time.Minute,
		Multiplier:   2.0,
		Jitter:       0.25,
	}
}

// Delay computes the backoff before the given 1-based retry attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter > 0 {
		spread := 1 + p.Jitter*(2*rand.Float64()-1)
		d *= spread
	}
	return time.Duration(d)
}

// Do runs fn up to MaxAttempts times. Only errors the taxonomy marks
// retryable are retried; the last error is returned once attempts are
// exhausted. A cancelled context interrupts the backoff sleep.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) || attempt >= p.MaxAttempts {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
