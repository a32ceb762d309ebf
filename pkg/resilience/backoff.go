// Package resilience holds retry pacing helpers.
package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration // Initial delay (e.g., 25ms)
	MaxDelay   time.Duration // Maximum delay
	Multiplier float64       // Exponential multiplier (typically 2.0)
	Jitter     float64       // Jitter factor (0.0-1.0, typically 0.1 for ±10%)
}

// LockBackoff paces polling for a contended transaction lock. Holders finish in
// a gateway round-trip at most, so the delay stays short.
//
// Sequence with defaults (±20% jitter): ~25ms, ~50ms, ~100ms, ~200ms, then ~250ms (capped)
func LockBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  25 * time.Millisecond,
		MaxDelay:   250 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// NextDelay calculates the delay for the given attempt number (0-indexed).
// The result is BaseDelay * Multiplier^attempt ± jitter, capped at MaxDelay.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	// Random value in [-jitterAmount, +jitterAmount]
	jitterAmount := delay * eb.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterAmount

	finalDelay := time.Duration(delay + jitter)
	if finalDelay < 0 {
		finalDelay = eb.BaseDelay
	}
	return finalDelay
}
