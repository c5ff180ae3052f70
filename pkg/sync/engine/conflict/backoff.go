package conflict

import (
	"math"
	"time"

	"github.com/syncline/syncline/pkg/sync/core/config"
)

// BackoffPolicy computes the exponential delay applied between conflict
// auto-retry attempts.
type BackoffPolicy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// Multiplier grows the delay per attempt.
	Multiplier float64
	// MaxAttempts is the retry ceiling per conflict.
	MaxAttempts int
}

// NewBackoffPolicy builds a BackoffPolicy from the engine configuration,
// falling back to the defaults (1s initial, x2, 3 attempts) for zero values.
func NewBackoffPolicy(cfg config.ConflictRetryConfig) BackoffPolicy {
	p := BackoffPolicy{
		InitialInterval: time.Duration(cfg.InitialIntervalMs) * time.Millisecond,
		Multiplier:      cfg.Multiplier,
		MaxAttempts:     cfg.MaxAttempts,
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	return p
}

// DelayFor returns the backoff delay for a 0-based attempt number:
// initial * multiplier^attempt.
func (p BackoffPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt)))
}

// Exhausted reports whether the attempt count has reached the ceiling.
func (p BackoffPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxAttempts
}
