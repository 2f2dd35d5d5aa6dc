// Package resilience holds the retry policy and circuit breaker shared by every
// stage that talks to an unreliable upstream (website fetches, LLM calls).
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is a retry policy value object. Each pipeline stage owns one and
// passes it to Do/DoVal; nothing else in the codebase loops on errors.
type Policy struct {
	// Name labels log lines, e.g. "fetch" or "extract".
	Name string

	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps any single delay.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt.
	Multiplier float64

	// Jitter is the +/- fraction of random spread applied to each delay.
	Jitter float64

	// AttemptTimeout bounds a single attempt. Zero leaves the caller's deadline in force.
	AttemptTimeout time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// NewPolicy returns a policy with exponential backoff defaults.
func NewPolicy(name string, maxAttempts int, base, maxDelay time.Duration) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
		Multiplier:  2.0,
		Jitter:      0.25,
	}
}

// WithAttemptTimeout returns a copy of p bounding each attempt by d.
func (p Policy) WithAttemptTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// WithRetryable returns a copy of p using fn as the retry predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget runs out, or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that produce a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalize()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := runAttempt(ctx, p, fn)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		} else {
			zap.L().Warn("retrying operation",
				zap.String("operation", p.Name),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", p.MaxAttempts),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(actx)
}

// Backoff returns the delay that follows the given zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalize()
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}
