package xrplsale

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"
)

// RetryPolicy decides which failures are retried and how long to wait between attempts.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     Jitter
	// RetryableStatuses are retried in addition to 429 and 5xx.
	RetryableStatuses []int

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(state RetryState, wait time.Duration)

	sleep func(context.Context, time.Duration) error
}

// RetryState describes an operation between attempts.
type RetryState struct {
	// Attempt is the zero-based index of the attempt that just failed.
	Attempt int
	// Elapsed is the total backoff waited so far.
	Elapsed time.Duration
	LastErr error
}

// newRetryPolicy derives the policy from a Config that already has defaults applied.
func newRetryPolicy(cfg Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.RetryBaseDelay,
		MaxDelay:          cfg.RetryMaxDelay,
		Jitter:            cfg.Jitter,
		RetryableStatuses: cfg.RetryableStatuses,
	}
}

// Do calls op until it succeeds, fails with a non-retryable error, or MaxRetries retries
// have been spent. In the last case the final error is wrapped in *RetriesExhaustedError.
// Cancelling ctx aborts a pending backoff and returns the context error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var state RetryState

	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		state.LastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !p.Retryable(err) {
			return err
		}
		if state.Attempt >= p.MaxRetries {
			return &RetriesExhaustedError{Attempts: state.Attempt + 1, Err: err}
		}

		wait := p.Backoff(state.Attempt)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}

		if p.OnRetry != nil {
			p.OnRetry(state, wait)
		}

		if err := p.wait(ctx, wait); err != nil {
			return err
		}

		state.Elapsed += wait
		state.Attempt++
	}
}

// Retryable reports whether err is a transient failure.
func (p RetryPolicy) Retryable(err error) bool {
	if errors.Is(err, ErrRetriesExhausted) {
		return false
	}
	if errors.Is(err, ErrNetwork) {
		return true
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= 500:
		return true
	default:
		return slices.Contains(p.RetryableStatuses, apiErr.StatusCode)
	}
}

// Backoff returns the wait after the given zero-based attempt: BaseDelay*2^attempt capped at
// MaxDelay, then jittered.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = defaultRetryMaxDelay
	}

	backoff := base
	for range attempt {
		if backoff >= limit/2 {
			backoff = limit
			break
		}
		backoff *= 2
	}
	backoff = min(backoff, limit)

	switch p.Jitter {
	case JitterFull:
		return rand.N(backoff + 1)
	case JitterEqual:
		half := backoff / 2
		return half + rand.N(backoff-half+1)
	default:
		return backoff
	}
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
