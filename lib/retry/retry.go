// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry provides a bounded retry policy for transient
// failures against external services (homeserver login, room sends).
//
// A Policy is an explicit value — max attempts plus a backoff
// function — passed to the operations that need it, instead of ad hoc
// sleep loops at every call site. Time flows through an injected
// clock so tests drive the backoff deterministically.
package retry

import (
	"context"
	"time"

	"github.com/askrelay/askrelay/lib/clock"
)

// BackoffFunc returns the delay to wait before the given attempt
// (2-based: it is consulted after attempt-1 failed). The failed
// attempt's error is provided so policies can wait differently per
// error class. A non-positive duration means retry immediately.
type BackoffFunc func(attempt int, err error) time.Duration

// Exponential returns a BackoffFunc that doubles the base delay for
// each failed attempt: base, 2*base, 4*base, ...
func Exponential(base time.Duration) BackoffFunc {
	return func(attempt int, _ error) time.Duration {
		return base << (attempt - 2)
	}
}

// Fixed returns a BackoffFunc that always waits d.
func Fixed(d time.Duration) BackoffFunc {
	return func(int, error) time.Duration { return d }
}

// Policy bounds the retry behavior for one class of operation.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Backoff computes the wait before each retry. Nil means no wait.
	Backoff BackoffFunc

	// Retryable reports whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool

	// OnRetry, when non-nil, runs before each retry with the attempt
	// number about to start and the error that triggered it. Used for
	// remediation steps between attempts (e.g., refreshing device
	// trust before resending).
	OnRetry func(ctx context.Context, attempt int, err error)
}

// Do runs operation up to MaxAttempts times, waiting per the backoff
// function between attempts. It stops early when the operation
// succeeds, the error is not retryable, or ctx is cancelled. The last
// error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, clk clock.Clock, operation func(ctx context.Context) error) error {
	var lastError error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			if p.OnRetry != nil {
				p.OnRetry(ctx, attempt, lastError)
			}
			if p.Backoff != nil {
				if delay := p.Backoff(attempt, lastError); delay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-clk.After(delay):
					}
				}
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastError = err

		if ctx.Err() != nil {
			return lastError
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return lastError
		}
	}
	return lastError
}
