// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for
// testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a deterministic clock that advances only when
// Advance is called, so retry backoff and eviction sweeps can be
// exercised without real sleeps.
package clock

import "time"

// Clock abstracts time operations. Production code injects Real();
// tests inject Fake() with deterministic time control.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that delivers ticks on its C channel
	// at the specified interval. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Ticker wraps a periodic timer. Read ticks from C. Call Stop when the
// Ticker is no longer needed.
//
// The C channel has capacity 1, matching time.Ticker: if the consumer
// falls behind, ticks are dropped rather than queued.
type Ticker struct {
	// C delivers ticks. Buffered with capacity 1.
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No more ticks will be sent on C after
// Stop returns. Stop does not close C.
func (t *Ticker) Stop() { t.stopFunc() }
