// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. All timer, ticker, and sleep
// operations register pending waiters that fire when the clock
// advances past their deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called. Timers, tickers, and sleeps block until the
// clock is advanced past their deadline.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

// fakeWaiter represents a pending timer, ticker, or sleep operation.
type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time

	// interval is non-zero for ticker waiters. After firing, the
	// waiter is rescheduled at deadline + interval.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives after duration d elapses. If
// d <= 0, the channel receives immediately without registering a
// waiter.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}

	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.waitersChanged.Broadcast()
	return channel
}

// NewTicker returns a Ticker that delivers ticks at the specified
// interval of fake time. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Sleep blocks until the clock advances past the deadline. If d <= 0,
// Sleep returns immediately.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the fake time forward by d, firing every waiter whose
// deadline falls within the advanced window in deadline order. Ticker
// waiters are rescheduled; one-shot waiters fire once.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.current.Add(d)
	for {
		next := c.earliestWaiterLocked(target)
		if next == nil {
			break
		}
		c.current = next.deadline
		if next.interval > 0 {
			next.deadline = next.deadline.Add(next.interval)
		} else {
			next.fired = true
		}
		// Non-blocking send, matching time.Ticker semantics: a slow
		// consumer drops ticks rather than blocking Advance.
		select {
		case next.channel <- c.current:
		default:
		}
	}
	c.current = target
	c.compactWaitersLocked()
}

// WaitForWaiters blocks until at least n active waiters are
// registered. Use before Advance to avoid racing a goroutine that has
// not yet reached its Sleep/After call.
func (c *FakeClock) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeWaitersLocked() < n {
		c.waitersChanged.Wait()
	}
}

// earliestWaiterLocked returns the unfired waiter with the earliest
// deadline at or before target, or nil when none remain in the window.
func (c *FakeClock) earliestWaiterLocked(target time.Time) *fakeWaiter {
	var earliest *fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.stopped || waiter.fired {
			continue
		}
		if waiter.deadline.After(target) {
			continue
		}
		if earliest == nil || waiter.deadline.Before(earliest.deadline) {
			earliest = waiter
		}
	}
	return earliest
}

func (c *FakeClock) activeWaitersLocked() int {
	count := 0
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			count++
		}
	}
	return count
}

// compactWaitersLocked drops fired and stopped waiters, keeping the
// remainder sorted by deadline for deterministic iteration.
func (c *FakeClock) compactWaitersLocked() {
	kept := c.waiters[:0]
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			kept = append(kept, waiter)
		}
	}
	c.waiters = kept
	sort.Slice(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
}
