// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(testEpoch)
	if !c.Now().Equal(testEpoch) {
		t.Errorf("unexpected initial time: %v", c.Now())
	}
	c.Advance(5 * time.Second)
	if !c.Now().Equal(testEpoch.Add(5 * time.Second)) {
		t.Errorf("unexpected time after advance: %v", c.Now())
	}
}

func TestFakeAfter(t *testing.T) {
	c := Fake(testEpoch)
	ch := c.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	c.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(testEpoch.Add(10 * time.Second)) {
			t.Errorf("unexpected fire time: %v", fired)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterImmediate(t *testing.T) {
	c := Fake(testEpoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	c.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	// A stopped ticker stays quiet.
	ticker.Stop()
	c.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeSleepWithWaiters(t *testing.T) {
	c := Fake(testEpoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}
