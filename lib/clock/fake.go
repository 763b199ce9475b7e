// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock. It is safe for concurrent use.
// AfterFunc callbacks run synchronously inside Advance; they must not
// call Advance themselves.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
	changed *sync.Cond
}

type waiter struct {
	deadline time.Time
	callback func()
	channel  chan time.Time
	interval time.Duration
	stopped  bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	w := c.register(&waiter{callback: f}, d)
	return &Timer{stop: func() bool { return c.cancel(w) }}
}

// NewTicker returns a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	channel := make(chan time.Time, 1)
	w := c.register(&waiter{channel: channel, interval: d}, d)
	return &Ticker{C: channel, stop: func() { c.cancel(w) }}
}

func (c *FakeClock) register(w *waiter, d time.Duration) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w.deadline = c.current.Add(d)
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
	return w
}

func (c *FakeClock) cancel(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := slices.Index(c.waiters, w)
	if index < 0 || w.stopped {
		return false
	}
	w.stopped = true
	c.waiters = slices.Delete(c.waiters, index, index+1)
	return true
}

// Advance moves the clock forward by d and fires every timer and
// ticker whose deadline has passed, in deadline order. A ticker fires
// once per elapsed interval; ticks beyond its buffer are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		due := c.expired(target)
		if due == nil {
			return
		}
		if due.callback != nil {
			due.callback()
			continue
		}
		select {
		case due.channel <- target:
		default:
		}
	}
}

// expired pops the earliest waiter due at target, rescheduling
// tickers. Returns nil when nothing is due.
func (c *FakeClock) expired(target time.Time) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	earliest := -1
	for index, w := range c.waiters {
		if w.deadline.After(target) {
			continue
		}
		if earliest < 0 || w.deadline.Before(c.waiters[earliest].deadline) {
			earliest = index
		}
	}
	if earliest < 0 {
		return nil
	}

	w := c.waiters[earliest]
	if w.interval > 0 {
		w.deadline = w.deadline.Add(w.interval)
	} else {
		w.stopped = true
		c.waiters = slices.Delete(c.waiters, earliest, earliest+1)
	}
	return w
}

// WaitForTimers blocks until at least n timers or tickers are pending,
// closing the race between a goroutine registering a timer and the
// test advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
