// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now() = %v, want %v", c.Now(), epoch)
	}
	c.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestFakeAfterFunc(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "second") })
	c.AfterFunc(time.Second, func() { order = append(order, "first") })
	stopped := c.AfterFunc(time.Second, func() { order = append(order, "stopped") })

	if !stopped.Stop() {
		t.Error("Stop() = false on a pending timer")
	}
	if stopped.Stop() {
		t.Error("second Stop() = true")
	}

	c.Advance(500 * time.Millisecond)
	if len(order) != 0 {
		t.Fatalf("fired early: %v", order)
	}
	c.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("fired %v, want [first second]", order)
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", c.PendingCount())
	}
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	var fired atomic.Bool
	timer := c.AfterFunc(0, func() { fired.Store(true) })
	if !fired.Load() {
		t.Error("zero-duration AfterFunc did not run synchronously")
	}
	if timer.Stop() {
		t.Error("Stop() = true on a timer that already ran")
	}
}

func TestFakeTicker(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(time.Second)
	select {
	case tick := <-ticker.C:
		if !tick.Equal(epoch.Add(time.Second)) {
			t.Errorf("tick = %v", tick)
		}
	default:
		t.Fatal("no tick after one interval")
	}

	// Three intervals, buffer of one: one tick delivered.
	c.Advance(3 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Error("ticker delivered more than its buffer")
	default:
	}

	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Error("tick after Stop")
	default:
	}
}

func TestWaitForTimers(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		fired := make(chan struct{})
		c.AfterFunc(time.Minute, func() { close(fired) })
		<-fired
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)
	<-done
}

func TestReal(t *testing.T) {
	t.Parallel()

	c := Real()
	before := time.Now()
	if c.Now().Before(before) {
		t.Error("Real().Now() is before time.Now()")
	}
	fired := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(fired) })
	<-fired

	ticker := c.NewTicker(time.Millisecond)
	<-ticker.C
	ticker.Stop()
}
