// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The supervisor, result log and run state take a [Clock] instead of
// calling the time package, so that timestamps and durations are
// deterministic under test. [Real] is the standard library; [Fake]
// stands still until [FakeClock.Advance] is called.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	state := runstate.New(dir, c)
//	c.Advance(5 * time.Second)
package clock
