// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs a process graph and joins its exit statuses.
//
// [Run] takes a validated [graph.Graph] whose FIFOs already exist (see
// layout.Prepare) and starts one goroutine per node, in launch order.
// Each node opens its stdin and then its stdout endpoint exactly as a
// shell redirection would, so FIFO rendezvous blocks the same way the
// generated bash scripts did. Process nodes run in their own process
// group with stderr appended to a shared log. Tee nodes copy their
// input in-process, or run the system tee when configured to.
//
// Unlike a backgrounded shell pipeline, every node's outcome counts.
// When a node fails and the error guard is on, the run context is
// cancelled: each process group receives SIGTERM, then SIGKILL after
// the grace period, and FIFO opens whose counterpart will never arrive
// are released. Run returns a [*RunError] naming every failed node.
package supervisor
