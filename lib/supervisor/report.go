// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout is the cancellation cause when Options.Timeout expires.
var ErrTimeout = errors.New("run timed out")

// State is the outcome of one node.
type State string

const (
	// StateOK means the node exited zero.
	StateOK State = "ok"
	// StateFailed means the node exited non-zero, was killed by a
	// signal kwire did not send, or could not start.
	StateFailed State = "failed"
	// StateCancelled means the node was stopped because the run was
	// cancelled.
	StateCancelled State = "cancelled"
)

// NodeStatus is the outcome of one node.
type NodeStatus struct {
	ID      string `json:"id"`
	Program string `json:"program,omitempty"`
	PID     int    `json:"pid,omitempty"`
	State   State  `json:"state"`

	// ExitCode is the process exit code, or 128+n when killed by
	// signal n. Zero for in-process tees unless they failed.
	ExitCode int `json:"exit_code"`

	// Signal names the terminating signal, e.g. "SIGPIPE".
	Signal string `json:"signal,omitempty"`

	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a run.
type Report struct {
	Graph     string        `json:"graph"`
	Partition int           `json:"partition,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`

	// Nodes in graph declaration order.
	Nodes []NodeStatus `json:"nodes"`
}

// Failed returns the nodes in StateFailed, in declaration order.
func (r *Report) Failed() []NodeStatus {
	var failed []NodeStatus
	for _, node := range r.Nodes {
		if node.State == StateFailed {
			failed = append(failed, node)
		}
	}
	return failed
}

// Count returns the number of nodes in the given state.
func (r *Report) Count(state State) int {
	count := 0
	for _, node := range r.Nodes {
		if node.State == state {
			count++
		}
	}
	return count
}

// RunError reports a run that did not complete cleanly.
type RunError struct {
	// Failures in the order the nodes finished. The first entry is
	// the node that triggered the error guard.
	Failures []NodeStatus

	// Cause is why the run context was cancelled, if it was: a
	// parent cancellation or ErrTimeout.
	Cause error
}

func (e *RunError) Error() string {
	if len(e.Failures) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("run interrupted: %v", e.Cause)
		}
		return "run failed"
	}

	first := e.Failures[0]
	var message strings.Builder
	fmt.Fprintf(&message, "%s failed", first.ID)
	switch {
	case first.Signal != "":
		fmt.Fprintf(&message, " (%s)", first.Signal)
	case first.Error != "":
		fmt.Fprintf(&message, ": %s", first.Error)
	}
	if len(e.Failures) > 1 {
		fmt.Fprintf(&message, " and %d more node(s) failed", len(e.Failures)-1)
	}
	return message.String()
}

func (e *RunError) Unwrap() error { return e.Cause }

// ExitCode returns the exit code a CLI should use: that of the first
// failed node (1 when it has none), otherwise 124 for a timeout and
// 130 for an interrupt.
func (e *RunError) ExitCode() int {
	if len(e.Failures) > 0 {
		if code := e.Failures[0].ExitCode; code > 0 {
			return code
		}
		return 1
	}
	if errors.Is(e.Cause, ErrTimeout) {
		return 124
	}
	return 130
}
