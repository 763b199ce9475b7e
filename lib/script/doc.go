// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package script renders a process graph as a bash script.
//
// The script does what kwire run does, minus supervision: it resets
// the graph's files, creates its FIFOs, launches every node in the
// background in launch order (anonymous pipes become | chains), and
// waits on each PID, exiting with the first non-zero status. It is
// meant for inspection and for hosts where kwire itself cannot run.
package script
