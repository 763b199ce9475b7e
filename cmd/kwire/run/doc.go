// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package run implements "kwire run" and "kwire finalize": building a
// graph, preparing the run directory, supervising every process, and
// recording the outcome in the result log, the run state and the
// optional metrics textfile.
//
// A failed run prints its summary and returns a [cli.ExitError]
// carrying the first failing process's exit code, so the batch
// scheduler sees the same status the shell pipeline would report.
package run
