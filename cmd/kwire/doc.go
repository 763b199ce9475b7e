// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Kwire runs the ktools loss pipeline of a catastrophe model analysis.
// It builds the process graph of each event partition from the
// analysis settings, starts and supervises the processes connected by
// named pipes, and combines the partitions' work files into the final
// reports (run, finalize). It also renders the graph as a POSIX script
// (script), explains it (plan), checks an analysis before it runs
// (validate) and reports recorded runs (status).
package main
