// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package result records the outcome of a run.
//
// [Log] writes one JSON object per line as the run progresses: a
// "start" line, a "node" line as each node finishes, and a closing
// "complete" or "failed" line. Each line is synced before the next is
// written, so a run killed part-way still leaves every finished node
// on disk and a reader can tail the file for progress.
//
// [WriteMetrics] writes the finished report in the Prometheus text
// exposition format, for the node exporter's textfile collector.
package result
