// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout owns the run directory: the names of every FIFO, work
// file and output a pipeline touches, and the filesystem reset that
// precedes a partition run.
//
// Names encode topology. A stream FIFO is fifo/<peril>_P<n>, a summary
// stream is fifo/<peril>_S<s>_summary_P<n>, per-partition outputs land
// in work/kat/, and aalcalc/leccalc binaries in
// work/<peril>_S<s>_summary{aalcalc,leccalc}/P<n>.bin. The fully
// correlated variant lives under a full_correlation/ subdirectory of
// fifo/, work/ and output/.
//
// [Layout.Prepare] resets only what belongs to one partition, so that
// partitions of the same run can be prepared and run concurrently. It
// is idempotent: preparing twice leaves the same directory state.
package layout
