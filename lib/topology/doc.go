// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package topology builds the process graphs of a loss analysis from
// its settings.
//
// [Partition] builds the graph of one event partition. It is declared
// in the order a hand-written pipeline script launches things:
// consumers first, then the producer chain that feeds them.
//
//  1. For every enabled peril in reverse stream order (ri, il, gul), a
//     summary section: one output tool per requested output reading its
//     own FIFO, a tee fanning the summary stream out to those FIFOs and
//     to the aalcalc/leccalc binaries, a tee for the summary index
//     stream, and summarycalc reading the peril's stream FIFO.
//  2. The same sections for the fully correlated variant.
//  3. The producer chain: eve | getmodel | gulcalc, then one fmcalc pass
//     per further peril. A stream whose output is requested and that
//     feeds a further pass is split with a tee; the last stream is
//     written straight to its FIFO.
//  4. The fully correlated chain, starting from the FIFO gulcalc writes
//     its -j side output to.
//
// [Finalize] builds the graph that runs once all partitions are done:
// kat concatenation of per-partition outputs, aalcalc and leccalc.
package topology
