// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package ktools catalogues the external ktools binaries that a loss
// pipeline is wired from, and builds their command lines.
//
// kwire never looks inside the byte streams these tools exchange. From
// its point of view each tool is a process that reads a stream on stdin
// (or on a named pipe passed as an argument) and writes a stream on
// stdout (or on named pipes passed as arguments). This package owns the
// fixed argument conventions:
//
//   - [EveArgs]: event partitioning with a shuffle rule.
//   - [GulcalcOptions.Args]: ground-up loss sampling, with the optional
//     full-correlation side output (-j).
//   - [FmcalcArgs] and [ReinsuranceArgs]: financial module passes.
//   - [SummarycalcOptions.Args]: summary-set fan-out to named pipes.
//   - [OutputArgs]: eltcalc / summarycalctocsv / pltcalc, with headers
//     written only by the first partition.
//   - [KatArgs], [AalcalcArgs], [LeccalcArgs]: post-partition
//     aggregation.
//
// The defaults in defaults.go mirror the ktools runtime defaults of the
// Oasis platform (allocation rules, eve shuffle rule, error guard).
package ktools
