// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package ktools

import "fmt"

// External program names.
const (
	Eve              = "eve"
	Getmodel         = "getmodel"
	Gulcalc          = "gulcalc"
	Fmcalc           = "fmcalc"
	Summarycalc      = "summarycalc"
	Eltcalc          = "eltcalc"
	SummarycalcToCSV = "summarycalctocsv"
	Pltcalc          = "pltcalc"
	Aalcalc          = "aalcalc"
	Leccalc          = "leccalc"
	Kat              = "kat"
	Tee              = "tee"
)

// Peril identifies a loss stream: ground-up, insured or reinsurance.
// The name is also the prefix of every FIFO and work file that carries
// the stream.
type Peril string

const (
	// GUL is the ground-up loss stream produced by gulcalc.
	GUL Peril = "gul"
	// IL is the insured loss stream produced by fmcalc over GUL.
	IL Peril = "il"
	// RI is the reinsurance loss stream produced by a second fmcalc
	// pass over IL.
	RI Peril = "ri"
)

// Perils lists every peril in stream order: each one is computed from
// the previous.
var Perils = []Peril{GUL, IL, RI}

// Description returns the phrase used in section headings, e.g.
// "ground up loss".
func (p Peril) Description() string {
	switch p {
	case GUL:
		return "ground up loss"
	case IL:
		return "insured loss"
	case RI:
		return "reinsurance loss"
	default:
		return string(p)
	}
}

// ParsePeril parses a peril name.
func ParsePeril(name string) (Peril, error) {
	switch Peril(name) {
	case GUL, IL, RI:
		return Peril(name), nil
	default:
		return "", fmt.Errorf("unknown peril %q (want gul, il or ri)", name)
	}
}

// Output is a per-partition summary output computed from a summary
// stream. The name is part of the FIFO and work file names.
type Output string

const (
	// EventLossTable is the eltcalc output.
	EventLossTable Output = "eltcalc"
	// SummaryTable is the summarycalctocsv output.
	SummaryTable Output = "summarycalc"
	// PeriodLossTable is the pltcalc output.
	PeriodLossTable Output = "pltcalc"
)

// Outputs lists the per-partition outputs in the order their consumers
// are launched.
var Outputs = []Output{EventLossTable, SummaryTable, PeriodLossTable}

// Tool returns the program that computes the output.
func (o Output) Tool() string {
	switch o {
	case EventLossTable:
		return Eltcalc
	case SummaryTable:
		return SummarycalcToCSV
	case PeriodLossTable:
		return Pltcalc
	default:
		return string(o)
	}
}
