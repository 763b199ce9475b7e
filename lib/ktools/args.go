// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package ktools

import (
	"fmt"
	"strconv"
)

// EveArgs returns the eve arguments that select partition (1-based)
// out of total with the given shuffle rule.
func EveArgs(partition, total int, shuffle Shuffle) []string {
	var args []string
	if flag := shuffle.flag(); flag != "" {
		args = append(args, flag)
	}
	return append(args, strconv.Itoa(partition), strconv.Itoa(total))
}

// GulcalcOptions configures a gulcalc invocation.
type GulcalcOptions struct {
	// Samples is the number of Monte Carlo samples (-S).
	Samples int

	// Threshold is the ground-up loss threshold (-L). Losses below it
	// are dropped from the stream.
	Threshold float64

	// RandomFile reads random numbers from the model's random file
	// instead of generating them (-r).
	RandomFile bool

	// FullCorrelation is the FIFO that receives the fully correlated
	// side output (-j). Empty disables the side output.
	FullCorrelation string

	// Alloc is the allocation rule (-a).
	Alloc int

	// Legacy adds the legacy coverage stream (-c). It goes to Coverage,
	// or to stdout when Coverage is empty; the item stream (-i -) is
	// then only written when Coverage names a FIFO, for fmcalc.
	Legacy   bool
	Coverage string
}

// Args returns the gulcalc command line. The item stream, or the
// coverage stream when it is the only one, is written to stdout.
func (o GulcalcOptions) Args() []string {
	args := []string{
		"-S" + strconv.Itoa(o.Samples),
		"-L" + strconv.FormatFloat(o.Threshold, 'f', -1, 64),
	}
	if o.RandomFile {
		args = append(args, "-r")
	}
	if o.FullCorrelation != "" {
		args = append(args, "-j", o.FullCorrelation)
	}
	args = append(args, "-a"+strconv.Itoa(o.Alloc))
	if o.Legacy {
		if o.Coverage == "" {
			return append(args, "-c", "-")
		}
		args = append(args, "-c", o.Coverage)
	}
	return append(args, "-i", "-")
}

// FmcalcArgs returns the arguments of the insured loss fmcalc pass.
func FmcalcArgs(alloc int) []string {
	return []string{"-a" + strconv.Itoa(alloc)}
}

// ReinsuranceArgs returns the arguments of the reinsurance fmcalc pass
// reading the inputs of the given inuring priority.
func ReinsuranceArgs(alloc, inuring int) []string {
	return []string{"-a" + strconv.Itoa(alloc), "-n", "-p", ReinsuranceDir(inuring)}
}

// ReinsuranceDir is the input directory of an inuring priority,
// relative to the run directory.
func ReinsuranceDir(inuring int) string {
	return fmt.Sprintf("RI_%d", inuring)
}

// SummaryTarget is one summary set that summarycalc writes.
type SummaryTarget struct {
	// ID is the summary set id, 1 through 9.
	ID int

	// Path is the FIFO receiving the summary stream.
	Path string
}

// SummarycalcOptions configures a summarycalc run over one peril's
// stream.
type SummarycalcOptions struct {
	Peril Peril

	// Coverage reads the legacy GUL coverage stream (-g) instead of
	// the item stream (-i). Ignored for IL and RI, which are fm
	// streams (-f).
	Coverage bool

	// Indexed adds -m so that an .idx stream is written next to every
	// summary stream.
	Indexed bool

	// Inuring is the reinsurance inuring priority. Only used for RI.
	Inuring int

	Targets []SummaryTarget
}

// Args returns the summarycalc arguments.
func (o SummarycalcOptions) Args() []string {
	var args []string
	if o.Indexed {
		args = append(args, "-m")
	}
	switch {
	case o.Peril == GUL && o.Coverage:
		args = append(args, "-g")
	case o.Peril == GUL:
		args = append(args, "-i")
	default:
		args = append(args, "-f")
	}
	if o.Peril == RI {
		args = append(args, "-p", ReinsuranceDir(o.Inuring))
	}
	for _, target := range o.Targets {
		args = append(args, "-"+strconv.Itoa(target.ID), target.Path)
	}
	return args
}

// OutputArgs returns the arguments of an output tool. The header row is
// only written when header is true; partitions after the first suppress
// it so that kat can concatenate them.
func OutputArgs(output Output, header bool) []string {
	if header {
		return nil
	}
	switch output {
	case PeriodLossTable:
		return []string{"-H"}
	default:
		return []string{"-s"}
	}
}

// KatArgs returns the kat arguments concatenating the given per
// partition files in order.
func KatArgs(files []string) []string {
	return append([]string(nil), files...)
}

// AalcalcArgs returns the aalcalc arguments reading the binaries under
// work/<subdir>.
func AalcalcArgs(subdir string) []string {
	return []string{"-K" + subdir}
}

// LECReport is one leccalc report selector.
type LECReport struct {
	Flag string
	Path string
}

// Leccalc report flags.
const (
	FullUncertaintyAEP = "-F"
	FullUncertaintyOEP = "-f"
	WheatsheafAEP      = "-W"
	WheatsheafOEP      = "-w"
	SampleMeanAEP      = "-S"
	SampleMeanOEP      = "-s"
	WheatsheafMeanAEP  = "-M"
	WheatsheafMeanOEP  = "-m"
)

// LeccalcArgs returns the leccalc arguments. returnPeriods adds -r to
// use the model's return period file.
func LeccalcArgs(subdir string, returnPeriods bool, reports []LECReport) []string {
	var args []string
	if returnPeriods {
		args = append(args, "-r")
	}
	args = append(args, "-K"+subdir)
	for _, report := range reports {
		args = append(args, report.Flag, report.Path)
	}
	return args
}
