// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings reads analysis settings: which loss streams a run
// computes, which summary sets each stream is summarised into, and which
// outputs each summary set produces.
//
// Analysis settings are authored as JSONC (JSON extended with comments
// and trailing commas) in the shape of the Oasis analysis_settings.json
// file. Only the fields that drive pipeline wiring are read; unknown
// fields are ignored so that a full analysis settings file can be passed
// as-is.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes to *Settings, with defaults applied
//  2. Validate: structural checks, returned as a list of issues
//  3. Perils and Summaries: the enabled streams, in execution order
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/riskwire/kwire/lib/ktools"
)

// Settings is the subset of analysis settings that shapes the pipeline.
type Settings struct {
	GULOutput    bool      `json:"gul_output"`
	GULSummaries []Summary `json:"gul_summaries,omitempty"`
	ILOutput     bool      `json:"il_output"`
	ILSummaries  []Summary `json:"il_summaries,omitempty"`
	RIOutput     bool      `json:"ri_output"`
	RISummaries  []Summary `json:"ri_summaries,omitempty"`

	// NumberOfSamples is the gulcalc sample count.
	NumberOfSamples int `json:"number_of_samples"`

	// GULThreshold drops ground-up losses below the threshold.
	GULThreshold float64 `json:"gul_threshold"`

	// FullCorrelation adds the fully correlated variant of every
	// enabled stream, computed from the gulcalc side output.
	FullCorrelation bool `json:"full_correlation"`

	// RandomNumberFile makes gulcalc read the model's random number
	// file. Defaults to true.
	RandomNumberFile *bool `json:"random_number_file,omitempty"`

	// RIInuringPriorities lists the reinsurance inuring priorities to
	// compute. The RI stream is the net loss after the highest one.
	// Defaults to [1].
	RIInuringPriorities []int `json:"ri_inuring_priorities,omitempty"`
}

// Summary is one summary set of a loss stream.
type Summary struct {
	// ID is the summary set id, 1 through 9.
	ID int `json:"id"`

	EventLossTable  bool `json:"eltcalc"`
	SummaryTable    bool `json:"summarycalc"`
	PeriodLossTable bool `json:"pltcalc"`

	// AAL keeps the summary binaries for aalcalc.
	AAL bool `json:"aalcalc"`

	// LECOutput keeps the summary binaries for leccalc, producing the
	// reports selected in LEC.
	LECOutput bool `json:"lec_output"`
	LEC       *LEC `json:"leccalc,omitempty"`
}

// LEC selects leccalc reports.
type LEC struct {
	ReturnPeriodFile bool       `json:"return_period_file"`
	Outputs          LECOutputs `json:"outputs"`
}

// LECOutputs are the individual loss exceedance curve reports.
type LECOutputs struct {
	FullUncertaintyAEP bool `json:"full_uncertainty_aep"`
	FullUncertaintyOEP bool `json:"full_uncertainty_oep"`
	WheatsheafAEP      bool `json:"wheatsheaf_aep"`
	WheatsheafOEP      bool `json:"wheatsheaf_oep"`
	SampleMeanAEP      bool `json:"sample_mean_aep"`
	SampleMeanOEP      bool `json:"sample_mean_oep"`
	WheatsheafMeanAEP  bool `json:"wheatsheaf_mean_aep"`
	WheatsheafMeanOEP  bool `json:"wheatsheaf_mean_oep"`
}

// Parse strips JSONC comments and trailing commas from data, unmarshals
// the result, and applies defaults.
func Parse(data []byte) (*Settings, error) {
	var settings Settings
	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return nil, fmt.Errorf("parsing analysis settings: %w", err)
	}
	settings.applyDefaults()
	return &settings, nil
}

// ReadFile reads and parses a JSONC analysis settings file.
func ReadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	settings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

func (s *Settings) applyDefaults() {
	if s.RandomNumberFile == nil {
		enabled := true
		s.RandomNumberFile = &enabled
	}
	if len(s.RIInuringPriorities) == 0 {
		s.RIInuringPriorities = []int{1}
	}
}

// Enabled reports whether the peril's output is requested.
func (s *Settings) Enabled(peril ktools.Peril) bool {
	switch peril {
	case ktools.GUL:
		return s.GULOutput
	case ktools.IL:
		return s.ILOutput
	case ktools.RI:
		return s.RIOutput
	default:
		return false
	}
}

// Perils returns the enabled perils in stream order.
func (s *Settings) Perils() []ktools.Peril {
	var perils []ktools.Peril
	for _, peril := range ktools.Perils {
		if s.Enabled(peril) {
			perils = append(perils, peril)
		}
	}
	return perils
}

// Summaries returns the summary sets of a peril.
func (s *Settings) Summaries(peril ktools.Peril) []Summary {
	switch peril {
	case ktools.GUL:
		return s.GULSummaries
	case ktools.IL:
		return s.ILSummaries
	case ktools.RI:
		return s.RISummaries
	default:
		return nil
	}
}

// UsesRandomFile reports whether gulcalc reads the random number file.
func (s *Settings) UsesRandomFile() bool {
	return s.RandomNumberFile == nil || *s.RandomNumberFile
}

// InuringPriority returns the inuring priority whose net loss forms the
// RI stream.
func (s *Settings) InuringPriority() int {
	if len(s.RIInuringPriorities) == 0 {
		return 1
	}
	return slices.Max(s.RIInuringPriorities)
}

// Outputs returns the per-partition outputs the summary set produces, in
// launch order.
func (s Summary) Outputs() []ktools.Output {
	var outputs []ktools.Output
	if s.EventLossTable {
		outputs = append(outputs, ktools.EventLossTable)
	}
	if s.SummaryTable {
		outputs = append(outputs, ktools.SummaryTable)
	}
	if s.PeriodLossTable {
		outputs = append(outputs, ktools.PeriodLossTable)
	}
	return outputs
}

// KeepsLEC reports whether summary binaries are kept for leccalc.
func (s Summary) KeepsLEC() bool {
	return s.LECOutput && s.LEC != nil && len(s.LEC.Outputs.reports()) > 0
}

// Indexed reports whether the summary stream needs an index, which is
// the case whenever its binaries are kept for aalcalc or leccalc.
func (s Summary) Indexed() bool {
	return s.AAL || s.KeepsLEC()
}

// LECReport is one selected leccalc report: the leccalc flag and the
// report name used in its output file name.
type LECReport struct {
	Flag string
	Name string
}

// LECReports returns the selected leccalc reports in leccalc flag order.
func (s Summary) LECReports() []LECReport {
	if !s.LECOutput || s.LEC == nil {
		return nil
	}
	return s.LEC.Outputs.reports()
}

func (o LECOutputs) reports() []LECReport {
	candidates := []struct {
		enabled bool
		report  LECReport
	}{
		{o.FullUncertaintyAEP, LECReport{ktools.FullUncertaintyAEP, "leccalc_full_uncertainty_aep"}},
		{o.FullUncertaintyOEP, LECReport{ktools.FullUncertaintyOEP, "leccalc_full_uncertainty_oep"}},
		{o.WheatsheafAEP, LECReport{ktools.WheatsheafAEP, "leccalc_wheatsheaf_aep"}},
		{o.WheatsheafOEP, LECReport{ktools.WheatsheafOEP, "leccalc_wheatsheaf_oep"}},
		{o.SampleMeanAEP, LECReport{ktools.SampleMeanAEP, "leccalc_sample_mean_aep"}},
		{o.SampleMeanOEP, LECReport{ktools.SampleMeanOEP, "leccalc_sample_mean_oep"}},
		{o.WheatsheafMeanAEP, LECReport{ktools.WheatsheafMeanAEP, "leccalc_wheatsheaf_mean_aep"}},
		{o.WheatsheafMeanOEP, LECReport{ktools.WheatsheafMeanOEP, "leccalc_wheatsheaf_mean_oep"}},
	}
	var reports []LECReport
	for _, candidate := range candidates {
		if candidate.enabled {
			reports = append(reports, candidate.report)
		}
	}
	return reports
}
