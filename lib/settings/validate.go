// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"

	"github.com/riskwire/kwire/lib/ktools"
)

// MaxSummaryID is the highest summary set id summarycalc accepts.
const MaxSummaryID = 9

// Validate checks the settings for issues that would produce a broken
// or empty pipeline. Returns a list of human-readable issue
// descriptions. An empty list means the settings are valid.
//
// Checks:
//   - At least one of gul_output, il_output, ri_output is enabled
//   - Each enabled peril has at least one summary set
//   - Summary ids are within 1..9 and unique per peril
//   - Each summary set produces at least one output
//   - lec_output selects at least one leccalc report
//   - number_of_samples is positive and gul_threshold non-negative
//   - ri_inuring_priorities are positive
func Validate(s *Settings) []string {
	var issues []string

	perils := s.Perils()
	if len(perils) == 0 {
		issues = append(issues, "no loss stream enabled (set at least one of gul_output, il_output, ri_output)")
	}

	for _, peril := range perils {
		field := string(peril) + "_summaries"
		summaries := s.Summaries(peril)
		if len(summaries) == 0 {
			issues = append(issues, fmt.Sprintf("%s_output is enabled but %s is empty", peril, field))
		}

		seen := make(map[int]bool)
		for index, summary := range summaries {
			prefix := fmt.Sprintf("%s[%d]", field, index)
			if summary.ID < 1 || summary.ID > MaxSummaryID {
				issues = append(issues, fmt.Sprintf("%s: id %d out of range (1 to %d)", prefix, summary.ID, MaxSummaryID))
			} else if seen[summary.ID] {
				issues = append(issues, fmt.Sprintf("%s: duplicate id %d", prefix, summary.ID))
			}
			seen[summary.ID] = true

			if summary.LECOutput && len(summary.LECReports()) == 0 {
				issues = append(issues, fmt.Sprintf("%s: lec_output is enabled but no leccalc report is selected", prefix))
			}
			if len(summary.Outputs()) == 0 && !summary.AAL && !summary.KeepsLEC() {
				issues = append(issues, fmt.Sprintf("%s: produces no output (enable eltcalc, summarycalc, pltcalc, aalcalc or lec_output)", prefix))
			}
		}
	}

	if len(perils) > 0 && s.NumberOfSamples <= 0 {
		issues = append(issues, fmt.Sprintf("number_of_samples must be positive, got %d", s.NumberOfSamples))
	}
	if s.GULThreshold < 0 {
		issues = append(issues, fmt.Sprintf("gul_threshold must not be negative, got %g", s.GULThreshold))
	}
	if s.Enabled(ktools.RI) {
		for index, priority := range s.RIInuringPriorities {
			if priority < 1 {
				issues = append(issues, fmt.Sprintf("ri_inuring_priorities[%d]: priority must be positive, got %d", index, priority))
			}
		}
	}

	return issues
}
