// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/supervisor"
)

// writeSummary prints the outcome of a run: one headline, then one line
// per node that did not finish ok.
func writeSummary(w io.Writer, run string, report *supervisor.Report, runErr error) {
	theme := cli.NewTheme(w)

	counts := []string{fmt.Sprintf("%d ok", report.Count(supervisor.StateOK))}
	for _, state := range []supervisor.State{supervisor.StateFailed, supervisor.StateCancelled} {
		if count := report.Count(state); count > 0 {
			counts = append(counts, theme.State(string(state)).Render(fmt.Sprintf("%d %s", count, state)))
		}
	}

	outcome := theme.OK.Render("succeeded")
	if runErr != nil {
		outcome = theme.Failed.Render("failed")
	}
	fmt.Fprintf(w, "%s %s in %s %s\n",
		theme.Label.Render(run),
		outcome,
		report.Duration.Round(time.Millisecond),
		theme.Faint.Render("("+strings.Join(counts, ", ")+")"),
	)

	width := 0
	for _, node := range report.Nodes {
		if node.State != supervisor.StateOK {
			width = max(width, len(node.ID))
		}
	}
	for _, node := range report.Nodes {
		if node.State == supervisor.StateOK {
			continue
		}
		fmt.Fprintf(w, "  %-*s  %s  %s\n",
			width, node.ID,
			theme.State(string(node.State)).Render(fmt.Sprintf("%-9s", node.State)),
			theme.Faint.Render(describe(node)),
		)
	}
	if runErr != nil {
		fmt.Fprintf(w, "%s %s\n", theme.Failed.Render("error:"), runErr)
	}
}

func describe(node supervisor.NodeStatus) string {
	var parts []string
	if node.Program != "" {
		parts = append(parts, node.Program)
	}
	switch {
	case node.Signal != "":
		parts = append(parts, node.Signal)
	case node.ExitCode != 0:
		parts = append(parts, fmt.Sprintf("exit %d", node.ExitCode))
	}
	if node.Error != "" {
		parts = append(parts, node.Error)
	}
	return strings.Join(parts, " ")
}
