// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete kwire command tree.
package commands

import (
	"github.com/riskwire/kwire/cmd/kwire/cli"
	plancmd "github.com/riskwire/kwire/cmd/kwire/plan"
	runcmd "github.com/riskwire/kwire/cmd/kwire/run"
	statuscmd "github.com/riskwire/kwire/cmd/kwire/status"
	validatecmd "github.com/riskwire/kwire/cmd/kwire/validate"
)

// Root builds and returns the kwire command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "kwire",
		Description: `kwire: ktools loss pipeline runner.

Build the process graph of a catastrophe model analysis from its
settings, then run it: one event partition at a time with "kwire run",
and once all partitions are done, "kwire finalize" to combine their
work files into the final AAL and loss exceedance reports.`,
		Subcommands: []*cli.Command{
			runcmd.Command(),
			runcmd.FinalizeCommand(),
			plancmd.Command(),
			plancmd.ScriptCommand(),
			validatecmd.Command(),
			statuscmd.Command(),
			versionCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Check the analysis settings and the installed ktools",
				Command:     "kwire validate --binaries",
			},
			{
				Description: "Run the first of four partitions",
				Command:     "kwire run 1 --total 4",
			},
			{
				Description: "Combine the partitions once they have all succeeded",
				Command:     "kwire finalize --total 4",
			},
			{
				Description: "Show the process graph of a partition",
				Command:     "kwire plan 1",
			},
		},
	}
}
