// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/layout"
)

type runParams struct {
	analysis.Params
	supervisionParams
}

// Command returns the "run" command.
func Command() *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run the loss pipeline of one event partition",
		Description: `Build the process graph of one event partition and supervise it:
eve feeds the ground-up stream through getmodel and gulcalc, fmcalc
produces insured and reinsurance losses, summarycalc aggregates each
peril into its summary sets, and tee fans every summary stream out to
the requested output calculators.

The run directory is reset for this partition only (its FIFOs, work
files and stderr log), so partitions of one analysis can run
concurrently. Process stderr goes to log/stderror_P<n>.err. The run is
recorded in log/kwire_P<n>.jsonl and work/.kwire/P<n>.json.

When any process fails, the remaining processes are stopped (unless
--keep-going or ktools.disable_error_guard) and kwire exits with the
exit code of the first failing process.`,
		Usage: "kwire run <partition> [flags]",
		Examples: []cli.Example{
			{
				Description: "Run the third of eight partitions",
				Command:     "kwire run 3 --total 8",
			},
			{
				Description: "Run with coreutils tee and a two hour limit",
				Command:     "kwire run 1 --tee process --timeout 2h",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("run", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runPartition(ctx, args, &params, logger, nil)
		},
	}
}

func runPartition(ctx context.Context, args []string, params *runParams, logger *slog.Logger, resolve func(string) (string, error)) error {
	partition, err := analysis.ParsePartition(args, "kwire run <partition>")
	if err != nil {
		return err
	}
	a, err := params.Load(ctx)
	if err != nil {
		return err
	}
	g, err := a.Partition(partition)
	if err != nil {
		return err
	}

	e := &executor{
		analysis: a,
		params:   params.supervisionParams,
		logger:   cli.OrDiscard(logger).With("command", "run", "partition", partition),
		clock:    clock.Real(),
		resolve:  resolve,
	}
	report, runErr := e.execute(ctx, g)
	return finish(ctx, layout.RunName(g), report, runErr)
}
