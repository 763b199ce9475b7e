// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/runstate"
)

type finalizeParams struct {
	analysis.Params
	supervisionParams

	Force bool `flag:"force" desc:"finalize even when a partition run failed or is still running"`
}

// FinalizeCommand returns the "finalize" command.
func FinalizeCommand() *cli.Command {
	var params finalizeParams
	return &cli.Command{
		Name:    "finalize",
		Summary: "Combine the outputs of every partition",
		Description: `Combine the per-partition outputs into the final results: kat
concatenates the event and period loss tables, aalcalc computes average
annual losses, and leccalc computes loss exceedance curves, for every
summary set that requested them.

Final outputs from a previous finalize are removed from output/ first
(summary info files are kept). Partitions with a recorded run must have
succeeded; partitions run outside kwire (e.g. by a rendered script)
have no record and are not checked.`,
		Usage: "kwire finalize [flags]",
		Examples: []cli.Example{
			{
				Description: "Finalize an analysis run as eight partitions",
				Command:     "kwire finalize --total 8",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("finalize", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runFinalize(ctx, args, &params, logger, nil)
		},
	}
}

func runFinalize(ctx context.Context, args []string, params *finalizeParams, logger *slog.Logger, resolve func(string) (string, error)) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: kwire finalize [flags]")
	}
	a, err := params.Load(ctx)
	if err != nil {
		return err
	}
	logger = cli.OrDiscard(logger).With("command", "finalize")

	c := clock.Real()
	if !params.Force {
		if err := checkPartitions(runstate.New(a.Layout, c), a.Total); err != nil {
			return err
		}
	}

	g, err := a.Finalize()
	if err != nil {
		return err
	}
	removed, err := a.Layout.CleanOutputs()
	if err != nil {
		return fmt.Errorf("cleaning outputs: %w", err)
	}
	logger.Debug("previous outputs removed", "files", removed)

	e := &executor{
		analysis: a,
		params:   params.supervisionParams,
		logger:   logger,
		clock:    c,
		resolve:  resolve,
	}
	report, runErr := e.execute(ctx, g)
	return finish(ctx, layout.RunName(g), report, runErr)
}

// checkPartitions fails when a recorded partition run failed or is
// still running.
func checkPartitions(store *runstate.Store, total int) error {
	var problems []error
	for partition := 1; partition <= total; partition++ {
		run := layout.PartitionName(partition)
		state, err := store.Read(run)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return err
		}
		switch {
		case state.Status == runstate.Failed:
			problems = append(problems, fmt.Errorf("%s failed with exit code %d: %s", run, state.ExitCode, state.Error))
		case state.Status == runstate.Running && store.Alive(state):
			problems = append(problems, fmt.Errorf("%s is still running (pid %d)", run, state.PID))
		case state.Status == runstate.Running:
			problems = append(problems, fmt.Errorf("%s did not finish (pid %d is gone)", run, state.PID))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("partitions not ready (use --force to finalize anyway): %w", errors.Join(problems...))
	}
	return nil
}
