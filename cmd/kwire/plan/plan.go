// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/codec"
)

type planParams struct {
	analysis.Params
	cli.JSONOutput

	CBOR bool `flag:"cbor" desc:"write the CBOR encoding (diagnostic notation on a terminal)"`
	Hash bool `flag:"hash" desc:"print the graph hash only"`
}

// Command returns the "plan" command.
func Command() *cli.Command {
	var params planParams
	return &cli.Command{
		Name:    "plan",
		Summary: "Show the process graph of a partition or the finalize pass",
		Description: `Build the graph "kwire run" would execute and print it without
starting anything: every process grouped by section, with the FIFOs and
files it reads and writes.

The hash identifies the graph. Two runs with the same hash started the
same processes with the same arguments and wiring; it is recorded in
the result log and the run state.`,
		Usage: "kwire plan <partition|finalize> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show partition 1 of 4",
				Command:     "kwire plan 1 --total 4",
			},
			{
				Description: "Compare the graphs of two settings files",
				Command:     "diff <(kwire plan 1 --json --settings a.json) <(kwire plan 1 --json --settings b.json)",
			},
			{
				Description: "Print the finalize graph hash",
				Command:     "kwire plan finalize --hash",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("plan", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runPlan(ctx, args, &params)
		},
	}
}

func runPlan(ctx context.Context, args []string, params *planParams) error {
	if params.OutputJSON && params.CBOR {
		return fmt.Errorf("--json and --cbor are mutually exclusive")
	}
	_, g, err := loadGraph(ctx, &params.Params, args, "kwire plan <partition|finalize>")
	if err != nil {
		return err
	}
	stdout := cli.EnvFrom(ctx).Stdout

	hash, err := g.Hash()
	if err != nil {
		return err
	}
	if params.Hash {
		_, err := fmt.Fprintln(stdout, hash)
		return err
	}

	if done, err := params.EmitJSON(stdout, g); done {
		return err
	}

	if params.CBOR {
		data, err := g.Encode()
		if err != nil {
			return err
		}
		if !cli.IsTerminal(stdout) {
			_, err := stdout.Write(data)
			return err
		}
		text, err := codec.Diagnose(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, text)
		return err
	}

	writeTree(stdout, g, hash)
	return nil
}
