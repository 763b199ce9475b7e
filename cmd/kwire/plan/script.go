// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/script"
)

type scriptParams struct {
	analysis.Params

	Output string `flag:"output,o" desc:"write the script to this file (mode 0755) instead of stdout"`
	Debug  bool   `flag:"debug" desc:"trace every command (set -x); default: ktools.debug"`
}

// ScriptCommand returns the "script" command.
func ScriptCommand() *cli.Command {
	var params scriptParams
	return &cli.Command{
		Name:    "script",
		Summary: "Render a partition or the finalize pass as a bash script",
		Description: `Render the graph "kwire run" would execute as a standalone bash
script, for clusters without kwire installed or to inspect the exact
shell wiring. The script resets the run directory like "kwire run",
starts every process in the same order, and exits with the status of
the first process that failed.

Tee nodes become coreutils tee, single-reader pipes become shell pipes,
and process stderr is appended to the same log/stderror_<run>.err.`,
		Usage: "kwire script <partition|finalize> [flags]",
		Examples: []cli.Example{
			{
				Description: "Write partition 2 of 8 as a script",
				Command:     "kwire script 2 --total 8 -o run_P2.sh",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("script", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return runScript(ctx, args, &params, logger)
		},
	}
}

func runScript(ctx context.Context, args []string, params *scriptParams, logger *slog.Logger) error {
	logger = cli.OrDiscard(logger)
	a, g, err := loadGraph(ctx, &params.Params, args, "kwire script <partition|finalize>")
	if err != nil {
		return err
	}
	hash, err := g.Hash()
	if err != nil {
		return err
	}

	options := script.Options{
		RunDir:    a.Layout.Root(),
		StderrLog: a.Layout.StderrLog(layout.RunName(g)),
		BinDir:    a.Config.Paths.Bin,
		Hash:      hash.String(),
		Debug:     params.Debug || a.Config.Ktools.Debug,
	}

	if params.Output == "" {
		return script.Render(cli.EnvFrom(ctx).Stdout, g, options)
	}
	if err := writeScript(params.Output, func(w io.Writer) error {
		return script.Render(w, g, options)
	}); err != nil {
		return err
	}
	logger.Info("script written", "path", params.Output, "nodes", len(g.Nodes), "hash", hash.Short())
	return nil
}

// writeScript renders into path, leaving no partial file behind on
// failure.
func writeScript(path string, render func(io.Writer) error) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return file.Close()
}
