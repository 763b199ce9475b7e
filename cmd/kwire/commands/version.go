// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/version"
)

// toolNames lists every program a partition or finalize run may start.
var toolNames = []string{
	ktools.Eve, ktools.Getmodel, ktools.Gulcalc, ktools.Fmcalc,
	ktools.Summarycalc, ktools.Eltcalc, ktools.SummarycalcToCSV,
	ktools.Pltcalc, ktools.Aalcalc, ktools.Leccalc, ktools.Kat, ktools.Tee,
}

type versionParams struct {
	cli.JSONOutput

	ConfigPath string `flag:"config" desc:"runtime config file used to resolve ktools (default: $KWIRE_CONFIG, then built-in defaults)"`
	Tools      bool   `flag:"tools" desc:"also resolve and fingerprint the ktools binaries"`
}

type versionResult struct {
	Version string         `json:"version"`
	Commit  string         `json:"commit"`
	Dirty   bool           `json:"dirty"`
	Built   string         `json:"built"`
	Tools   []version.Tool `json:"tools,omitempty"`
}

func versionCommand() *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Description: `Print the kwire version. With --tools, also print where each ktools
binary resolves to and its BLAKE3 digest, the same fingerprint recorded
in the result log of every run.`,
		Usage: "kwire version [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("usage: kwire version [flags]")
			}
			return printVersion(ctx, &params)
		},
	}
}

func printVersion(ctx context.Context, params *versionParams) error {
	result := versionResult{
		Version: version.Version,
		Commit:  version.GitCommit,
		Dirty:   version.GitDirty == "true",
		Built:   version.BuildTime,
	}
	if params.Tools {
		cfg, err := (&analysis.Params{ConfigPath: params.ConfigPath}).LoadConfig()
		if err != nil {
			return err
		}
		result.Tools = version.Tools(toolNames, cfg.BinaryPath)
	}

	stdout := cli.EnvFrom(ctx).Stdout
	if done, err := params.EmitJSON(stdout, result); done {
		return err
	}
	fmt.Fprintf(stdout, "kwire %s\n", version.Full())
	if params.Tools {
		writeTools(stdout, result.Tools)
	}
	return nil
}

func writeTools(w io.Writer, tools []version.Tool) {
	theme := cli.NewTheme(w)
	fmt.Fprintln(w, theme.Heading.Render("ktools:"))
	for _, tool := range tools {
		if tool.Error != "" {
			fmt.Fprintf(w, "  %-17s %s\n", tool.Name, theme.Failed.Render(tool.Error))
			continue
		}
		fmt.Fprintf(w, "  %-17s %s %s\n", tool.Name, tool.Path, theme.Faint.Render(tool.Digest[:16]))
	}
}
