// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate implements "kwire validate".
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/config"
	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/settings"
)

type validateParams struct {
	analysis.Params

	Binaries bool `flag:"binaries" desc:"also check that every ktools program resolves"`
}

// Command returns the "validate" command.
func Command() *cli.Command {
	var params validateParams
	return &cli.Command{
		Name:    "validate",
		Summary: "Check analysis settings and the runtime config",
		Description: `Check an analysis settings file and the runtime config without
touching the run directory: the JSONC parses, at least one loss stream
is enabled, every summary set has ids in range and at least one
output, and the config values are in range.

The partition and finalize graphs are then built and checked for
wiring errors (every FIFO has one writer and one reader, no file is
written twice, the data flow is acyclic). With --binaries, every
program the graphs start must resolve in paths.bin or PATH.`,
		Usage: "kwire validate [<settings>] [flags]",
		Examples: []cli.Example{
			{
				Description: "Validate the settings of the current run directory",
				Command:     "kwire validate",
			},
			{
				Description: "Validate a settings file against the installed ktools",
				Command:     "kwire validate analysis_settings.json --binaries",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("validate", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return run(ctx, args, &params)
		},
	}
}

func run(ctx context.Context, args []string, params *validateParams) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: kwire validate [<settings>]")
	}
	env := cli.EnvFrom(ctx)

	cfg, issues := loadConfig(&params.Params)

	runDir := cfg.Paths.RunDir
	if params.RunDir != "" {
		runDir = params.RunDir
	}
	l, err := layout.New(runDir, cfg.Ktools.FIFORelative)
	if err != nil {
		return err
	}

	path := params.SettingsPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		path = l.Abs(analysis.DefaultSettings)
	}
	s, err := settings.ReadFile(path)
	if err != nil {
		return err
	}

	settingsIssues := settings.Validate(s)
	issues = append(issues, settingsIssues...)

	var nodes, finalizeNodes int
	if len(settingsIssues) == 0 {
		total := cfg.NumProcesses()
		if params.Total != 0 {
			total = params.Total
		}
		a := &analysis.Analysis{Config: cfg, Settings: s, Layout: l, Total: max(total, 1)}
		graphs, graphIssues := buildGraphs(a)
		issues = append(issues, graphIssues...)
		if params.Binaries {
			issues = append(issues, checkBinaries(cfg, graphs)...)
		}
		if len(graphs) == 2 {
			nodes, finalizeNodes = len(graphs[0].Nodes), len(graphs[1].Nodes)
		}
	}

	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(env.Stderr, "  - %s\n", issue)
		}
		return fmt.Errorf("%s: %d validation issue(s) found", path, len(issues))
	}

	fmt.Fprintf(env.Stdout, "%s: valid (%d processes per partition, %d to finalize)\n", path, nodes, finalizeNodes)
	return nil
}

// loadConfig returns the runtime config, or the defaults plus the
// config's issues when it does not load or validate.
func loadConfig(params *analysis.Params) (*config.Config, []string) {
	cfg, err := params.LoadConfig()
	if err != nil {
		return config.Default(), []string{err.Error()}
	}
	return cfg, nil
}

// buildGraphs builds the first partition and the finalize graph and
// reports their wiring issues.
func buildGraphs(a *analysis.Analysis) ([]*graph.Graph, []string) {
	var issues []string
	partition, err := a.Partition(1)
	if err != nil {
		return nil, []string{err.Error()}
	}
	finalize, err := a.Finalize()
	if err != nil {
		return nil, []string{err.Error()}
	}
	graphs := []*graph.Graph{partition, finalize}
	for _, g := range graphs {
		for _, issue := range graph.Validate(g) {
			issues = append(issues, fmt.Sprintf("%s graph: %s", g.Name, issue))
		}
	}
	return graphs, issues
}

// checkBinaries reports every program of graphs that does not resolve.
// Process-mode tee is included since it may be selected at run time.
func checkBinaries(cfg *config.Config, graphs []*graph.Graph) []string {
	programs := []string{ktools.Tee}
	for _, g := range graphs {
		for _, node := range g.Nodes {
			if node.Kind == graph.Process && !slices.Contains(programs, node.Program) {
				programs = append(programs, node.Program)
			}
		}
	}

	var issues []string
	for _, program := range programs {
		if _, err := cfg.BinaryPath(program); err != nil {
			issues = append(issues, err.Error())
		}
	}
	return issues
}
