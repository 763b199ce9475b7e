// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package analysis loads what every pipeline command needs: the runtime
// config, the analysis settings and the run directory layout, and
// builds partition and finalize graphs from them.
package analysis

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/config"
	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/settings"
	"github.com/riskwire/kwire/lib/topology"
)

// DefaultSettings is the analysis settings file looked up in the run
// directory when --settings is not given.
const DefaultSettings = "analysis_settings.json"

// Params are the flags shared by pipeline commands. Embed it in a
// command's params struct.
type Params struct {
	ConfigPath   string `flag:"config" desc:"runtime config file (default: $KWIRE_CONFIG, then built-in defaults)"`
	SettingsPath string `flag:"settings" desc:"analysis settings JSON (default: <run-dir>/analysis_settings.json)"`
	RunDir       string `flag:"run-dir" desc:"model run directory (default: paths.run_dir)"`
	Total        int    `flag:"total" desc:"number of event partitions (default: ktools.num_processes)"`
}

// Analysis is a loaded model run.
type Analysis struct {
	Config   *config.Config
	Settings *settings.Settings
	Layout   *layout.Layout

	// Total is the number of event partitions.
	Total int
}

// LoadConfig loads the runtime config from --config, then
// KWIRE_CONFIG, and falls back to the built-in defaults when neither is
// set. The result is validated.
func (p *Params) LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case p.ConfigPath != "":
		cfg, err = config.LoadFile(p.ConfigPath)
	case os.Getenv("KWIRE_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load loads the config, the analysis settings and the layout. The log
// level of the invocation is set from the config.
func (p *Params) Load(ctx context.Context) (*Analysis, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	cli.EnvFrom(ctx).Level.Set(level)

	runDir := cfg.Paths.RunDir
	if p.RunDir != "" {
		runDir = p.RunDir
	}
	l, err := layout.New(runDir, cfg.Ktools.FIFORelative)
	if err != nil {
		return nil, err
	}

	settingsPath := p.SettingsPath
	if settingsPath == "" {
		settingsPath = l.Abs(DefaultSettings)
	}
	s, err := settings.ReadFile(settingsPath)
	if err != nil {
		return nil, err
	}

	total := cfg.NumProcesses()
	if p.Total != 0 {
		total = p.Total
	}
	if total < 1 {
		return nil, fmt.Errorf("--total must be positive, got %d", total)
	}

	return &Analysis{Config: cfg, Settings: s, Layout: l, Total: total}, nil
}

// Partition builds the graph of one event partition.
func (a *Analysis) Partition(partition int) (*graph.Graph, error) {
	return topology.Partition(a.Settings, topology.Options{
		Layout:       a.Layout,
		Partition:    partition,
		Total:        a.Total,
		AllocGUL:     a.Config.Ktools.AllocGUL,
		AllocIL:      a.Config.Ktools.AllocIL,
		AllocRI:      a.Config.Ktools.AllocRI,
		Shuffle:      ktools.Shuffle(a.Config.Ktools.EveShuffle),
		LegacyStream: a.Config.Ktools.LegacyStream,
	})
}

// Finalize builds the graph that combines the outputs of every
// partition.
func (a *Analysis) Finalize() (*graph.Graph, error) {
	return topology.Finalize(a.Settings, topology.FinalizeOptions{
		Layout: a.Layout,
		Total:  a.Total,
	})
}

// ParsePartition parses a 1-based partition argument.
func ParsePartition(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	partition, err := strconv.Atoi(args[0])
	if err != nil || partition < 1 {
		return 0, fmt.Errorf("partition must be a positive integer, got %q", args[0])
	}
	return partition, nil
}
