// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package status implements "kwire status".
package status

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/config"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/runstate"
)

// Stale is shown for a run recorded as running whose process is gone.
const Stale = "stale"

type statusParams struct {
	cli.JSONOutput

	ConfigPath string `flag:"config" desc:"runtime config file (default: $KWIRE_CONFIG, then built-in defaults)"`
	RunDir     string `flag:"run-dir" desc:"model run directory (default: paths.run_dir)"`
	Check      bool   `flag:"check" desc:"exit 1 when any run failed or did not finish"`
}

// Entry is one run as reported by status.
type Entry struct {
	runstate.State

	// Display is the status to show: the recorded status, or "stale"
	// when a running state's process is gone.
	Display string `json:"display"`
}

// Command returns the "status" command.
func Command() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show the runs recorded in a run directory",
		Description: `List every partition and finalize run recorded in the run directory:
whether it is running, succeeded or failed, when it started, how long
it took, and the exit code and error of failed runs.

A run recorded as running whose process no longer exists (killed by
the batch scheduler, machine reboot) is shown as stale. It is replaced
by the next "kwire run" of that partition.`,
		Usage: "kwire status [flags]",
		Examples: []cli.Example{
			{
				Description: "Fail a batch job step when any partition failed",
				Command:     "kwire status --check --run-dir /data/runs/2026-10",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("usage: kwire status [flags]")
			}
			return run(ctx, &params, clock.Real())
		},
	}
}

func run(ctx context.Context, params *statusParams, c clock.Clock) error {
	l, err := openLayout(params)
	if err != nil {
		return err
	}
	store := runstate.New(l, c)
	states, err := store.List()
	if err != nil {
		return err
	}

	entries := make([]Entry, len(states))
	problems := 0
	for i, state := range states {
		entries[i] = Entry{State: state, Display: string(state.Status)}
		if state.Status == runstate.Running && !store.Alive(state) {
			entries[i].Display = Stale
		}
		if entries[i].Display == string(runstate.Failed) || entries[i].Display == Stale {
			problems++
		}
	}

	stdout := cli.EnvFrom(ctx).Stdout
	if done, err := params.EmitJSON(stdout, entries); done {
		if err != nil {
			return err
		}
	} else if len(entries) == 0 {
		fmt.Fprintf(stdout, "no runs recorded in %s\n", l.Root())
	} else {
		writeTable(stdout, entries, c.Now())
	}

	if params.Check && problems > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func openLayout(params *statusParams) (*layout.Layout, error) {
	runDir := params.RunDir
	if runDir == "" {
		var cfg *config.Config
		var err error
		switch {
		case params.ConfigPath != "":
			cfg, err = config.LoadFile(params.ConfigPath)
		default:
			cfg, err = config.Load()
			if err != nil {
				cfg, err = config.Default(), nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		runDir = cfg.Paths.RunDir
	}
	return layout.New(runDir, false)
}

func writeTable(w io.Writer, entries []Entry, now time.Time) {
	theme := cli.NewTheme(w)

	rows := make([][]string, len(entries))
	for i, entry := range entries {
		rows[i] = []string{
			entry.Run,
			entry.Display,
			humanize.RelTime(entry.Started, now, "ago", "from now"),
			duration(entry, now),
			exitCode(entry),
			fmt.Sprintf("%d@%s", entry.PID, entry.Hostname),
			shortHash(entry.GraphHash),
			entry.Error,
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.Border).
		Headers("RUN", "STATUS", "STARTED", "DURATION", "EXIT", "PROCESS", "GRAPH", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, column int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.Label.Padding(0, 1)
			case column == 1:
				return theme.State(entries[row].Display).Padding(0, 1)
			}
			return theme.Plain.Padding(0, 1)
		})
	fmt.Fprintln(w, t.String())
}

func duration(entry Entry, now time.Time) string {
	if entry.Finished.IsZero() {
		if entry.Display == string(runstate.Running) {
			return now.Sub(entry.Started).Round(time.Second).String() + "+"
		}
		return "-"
	}
	return entry.Finished.Sub(entry.Started).Round(time.Millisecond).String()
}

func exitCode(entry Entry) string {
	if entry.Status != runstate.Failed {
		return "-"
	}
	return strconv.Itoa(entry.ExitCode)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
