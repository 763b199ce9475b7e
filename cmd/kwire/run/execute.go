// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/config"
	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/result"
	"github.com/riskwire/kwire/lib/runstate"
	"github.com/riskwire/kwire/lib/supervisor"
)

// supervisionParams override the supervisor section of the config.
type supervisionParams struct {
	Tee       string        `flag:"tee" desc:"tee fan-out: inline or process (default: supervisor.tee)"`
	Timeout   time.Duration `flag:"timeout" desc:"cancel the run after this long (default: supervisor.timeout)"`
	KeepGoing bool          `flag:"keep-going" desc:"let the other processes finish after one fails"`
}

// executor runs one graph of an analysis.
type executor struct {
	analysis *analysis.Analysis
	params   supervisionParams
	logger   *slog.Logger
	clock    clock.Clock

	// resolve overrides config.BinaryPath.
	resolve func(string) (string, error)
}

func (e *executor) options(run string) (supervisor.Options, error) {
	cfg := e.analysis.Config

	grace, err := cfg.GracePeriod()
	if err != nil {
		return supervisor.Options{}, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return supervisor.Options{}, err
	}
	if e.params.Timeout != 0 {
		timeout = e.params.Timeout
	}

	mode := cfg.Supervisor.Tee
	if e.params.Tee != "" {
		mode = config.TeeMode(e.params.Tee)
	}
	var tee supervisor.TeeMode
	switch mode {
	case config.TeeInline, "":
		tee = supervisor.TeeInline
	case config.TeeProcess:
		tee = supervisor.TeeProcess
	default:
		return supervisor.Options{}, fmt.Errorf("--tee must be %q or %q, got %q",
			config.TeeInline, config.TeeProcess, mode)
	}

	resolve := e.resolve
	if resolve == nil {
		resolve = cfg.BinaryPath
	}

	return supervisor.Options{
		Dir:               e.analysis.Layout.Root(),
		Resolve:           resolve,
		StderrPath:        e.analysis.Layout.StderrLog(run),
		GracePeriod:       grace,
		Timeout:           timeout,
		DisableErrorGuard: cfg.Ktools.DisableErrorGuard || e.params.KeepGoing,
		Tee:               tee,
		Logger:            e.logger,
		Clock:             e.clock,
	}, nil
}

// execute prepares the run directory for g, runs it, and records the
// outcome. The report is nil when the run could not start.
func (e *executor) execute(ctx context.Context, g *graph.Graph) (*supervisor.Report, error) {
	l := e.analysis.Layout
	cfg := e.analysis.Config
	run := layout.RunName(g)
	logger := e.logger.With("run", run)

	hash, err := g.Hash()
	if err != nil {
		return nil, err
	}
	options, err := e.options(run)
	if err != nil {
		return nil, err
	}
	options.Logger = logger

	resultPath := cfg.ResultPath(run)
	if resultPath == "" {
		resultPath = l.Abs(l.ResultLog(run))
	}

	store := runstate.New(l, e.clock)
	state, err := store.Acquire(run, g.Name, hash.String(), "")
	if err != nil {
		return nil, err
	}

	log, err := result.Create(resultPath, logger, e.clock)
	if err != nil {
		e.release(store, state, err)
		return nil, err
	}
	defer log.Close()
	state.RunID = log.RunID()
	if err := store.Update(state); err != nil {
		logger.Warn("failed to record run state", "error", err)
	}

	err = l.Prepare(g, layout.PrepareOptions{
		StderrLog:    l.StderrLog(run),
		KeepPrevious: cfg.Log.KeepPrevious,
		Logger:       logger,
	})
	if err != nil {
		err = fmt.Errorf("preparing run directory: %w", err)
		log.Finish(nil, err)
		e.release(store, state, err)
		return nil, err
	}

	logger.Info("run starting",
		"graph", g.Name,
		"nodes", len(g.Nodes),
		"hash", hash.Short(),
		"run_id", log.RunID(),
	)
	log.Start(g.Name, g.Partition, hash.String(), len(g.Nodes))
	options.Observer = func(status supervisor.NodeStatus) {
		log.Node(status)
		if status.State == supervisor.StateFailed {
			logger.Error("process failed",
				"node", status.ID,
				"exit_code", status.ExitCode,
				"signal", status.Signal,
				"error", status.Error,
			)
		}
	}

	report, runErr := supervisor.Run(ctx, g, options)
	log.Finish(report, runErr)

	if report != nil {
		if path := cfg.MetricsPath(run); path != "" {
			if err := result.WriteMetrics(path, report, runErr); err != nil {
				logger.Warn("failed to write metrics", "path", path, "error", err)
			}
		}
	}
	e.release(store, state, runErr)

	if runErr != nil {
		logger.Error("run failed", "error", runErr, "stderr_log", l.Abs(l.StderrLog(run)))
	} else {
		logger.Info("run complete", "duration", report.Duration)
	}
	return report, runErr
}

func (e *executor) release(store *runstate.Store, state *runstate.State, runErr error) {
	if err := store.Release(state, exitCode(runErr), runErr); err != nil {
		e.logger.Warn("failed to record run state", "run", state.Run, "error", err)
	}
}

// exitCode maps a run error to the process exit code: the first
// failing process's code for a failed run, 1 for anything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var failure *supervisor.RunError
	if errors.As(err, &failure) {
		return failure.ExitCode()
	}
	return 1
}

// finish prints the summary of a run and converts a failed run into an
// ExitError. Errors that prevented the run from starting pass through.
func finish(ctx context.Context, run string, report *supervisor.Report, runErr error) error {
	if report == nil {
		return runErr
	}
	writeSummary(cli.EnvFrom(ctx).Stdout, run, report, runErr)
	if runErr != nil {
		return &cli.ExitError{Code: exitCode(runErr)}
	}
	return nil
}
