// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/graph"
)

// DefaultGracePeriod is how long a process group has between SIGTERM
// and SIGKILL when Options.GracePeriod is zero.
const DefaultGracePeriod = 10 * time.Second

// TeeMode selects how tee nodes run.
type TeeMode int

const (
	// TeeInline copies tee input in-process.
	TeeInline TeeMode = iota
	// TeeProcess runs the tee program.
	TeeProcess
)

// Options configures [Run].
type Options struct {
	// Dir is the run directory. Relative endpoint paths resolve
	// against it and processes run in it.
	Dir string

	// Resolve maps a program name to an executable path. Defaults to
	// exec.LookPath.
	Resolve func(program string) (string, error)

	// Env is the process environment. Nil inherits the parent's.
	Env []string

	// StderrPath is the file every process appends its stderr to,
	// relative to Dir or absolute. Empty inherits kwire's stderr.
	StderrPath string

	// GracePeriod between SIGTERM and SIGKILL on cancellation.
	GracePeriod time.Duration

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration

	// DisableErrorGuard lets the remaining nodes run to completion
	// after a failure. The run still fails.
	DisableErrorGuard bool

	Tee TeeMode

	Logger *slog.Logger
	Clock  clock.Clock

	// Observer, if set, is called as each node finishes. It may be
	// called concurrently.
	Observer func(NodeStatus)
}

// run is the state of one Run call.
type run struct {
	graph   *graph.Graph
	options Options
	logger  *slog.Logger
	clock   clock.Clock

	programs map[string]string
	pipes    map[string]*pipe
	stderr   *os.File

	// done[i] is closed when node i has finished and released every
	// descriptor it held.
	done []chan struct{}

	mu       sync.Mutex
	statuses []NodeStatus
	failures []NodeStatus
}

type pipe struct {
	reader *os.File
	writer *os.File
}

// Run executes g and waits for every node. The returned Report covers
// every node that was launched; it is nil only when g could not be
// launched at all. The error is a [*RunError] when any node failed or
// the run was cancelled, and a plain error when launch preconditions
// do not hold (in which case no process was started).
func Run(ctx context.Context, g *graph.Graph, options Options) (*Report, error) {
	if issues := graph.Validate(g); len(issues) > 0 {
		return nil, fmt.Errorf("graph %q is invalid: %s", g.Name, strings.Join(issues, "; "))
	}
	order, err := g.LaunchOrder()
	if err != nil {
		return nil, err
	}

	r := &run{
		graph:   g,
		options: options,
		logger:  options.Logger,
		clock:   options.Clock,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.options.Resolve == nil {
		r.options.Resolve = exec.LookPath
	}
	if r.options.GracePeriod <= 0 {
		r.options.GracePeriod = DefaultGracePeriod
	}
	r.logger = r.logger.With("graph", g.Name, "partition", g.Partition)

	if err := r.checkFIFOs(); err != nil {
		return nil, err
	}
	if err := r.resolvePrograms(); err != nil {
		return nil, err
	}
	if err := r.openStderr(); err != nil {
		return nil, err
	}
	if r.stderr != nil {
		defer r.stderr.Close()
	}
	if err := r.createPipes(); err != nil {
		return nil, err
	}

	return r.execute(ctx, order)
}

// checkFIFOs verifies every declared FIFO exists as a named pipe.
func (r *run) checkFIFOs() error {
	var missing []error
	for _, name := range r.graph.FIFOs {
		info, err := os.Stat(r.path(name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, fmt.Errorf("fifo %s does not exist", name))
		case err != nil:
			missing = append(missing, fmt.Errorf("checking fifo %s: %w", name, err))
		case info.Mode().Type() != fs.ModeNamedPipe:
			missing = append(missing, fmt.Errorf("%s is not a fifo (mode %s)", name, info.Mode()))
		}
	}
	return errors.Join(missing...)
}

// resolvePrograms finds every executable before anything starts, so
// a missing binary never leaves half a pipeline running.
func (r *run) resolvePrograms() error {
	r.programs = make(map[string]string)
	var unresolved []error
	for index := range r.graph.Nodes {
		node := &r.graph.Nodes[index]
		if node.Kind == graph.Tee && r.options.Tee == TeeInline {
			continue
		}
		if _, ok := r.programs[node.Program]; ok {
			continue
		}
		path, err := r.options.Resolve(node.Program)
		if err != nil {
			unresolved = append(unresolved, fmt.Errorf("resolving %s for %s: %w", node.Program, node.ID, err))
			continue
		}
		r.programs[node.Program] = path
	}
	return errors.Join(unresolved...)
}

func (r *run) openStderr() error {
	if r.options.StderrPath == "" {
		return nil
	}
	path := r.path(r.options.StderrPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating stderr log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening stderr log: %w", err)
	}
	r.stderr = file
	return nil
}

func (r *run) createPipes() error {
	r.pipes = make(map[string]*pipe)
	for _, id := range r.graph.Pipes() {
		reader, writer, err := os.Pipe()
		if err != nil {
			r.closePipes()
			return fmt.Errorf("creating pipe %s: %w", id, err)
		}
		r.pipes[id] = &pipe{reader: reader, writer: writer}
	}
	return nil
}

func (r *run) closePipes() {
	for _, p := range r.pipes {
		p.reader.Close()
		p.writer.Close()
	}
}

// path resolves a graph path against the run directory.
func (r *run) path(name string) string {
	if filepath.IsAbs(name) || r.options.Dir == "" {
		return name
	}
	return filepath.Join(r.options.Dir, name)
}

// execute launches every node and joins them.
func (r *run) execute(ctx context.Context, order []*graph.Node) (*Report, error) {
	if r.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.options.Timeout, ErrTimeout)
		defer cancel()
	}
	group, groupCtx := errgroup.WithContext(ctx)

	index := make(map[*graph.Node]int, len(r.graph.Nodes))
	for position := range r.graph.Nodes {
		index[&r.graph.Nodes[position]] = position
	}
	r.done = make([]chan struct{}, len(r.graph.Nodes))
	for position := range r.done {
		r.done[position] = make(chan struct{})
	}
	r.statuses = make([]NodeStatus, len(r.graph.Nodes))

	started := r.clock.Now()
	r.logger.Info("run starting", "nodes", len(r.graph.Nodes), "fifos", len(r.graph.FIFOs))

	finished := make(chan struct{})
	unblockerDone := make(chan struct{})
	go func() {
		defer close(unblockerDone)
		r.unblock(groupCtx, finished)
	}()

	for _, node := range order {
		position := index[node]
		group.Go(func() error {
			defer close(r.done[position])
			status := r.runNode(groupCtx, node)
			r.record(position, status)
			if status.State == StateFailed && !r.options.DisableErrorGuard {
				return fmt.Errorf("%s failed", node.ID)
			}
			return nil
		})
	}

	group.Wait()
	close(finished)
	<-unblockerDone
	r.closePipes()

	report := &Report{
		Graph:     r.graph.Name,
		Partition: r.graph.Partition,
		Started:   started,
		Duration:  r.clock.Now().Sub(started),
		Nodes:     r.statuses,
	}

	var cause error
	if ctx.Err() != nil {
		cause = context.Cause(ctx)
	}
	if len(r.failures) > 0 || report.Count(StateCancelled) > 0 {
		runError := &RunError{Failures: r.failures, Cause: cause}
		r.logger.Error("run failed",
			"error", runError,
			"failed", len(r.failures),
			"cancelled", report.Count(StateCancelled),
			"duration", report.Duration,
		)
		return report, runError
	}

	r.logger.Info("run complete", "duration", report.Duration)
	return report, nil
}

func (r *run) record(position int, status NodeStatus) {
	r.mu.Lock()
	r.statuses[position] = status
	if status.State == StateFailed {
		r.failures = append(r.failures, status)
	}
	r.mu.Unlock()

	logger := r.logger.With("node", status.ID, "state", status.State, "duration", status.Duration)
	switch status.State {
	case StateFailed:
		logger.Warn("node failed", "exit_code", status.ExitCode, "signal", status.Signal, "error", status.Error)
	case StateCancelled:
		logger.Debug("node cancelled", "signal", status.Signal)
	default:
		logger.Debug("node finished")
	}

	if r.options.Observer != nil {
		r.options.Observer(status)
	}
}
