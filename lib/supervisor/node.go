// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/graph"
)

// teeBufferSize matches the pipe capacity on Linux.
const teeBufferSize = 64 * 1024

// openFiles is the set of descriptors a node holds. close is safe to
// call more than once and from another goroutine; files added after
// close are closed immediately.
type openFiles struct {
	mu     sync.Mutex
	files  []*os.File
	closed bool
}

func (o *openFiles) add(file *os.File) {
	if file == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		file.Close()
		return
	}
	o.files = append(o.files, file)
}

func (o *openFiles) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, file := range o.files {
		file.Close()
	}
	o.files = nil
	o.closed = true
}

// release closes the held files without marking the set closed.
func (o *openFiles) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, file := range o.files {
		file.Close()
	}
	o.files = nil
}

func (r *run) runNode(ctx context.Context, node *graph.Node) NodeStatus {
	// The node owns the pipe ends on its streams even when it fails
	// before using them, so its neighbours see EOF or EPIPE.
	owned := &openFiles{}
	defer owned.close()
	if node.Stdin.Kind == graph.EndpointPipe {
		owned.add(r.pipes[node.Stdin.Path].reader)
	}
	for _, target := range append([]graph.Endpoint{node.Stdout}, node.Outputs...) {
		if target.Kind == graph.EndpointPipe {
			owned.add(r.pipes[target.Path].writer)
		}
	}

	status := NodeStatus{ID: node.ID, Program: node.Program, Started: r.clock.Now()}
	if node.Kind == graph.Tee && r.options.Tee == TeeInline {
		r.runTee(ctx, node, &status)
	} else {
		r.runProcess(ctx, node, &status)
	}
	status.Duration = r.clock.Now().Sub(status.Started)
	return status
}

// fail marks the node failed, or cancelled when the run context is
// already done.
func fail(ctx context.Context, status *NodeStatus, err error) {
	status.Error = err.Error()
	if ctx.Err() != nil {
		status.State = StateCancelled
		return
	}
	status.State = StateFailed
}

func (r *run) runProcess(ctx context.Context, node *graph.Node, status *NodeStatus) {
	files := &openFiles{}
	defer files.close()

	stdin, err := r.openInput(node.Stdin)
	files.add(stdin)
	if err != nil {
		fail(ctx, status, err)
		return
	}
	stdout, err := r.openOutput(node.Stdout)
	files.add(stdout)
	if err != nil {
		fail(ctx, status, err)
		return
	}
	if ctx.Err() != nil {
		status.State = StateCancelled
		status.Error = "not started: run cancelled"
		return
	}

	cmd := exec.CommandContext(ctx, r.programs[node.Program], node.CommandArgs()...)
	cmd.Dir = r.options.Dir
	cmd.Env = r.options.Env
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if r.stderr != nil {
		cmd.Stderr = r.stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	// Own process group, so cancellation reaches anything the tool
	// spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var escalation *clock.Timer
	cmd.Cancel = func() error {
		group := -cmd.Process.Pid
		if err := unix.Kill(group, unix.SIGTERM); err != nil {
			if errors.Is(err, unix.ESRCH) {
				return os.ErrProcessDone
			}
			return unix.Kill(group, unix.SIGKILL)
		}
		escalation = r.clock.AfterFunc(r.options.GracePeriod, func() {
			// ESRCH once the group has exited.
			_ = unix.Kill(group, unix.SIGKILL)
		})
		return nil
	}

	if err := cmd.Start(); err != nil {
		fail(ctx, status, fmt.Errorf("starting %s: %w", node.Program, err))
		return
	}
	status.PID = cmd.Process.Pid
	// The child holds its own copies now.
	files.release()

	waitErr := cmd.Wait()
	if escalation != nil {
		escalation.Stop()
	}
	classify(ctx, cmd.ProcessState, waitErr, status)
}

// classify fills the outcome of a finished process.
func classify(ctx context.Context, state *os.ProcessState, waitErr error, status *NodeStatus) {
	if state == nil {
		fail(ctx, status, waitErr)
		return
	}

	status.ExitCode = state.ExitCode()
	if wait, ok := state.Sys().(syscall.WaitStatus); ok && wait.Signaled() {
		status.Signal = unix.SignalName(wait.Signal())
		status.ExitCode = 128 + int(wait.Signal())
	}

	switch {
	case state.Success():
		status.State = StateOK
	case ctx.Err() != nil:
		status.State = StateCancelled
		status.Error = state.String()
	default:
		status.State = StateFailed
		status.Error = state.String()
	}
}

// runTee copies stdin to stdout and every output, in-process.
func (r *run) runTee(ctx context.Context, node *graph.Node, status *NodeStatus) {
	files := &openFiles{}
	defer files.close()
	// Closing the descriptors interrupts a blocked read or write.
	stop := context.AfterFunc(ctx, files.close)
	defer stop()

	input, err := r.openInput(node.Stdin)
	files.add(input)
	if err != nil {
		fail(ctx, status, err)
		return
	}

	var writers []io.Writer
	for _, target := range append([]graph.Endpoint{node.Stdout}, node.Outputs...) {
		if target.IsZero() || target.Kind == graph.EndpointDiscard {
			continue
		}
		output, err := r.openOutput(target)
		files.add(output)
		if err != nil {
			fail(ctx, status, err)
			return
		}
		writers = append(writers, output)
	}
	if ctx.Err() != nil {
		status.State = StateCancelled
		status.Error = "not started: run cancelled"
		return
	}

	destination := io.Discard
	if len(writers) > 0 {
		destination = io.MultiWriter(writers...)
	}
	if _, err := io.CopyBuffer(destination, input, make([]byte, teeBufferSize)); err != nil {
		fail(ctx, status, fmt.Errorf("copying %s: %w", node.Stdin, err))
		if status.State == StateFailed {
			status.ExitCode = 1
		}
		return
	}
	status.State = StateOK
}

// openInput opens a stdin endpoint. Returns nil for an inherited
// stdin. FIFO opens block until a writer arrives.
func (r *run) openInput(endpoint graph.Endpoint) (*os.File, error) {
	switch endpoint.Kind {
	case graph.EndpointInherit:
		return nil, nil
	case graph.EndpointDiscard:
		return os.Open(os.DevNull)
	case graph.EndpointPipe:
		return r.pipes[endpoint.Path].reader, nil
	case graph.EndpointFIFO, graph.EndpointFile:
		file, err := os.OpenFile(r.path(endpoint.Path), os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", endpoint, err)
		}
		return file, nil
	default:
		return nil, fmt.Errorf("cannot read from %s", endpoint)
	}
}

// openOutput opens a stdout or tee output endpoint. Returns nil for
// inherited and discarded stdout. FIFO opens block until a reader
// arrives.
func (r *run) openOutput(endpoint graph.Endpoint) (*os.File, error) {
	var flags int
	switch endpoint.Kind {
	case graph.EndpointInherit, graph.EndpointDiscard:
		return nil, nil
	case graph.EndpointPipe:
		return r.pipes[endpoint.Path].writer, nil
	case graph.EndpointFIFO:
		flags = os.O_WRONLY
	case graph.EndpointFile:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case graph.EndpointAppend:
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return nil, fmt.Errorf("cannot write to %s", endpoint)
	}
	file, err := os.OpenFile(r.path(endpoint.Path), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", endpoint, err)
	}
	return file, nil
}
