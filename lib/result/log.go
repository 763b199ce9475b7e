// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/supervisor"
)

// Log is a JSONL result log. A nil *Log discards everything, so
// callers need not check whether logging is enabled. Safe for
// concurrent use.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	logger  *slog.Logger
	clock   clock.Clock
	runID   string
}

// Create truncates or creates the log at path.
func Create(path string, logger *slog.Logger, c clock.Clock) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating result log directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating result log %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = clock.Real()
	}
	return &Log{
		file:    file,
		encoder: json.NewEncoder(file),
		logger:  logger,
		clock:   c,
		runID:   uuid.NewString(),
	}, nil
}

// RunID identifies this run in every line of the log.
func (l *Log) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Close closes the log file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Start records the start of a run of the named graph.
func (l *Log) Start(graphName string, partition int, hash string, nodes int) {
	if l == nil {
		return
	}
	l.write(StartEntry{
		Type:      TypeStart,
		RunID:     l.runID,
		Graph:     graphName,
		Partition: partition,
		GraphHash: hash,
		NodeCount: nodes,
		Timestamp: l.timestamp(),
	})
}

// Node records one finished node. Its signature matches
// supervisor.Options.Observer.
func (l *Log) Node(status supervisor.NodeStatus) {
	if l == nil {
		return
	}
	l.write(NodeEntry{
		Type:       TypeNode,
		RunID:      l.runID,
		ID:         status.ID,
		Program:    status.Program,
		PID:        status.PID,
		State:      status.State,
		ExitCode:   status.ExitCode,
		Signal:     status.Signal,
		Error:      status.Error,
		DurationMS: status.Duration.Milliseconds(),
	})
}

// Finish writes the closing line: "complete" when runErr is nil,
// otherwise "failed".
func (l *Log) Finish(report *supervisor.Report, runErr error) {
	if l == nil {
		return
	}
	var duration time.Duration
	if report != nil {
		duration = report.Duration
	}

	if runErr == nil {
		l.write(CompleteEntry{
			Type:       TypeComplete,
			RunID:      l.runID,
			Status:     "ok",
			DurationMS: duration.Milliseconds(),
			Timestamp:  l.timestamp(),
		})
		return
	}

	entry := FailedEntry{
		Type:       TypeFailed,
		RunID:      l.runID,
		Status:     "failed",
		Error:      runErr.Error(),
		ExitCode:   1,
		DurationMS: duration.Milliseconds(),
		Timestamp:  l.timestamp(),
	}
	var failure *supervisor.RunError
	if errors.As(runErr, &failure) {
		entry.ExitCode = failure.ExitCode()
		for _, node := range failure.Failures {
			entry.FailedNodes = append(entry.FailedNodes, node.ID)
		}
	}
	l.write(entry)
}

func (l *Log) timestamp() string {
	return l.clock.Now().UTC().Format(time.RFC3339Nano)
}

func (l *Log) write(entry any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.encoder.Encode(entry); err != nil {
		l.logger.Warn("failed to write result log entry", "error", err)
		return
	}
	if err := l.file.Sync(); err != nil {
		l.logger.Warn("failed to sync result log", "error", err)
	}
}

// Line types.
const (
	TypeStart    = "start"
	TypeNode     = "node"
	TypeComplete = "complete"
	TypeFailed   = "failed"
)

// StartEntry is the first line of a log.
type StartEntry struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Graph     string `json:"graph"`
	Partition int    `json:"partition,omitempty"`
	GraphHash string `json:"graph_hash,omitempty"`
	NodeCount int    `json:"node_count"`
	Timestamp string `json:"timestamp"`
}

// NodeEntry is written as each node finishes, in finish order.
type NodeEntry struct {
	Type       string           `json:"type"`
	RunID      string           `json:"run_id"`
	ID         string           `json:"id"`
	Program    string           `json:"program,omitempty"`
	PID        int              `json:"pid,omitempty"`
	State      supervisor.State `json:"state"`
	ExitCode   int              `json:"exit_code"`
	Signal     string           `json:"signal,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// CompleteEntry closes the log of a successful run.
type CompleteEntry struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

// FailedEntry closes the log of a failed or interrupted run.
type FailedEntry struct {
	Type        string   `json:"type"`
	RunID       string   `json:"run_id"`
	Status      string   `json:"status"`
	Error       string   `json:"error"`
	ExitCode    int      `json:"exit_code"`
	FailedNodes []string `json:"failed_nodes,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
	Timestamp   string   `json:"timestamp"`
}
