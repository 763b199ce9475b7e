// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package result

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/supervisor"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func sampleReport() *supervisor.Report {
	return &supervisor.Report{
		Graph:     "partition",
		Partition: 3,
		Started:   epoch,
		Duration:  1500 * time.Millisecond,
		Nodes: []supervisor.NodeStatus{
			{ID: "gul_S1_eltcalc", Program: "eltcalc", PID: 40, State: supervisor.StateOK, Duration: time.Second},
			{ID: "il_fmcalc", Program: "fmcalc", PID: 41, State: supervisor.StateFailed, ExitCode: 2, Error: "exit status 2", Duration: 250 * time.Millisecond},
			{ID: "eve", Program: "eve", PID: 42, State: supervisor.StateCancelled, ExitCode: 143, Signal: "SIGTERM"},
		},
	}
}

func TestLogSuccessfulRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log", "kwire_P3.jsonl")
	log, err := Create(path, nil, clock.Fake(epoch))
	if err != nil {
		t.Fatal(err)
	}

	report := sampleReport()
	log.Start("partition", 3, "abc123", len(report.Nodes))
	log.Node(report.Nodes[0])
	log.Finish(report, nil)
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, path)
	var types []string
	for _, line := range lines {
		types = append(types, line["type"].(string))
		if line["run_id"] != log.RunID() {
			t.Errorf("line %v has run_id %v, want %s", line, line["run_id"], log.RunID())
		}
	}
	if diff := cmp.Diff([]string{"start", "node", "complete"}, types); diff != "" {
		t.Errorf("line types (-want +got):\n%s", diff)
	}

	start := lines[0]
	if start["graph_hash"] != "abc123" || start["node_count"] != 3.0 || start["partition"] != 3.0 {
		t.Errorf("start line = %v", start)
	}
	if start["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v", start["timestamp"])
	}
	node := lines[1]
	if node["id"] != "gul_S1_eltcalc" || node["state"] != "ok" || node["duration_ms"] != 1000.0 {
		t.Errorf("node line = %v", node)
	}
	if lines[2]["duration_ms"] != 1500.0 {
		t.Errorf("complete line = %v", lines[2])
	}
}

func TestLogFailedRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "result.jsonl")
	log, err := Create(path, nil, clock.Fake(epoch))
	if err != nil {
		t.Fatal(err)
	}
	report := sampleReport()
	runErr := &supervisor.RunError{Failures: []supervisor.NodeStatus{report.Nodes[1]}}
	log.Finish(report, runErr)
	log.Close()

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	failed := lines[0]
	if failed["type"] != "failed" || failed["exit_code"] != 2.0 {
		t.Errorf("failed line = %v", failed)
	}
	if nodes, _ := failed["failed_nodes"].([]any); len(nodes) != 1 || nodes[0] != "il_fmcalc" {
		t.Errorf("failed_nodes = %v", failed["failed_nodes"])
	}

	// A plain error has no node list and exit code 1.
	path = filepath.Join(t.TempDir(), "result.jsonl")
	log, err = Create(path, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	log.Finish(nil, errors.New("preparing run directory: permission denied"))
	log.Close()
	failed = readLines(t, path)[0]
	if failed["exit_code"] != 1.0 || failed["failed_nodes"] != nil {
		t.Errorf("failed line = %v", failed)
	}
}

func TestNilLog(t *testing.T) {
	t.Parallel()

	var log *Log
	log.Start("partition", 1, "", 0)
	log.Node(supervisor.NodeStatus{ID: "eve"})
	log.Finish(nil, nil)
	if log.RunID() != "" {
		t.Error("nil log has a run ID")
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestWriteMetrics(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "metrics", "kwire.prom")
	report := sampleReport()
	if err := WriteMetrics(path, report, &supervisor.RunError{}); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		`kwire_run_success{graph="partition",partition="3"} 0`,
		`kwire_run_duration_seconds{graph="partition",partition="3"} 1.5`,
		`kwire_node_exit_code{graph="partition",node="il_fmcalc",partition="3",program="fmcalc"} 2`,
		`kwire_node_duration_seconds{graph="partition",node="gul_S1_eltcalc",partition="3",program="eltcalc"} 1`,
		`kwire_nodes{graph="partition",partition="3",state="cancelled"} 1`,
		`kwire_nodes{graph="partition",partition="3",state="ok"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q:\n%s", want, text)
		}
	}

	if err := WriteMetrics(path, report, nil); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), `kwire_run_success{graph="partition",partition="3"} 1`) {
		t.Errorf("successful run not recorded:\n%s", data)
	}
}
