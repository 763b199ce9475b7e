// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package result

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riskwire/kwire/lib/supervisor"
)

// WriteMetrics writes report to path in the Prometheus text format.
// The file is replaced atomically. runErr decides kwire_run_success.
func WriteMetrics(path string, report *supervisor.Report, runErr error) error {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{
		"graph":     report.Graph,
		"partition": strconv.Itoa(report.Partition),
	}

	runDuration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "kwire_run_duration_seconds",
		Help:        "Wall time of the run.",
		ConstLabels: labels,
	})
	runSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "kwire_run_success",
		Help:        "1 if every node of the run exited zero, 0 otherwise.",
		ConstLabels: labels,
	})
	runTimestamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "kwire_run_start_timestamp_seconds",
		Help:        "Unix time the run started.",
		ConstLabels: labels,
	})
	nodeDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "kwire_node_duration_seconds",
		Help:        "Wall time of each node.",
		ConstLabels: labels,
	}, []string{"node", "program"})
	nodeExitCode := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "kwire_node_exit_code",
		Help:        "Exit code of each node, 128+n when killed by signal n.",
		ConstLabels: labels,
	}, []string{"node", "program"})
	nodeStates := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "kwire_nodes",
		Help:        "Number of nodes by final state.",
		ConstLabels: labels,
	}, []string{"state"})

	for _, collector := range []prometheus.Collector{
		runDuration, runSuccess, runTimestamp, nodeDuration, nodeExitCode, nodeStates,
	} {
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	runDuration.Set(report.Duration.Seconds())
	runTimestamp.Set(float64(report.Started.UnixNano()) / 1e9)
	if runErr == nil {
		runSuccess.Set(1)
	}
	for _, state := range []supervisor.State{supervisor.StateOK, supervisor.StateFailed, supervisor.StateCancelled} {
		nodeStates.WithLabelValues(string(state)).Set(float64(report.Count(state)))
	}
	for _, node := range report.Nodes {
		nodeDuration.WithLabelValues(node.ID, node.Program).Set(node.Duration.Seconds())
		nodeExitCode.WithLabelValues(node.ID, node.Program).Set(float64(node.ExitCode))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
