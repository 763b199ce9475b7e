// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/settings"
)

// FinalizeOptions configures [Finalize].
type FinalizeOptions struct {
	Layout *layout.Layout

	// Total is the number of partitions whose outputs are combined.
	Total int
}

// Finalize builds the graph that combines the outputs of every
// partition: kat per requested output, aalcalc per summary set with
// aalcalc enabled, and leccalc per summary set with leccalc reports.
func Finalize(s *settings.Settings, options FinalizeOptions) (*graph.Graph, error) {
	if options.Layout == nil {
		return nil, fmt.Errorf("no run directory layout")
	}
	if options.Total < 1 {
		return nil, fmt.Errorf("total partitions must be positive, got %d", options.Total)
	}
	if issues := settings.Validate(s); len(issues) > 0 {
		return nil, fmt.Errorf("invalid analysis settings: %s", issues[0])
	}

	l := options.Layout
	g := &graph.Graph{Name: FinalizeGraph}

	for _, correlated := range variants(s) {
		g.Dirs = append(g.Dirs, l.OutputDir(correlated))
		prefix := idPrefix(correlated)

		for _, peril := range s.Perils() {
			section := sectionName(peril.Description(), correlated)
			for _, summary := range s.Summaries(peril) {
				for _, output := range summary.Outputs() {
					var files []string
					var reads []graph.Endpoint
					for partition := 1; partition <= options.Total; partition++ {
						path := l.PartitionOutput(peril, correlated, summary.ID, output, partition)
						files = append(files, path)
						reads = append(reads, graph.File(path))
					}
					g.Nodes = append(g.Nodes, graph.Node{
						ID:      fmt.Sprintf("%s%s_S%d_%s_kat", prefix, peril, summary.ID, output),
						Section: section,
						Kind:    graph.Process,
						Program: ktools.Kat,
						Args:    ktools.KatArgs(files),
						Reads:   reads,
						Stdout:  graph.File(l.FinalOutput(peril, correlated, summary.ID, string(output))),
					})
				}

				if summary.AAL {
					g.Nodes = append(g.Nodes, graph.Node{
						ID:      fmt.Sprintf("%s%s_S%d_aalcalc", prefix, peril, summary.ID),
						Section: section,
						Kind:    graph.Process,
						Program: ktools.Aalcalc,
						Args:    ktools.AalcalcArgs(layout.AALSubdir(peril, correlated, summary.ID)),
						Reads: binaries(options.Total, func(partition int, index bool) string {
							return l.AALFile(peril, correlated, summary.ID, partition, index)
						}),
						Stdout: graph.File(l.FinalOutput(peril, correlated, summary.ID, ktools.Aalcalc)),
					})
				}

				if summary.KeepsLEC() {
					var reports []ktools.LECReport
					var writes []graph.Endpoint
					for _, report := range summary.LECReports() {
						path := l.FinalOutput(peril, correlated, summary.ID, report.Name)
						reports = append(reports, ktools.LECReport{Flag: report.Flag, Path: path})
						writes = append(writes, graph.File(path))
					}
					g.Nodes = append(g.Nodes, graph.Node{
						ID:      fmt.Sprintf("%s%s_S%d_leccalc", prefix, peril, summary.ID),
						Section: section,
						Kind:    graph.Process,
						Program: ktools.Leccalc,
						Args: ktools.LeccalcArgs(
							layout.LECSubdir(peril, correlated, summary.ID),
							summary.LEC.ReturnPeriodFile,
							reports,
						),
						Reads: binaries(options.Total, func(partition int, index bool) string {
							return l.LECFile(peril, correlated, summary.ID, partition, index)
						}),
						Writes: writes,
					})
				}
			}
		}
	}

	return g, nil
}

// binaries lists the .bin and .idx file of every partition.
func binaries(total int, name func(partition int, index bool) string) []graph.Endpoint {
	endpoints := make([]graph.Endpoint, 0, 2*total)
	for partition := 1; partition <= total; partition++ {
		endpoints = append(endpoints,
			graph.File(name(partition, false)),
			graph.File(name(partition, true)),
		)
	}
	return endpoints
}
