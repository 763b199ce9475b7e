// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"

	"github.com/riskwire/kwire/cmd/kwire/analysis"
	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/topology"
)

// loadGraph builds the graph named by the single argument: a partition
// number, or "finalize".
func loadGraph(ctx context.Context, params *analysis.Params, args []string, usage string) (*analysis.Analysis, *graph.Graph, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("usage: %s", usage)
	}

	a, err := params.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	if args[0] == topology.FinalizeGraph {
		g, err := a.Finalize()
		return a, g, err
	}
	partition, err := analysis.ParsePartition(args, usage)
	if err != nil {
		return nil, nil, err
	}
	g, err := a.Partition(partition)
	return a, g, err
}
