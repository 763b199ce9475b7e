// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"fmt"

	"github.com/riskwire/kwire/lib/graph"
)

// chains partitions the nodes into | pipelines: maximal runs of nodes
// joined stdout to stdin by anonymous pipes.
type chains struct {
	// members[i] lists node IDs from head to tail.
	members [][]string
	// of maps a node ID to its chain.
	of map[string]int
}

func buildChains(g *graph.Graph) (*chains, error) {
	consumer := make(map[string]*graph.Node)
	for index := range g.Nodes {
		node := &g.Nodes[index]
		var others []graph.Endpoint
		others = append(others, node.Outputs...)
		others = append(others, node.Reads...)
		others = append(others, node.Writes...)
		for _, endpoint := range others {
			if endpoint.Kind == graph.EndpointPipe {
				return nil, fmt.Errorf("node %s: pipe %s is not on stdin or stdout and cannot be rendered", node.ID, endpoint.Path)
			}
		}
		if node.Stdin.Kind == graph.EndpointPipe {
			consumer[node.Stdin.Path] = node
		}
	}

	result := &chains{of: make(map[string]int)}
	for index := range g.Nodes {
		node := &g.Nodes[index]
		if node.Stdin.Kind == graph.EndpointPipe {
			continue
		}
		chain := len(result.members)
		var members []string
		for current := node; current != nil; {
			members = append(members, current.ID)
			result.of[current.ID] = chain
			if current.Stdout.Kind != graph.EndpointPipe {
				break
			}
			current = consumer[current.Stdout.Path]
		}
		result.members = append(result.members, members)
	}

	if len(result.of) != len(g.Nodes) {
		return nil, fmt.Errorf("graph %q has pipe chains without a head", g.Name)
	}
	return result, nil
}
