// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/riskwire/kwire/cmd/kwire/cli"
	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/layout"
)

// writeTree prints g as a tree: the graph, its sections, and every node
// with its command line and the endpoints it reads and writes.
func writeTree(w io.Writer, g *graph.Graph, hash graph.Hash) {
	theme := cli.NewTheme(w)

	root := tree.Root(fmt.Sprintf("%s %s",
		theme.Heading.Render(layout.RunName(g)),
		theme.Faint.Render(fmt.Sprintf("%s graph, %d nodes, %d fifos, hash %s",
			g.Name, len(g.Nodes), len(g.FIFOs), hash.Short())),
	)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(theme.Border)

	for _, section := range g.Sections() {
		name := section
		if name == "" {
			name = "(no section)"
		}
		branch := tree.Root(theme.Label.Render(name)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(theme.Border)
		for index := range g.Nodes {
			node := &g.Nodes[index]
			if node.Section != section {
				continue
			}
			branch.Child(nodeTree(theme, node))
		}
		root.Child(branch)
	}

	fmt.Fprintln(w, root.String())
}

func nodeTree(theme cli.Theme, node *graph.Node) *tree.Tree {
	label := theme.Label.Render(node.ID) + "  " + commandLine(node)
	branch := tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(theme.Border)

	arrow := func(direction string, endpoints ...graph.Endpoint) {
		for _, endpoint := range endpoints {
			if endpoint.IsZero() {
				continue
			}
			branch.Child(theme.Faint.Render(direction + " " + endpoint.String()))
		}
	}
	arrow("<", node.Stdin)
	arrow("<", node.Reads...)
	arrow(">", node.Stdout)
	arrow(">", node.Outputs...)
	arrow(">", node.Writes...)
	return branch
}

// commandLine renders the program and its arguments for display.
func commandLine(node *graph.Node) string {
	if node.Kind == graph.Tee {
		return fmt.Sprintf("tee (%d outputs)", len(node.Outputs))
	}
	return strings.Join(append([]string{node.Program}, node.Args...), " ")
}
