// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
)

// EndpointKind identifies what an endpoint attaches to.
type EndpointKind string

const (
	// EndpointInherit leaves the stream attached to the parent's
	// (for stdin, nothing is read; for stdout, output is discarded by
	// the supervisor and inherited by rendered scripts).
	EndpointInherit EndpointKind = ""
	// EndpointFIFO is a named pipe declared in Graph.FIFOs.
	EndpointFIFO EndpointKind = "fifo"
	// EndpointFile is a regular file, truncated when written.
	EndpointFile EndpointKind = "file"
	// EndpointAppend is a regular file opened for append.
	EndpointAppend EndpointKind = "append"
	// EndpointPipe is an anonymous pipe joining two nodes, named by an
	// identifier unique within the graph.
	EndpointPipe EndpointKind = "pipe"
	// EndpointDiscard is /dev/null.
	EndpointDiscard EndpointKind = "discard"
)

// Endpoint is where a stream attaches. Path is the filesystem path for
// FIFOs and files (relative to the run directory or absolute) and the
// pipe identifier for pipes.
type Endpoint struct {
	Kind EndpointKind `json:"kind,omitempty"`
	Path string       `json:"path,omitempty"`
}

// FIFO returns a named pipe endpoint.
func FIFO(path string) Endpoint { return Endpoint{Kind: EndpointFIFO, Path: path} }

// File returns a regular file endpoint. Writers truncate it.
func File(path string) Endpoint { return Endpoint{Kind: EndpointFile, Path: path} }

// AppendFile returns a regular file endpoint opened for append.
func AppendFile(path string) Endpoint { return Endpoint{Kind: EndpointAppend, Path: path} }

// Pipe returns an anonymous pipe endpoint.
func Pipe(id string) Endpoint { return Endpoint{Kind: EndpointPipe, Path: id} }

// Discard returns the /dev/null endpoint.
func Discard() Endpoint { return Endpoint{Kind: EndpointDiscard} }

// IsZero reports whether the endpoint is the inherited default.
func (e Endpoint) IsZero() bool { return e.Kind == EndpointInherit }

// IsFile reports whether the endpoint is a regular file.
func (e Endpoint) IsFile() bool { return e.Kind == EndpointFile || e.Kind == EndpointAppend }

// String renders the endpoint for humans, e.g. "fifo:fifo/il_P17".
func (e Endpoint) String() string {
	switch e.Kind {
	case EndpointInherit:
		return "inherit"
	case EndpointDiscard:
		return "/dev/null"
	default:
		return string(e.Kind) + ":" + e.Path
	}
}

// NodeKind distinguishes external processes from stream fan-out.
type NodeKind string

const (
	// Process is an external program.
	Process NodeKind = "process"
	// Tee copies its stdin to every output endpoint and to stdout.
	Tee NodeKind = "tee"
)

// Node is one vertex of the graph.
type Node struct {
	// ID identifies the node within the graph, e.g. "il_S1_eltcalc".
	ID string `json:"id"`

	// Section groups nodes for display and script comments, e.g.
	// "insured loss".
	Section string `json:"section,omitempty"`

	Kind NodeKind `json:"kind"`

	// Program is the executable name, resolved at launch. Tee nodes
	// carry "tee" for process-mode fan-out and rendered scripts.
	Program string   `json:"program,omitempty"`
	Args    []string `json:"args,omitempty"`

	Stdin  Endpoint `json:"stdin,omitzero"`
	Stdout Endpoint `json:"stdout,omitzero"`

	// Outputs are the tee targets, in order. Tee nodes only.
	Outputs []Endpoint `json:"outputs,omitempty"`

	// Reads and Writes are FIFOs and files the program opens itself
	// through its arguments.
	Reads  []Endpoint `json:"reads,omitempty"`
	Writes []Endpoint `json:"writes,omitempty"`
}

// Inputs returns every endpoint the node reads from.
func (n *Node) Inputs() []Endpoint {
	inputs := make([]Endpoint, 0, 1+len(n.Reads))
	if n.Stdin.Kind != EndpointInherit && n.Stdin.Kind != EndpointDiscard {
		inputs = append(inputs, n.Stdin)
	}
	return append(inputs, n.Reads...)
}

// Targets returns every endpoint the node writes to.
func (n *Node) Targets() []Endpoint {
	targets := make([]Endpoint, 0, 1+len(n.Outputs)+len(n.Writes))
	if n.Stdout.Kind != EndpointInherit && n.Stdout.Kind != EndpointDiscard {
		targets = append(targets, n.Stdout)
	}
	targets = append(targets, n.Outputs...)
	return append(targets, n.Writes...)
}

// CommandArgs returns the argument vector the node runs with. For tee
// nodes these are the output paths.
func (n *Node) CommandArgs() []string {
	if n.Kind != Tee {
		return n.Args
	}
	args := make([]string, 0, len(n.Outputs))
	for _, output := range n.Outputs {
		args = append(args, output.Path)
	}
	return args
}

// Graph is a pipeline for one partition, or the finalize pass.
type Graph struct {
	Name      string `json:"name"`
	Partition int    `json:"partition,omitempty"`

	// Dirs are created before anything starts.
	Dirs []string `json:"dirs,omitempty"`

	// FIFOs are created before anything starts.
	FIFOs []string `json:"fifos,omitempty"`

	// Nodes in declaration order.
	Nodes []Node `json:"nodes"`
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id string) *Node {
	for index := range g.Nodes {
		if g.Nodes[index].ID == id {
			return &g.Nodes[index]
		}
	}
	return nil
}

// OutputFiles returns the regular files the graph writes, in
// declaration order without duplicates.
func (g *Graph) OutputFiles() []string {
	var files []string
	for index := range g.Nodes {
		for _, target := range g.Nodes[index].Targets() {
			if target.IsFile() && !slices.Contains(files, target.Path) {
				files = append(files, target.Path)
			}
		}
	}
	return files
}

// InputFiles returns the regular files the graph reads but does not
// write itself: the files that must exist before it runs.
func (g *Graph) InputFiles() []string {
	written := g.OutputFiles()
	var files []string
	for index := range g.Nodes {
		for _, input := range g.Nodes[index].Inputs() {
			if input.IsFile() && !slices.Contains(written, input.Path) && !slices.Contains(files, input.Path) {
				files = append(files, input.Path)
			}
		}
	}
	return files
}

// Pipes returns the anonymous pipe identifiers in first-use order.
func (g *Graph) Pipes() []string {
	var pipes []string
	for index := range g.Nodes {
		node := &g.Nodes[index]
		for _, endpoint := range append(node.Inputs(), node.Targets()...) {
			if endpoint.Kind == EndpointPipe && !slices.Contains(pipes, endpoint.Path) {
				pipes = append(pipes, endpoint.Path)
			}
		}
	}
	return pipes
}

// Sections returns the section names in first-use order.
func (g *Graph) Sections() []string {
	var sections []string
	for _, node := range g.Nodes {
		if !slices.Contains(sections, node.Section) {
			sections = append(sections, node.Section)
		}
	}
	return sections
}

// edges returns, for every node index, the indices of the nodes that
// consume what it writes.
func (g *Graph) edges() [][]int {
	readers := make(map[Endpoint][]int)
	for index := range g.Nodes {
		for _, input := range g.Nodes[index].Inputs() {
			key := linkKey(input)
			readers[key] = append(readers[key], index)
		}
	}

	edges := make([][]int, len(g.Nodes))
	for index := range g.Nodes {
		for _, target := range g.Nodes[index].Targets() {
			for _, reader := range readers[linkKey(target)] {
				if !slices.Contains(edges[index], reader) {
					edges[index] = append(edges[index], reader)
				}
			}
		}
	}
	return edges
}

// linkKey folds append and truncate writes of the same file together.
func linkKey(endpoint Endpoint) Endpoint {
	if endpoint.Kind == EndpointAppend {
		endpoint.Kind = EndpointFile
	}
	return endpoint
}

// LaunchOrder returns the nodes with every consumer before its
// producers: reverse topological order, ties broken by declaration
// order. Returns an error if the graph has a cycle.
func (g *Graph) LaunchOrder() ([]*Node, error) {
	edges := g.edges()
	launched := make([]bool, len(g.Nodes))
	order := make([]*Node, 0, len(g.Nodes))

	for len(order) < len(g.Nodes) {
		next := -1
		for index := range g.Nodes {
			if launched[index] {
				continue
			}
			ready := true
			for _, consumer := range edges[index] {
				if !launched[consumer] {
					ready = false
					break
				}
			}
			if ready {
				next = index
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("graph %q has a cycle", g.Name)
		}
		launched[next] = true
		order = append(order, &g.Nodes[next])
	}
	return order, nil
}
