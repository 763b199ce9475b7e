// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
)

// Validate checks a graph for wiring issues. Returns a list of
// human-readable issue descriptions. An empty list means the graph is
// valid.
//
// Checks:
//   - Node IDs are non-empty and unique
//   - Process nodes name a program; tee nodes read a FIFO or pipe and
//     write somewhere (a tee with only a discarded stdout drains its
//     input)
//   - Endpoints carry a path where their kind needs one
//   - Every FIFO a node uses is declared, and every declared FIFO has
//     exactly one writer and exactly one reader
//   - Every pipe has exactly one writer and exactly one reader
//   - No regular file is written by two nodes
//   - The data flow is acyclic
func Validate(g *Graph) []string {
	var issues []string

	seen := make(map[string]bool)
	for index := range g.Nodes {
		node := &g.Nodes[index]
		prefix := fmt.Sprintf("nodes[%d]", index)
		if node.ID == "" {
			issues = append(issues, fmt.Sprintf("%s: id is required", prefix))
		} else {
			prefix = fmt.Sprintf("nodes[%d] %q", index, node.ID)
			if seen[node.ID] {
				issues = append(issues, fmt.Sprintf("%s: duplicate id", prefix))
			}
			seen[node.ID] = true
		}

		switch node.Kind {
		case Process:
			if node.Program == "" {
				issues = append(issues, fmt.Sprintf("%s: program is required", prefix))
			}
			if len(node.Outputs) > 0 {
				issues = append(issues, fmt.Sprintf("%s: outputs are only valid on tee nodes", prefix))
			}
		case Tee:
			if node.Stdin.Kind != EndpointFIFO && node.Stdin.Kind != EndpointPipe {
				issues = append(issues, fmt.Sprintf("%s: tee stdin must be a fifo or pipe, got %s", prefix, node.Stdin))
			}
			if len(node.Outputs) == 0 && node.Stdout.IsZero() {
				issues = append(issues, fmt.Sprintf("%s: tee has no outputs and no stdout", prefix))
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: unknown kind %q", prefix, node.Kind))
		}

		issues = append(issues, checkEndpoint(prefix, "stdin", node.Stdin, true)...)
		if node.Stdin.Kind == EndpointAppend {
			issues = append(issues, fmt.Sprintf("%s: stdin cannot be an append file", prefix))
		}
		issues = append(issues, checkEndpoint(prefix, "stdout", node.Stdout, true)...)
		for position, endpoint := range node.Outputs {
			issues = append(issues, checkEndpoint(prefix, fmt.Sprintf("outputs[%d]", position), endpoint, false)...)
		}
		for position, endpoint := range node.Reads {
			issues = append(issues, checkEndpoint(prefix, fmt.Sprintf("reads[%d]", position), endpoint, false)...)
		}
		for position, endpoint := range node.Writes {
			issues = append(issues, checkEndpoint(prefix, fmt.Sprintf("writes[%d]", position), endpoint, false)...)
		}
	}

	issues = append(issues, checkLinks(g)...)

	if _, err := g.LaunchOrder(); err != nil {
		issues = append(issues, fmt.Sprintf("data flow has a cycle through %v", cycleMembers(g)))
	}

	return issues
}

// checkEndpoint validates a single endpoint. Stream endpoints (stdin,
// stdout) may be inherited or discarded; argument endpoints may not.
func checkEndpoint(prefix, field string, endpoint Endpoint, stream bool) []string {
	switch endpoint.Kind {
	case EndpointInherit, EndpointDiscard:
		if !stream {
			return []string{fmt.Sprintf("%s: %s must be a fifo, file or pipe", prefix, field)}
		}
		if endpoint.Path != "" {
			return []string{fmt.Sprintf("%s: %s has a path but kind %q takes none", prefix, field, endpoint.Kind)}
		}
	case EndpointFIFO, EndpointFile, EndpointAppend, EndpointPipe:
		if endpoint.Path == "" {
			return []string{fmt.Sprintf("%s: %s %s endpoint has no path", prefix, field, endpoint.Kind)}
		}
	default:
		return []string{fmt.Sprintf("%s: %s has unknown endpoint kind %q", prefix, field, endpoint.Kind)}
	}
	return nil
}

type usage struct {
	writers []string
	readers []string
}

func checkLinks(g *Graph) []string {
	var issues []string

	fifos := make(map[string]*usage)
	pipes := make(map[string]*usage)
	files := make(map[string]*usage)
	var pipeOrder, fileOrder []string

	use := func(table map[string]*usage, order *[]string, path string) *usage {
		entry, ok := table[path]
		if !ok {
			entry = &usage{}
			table[path] = entry
			if order != nil {
				*order = append(*order, path)
			}
		}
		return entry
	}

	for _, path := range g.FIFOs {
		if _, ok := fifos[path]; ok {
			issues = append(issues, fmt.Sprintf("fifo %s declared twice", path))
			continue
		}
		fifos[path] = &usage{}
	}

	for index := range g.Nodes {
		node := &g.Nodes[index]
		for _, input := range node.Inputs() {
			switch input.Kind {
			case EndpointFIFO:
				entry, ok := fifos[input.Path]
				if !ok {
					issues = append(issues, fmt.Sprintf("node %q reads undeclared fifo %s", node.ID, input.Path))
					continue
				}
				entry.readers = append(entry.readers, node.ID)
			case EndpointPipe:
				entry := use(pipes, &pipeOrder, input.Path)
				entry.readers = append(entry.readers, node.ID)
			}
		}
		for _, target := range node.Targets() {
			switch target.Kind {
			case EndpointFIFO:
				entry, ok := fifos[target.Path]
				if !ok {
					issues = append(issues, fmt.Sprintf("node %q writes undeclared fifo %s", node.ID, target.Path))
					continue
				}
				entry.writers = append(entry.writers, node.ID)
			case EndpointPipe:
				entry := use(pipes, &pipeOrder, target.Path)
				entry.writers = append(entry.writers, node.ID)
			case EndpointFile, EndpointAppend:
				entry := use(files, &fileOrder, target.Path)
				entry.writers = append(entry.writers, node.ID)
			}
		}
	}

	for _, path := range g.FIFOs {
		entry := fifos[path]
		if len(entry.writers) != 1 {
			issues = append(issues, fmt.Sprintf("fifo %s has %d writers %v, want exactly one", path, len(entry.writers), entry.writers))
		}
		if len(entry.readers) != 1 {
			issues = append(issues, fmt.Sprintf("fifo %s has %d readers %v, want exactly one", path, len(entry.readers), entry.readers))
		}
	}
	for _, id := range pipeOrder {
		entry := pipes[id]
		if len(entry.writers) != 1 || len(entry.readers) != 1 {
			issues = append(issues, fmt.Sprintf("pipe %s has writers %v and readers %v, want exactly one of each", id, entry.writers, entry.readers))
		}
	}
	for _, path := range fileOrder {
		entry := files[path]
		if len(entry.writers) > 1 {
			issues = append(issues, fmt.Sprintf("file %s is written by %d nodes %v", path, len(entry.writers), entry.writers))
		}
	}

	return issues
}

// cycleMembers returns the IDs of the nodes that LaunchOrder could not
// place: every node on or upstream of a cycle.
func cycleMembers(g *Graph) []string {
	edges := g.edges()
	placed := make([]bool, len(g.Nodes))
	for changed := true; changed; {
		changed = false
		for index := range g.Nodes {
			if placed[index] {
				continue
			}
			ready := true
			for _, consumer := range edges[index] {
				if !placed[consumer] {
					ready = false
					break
				}
			}
			if ready {
				placed[index] = true
				changed = true
			}
		}
	}
	var members []string
	for index, done := range placed {
		if !done {
			members = append(members, g.Nodes[index].ID)
		}
	}
	slices.Sort(members)
	return members
}
