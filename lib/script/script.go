// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/layout"
)

// Options configures [Render].
type Options struct {
	// RunDir, if set, is entered before anything else.
	RunDir string

	// StderrLog is truncated at the start, and every process appends
	// its stderr to it. Empty leaves stderr alone.
	StderrLog string

	// BinDir, if set, prefixes every program except tee.
	BinDir string

	// Hash is the graph hash, recorded in the header.
	Hash string

	// Debug turns on command tracing (set -x).
	Debug bool
}

// Render writes the bash script of g to w.
func Render(w io.Writer, g *graph.Graph, options Options) error {
	chains, err := buildChains(g)
	if err != nil {
		return err
	}
	order, err := g.LaunchOrder()
	if err != nil {
		return err
	}

	out := &writer{buffer: bufio.NewWriter(w)}
	out.header(g, options)
	out.reset(g, options)
	out.launch(g, order, chains, options)
	out.join()
	if out.err != nil {
		return out.err
	}
	return out.buffer.Flush()
}

// writer accumulates the first quoting error so rendering code can
// stay linear.
type writer struct {
	buffer *bufio.Writer
	err    error
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(w.buffer, format+"\n", args...)
}

// quote returns word quoted for bash. Words needing no quotes are
// returned unchanged.
func (w *writer) quote(word string) string {
	quoted, err := syntax.Quote(word, syntax.LangBash)
	if err != nil {
		if w.err == nil {
			w.err = fmt.Errorf("cannot quote %q: %w", word, err)
		}
		return "''"
	}
	return quoted
}

func (w *writer) words(words []string) string {
	quoted := make([]string, len(words))
	for index, word := range words {
		quoted[index] = w.quote(word)
	}
	return strings.Join(quoted, " ")
}

func (w *writer) header(g *graph.Graph, options Options) {
	w.line("#!/bin/bash")
	description := fmt.Sprintf("graph %s", g.Name)
	if g.Partition > 0 {
		description = fmt.Sprintf("partition %d (graph %s)", g.Partition, g.Name)
	}
	w.line("# kwire %s", description)
	if options.Hash != "" {
		w.line("# graph hash %s", options.Hash)
	}
	w.line("")
	if options.RunDir != "" {
		w.line("cd -- %s", w.quote(options.RunDir))
	}
	w.line("set -euET -o pipefail")
	w.line("shopt -s inherit_errexit")
	if options.Debug {
		w.line("set -x")
	}
	if options.StderrLog != "" {
		w.line("LOG=%s", w.quote(options.StderrLog))
	}
	w.line("")
}

// reset mirrors layout.Prepare: it touches only the graph's own files.
func (w *writer) reset(g *graph.Graph, options Options) {
	dirs := g.Dirs
	if options.StderrLog != "" {
		dirs = append([]string{filepath.Dir(options.StderrLog)}, dirs...)
	}
	if len(dirs) > 0 {
		w.line("mkdir -p -- %s", w.words(dirs))
	}

	stale := append(append([]string(nil), g.FIFOs...), g.OutputFiles()...)
	if len(stale) > 0 {
		w.line("rm -f -- %s", w.words(stale))
	}
	if options.StderrLog != "" {
		w.line(`: > "$LOG"`)
	}
	w.line("")

	for _, fifo := range g.FIFOs {
		w.line("mkfifo -m %o -- %s", layout.FIFOMode, w.quote(fifo))
	}
	if len(g.FIFOs) > 0 {
		w.line("")
	}
}

func (w *writer) launch(g *graph.Graph, order []*graph.Node, chains *chains, options Options) {
	w.line("pids=()")
	emitted := make([]bool, len(chains.members))
	section, first := "", true
	for _, node := range order {
		chain := chains.of[node.ID]
		if emitted[chain] {
			continue
		}
		emitted[chain] = true

		members := chains.members[chain]
		head := g.Node(members[0])
		if first || head.Section != section {
			first = false
			section = head.Section
			w.line("")
			if section != "" {
				w.line("# %s", section)
			}
		}

		commands := make([]string, 0, len(members))
		for position, id := range members {
			member := g.Node(id)
			command := w.command(member, options)
			if position == 0 {
				command += w.redirectIn(member.Stdin)
			}
			if position == len(members)-1 {
				command += w.redirectOut(member.Stdout)
			}
			if options.StderrLog != "" {
				command += ` 2>> "$LOG"`
			}
			commands = append(commands, command)
		}
		w.line("%s &", strings.Join(commands, " | "))
		w.line("pids+=($!)")
	}
	w.line("")
}

func (w *writer) command(node *graph.Node, options Options) string {
	program := node.Program
	if options.BinDir != "" && node.Kind == graph.Process {
		program = filepath.Join(options.BinDir, program)
	}
	args := node.CommandArgs()
	if len(args) == 0 {
		return w.quote(program)
	}
	return w.quote(program) + " " + w.words(args)
}

func (w *writer) redirectIn(endpoint graph.Endpoint) string {
	switch endpoint.Kind {
	case graph.EndpointFIFO, graph.EndpointFile:
		return " < " + w.quote(endpoint.Path)
	case graph.EndpointDiscard:
		return " < /dev/null"
	default:
		return ""
	}
}

func (w *writer) redirectOut(endpoint graph.Endpoint) string {
	switch endpoint.Kind {
	case graph.EndpointFIFO, graph.EndpointFile:
		return " > " + w.quote(endpoint.Path)
	case graph.EndpointAppend:
		return " >> " + w.quote(endpoint.Path)
	case graph.EndpointDiscard:
		return " > /dev/null"
	default:
		return ""
	}
}

// join waits on every PID and exits with the first non-zero status, in
// launch order.
func (w *writer) join() {
	w.line("status=0")
	w.line(`for pid in "${pids[@]}"; do`)
	w.line(`	wait "$pid" || { code=$?; if [ "$status" -eq 0 ]; then status=$code; fi; }`)
	w.line("done")
	w.line(`exit "$status"`)
}
