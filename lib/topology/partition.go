// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"slices"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/settings"
)

// Graph names.
const (
	PartitionGraph = "partition"
	FinalizeGraph  = "finalize"
)

// Options configures [Partition].
type Options struct {
	Layout *layout.Layout

	// Partition is the 1-based event partition; Total the number of
	// partitions.
	Partition int
	Total     int

	AllocGUL int
	AllocIL  int
	AllocRI  int

	Shuffle      ktools.Shuffle
	LegacyStream bool
}

func (o Options) check() error {
	if o.Layout == nil {
		return fmt.Errorf("no run directory layout")
	}
	if o.Total < 1 {
		return fmt.Errorf("total partitions must be positive, got %d", o.Total)
	}
	if o.Partition < 1 || o.Partition > o.Total {
		return fmt.Errorf("partition %d out of range 1 to %d", o.Partition, o.Total)
	}
	return nil
}

// builder accumulates a graph. Nodes are addressed by index while the
// chain is wired because appends move them.
type builder struct {
	layout    *layout.Layout
	settings  *settings.Settings
	options   Options
	partition int
	graph     *graph.Graph
}

func (b *builder) add(node graph.Node) int {
	b.graph.Nodes = append(b.graph.Nodes, node)
	return len(b.graph.Nodes) - 1
}

func (b *builder) node(index int) *graph.Node {
	return &b.graph.Nodes[index]
}

func (b *builder) dir(path string) {
	if !slices.Contains(b.graph.Dirs, path) {
		b.graph.Dirs = append(b.graph.Dirs, path)
	}
}

func (b *builder) fifo(path string) {
	b.graph.FIFOs = append(b.graph.FIFOs, path)
}

func idPrefix(correlated bool) string {
	if correlated {
		return layout.CorrelatedDir + "/"
	}
	return ""
}

func sectionName(name string, correlated bool) string {
	if correlated {
		return name + " (full correlation)"
	}
	return name
}

func variants(s *settings.Settings) []bool {
	if s.FullCorrelation {
		return []bool{false, true}
	}
	return []bool{false}
}

// chainPerils returns the perils the producer chain computes: every
// peril up to the last enabled one.
func chainPerils(s *settings.Settings) []ktools.Peril {
	enabled := s.Perils()
	if len(enabled) == 0 {
		return nil
	}
	last := slices.Index(ktools.Perils, enabled[len(enabled)-1])
	return ktools.Perils[:last+1]
}

// Partition builds the process graph of one event partition.
func Partition(s *settings.Settings, options Options) (*graph.Graph, error) {
	if err := options.check(); err != nil {
		return nil, err
	}
	if issues := settings.Validate(s); len(issues) > 0 {
		return nil, fmt.Errorf("invalid analysis settings: %s", issues[0])
	}

	b := &builder{
		layout:    options.Layout,
		settings:  s,
		options:   options,
		partition: options.Partition,
		graph: &graph.Graph{
			Name:      PartitionGraph,
			Partition: options.Partition,
		},
	}

	b.directories()
	b.fifos()

	for _, correlated := range variants(s) {
		perils := s.Perils()
		for index := len(perils) - 1; index >= 0; index-- {
			b.summarySection(perils[index], correlated)
		}
	}

	b.producerChain()
	if s.FullCorrelation {
		b.correlatedChain()
	}

	return b.graph, nil
}

func (b *builder) directories() {
	l := b.layout
	for _, correlated := range variants(b.settings) {
		b.dir(l.OutputDir(correlated))
		b.dir(l.FIFODir(correlated))
		b.dir(l.KatDir(correlated))
	}
	for _, correlated := range variants(b.settings) {
		for _, peril := range b.settings.Perils() {
			for _, summary := range b.settings.Summaries(peril) {
				if summary.AAL {
					b.dir(l.AALDir(peril, correlated, summary.ID))
				}
				if summary.KeepsLEC() {
					b.dir(l.LECDir(peril, correlated, summary.ID))
				}
			}
		}
	}
}

// fifos declares FIFOs in stream order, each stream before its
// summary FIFOs.
func (b *builder) fifos() {
	l := b.layout
	n := b.partition
	if b.settings.FullCorrelation && b.correlatedSource() == l.CorrelatedFIFO(n) {
		b.fifo(l.CorrelatedFIFO(n))
	}
	for _, correlated := range variants(b.settings) {
		for _, peril := range b.settings.Perils() {
			b.fifo(l.StreamFIFO(peril, correlated, n))
			indexed := b.indexed(peril)
			for _, summary := range b.settings.Summaries(peril) {
				b.fifo(l.SummaryFIFO(peril, correlated, summary.ID, n))
				if indexed {
					b.fifo(l.SummaryIndexFIFO(peril, correlated, summary.ID, n))
				}
				for _, output := range summary.Outputs() {
					b.fifo(l.OutputFIFO(peril, correlated, summary.ID, output, n))
				}
			}
		}
	}
}

// indexed reports whether summarycalc writes index streams for the
// peril: summarycalc -m indexes every summary set at once.
func (b *builder) indexed(peril ktools.Peril) bool {
	return slices.ContainsFunc(b.settings.Summaries(peril), settings.Summary.Indexed)
}

func (b *builder) summarySection(peril ktools.Peril, correlated bool) {
	l := b.layout
	n := b.partition
	prefix := idPrefix(correlated)
	section := sectionName(peril.Description(), correlated)
	summaries := b.settings.Summaries(peril)
	indexed := b.indexed(peril)

	for _, summary := range summaries {
		for _, output := range summary.Outputs() {
			b.add(graph.Node{
				ID:      fmt.Sprintf("%s%s_S%d_%s", prefix, peril, summary.ID, output),
				Section: section,
				Kind:    graph.Process,
				Program: output.Tool(),
				Args:    ktools.OutputArgs(output, n == 1),
				Stdin:   graph.FIFO(l.OutputFIFO(peril, correlated, summary.ID, output, n)),
				Stdout:  graph.File(l.PartitionOutput(peril, correlated, summary.ID, output, n)),
			})
		}
	}

	for _, summary := range summaries {
		var outputs []graph.Endpoint
		for _, output := range summary.Outputs() {
			outputs = append(outputs, graph.FIFO(l.OutputFIFO(peril, correlated, summary.ID, output, n)))
		}
		if summary.AAL {
			outputs = append(outputs, graph.File(l.AALFile(peril, correlated, summary.ID, n, false)))
		}
		if summary.KeepsLEC() {
			outputs = append(outputs, graph.File(l.LECFile(peril, correlated, summary.ID, n, false)))
		}
		b.add(graph.Node{
			ID:      fmt.Sprintf("%s%s_S%d_summary_tee", prefix, peril, summary.ID),
			Section: section,
			Kind:    graph.Tee,
			Program: ktools.Tee,
			Stdin:   graph.FIFO(l.SummaryFIFO(peril, correlated, summary.ID, n)),
			Stdout:  graph.Discard(),
			Outputs: outputs,
		})

		if !indexed {
			continue
		}
		var indexOutputs []graph.Endpoint
		if summary.AAL {
			indexOutputs = append(indexOutputs, graph.File(l.AALFile(peril, correlated, summary.ID, n, true)))
		}
		if summary.KeepsLEC() {
			indexOutputs = append(indexOutputs, graph.File(l.LECFile(peril, correlated, summary.ID, n, true)))
		}
		b.add(graph.Node{
			ID:      fmt.Sprintf("%s%s_S%d_summary_idx_tee", prefix, peril, summary.ID),
			Section: section,
			Kind:    graph.Tee,
			Program: ktools.Tee,
			Stdin:   graph.FIFO(l.SummaryIndexFIFO(peril, correlated, summary.ID, n)),
			Stdout:  graph.Discard(),
			Outputs: indexOutputs,
		})
	}

	var targets []ktools.SummaryTarget
	var writes []graph.Endpoint
	for _, summary := range summaries {
		path := l.SummaryFIFO(peril, correlated, summary.ID, n)
		targets = append(targets, ktools.SummaryTarget{ID: summary.ID, Path: path})
		writes = append(writes, graph.FIFO(path))
		if indexed {
			writes = append(writes, graph.FIFO(l.SummaryIndexFIFO(peril, correlated, summary.ID, n)))
		}
	}
	b.add(graph.Node{
		ID:      fmt.Sprintf("%s%s_summarycalc", prefix, peril),
		Section: section,
		Kind:    graph.Process,
		Program: ktools.Summarycalc,
		Args: ktools.SummarycalcOptions{
			Peril:    peril,
			Coverage: !correlated && b.coverageStream(),
			Indexed:  indexed,
			Inuring:  b.settings.InuringPriority(),
			Targets:  targets,
		}.Args(),
		Stdin:  graph.FIFO(l.StreamFIFO(peril, correlated, n)),
		Writes: writes,
	})
}

// stream is where the loss stream of the chain currently flows: out of
// the stdout of a node not yet attached, or already in a FIFO.
type stream struct {
	producer int
	source   graph.Endpoint
}

// connect feeds the stream to consumer's stdin, through an anonymous
// pipe named after the producer when the producer's stdout is free.
func (b *builder) connect(current stream, consumer int) {
	if current.producer < 0 {
		b.node(consumer).Stdin = current.source
		return
	}
	producer := b.node(current.producer)
	producer.Stdout = graph.Pipe(producer.ID)
	b.node(consumer).Stdin = graph.Pipe(producer.ID)
}

// correlatedSource is the FIFO gulcalc writes its fully correlated
// output to. When ground-up loss is the only stream computed, that is
// the correlated GUL stream FIFO itself.
func (b *builder) correlatedSource() string {
	perils := chainPerils(b.settings)
	if len(perils) == 1 {
		return b.layout.StreamFIFO(ktools.GUL, true, b.partition)
	}
	return b.layout.CorrelatedFIFO(b.partition)
}

// coverageStream reports whether the GUL summaries read the legacy
// coverage stream. The fully correlated side output is always an item
// stream, and without GUL summaries nothing reads coverage.
func (b *builder) coverageStream() bool {
	return b.options.LegacyStream && b.settings.Enabled(ktools.GUL)
}

func (b *builder) producerChain() {
	section := "loss generation"
	s := b.settings

	eve := b.add(graph.Node{
		ID:      ktools.Eve,
		Section: section,
		Kind:    graph.Process,
		Program: ktools.Eve,
		Args:    ktools.EveArgs(b.partition, b.options.Total, b.options.Shuffle),
	})
	getmodel := b.add(graph.Node{
		ID:      ktools.Getmodel,
		Section: section,
		Kind:    graph.Process,
		Program: ktools.Getmodel,
	})
	b.connect(stream{producer: eve}, getmodel)

	options := ktools.GulcalcOptions{
		Samples:    s.NumberOfSamples,
		Threshold:  s.GULThreshold,
		RandomFile: s.UsesRandomFile(),
		Alloc:      b.options.AllocGUL,
	}
	var writes []graph.Endpoint
	if b.coverageStream() {
		options.Legacy = true
		if len(chainPerils(s)) > 1 {
			options.Coverage = b.layout.StreamFIFO(ktools.GUL, false, b.partition)
			writes = append(writes, graph.FIFO(options.Coverage))
		}
	}
	if s.FullCorrelation {
		options.FullCorrelation = b.correlatedSource()
		writes = append(writes, graph.FIFO(options.FullCorrelation))
	}
	gulcalc := b.add(graph.Node{
		ID:      ktools.Gulcalc,
		Section: section,
		Kind:    graph.Process,
		Program: ktools.Gulcalc,
		Args:    options.Args(),
		Writes:  writes,
	})
	b.connect(stream{producer: getmodel}, gulcalc)

	b.chain(stream{producer: gulcalc}, false, section)
}

func (b *builder) correlatedChain() {
	source := b.correlatedSource()
	b.chain(stream{producer: -1, source: graph.FIFO(source)}, true, sectionName("loss generation", true))
}

// chain walks the perils from GUL: every requested stream is delivered
// to its FIFO, and every stream that feeds a further pass is passed on
// to that pass's fmcalc.
func (b *builder) chain(current stream, correlated bool, section string) {
	l := b.layout
	prefix := idPrefix(correlated)
	perils := chainPerils(b.settings)

	for index, peril := range perils {
		fifo := graph.FIFO(l.StreamFIFO(peril, correlated, b.partition))

		if index == len(perils)-1 {
			if current.producer >= 0 {
				b.node(current.producer).Stdout = fifo
			} else if current.source != fifo {
				drain := b.add(graph.Node{
					ID:      fmt.Sprintf("%s%s_tee", prefix, peril),
					Section: section,
					Kind:    graph.Tee,
					Program: ktools.Tee,
					Stdout:  graph.Discard(),
					Outputs: []graph.Endpoint{fifo},
				})
				b.connect(current, drain)
			}
			return
		}

		// gulcalc writes the coverage stream to the GUL FIFO itself.
		coverage := peril == ktools.GUL && !correlated && b.coverageStream()
		if b.settings.Enabled(peril) && !coverage {
			tee := b.add(graph.Node{
				ID:      fmt.Sprintf("%s%s_tee", prefix, peril),
				Section: section,
				Kind:    graph.Tee,
				Program: ktools.Tee,
				Outputs: []graph.Endpoint{fifo},
			})
			b.connect(current, tee)
			current = stream{producer: tee}
		}

		next := perils[index+1]
		args := ktools.FmcalcArgs(b.options.AllocIL)
		if next == ktools.RI {
			args = ktools.ReinsuranceArgs(b.options.AllocRI, b.settings.InuringPriority())
		}
		fmcalc := b.add(graph.Node{
			ID:      fmt.Sprintf("%s%s_fmcalc", prefix, next),
			Section: section,
			Kind:    graph.Process,
			Program: ktools.Fmcalc,
			Args:    args,
		})
		b.connect(current, fmcalc)
		current = stream{producer: fmcalc}
	}
}
