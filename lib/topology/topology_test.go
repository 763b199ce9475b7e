// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
	"github.com/riskwire/kwire/lib/layout"
	"github.com/riskwire/kwire/lib/settings"
)

// pipelineSettings is the shape of the classic per-partition script:
// ground up and insured loss, one summary set with every output, and
// the fully correlated variant.
const pipelineSettings = `{
	"gul_output": true,
	"gul_summaries": [{"id": 1, "eltcalc": true, "summarycalc": true, "pltcalc": true, "aalcalc": true,
		"lec_output": true, "leccalc": {"outputs": {"full_uncertainty_aep": true}}}],
	"il_output": true,
	"il_summaries": [{"id": 1, "eltcalc": true, "summarycalc": true, "pltcalc": true, "aalcalc": true,
		"lec_output": true, "leccalc": {"outputs": {"full_uncertainty_aep": true}}}],
	"number_of_samples": 100,
	"gul_threshold": 100,
	"full_correlation": true
}`

func parseSettings(t *testing.T, text string) *settings.Settings {
	t.Helper()
	s, err := settings.Parse([]byte(text))
	if err != nil {
		t.Fatalf("settings.Parse: %v", err)
	}
	return s
}

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	l, err := layout.New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func testOptions(l *layout.Layout, partition int) Options {
	return Options{
		Layout:    l,
		Partition: partition,
		Total:     20,
		AllocGUL:  1,
		AllocIL:   ktools.DefaultAllocIL,
		AllocRI:   ktools.DefaultAllocRI,
		Shuffle:   ktools.ShuffleRoundRobin,
	}
}

func nodeIDs(g *graph.Graph) []string {
	var ids []string
	for _, node := range g.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestPartitionShape(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	g, err := Partition(parseSettings(t, pipelineSettings), testOptions(l, 17))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if issues := graph.Validate(g); len(issues) != 0 {
		t.Fatalf("Validate = %q", issues)
	}

	section := func(prefix, peril string) []string {
		return []string{
			prefix + peril + "_S1_eltcalc",
			prefix + peril + "_S1_summarycalc",
			prefix + peril + "_S1_pltcalc",
			prefix + peril + "_S1_summary_tee",
			prefix + peril + "_S1_summary_idx_tee",
			prefix + peril + "_summarycalc",
		}
	}
	var want []string
	want = append(want, section("", "il")...)
	want = append(want, section("", "gul")...)
	want = append(want, section("full_correlation/", "il")...)
	want = append(want, section("full_correlation/", "gul")...)
	want = append(want, "eve", "getmodel", "gulcalc", "gul_tee", "il_fmcalc")
	want = append(want, "full_correlation/gul_tee", "full_correlation/il_fmcalc")
	if diff := cmp.Diff(want, nodeIDs(g)); diff != "" {
		t.Errorf("node order mismatch (-want +got):\n%s", diff)
	}

	gulcalc := g.Node("gulcalc")
	wantArgs := []string{"-S100", "-L100", "-r", "-j", "fifo/full_correlation/gul_fc_P17", "-a1", "-i", "-"}
	if diff := cmp.Diff(wantArgs, gulcalc.Args); diff != "" {
		t.Errorf("gulcalc args mismatch (-want +got):\n%s", diff)
	}
	if gulcalc.Stdout != graph.Pipe("gulcalc") {
		t.Errorf("gulcalc stdout = %s, want pipe:gulcalc", gulcalc.Stdout)
	}

	tee := g.Node("gul_tee")
	if tee.Stdin != graph.Pipe("gulcalc") || tee.Stdout != graph.Pipe("gul_tee") {
		t.Errorf("gul_tee stdin %s stdout %s", tee.Stdin, tee.Stdout)
	}
	if diff := cmp.Diff([]graph.Endpoint{graph.FIFO("fifo/gul_P17")}, tee.Outputs); diff != "" {
		t.Errorf("gul_tee outputs mismatch (-want +got):\n%s", diff)
	}

	fmcalc := g.Node("il_fmcalc")
	if fmcalc.Stdout != graph.FIFO("fifo/il_P17") {
		t.Errorf("il_fmcalc stdout = %s, want fifo:fifo/il_P17", fmcalc.Stdout)
	}
	if diff := cmp.Diff([]string{"-a2"}, fmcalc.Args); diff != "" {
		t.Errorf("il_fmcalc args mismatch (-want +got):\n%s", diff)
	}

	correlated := g.Node("full_correlation/gul_tee")
	if correlated.Stdin != graph.FIFO("fifo/full_correlation/gul_fc_P17") {
		t.Errorf("correlated tee stdin = %s", correlated.Stdin)
	}
	if g.Node("full_correlation/il_fmcalc").Stdout != graph.FIFO("fifo/full_correlation/il_P17") {
		t.Errorf("correlated fmcalc stdout = %s", g.Node("full_correlation/il_fmcalc").Stdout)
	}

	summarycalc := g.Node("il_summarycalc")
	wantSummary := []string{"-m", "-f", "-1", "fifo/il_S1_summary_P17"}
	if diff := cmp.Diff(wantSummary, summarycalc.Args); diff != "" {
		t.Errorf("il summarycalc args mismatch (-want +got):\n%s", diff)
	}

	mainTee := g.Node("il_S1_summary_tee")
	wantOutputs := []graph.Endpoint{
		graph.FIFO("fifo/il_S1_eltcalc_P17"),
		graph.FIFO("fifo/il_S1_summarycalc_P17"),
		graph.FIFO("fifo/il_S1_pltcalc_P17"),
		graph.File("work/il_S1_summaryaalcalc/P17.bin"),
		graph.File("work/il_S1_summaryleccalc/P17.bin"),
	}
	if diff := cmp.Diff(wantOutputs, mainTee.Outputs); diff != "" {
		t.Errorf("summary tee outputs mismatch (-want +got):\n%s", diff)
	}

	if g.FIFOs[0] != "fifo/full_correlation/gul_fc_P17" {
		t.Errorf("first fifo = %s, want the gulcalc side output", g.FIFOs[0])
	}
}

// expectedOutputs lists what a partition must produce: one file per
// peril, variant, summary set and requested output, plus the aalcalc
// and leccalc binaries and their indexes.
func expectedOutputs(l *layout.Layout, s *settings.Settings, partition int) []string {
	var files []string
	for _, correlated := range variants(s) {
		for _, peril := range s.Perils() {
			for _, summary := range s.Summaries(peril) {
				for _, output := range summary.Outputs() {
					files = append(files, l.PartitionOutput(peril, correlated, summary.ID, output, partition))
				}
				if summary.AAL {
					files = append(files,
						l.AALFile(peril, correlated, summary.ID, partition, false),
						l.AALFile(peril, correlated, summary.ID, partition, true))
				}
				if summary.KeepsLEC() {
					files = append(files,
						l.LECFile(peril, correlated, summary.ID, partition, false),
						l.LECFile(peril, correlated, summary.ID, partition, true))
				}
			}
		}
	}
	slices.Sort(files)
	return files
}

func TestPartitionCombinations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings string
		chain    []string
	}{
		{
			name:     "classic",
			settings: pipelineSettings,
			chain:    []string{"eve", "getmodel", "gulcalc", "gul_tee", "il_fmcalc", "full_correlation/gul_tee", "full_correlation/il_fmcalc"},
		},
		{
			name: "ground up only",
			settings: `{"gul_output": true, "number_of_samples": 10, "full_correlation": true,
				"gul_summaries": [{"id": 1, "eltcalc": true}, {"id": 2, "pltcalc": true, "aalcalc": true}]}`,
			chain: []string{"eve", "getmodel", "gulcalc"},
		},
		{
			name: "insured only",
			settings: `{"il_output": true, "number_of_samples": 10,
				"il_summaries": [{"id": 1, "summarycalc": true}]}`,
			chain: []string{"eve", "getmodel", "gulcalc", "il_fmcalc"},
		},
		{
			name: "reinsurance only with correlation",
			settings: `{"ri_output": true, "number_of_samples": 10, "full_correlation": true, "ri_inuring_priorities": [1, 2],
				"ri_summaries": [{"id": 1, "eltcalc": true, "aalcalc": true}]}`,
			chain: []string{"eve", "getmodel", "gulcalc", "il_fmcalc", "ri_fmcalc", "full_correlation/il_fmcalc", "full_correlation/ri_fmcalc"},
		},
		{
			name: "every stream",
			settings: `{"gul_output": true, "il_output": true, "ri_output": true, "number_of_samples": 10,
				"gul_summaries": [{"id": 1, "eltcalc": true}],
				"il_summaries": [{"id": 1, "pltcalc": true}, {"id": 3, "summarycalc": true}],
				"ri_summaries": [{"id": 2, "aalcalc": true}]}`,
			chain: []string{"eve", "getmodel", "gulcalc", "gul_tee", "il_fmcalc", "il_tee", "ri_fmcalc"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			l := testLayout(t)
			s := parseSettings(t, test.settings)
			g, err := Partition(s, testOptions(l, 3))
			if err != nil {
				t.Fatalf("Partition: %v", err)
			}
			if issues := graph.Validate(g); len(issues) != 0 {
				t.Fatalf("Validate = %q", issues)
			}

			got := g.OutputFiles()
			slices.Sort(got)
			if diff := cmp.Diff(expectedOutputs(l, s, 3), got); diff != "" {
				t.Errorf("output files mismatch (-want +got):\n%s", diff)
			}

			var chain []string
			for _, node := range g.Nodes {
				if strings.HasPrefix(node.Section, "loss generation") {
					chain = append(chain, node.ID)
				}
			}
			if diff := cmp.Diff(test.chain, chain); diff != "" {
				t.Errorf("producer chain mismatch (-want +got):\n%s", diff)
			}

			for _, node := range g.Nodes {
				if node.Program == "" {
					t.Errorf("node %s has no program", node.ID)
				}
			}
		})
	}
}

func TestPartitionCorrelatedGroundUpOnly(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, `{"gul_output": true, "number_of_samples": 10, "full_correlation": true,
		"gul_summaries": [{"id": 1, "eltcalc": true}]}`)
	g, err := Partition(s, testOptions(l, 1))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}

	gulcalc := g.Node("gulcalc")
	if !slices.Contains(gulcalc.Args, "fifo/full_correlation/gul_P1") {
		t.Errorf("gulcalc args %q do not write the correlated stream directly", gulcalc.Args)
	}
	if slices.Contains(g.FIFOs, l.CorrelatedFIFO(1)) {
		t.Error("side output fifo declared although gulcalc writes the stream fifo")
	}
}

func TestPartitionLegacyStream(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	options := testOptions(l, 1)
	options.LegacyStream = true
	g, err := Partition(parseSettings(t, pipelineSettings), options)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if issues := graph.Validate(g); len(issues) != 0 {
		t.Fatalf("graph.Validate: %v", issues)
	}

	// gulcalc writes coverage to the GUL fifo and items to fmcalc.
	gulcalc := g.Node("gulcalc")
	tail := gulcalc.Args[len(gulcalc.Args)-4:]
	if diff := cmp.Diff([]string{"-c", "fifo/gul_P1", "-i", "-"}, tail); diff != "" {
		t.Errorf("gulcalc args %q mismatch (-want +got):\n%s", gulcalc.Args, diff)
	}
	if !slices.Contains(gulcalc.Writes, graph.FIFO("fifo/gul_P1")) {
		t.Errorf("gulcalc writes %v, want the GUL stream fifo", gulcalc.Writes)
	}
	if g.Node("gul_tee") != nil {
		t.Error("GUL stream is split with a tee although gulcalc writes it")
	}
	if g.Node("il_fmcalc").Stdin != graph.Pipe("gulcalc") {
		t.Errorf("il_fmcalc stdin = %s, want gulcalc's item stream", g.Node("il_fmcalc").Stdin)
	}

	if args := g.Node("gul_summarycalc").Args; !slices.Contains(args, "-g") || slices.Contains(args, "-i") {
		t.Errorf("gul_summarycalc args = %q, want the coverage stream switch -g", args)
	}
	// The fully correlated side output stays an item stream.
	if args := g.Node("full_correlation/gul_summarycalc").Args; !slices.Contains(args, "-i") {
		t.Errorf("correlated gul_summarycalc args = %q, want -i", args)
	}
}

func TestPartitionLegacyStreamSinglePeril(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings string
		wantTail []string
		coverage bool
	}{
		{
			name:     "ground up only",
			settings: `{"gul_output": true, "number_of_samples": 10, "gul_summaries": [{"id": 1, "eltcalc": true}]}`,
			wantTail: []string{"-c", "-"},
			coverage: true,
		},
		{
			name:     "insured only",
			settings: `{"il_output": true, "number_of_samples": 10, "il_summaries": [{"id": 1, "eltcalc": true}]}`,
			wantTail: []string{"-a1", "-i", "-"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			options := testOptions(testLayout(t), 1)
			options.LegacyStream = true
			g, err := Partition(parseSettings(t, test.settings), options)
			if err != nil {
				t.Fatalf("Partition: %v", err)
			}
			if issues := graph.Validate(g); len(issues) != 0 {
				t.Fatalf("graph.Validate: %v", issues)
			}
			args := g.Node("gulcalc").Args
			if diff := cmp.Diff(test.wantTail, args[len(args)-len(test.wantTail):]); diff != "" {
				t.Errorf("gulcalc args %q mismatch (-want +got):\n%s", args, diff)
			}
			if test.coverage && !slices.Contains(g.Node("gul_summarycalc").Args, "-g") {
				t.Errorf("gul_summarycalc args = %q, want -g", g.Node("gul_summarycalc").Args)
			}
		})
	}
}

func TestPartitionReinsurance(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, `{"ri_output": true, "number_of_samples": 10, "ri_inuring_priorities": [1, 2],
		"ri_summaries": [{"id": 1, "eltcalc": true}]}`)
	g, err := Partition(s, testOptions(l, 2))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}

	if diff := cmp.Diff([]string{"-a3", "-n", "-p", "RI_2"}, g.Node("ri_fmcalc").Args); diff != "" {
		t.Errorf("ri_fmcalc args mismatch (-want +got):\n%s", diff)
	}
	wantSummary := []string{"-f", "-p", "RI_2", "-1", "fifo/ri_S1_summary_P2"}
	if diff := cmp.Diff(wantSummary, g.Node("ri_summarycalc").Args); diff != "" {
		t.Errorf("ri summarycalc args mismatch (-want +got):\n%s", diff)
	}
	// The insured stream is not requested, so it flows straight into
	// the reinsurance pass.
	if g.Node("il_fmcalc").Stdout != graph.Pipe("il_fmcalc") || g.Node("il_tee") != nil {
		t.Errorf("il_fmcalc stdout = %s, want a pipe straight to ri_fmcalc", g.Node("il_fmcalc").Stdout)
	}
}

func TestPartitionHeaders(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, pipelineSettings)

	first, err := Partition(s, testOptions(l, 1))
	if err != nil {
		t.Fatal(err)
	}
	later, err := Partition(s, testOptions(l, 2))
	if err != nil {
		t.Fatal(err)
	}

	if args := first.Node("il_S1_eltcalc").Args; len(args) != 0 {
		t.Errorf("partition 1 eltcalc args = %q, want header", args)
	}
	if diff := cmp.Diff([]string{"-s"}, later.Node("il_S1_eltcalc").Args); diff != "" {
		t.Errorf("partition 2 eltcalc args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-H"}, later.Node("il_S1_pltcalc").Args); diff != "" {
		t.Errorf("partition 2 pltcalc args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2", "20"}, later.Node("eve").Args); diff != "" {
		t.Errorf("eve args mismatch (-want +got):\n%s", diff)
	}
}

func TestPartitionErrors(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, pipelineSettings)

	if _, err := Partition(s, testOptions(l, 21)); err == nil {
		t.Error("Partition(21 of 20) succeeded, want error")
	}
	if _, err := Partition(s, Options{Partition: 1, Total: 1}); err == nil {
		t.Error("Partition without layout succeeded, want error")
	}
	invalid := parseSettings(t, `{"gul_output": true}`)
	if _, err := Partition(invalid, testOptions(l, 1)); err == nil {
		t.Error("Partition with invalid settings succeeded, want error")
	}
}

func TestPartitionHashStable(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, pipelineSettings)
	first, _ := Partition(s, testOptions(l, 5))
	second, _ := Partition(s, testOptions(l, 5))
	other, _ := Partition(s, testOptions(l, 6))

	a, err := first.Hash()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := second.Hash()
	c, _ := other.Hash()
	if a != b {
		t.Error("same partition hashes differently")
	}
	if a == c {
		t.Error("different partitions hash the same")
	}
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	l := testLayout(t)
	s := parseSettings(t, pipelineSettings)
	g, err := Finalize(s, FinalizeOptions{Layout: l, Total: 2})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if issues := graph.Validate(g); len(issues) != 0 {
		t.Fatalf("Validate = %q", issues)
	}

	kat := g.Node("il_S1_eltcalc_kat")
	if kat == nil {
		t.Fatalf("no il eltcalc kat node in %q", nodeIDs(g))
	}
	wantArgs := []string{"work/kat/il_S1_eltcalc_P1", "work/kat/il_S1_eltcalc_P2"}
	if diff := cmp.Diff(wantArgs, kat.Args); diff != "" {
		t.Errorf("kat args mismatch (-want +got):\n%s", diff)
	}
	if kat.Stdout != graph.File("output/il_S1_eltcalc.csv") {
		t.Errorf("kat stdout = %s", kat.Stdout)
	}

	aal := g.Node("full_correlation/gul_S1_aalcalc")
	if diff := cmp.Diff([]string{"-Kfull_correlation/gul_S1_summaryaalcalc"}, aal.Args); diff != "" {
		t.Errorf("aalcalc args mismatch (-want +got):\n%s", diff)
	}

	lec := g.Node("gul_S1_leccalc")
	wantLEC := []string{"-Kgul_S1_summaryleccalc", "-F", "output/gul_S1_leccalc_full_uncertainty_aep.csv"}
	if diff := cmp.Diff(wantLEC, lec.Args); diff != "" {
		t.Errorf("leccalc args mismatch (-want +got):\n%s", diff)
	}

	// Every partition output is a finalize input.
	inputs := g.InputFiles()
	for partition := 1; partition <= 2; partition++ {
		partitionGraph, err := Partition(s, Options{Layout: l, Partition: partition, Total: 2})
		if err != nil {
			t.Fatal(err)
		}
		for _, file := range partitionGraph.OutputFiles() {
			if !slices.Contains(inputs, file) {
				t.Errorf("partition %d output %s is not read by finalize", partition, file)
			}
		}
	}
	if len(inputs) != 2*len(expectedOutputs(l, s, 1)) {
		t.Errorf("finalize reads %d files, want %d", len(inputs), 2*len(expectedOutputs(l, s, 1)))
	}
}
