// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
)

func TestNames(t *testing.T) {
	t.Parallel()

	l, err := New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		got, want string
	}{
		{l.StreamFIFO(ktools.IL, false, 17), "fifo/il_P17"},
		{l.StreamFIFO(ktools.GUL, true, 17), "fifo/full_correlation/gul_P17"},
		{l.CorrelatedFIFO(17), "fifo/full_correlation/gul_fc_P17"},
		{l.SummaryFIFO(ktools.IL, false, 1, 17), "fifo/il_S1_summary_P17"},
		{l.SummaryIndexFIFO(ktools.GUL, true, 2, 3), "fifo/full_correlation/gul_S2_summary_P3.idx"},
		{l.OutputFIFO(ktools.IL, false, 1, ktools.PeriodLossTable, 17), "fifo/il_S1_pltcalc_P17"},
		{l.PartitionOutput(ktools.IL, false, 1, ktools.EventLossTable, 17), "work/kat/il_S1_eltcalc_P17"},
		{l.PartitionOutput(ktools.GUL, true, 1, ktools.SummaryTable, 17), "work/full_correlation/kat/gul_S1_summarycalc_P17"},
		{l.AALFile(ktools.IL, false, 1, 17, false), "work/il_S1_summaryaalcalc/P17.bin"},
		{l.LECFile(ktools.GUL, true, 1, 17, true), "work/full_correlation/gul_S1_summaryleccalc/P17.idx"},
		{AALSubdir(ktools.RI, true, 4), "full_correlation/ri_S4_summaryaalcalc"},
		{LECSubdir(ktools.IL, false, 1), "il_S1_summaryleccalc"},
		{l.FinalOutput(ktools.IL, true, 1, "eltcalc"), "output/full_correlation/il_S1_eltcalc.csv"},
		{l.StderrLog(PartitionName(17)), "log/stderror_P17.err"},
		{l.ResultLog(PartitionName(17)), "log/kwire_P17.jsonl"},
		{l.StateFile("finalize"), "work/.kwire/finalize.json"},
		{l.KatDir(true), "work/full_correlation/kat"},
		{l.FIFODir(false), "fifo"},
		{l.OutputDir(true), "output/full_correlation"},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("got %q, want %q", test.got, test.want)
		}
	}
}

func TestAbsolutePaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, false)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "fifo", "il_P1")
	if got := l.StreamFIFO(ktools.IL, false, 1); got != want {
		t.Errorf("StreamFIFO = %q, want %q", got, want)
	}
	if got := l.Rel(want); got != filepath.Join("fifo", "il_P1") {
		t.Errorf("Rel = %q, want fifo/il_P1", got)
	}
	if got := l.Abs("fifo/il_P1"); got != want {
		t.Errorf("Abs = %q, want %q", got, want)
	}
}

func sampleGraph(l *Layout, partition int) *graph.Graph {
	summary := l.SummaryFIFO(ktools.GUL, false, 1, partition)
	eltFIFO := l.OutputFIFO(ktools.GUL, false, 1, ktools.EventLossTable, partition)
	return &graph.Graph{
		Name:      "partition",
		Partition: partition,
		Dirs:      []string{l.FIFODir(false), l.KatDir(false), l.AALDir(ktools.GUL, false, 1)},
		FIFOs:     []string{summary, eltFIFO},
		Nodes: []graph.Node{
			{
				ID: "gul_S1_eltcalc", Kind: graph.Process, Program: "eltcalc",
				Stdin:  graph.FIFO(eltFIFO),
				Stdout: graph.File(l.PartitionOutput(ktools.GUL, false, 1, ktools.EventLossTable, partition)),
			},
			{
				ID: "gul_S1_tee", Kind: graph.Tee, Program: "tee",
				Stdin:   graph.FIFO(summary),
				Stdout:  graph.Discard(),
				Outputs: []graph.Endpoint{graph.FIFO(eltFIFO), graph.File(l.AALFile(ktools.GUL, false, 1, partition, false))},
			},
			{
				ID: "producer", Kind: graph.Process, Program: "summarycalc",
				Writes: []graph.Endpoint{graph.FIFO(summary)},
			},
		},
	}
}

// snapshot lists every entry under root with its type, and the content
// of regular files.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	state := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		switch {
		case entry.IsDir():
			state[rel] = "dir"
		case entry.Type()&fs.ModeNamedPipe != 0:
			state[rel] = "fifo"
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			state[rel] = "file:" + string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return state
}

func TestPrepareIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, true)
	if err != nil {
		t.Fatal(err)
	}
	g := sampleGraph(l, 17)
	options := PrepareOptions{StderrLog: l.StderrLog(PartitionName(17))}

	if err := l.Prepare(g, options); err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	first := snapshot(t, root)

	for _, name := range g.FIFOs {
		info, err := os.Stat(l.Abs(name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Mode()&fs.ModeNamedPipe == 0 {
			t.Errorf("%s is %v, want a named pipe", name, info.Mode())
		}
	}

	// Leftovers of a previous run of the same partition.
	for _, name := range g.OutputFiles() {
		if err := os.WriteFile(l.Abs(name), []byte("stale"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(l.Abs(l.StderrLog(PartitionName(17))), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Prepare(g, options); err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if diff := cmp.Diff(first, snapshot(t, root)); diff != "" {
		t.Errorf("directory state after second Prepare differs (-first +second):\n%s", diff)
	}
}

func TestPrepareLeavesOtherPartitions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, false)
	if err != nil {
		t.Fatal(err)
	}
	other := sampleGraph(l, 2)
	if err := l.Prepare(other, PrepareOptions{}); err != nil {
		t.Fatal(err)
	}
	otherOutput := other.OutputFiles()[0]
	if err := os.WriteFile(otherOutput, []byte("partition 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Prepare(sampleGraph(l, 1), PrepareOptions{}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(otherOutput)
	if err != nil || string(data) != "partition 2" {
		t.Errorf("partition 2 output = %q, %v; want it untouched", data, err)
	}
	for _, name := range other.FIFOs {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("partition 2 fifo %s removed: %v", name, err)
		}
	}
}

func TestPrepareKeepsPreviousLog(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, true)
	if err != nil {
		t.Fatal(err)
	}
	logPath := l.Abs(l.StderrLog(PartitionName(3)))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("gulcalc: something went wrong\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	options := PrepareOptions{StderrLog: l.StderrLog(PartitionName(3)), KeepPrevious: true}
	if err := l.Prepare(sampleGraph(l, 3), options); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Errorf("previous log still present: %v", err)
	}

	compressed, err := os.Open(logPath + ".prev.zst")
	if err != nil {
		t.Fatalf("opening rotated log: %v", err)
	}
	defer compressed.Close()
	decoder, err := zstd.NewReader(compressed)
	if err != nil {
		t.Fatal(err)
	}
	defer decoder.Close()
	content, err := io.ReadAll(decoder)
	if err != nil {
		t.Fatalf("decompressing rotated log: %v", err)
	}
	if string(content) != "gulcalc: something went wrong\n" {
		t.Errorf("rotated log = %q", content)
	}
}

func TestCleanOutputs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := New(root, true)
	if err != nil {
		t.Fatal(err)
	}

	if removed, err := l.CleanOutputs(); err != nil || removed != 0 {
		t.Errorf("CleanOutputs without output dir = %d, %v", removed, err)
	}

	files := map[string]bool{
		"output/il_S1_eltcalc.csv":                   false,
		"output/full_correlation/gul_S1_pltcalc.csv": false,
		"output/il_S1_summary-info.csv":              true,
		"output/analysis_settings.json":              true,
	}
	for name := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := l.CleanOutputs()
	if err != nil {
		t.Fatalf("CleanOutputs: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d files, want 2", removed)
	}
	for name, kept := range files {
		_, err := os.Stat(filepath.Join(root, name))
		if kept && err != nil {
			t.Errorf("%s removed, want kept", name)
		}
		if !kept && err == nil {
			t.Errorf("%s kept, want removed", name)
		}
	}
}

func TestRunName(t *testing.T) {
	t.Parallel()

	if got := RunName(&graph.Graph{Name: "partition", Partition: 4}); got != "P4" {
		t.Errorf("RunName(partition 4) = %q, want P4", got)
	}
	if got := RunName(&graph.Graph{Name: "finalize"}); got != "finalize" {
		t.Errorf("RunName(finalize) = %q, want finalize", got)
	}
}
