// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/riskwire/kwire/lib/graph"
	"github.com/riskwire/kwire/lib/ktools"
)

// Top-level directories of a run directory.
const (
	FIFODir   = "fifo"
	WorkDir   = "work"
	OutputDir = "output"
	LogDir    = "log"

	// CorrelatedDir is the subdirectory of fifo/, work/ and output/
	// holding the fully correlated variant.
	CorrelatedDir = "full_correlation"

	katDir   = "kat"
	stateDir = ".kwire"
)

// Layout maps pipeline entities to paths in a run directory.
type Layout struct {
	root     string
	relative bool
}

// New returns the layout of runDir. When relative is true, path
// methods return paths relative to the run directory (processes are
// started with the run directory as working directory); otherwise they
// return absolute paths.
func New(runDir string, relative bool) (*Layout, error) {
	root, err := filepath.Abs(runDir)
	if err != nil {
		return nil, fmt.Errorf("resolving run directory %s: %w", runDir, err)
	}
	return &Layout{root: root, relative: relative}, nil
}

// Root returns the absolute run directory.
func (l *Layout) Root() string { return l.root }

// Relative reports whether path methods return relative paths.
func (l *Layout) Relative() bool { return l.relative }

// Abs returns p as an absolute path, resolving relative paths against
// the run directory.
func (l *Layout) Abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.root, p)
}

// Rel returns p relative to the run directory when it lies inside it.
func (l *Layout) Rel(p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(l.root, p)
	if err != nil {
		return p
	}
	return rel
}

// join builds a run directory path from slash-separated elements.
func (l *Layout) join(elements ...string) string {
	rel := path.Join(elements...)
	if l.relative {
		return rel
	}
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

func variant(dir string, correlated bool) string {
	if correlated {
		return path.Join(dir, CorrelatedDir)
	}
	return dir
}

// FIFODir returns fifo/ or fifo/full_correlation/.
func (l *Layout) FIFODir(correlated bool) string {
	return l.join(variant(FIFODir, correlated))
}

// WorkDir returns work/ or work/full_correlation/.
func (l *Layout) WorkDir(correlated bool) string {
	return l.join(variant(WorkDir, correlated))
}

// KatDir returns the directory of per-partition outputs.
func (l *Layout) KatDir(correlated bool) string {
	return l.join(variant(WorkDir, correlated), katDir)
}

// OutputDir returns output/ or output/full_correlation/.
func (l *Layout) OutputDir(correlated bool) string {
	return l.join(variant(OutputDir, correlated))
}

// LogDir returns log/.
func (l *Layout) LogDir() string { return l.join(LogDir) }

// StateDir returns the directory of partition run state files.
func (l *Layout) StateDir() string { return l.join(WorkDir, stateDir) }

func partitionName(name string, partition int) string {
	return fmt.Sprintf("%s_P%d", name, partition)
}

func summaryName(peril ktools.Peril, set int, what string) string {
	return fmt.Sprintf("%s_S%d_%s", peril, set, what)
}

// StreamFIFO is the loss stream of a peril: fifo/[full_correlation/]<peril>_P<n>.
func (l *Layout) StreamFIFO(peril ktools.Peril, correlated bool, partition int) string {
	return l.join(variant(FIFODir, correlated), partitionName(string(peril), partition))
}

// CorrelatedFIFO receives gulcalc's fully correlated side output:
// fifo/full_correlation/gul_fc_P<n>.
func (l *Layout) CorrelatedFIFO(partition int) string {
	return l.join(FIFODir, CorrelatedDir, partitionName(string(ktools.GUL)+"_fc", partition))
}

// SummaryFIFO is the summarycalc output of one summary set.
func (l *Layout) SummaryFIFO(peril ktools.Peril, correlated bool, set, partition int) string {
	return l.join(variant(FIFODir, correlated), partitionName(summaryName(peril, set, "summary"), partition))
}

// SummaryIndexFIFO is the index stream written next to SummaryFIFO.
func (l *Layout) SummaryIndexFIFO(peril ktools.Peril, correlated bool, set, partition int) string {
	return l.SummaryFIFO(peril, correlated, set, partition) + ".idx"
}

// OutputFIFO feeds an output tool of one summary set.
func (l *Layout) OutputFIFO(peril ktools.Peril, correlated bool, set int, output ktools.Output, partition int) string {
	return l.join(variant(FIFODir, correlated), partitionName(summaryName(peril, set, string(output)), partition))
}

// PartitionOutput is the per-partition output file that kat
// concatenates: work/[full_correlation/]kat/<peril>_S<s>_<output>_P<n>.
func (l *Layout) PartitionOutput(peril ktools.Peril, correlated bool, set int, output ktools.Output, partition int) string {
	return l.join(variant(WorkDir, correlated), katDir, partitionName(summaryName(peril, set, string(output)), partition))
}

// AALSubdir is the aalcalc input directory relative to work/, as
// passed to aalcalc -K.
func AALSubdir(peril ktools.Peril, correlated bool, set int) string {
	return path.Join(variant("", correlated), summaryName(peril, set, "summaryaalcalc"))
}

// LECSubdir is the leccalc input directory relative to work/, as
// passed to leccalc -K.
func LECSubdir(peril ktools.Peril, correlated bool, set int) string {
	return path.Join(variant("", correlated), summaryName(peril, set, "summaryleccalc"))
}

// AALDir returns work/[full_correlation/]<peril>_S<s>_summaryaalcalc.
func (l *Layout) AALDir(peril ktools.Peril, correlated bool, set int) string {
	return l.join(WorkDir, AALSubdir(peril, correlated, set))
}

// LECDir returns work/[full_correlation/]<peril>_S<s>_summaryleccalc.
func (l *Layout) LECDir(peril ktools.Peril, correlated bool, set int) string {
	return l.join(WorkDir, LECSubdir(peril, correlated, set))
}

// AALFile returns P<n>.bin or P<n>.idx in AALDir.
func (l *Layout) AALFile(peril ktools.Peril, correlated bool, set, partition int, index bool) string {
	return l.join(WorkDir, AALSubdir(peril, correlated, set), binaryName(partition, index))
}

// LECFile returns P<n>.bin or P<n>.idx in LECDir.
func (l *Layout) LECFile(peril ktools.Peril, correlated bool, set, partition int, index bool) string {
	return l.join(WorkDir, LECSubdir(peril, correlated, set), binaryName(partition, index))
}

func binaryName(partition int, index bool) string {
	if index {
		return fmt.Sprintf("P%d.idx", partition)
	}
	return fmt.Sprintf("P%d.bin", partition)
}

// FinalOutput is a concatenated or aggregated output:
// output/[full_correlation/]<peril>_S<s>_<name>.csv.
func (l *Layout) FinalOutput(peril ktools.Peril, correlated bool, set int, name string) string {
	return l.join(variant(OutputDir, correlated), summaryName(peril, set, name)+".csv")
}

// RunName names the per-run files of g: "P<n>" for a partition graph,
// the graph name otherwise.
func RunName(g *graph.Graph) string {
	if g.Partition > 0 {
		return PartitionName(g.Partition)
	}
	return g.Name
}

// PartitionName is the run name of a partition, "P<n>".
func PartitionName(partition int) string {
	return fmt.Sprintf("P%d", partition)
}

// StderrLog is the shared stderr log of a run's processes.
func (l *Layout) StderrLog(run string) string {
	return l.join(LogDir, "stderror_"+run+".err")
}

// ResultLog is the default JSONL result log of a run.
func (l *Layout) ResultLog(run string) string {
	return l.join(LogDir, "kwire_"+run+".jsonl")
}

// StateFile is the state file of a run.
func (l *Layout) StateFile(run string) string {
	return l.join(WorkDir, stateDir, run+".json")
}
