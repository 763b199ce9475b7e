// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sys/unix"

	"github.com/riskwire/kwire/lib/graph"
)

// FIFOMode is the permission of created FIFOs, before umask.
const FIFOMode = 0o660

// PrepareOptions configures [Layout.Prepare].
type PrepareOptions struct {
	// StderrLog is the shared stderr log of the run. The previous log
	// is compressed (KeepPrevious) or removed.
	StderrLog string

	// KeepPrevious compresses the previous stderr log to
	// <log>.prev.zst instead of removing it.
	KeepPrevious bool

	Logger *slog.Logger
}

// Prepare resets the run directory for g: it creates g.Dirs, removes
// the FIFOs and output files of g left by a previous run, rotates the
// stderr log, and creates every FIFO in g.FIFOs. Nothing outside the
// graph's own files is touched, so other partitions are unaffected.
func (l *Layout) Prepare(g *graph.Graph, options PrepareOptions) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dirs := append([]string{l.LogDir()}, g.Dirs...)
	for _, dir := range dirs {
		if err := os.MkdirAll(l.Abs(dir), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	removed := 0
	for _, name := range append(append([]string(nil), g.FIFOs...), g.OutputFiles()...) {
		existed, err := removeIfExists(l.Abs(name))
		if err != nil {
			return err
		}
		if existed {
			removed++
		}
	}

	if options.StderrLog != "" {
		if err := rotateLog(l.Abs(options.StderrLog), options.KeepPrevious); err != nil {
			return err
		}
	}

	for _, name := range g.FIFOs {
		fifo := l.Abs(name)
		if err := os.MkdirAll(filepath.Dir(fifo), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}
		if err := unix.Mkfifo(fifo, FIFOMode); err != nil {
			return fmt.Errorf("mkfifo %s: %w", name, err)
		}
	}

	logger.Debug("run directory prepared",
		"graph", g.Name,
		"partition", g.Partition,
		"dirs", len(g.Dirs),
		"fifos", len(g.FIFOs),
		"removed", removed,
	)
	return nil
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("removing %s: %w", path, err)
}

// rotateLog moves the previous log out of the way. With keep, a
// non-empty log is compressed to <path>.prev.zst, replacing any older
// copy.
func rotateLog(path string, keep bool) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if keep && info.Size() > 0 {
		if err := compressFile(path, path+".prev.zst"); err != nil {
			return err
		}
	}
	_, err = removeIfExists(path)
	return err
}

// compressFile writes a zstd copy of source to target through a
// temporary file and rename, so target is either the old or the new
// complete copy.
func compressFile(source, target string) error {
	input, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer input.Close()

	output, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", target, err)
	}
	temporary := output.Name()
	defer os.Remove(temporary)

	encoder, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		output.Close()
		return fmt.Errorf("zstd encoder for %s: %w", target, err)
	}
	if _, err := io.Copy(encoder, input); err != nil {
		encoder.Close()
		output.Close()
		return fmt.Errorf("compressing %s: %w", source, err)
	}
	if err := encoder.Close(); err != nil {
		output.Close()
		return fmt.Errorf("compressing %s: %w", source, err)
	}
	if err := output.Sync(); err != nil {
		output.Close()
		return fmt.Errorf("syncing %s: %w", temporary, err)
	}
	if err := output.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporary, err)
	}
	if err := os.Rename(temporary, target); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", temporary, target, err)
	}
	return nil
}

// CleanOutputs removes final outputs from output/ before a finalize
// pass, keeping summary info files and JSON files. Returns the number
// of files removed.
func (l *Layout) CleanOutputs() (int, error) {
	root := filepath.Join(l.root, OutputDir)
	removed := 0
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		name := entry.Name()
		if strings.Contains(name, "summary-info") || strings.HasSuffix(name, ".json") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleaning %s: %w", root, err)
	}
	return removed, nil
}
