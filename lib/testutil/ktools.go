// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskwire/kwire/lib/ktools"
)

// fakeKtools are the stand-in scripts, by program name.
//
// eve prints one line naming its partition arguments, so every output
// of a partition carries "event <partition> <total>". gulcalc also
// copies its input to the -j and -c FIFOs. summarycalc copies its
// input to each -<n> FIFO, and writes "index" to <fifo>.idx when -m is
// given. leccalc writes "lec <flag>" to each report path.
var fakeKtools = map[string]string{
	ktools.Eve:      `echo "event $*"`,
	ktools.Getmodel: `exec cat`,
	ktools.Gulcalc: `data=$(cat)
while [ $# -gt 0 ]; do
	case "$1" in
	-j) printf '%s\n' "$data" > "$2"; shift ;;
	-c) if [ "$2" != - ]; then printf '%s\n' "$data" > "$2"; fi; shift ;;
	esac
	shift
done
printf '%s\n' "$data"`,
	ktools.Fmcalc: `exec cat`,
	ktools.Summarycalc: `data=$(cat)
index=false
while [ $# -gt 0 ]; do
	case "$1" in
	-m) index=true ;;
	-p) shift ;;
	-[1-9])
		printf '%s\n' "$data" > "$2"
		if $index; then printf 'index\n' > "$2.idx"; fi
		shift ;;
	esac
	shift
done`,
	ktools.Eltcalc:          `exec cat`,
	ktools.SummarycalcToCSV: `exec cat`,
	ktools.Pltcalc:          `exec cat`,
	ktools.Kat:              `exec cat "$@"`,
	ktools.Aalcalc:          `echo "aal $*"`,
	ktools.Leccalc: `while [ $# -gt 0 ]; do
	case "$1" in
	-r|-K*) ;;
	-*) printf 'lec %s\n' "$1" > "$2"; shift ;;
	esac
	shift
done`,
}

// FakeKtools is a directory of stand-in ktools binaries.
type FakeKtools struct {
	// Dir holds one executable per ktools program.
	Dir string
}

// InstallFakeKtools writes the stand-ins into a temporary directory.
//
// Tests that install fakes must not run in parallel with tests that
// fork: an executable still open for writing in another goroutine's
// forked child fails to start with ETXTBSY.
func InstallFakeKtools(t *testing.T) *FakeKtools {
	t.Helper()
	dir := t.TempDir()
	for name, body := range fakeKtools {
		script := "#!/bin/sh\n" + body + "\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("installing fake %s: %v", name, err)
		}
	}
	return &FakeKtools{Dir: dir}
}

// Resolve maps a ktools program to its stand-in. Its signature matches
// supervisor.Options.Resolve.
func (f *FakeKtools) Resolve(program string) (string, error) {
	if _, ok := fakeKtools[program]; !ok {
		return "", fmt.Errorf("no fake for %s", program)
	}
	return filepath.Join(f.Dir, program), nil
}

// ReplaceTool overwrites one stand-in with a different script body.
func (f *FakeKtools) ReplaceTool(t *testing.T, program, body string) {
	t.Helper()
	if _, ok := fakeKtools[program]; !ok {
		t.Fatalf("no fake for %s", program)
	}
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(filepath.Join(f.Dir, program), []byte(script), 0o755); err != nil {
		t.Fatalf("replacing fake %s: %v", program, err)
	}
}
