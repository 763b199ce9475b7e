// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/layout"
)

// Status is the lifecycle position of a run.
type Status string

const (
	Running   Status = "running"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// State is the content of a state file.
type State struct {
	// Run is the run name, "P<n>" or "finalize".
	Run       string `json:"run"`
	Graph     string `json:"graph"`
	GraphHash string `json:"graph_hash,omitempty"`
	RunID     string `json:"run_id,omitempty"`

	Status   Status `json:"status"`
	PID      int    `json:"pid"`
	Hostname string `json:"hostname,omitempty"`

	ExitCode int    `json:"exit_code,omitempty"`
	Error    string `json:"error,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
}

// BusyError is returned by Acquire when a live process holds the run.
type BusyError struct {
	Run     string
	PID     int
	Started time.Time
}

func (e *BusyError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("%s is being started by another process", e.Run)
	}
	return fmt.Sprintf("%s is already running (pid %d, started %s)", e.Run, e.PID, e.Started.Format(time.RFC3339))
}

// Store reads and writes the state files of one run directory.
type Store struct {
	layout *layout.Layout
	clock  clock.Clock

	// alive reports whether a PID belongs to a running process.
	alive func(pid int) bool

	mu sync.Mutex
	// locks holds the lock file of every run acquired and not yet
	// released through this store.
	locks map[string]*os.File
}

// New returns the store of the run directory l.
func New(l *layout.Layout, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{layout: l, clock: c, alive: processAlive}
}

// processAlive probes pid with signal 0. EPERM means the process
// exists under another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Alive reports whether state is a running run whose process still
// exists.
func (s *Store) Alive(state State) bool {
	return state.Status == Running && s.alive(state.PID)
}

func (s *Store) path(run string) string {
	return s.layout.Abs(s.layout.StateFile(run))
}

// lock takes the exclusive flock of run, held until Release. It
// returns a nil file when another open lock file holds it, in this
// process or any other. The kernel drops the lock when the holder
// dies.
func (s *Store) lock(run string) (*os.File, error) {
	path := strings.TrimSuffix(s.path(run), ".json") + ".lock"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock of %s: %w", run, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, nil
		}
		return nil, fmt.Errorf("locking %s: %w", run, err)
	}
	return file, nil
}

func (s *Store) unlock(run string) {
	s.mu.Lock()
	file := s.locks[run]
	delete(s.locks, run)
	s.mu.Unlock()
	if file != nil {
		file.Close()
	}
}

// Acquire marks run as running by this process. Acquisition is
// serialised by an exclusive lock on work/.kwire/<run>.lock, so of two
// concurrent acquirers exactly one succeeds. It fails with a
// *BusyError when the lock is held, or when the state says running
// and that process is alive. A stale running state from a crashed
// process is replaced.
func (s *Store) Acquire(run, graphName, hash, runID string) (*State, error) {
	lock, err := s.lock(run)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		previous, _ := s.Read(run)
		return nil, &BusyError{Run: run, PID: previous.PID, Started: previous.Started}
	}

	state, err := s.acquireLocked(run, graphName, hash, runID)
	if err != nil {
		lock.Close()
		return nil, err
	}
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*os.File)
	}
	s.locks[run] = lock
	s.mu.Unlock()
	return state, nil
}

func (s *Store) acquireLocked(run, graphName, hash, runID string) (*State, error) {
	previous, err := s.Read(run)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	case s.Alive(previous) && previous.PID != os.Getpid():
		return nil, &BusyError{Run: run, PID: previous.PID, Started: previous.Started}
	}

	hostname, _ := os.Hostname()
	state := &State{
		Run:       run,
		Graph:     graphName,
		GraphHash: hash,
		RunID:     runID,
		Status:    Running,
		PID:       os.Getpid(),
		Hostname:  hostname,
		Started:   s.clock.Now().UTC(),
	}
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Release records the outcome of a run acquired by Acquire and drops
// its lock. A nil runErr means success; otherwise exitCode is
// recorded.
func (s *Store) Release(state *State, exitCode int, runErr error) error {
	defer s.unlock(state.Run)
	state.Finished = s.clock.Now().UTC()
	state.Status = Succeeded
	state.ExitCode = 0
	state.Error = ""
	if runErr != nil {
		state.Status = Failed
		state.ExitCode = exitCode
		state.Error = runErr.Error()
	}
	return s.write(state)
}

// Update rewrites a state acquired by Acquire, e.g. once its run ID
// is known.
func (s *Store) Update(state *State) error {
	return s.write(state)
}

// Read returns the state of run. The error wraps fs.ErrNotExist when
// the run has no state file.
func (s *Store) Read(run string) (State, error) {
	data, err := os.ReadFile(s.path(run))
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing state file of %s: %w", run, err)
	}
	return state, nil
}

// List returns every state in the run directory: partitions in
// numeric order, then other runs by name.
func (s *Store) List() ([]State, error) {
	dir := s.layout.Abs(s.layout.StateDir())
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var states []State
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || !entry.Type().IsRegular() {
			continue
		}
		state, err := s.Read(name)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	slices.SortFunc(states, func(a, b State) int {
		return compareRuns(a.Run, b.Run)
	})
	return states, nil
}

// compareRuns orders "P2" before "P10" and partitions before named
// runs.
func compareRuns(a, b string) int {
	partitionA, okA := partitionNumber(a)
	partitionB, okB := partitionNumber(b)
	switch {
	case okA && okB:
		return partitionA - partitionB
	case okA:
		return -1
	case okB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func partitionNumber(run string) (int, bool) {
	digits, ok := strings.CutPrefix(run, "P")
	if !ok || digits == "" {
		return 0, false
	}
	number := 0
	for _, digit := range digits {
		if digit < '0' || digit > '9' {
			return 0, false
		}
		number = number*10 + int(digit-'0')
	}
	return number, true
}

// write replaces the state file atomically.
func (s *Store) write(state *State) error {
	path := s.path(state.Run)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state of %s: %w", state.Run, err)
	}
	data = append(data, '\n')

	file, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	temporary := file.Name()
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporary)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporary)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("closing temporary state file: %w", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		os.Remove(temporary)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	if directory, err := os.Open(dir); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}
