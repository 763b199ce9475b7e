// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package runstate

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/riskwire/kwire/lib/clock"
	"github.com/riskwire/kwire/lib/layout"
)

var epoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func testStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	l, err := layout.New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	c := clock.Fake(epoch)
	return New(l, c), c
}

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	store, c := testStore(t)
	state, err := store.Acquire("P3", "partition", "hash", "run-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if state.Status != Running || state.PID != os.Getpid() || !state.Started.Equal(epoch) {
		t.Errorf("acquired state = %+v", state)
	}

	read, err := store.Read("P3")
	if err != nil {
		t.Fatal(err)
	}
	if !store.Alive(read) {
		t.Error("own running state is not alive")
	}

	c.Advance(time.Minute)
	if err := store.Release(state, 2, errors.New("il_fmcalc failed")); err != nil {
		t.Fatalf("Release: %v", err)
	}
	read, err = store.Read("P3")
	if err != nil {
		t.Fatal(err)
	}
	want := State{
		Run:       "P3",
		Graph:     "partition",
		GraphHash: "hash",
		RunID:     "run-1",
		Status:    Failed,
		PID:       os.Getpid(),
		Hostname:  state.Hostname,
		ExitCode:  2,
		Error:     "il_fmcalc failed",
		Started:   epoch,
		Finished:  epoch.Add(time.Minute),
	}
	if diff := cmp.Diff(want, read); diff != "" {
		t.Errorf("released state (-want +got):\n%s", diff)
	}
	if store.Alive(read) {
		t.Error("finished state is alive")
	}

	// Succeeding on a rerun clears the failure.
	state, err = store.Acquire("P3", "partition", "hash", "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Release(state, 0, nil); err != nil {
		t.Fatal(err)
	}
	read, _ = store.Read("P3")
	if read.Status != Succeeded || read.Error != "" || read.ExitCode != 0 {
		t.Errorf("rerun state = %+v", read)
	}
}

func TestAcquireBusy(t *testing.T) {
	t.Parallel()

	store, _ := testStore(t)
	store.alive = func(pid int) bool { return pid == 4242 }

	other := &State{Run: "P1", Graph: "partition", Status: Running, PID: 4242, Started: epoch}
	if err := store.write(other); err != nil {
		t.Fatal(err)
	}

	_, err := store.Acquire("P1", "partition", "", "")
	var busy *BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Acquire error = %v, want *BusyError", err)
	}
	if busy.PID != 4242 || busy.Run != "P1" {
		t.Errorf("BusyError = %+v", busy)
	}

	// Once the holder is gone the stale state is taken over.
	store.alive = func(int) bool { return false }
	if _, err := store.Acquire("P1", "partition", "", ""); err != nil {
		t.Errorf("Acquire over stale state: %v", err)
	}
}

func TestAcquireConcurrent(t *testing.T) {
	t.Parallel()

	l, err := layout.New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}

	// Separate stores stand in for separate kwire processes sharing a
	// run directory.
	type outcome struct {
		store *Store
		state *State
		err   error
	}
	const acquirers = 8
	start := make(chan struct{})
	outcomes := make(chan outcome, acquirers)
	var wait sync.WaitGroup
	for range acquirers {
		store := New(l, clock.Fake(epoch))
		wait.Add(1)
		go func() {
			defer wait.Done()
			<-start
			state, err := store.Acquire("P3", "partition", "hash", "")
			outcomes <- outcome{store: store, state: state, err: err}
		}()
	}
	close(start)
	wait.Wait()
	close(outcomes)

	var holder *outcome
	for result := range outcomes {
		var busy *BusyError
		switch {
		case result.err == nil && holder != nil:
			t.Fatal("two concurrent acquirers both succeeded")
		case result.err == nil:
			holder = &result
		case !errors.As(result.err, &busy):
			t.Errorf("Acquire error = %v, want *BusyError", result.err)
		}
	}
	if holder == nil {
		t.Fatal("no concurrent acquirer succeeded")
	}

	if _, err := New(l, nil).Acquire("P3", "partition", "hash", ""); err == nil {
		t.Fatal("Acquire succeeded while the run is held")
	}
	if err := holder.store.Release(holder.state, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := New(l, nil).Acquire("P3", "partition", "hash", ""); err != nil {
		t.Errorf("Acquire after Release: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	t.Parallel()

	store, _ := testStore(t)
	if _, err := store.Read("P9"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read error = %v, want fs.ErrNotExist", err)
	}
	states, err := store.List()
	if err != nil || states != nil {
		t.Errorf("List() = %v, %v on an empty run directory", states, err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	store, _ := testStore(t)
	for _, run := range []string{"finalize", "P10", "P2", "P1"} {
		state, err := store.Acquire(run, "partition", "", "")
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Release(state, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	states, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	var runs []string
	for _, state := range states {
		runs = append(runs, state.Run)
	}
	if diff := cmp.Diff([]string{"P1", "P2", "P10", "finalize"}, runs); diff != "" {
		t.Errorf("List order (-want +got):\n%s", diff)
	}
}

func TestProcessAlive(t *testing.T) {
	t.Parallel()

	if !processAlive(os.Getpid()) {
		t.Error("own process is not alive")
	}
	if processAlive(0) || processAlive(-1) {
		t.Error("non-positive PIDs reported alive")
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store, _ := testStore(t)
	state, err := store.Acquire("finalize", "finalize", "hash", "")
	if err != nil {
		t.Fatal(err)
	}
	state.RunID = "run-9"
	if err := store.Update(state); err != nil {
		t.Fatalf("Update: %v", err)
	}
	read, err := store.Read("finalize")
	if err != nil {
		t.Fatal(err)
	}
	if read.RunID != "run-9" || read.Status != Running {
		t.Errorf("updated state = %+v", read)
	}
}
