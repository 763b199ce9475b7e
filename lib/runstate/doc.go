// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstate tracks which runs are in progress in a run
// directory.
//
// Each run (a partition, or the finalize pass) has a small JSON state
// file under work/.kwire/. [Store.Acquire] records the run as running
// and refuses to start while another live kwire process holds it;
// [Store.Release] records the outcome. Files are written atomically
// (temporary file, fsync, rename, directory fsync) so a reader never
// sees a partial state, and a crashed run leaves a "running" state
// whose PID is no longer alive, which the next Acquire takes over.
package runstate
