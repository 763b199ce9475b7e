// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for kwire packages.
//
// [InstallFakeKtools] writes shell stand-ins for the ktools binaries
// into a temporary directory. The stand-ins move bytes the way the real
// tools are wired (stdin to stdout, plus the FIFOs and files named in
// their arguments) so that whole partition and finalize graphs can run
// without a model.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
