// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what kwire is and what it runs.
//
// Build information is injected at build time via -ldflags -X:
//
//   - [GitCommit]: short git SHA of the build
//   - [GitDirty]: "true" if there were uncommitted changes
//   - [BuildTime]: UTC timestamp of the build
//   - [Version]: semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/riskwire/kwire/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/kwire
//
// [Tools] resolves and fingerprints the ktools binaries a run would
// start, so results can be traced to the exact loss engines that
// produced them.
package version
