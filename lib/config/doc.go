// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML runtime configuration loading for kwire.
//
// Configuration is loaded from a single file specified by either the
// KWIRE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery. When neither is given
// the CLI runs on [Default], which carries the ktools runtime defaults.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production is stricter: the error guard
// cannot be disabled and previous stderr logs are kept.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${KWIRE_RUN_DIR}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Ktools, Supervisor, Log, Result
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
