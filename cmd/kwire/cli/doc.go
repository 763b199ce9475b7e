// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for kwire.
//
// The central type is [Command], a named subcommand with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// Commands are assembled into a tree in cmd/kwire/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and help output with examples.
//
// Unknown subcommands and flags are matched against the known names by
// Levenshtein distance and the closest one is suggested (distance <= 3).
//
// Parameter structs bind their flags through struct tags ([BindFlags]).
// The process streams and the log level travel in the context as an
// [Env], so commands can be driven from tests with captured output.
package cli
