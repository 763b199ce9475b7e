// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskwire/kwire/cmd/kwire/commands"
	"github.com/riskwire/kwire/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own summary (run, finalize, status
		// --check) return an exit code only.
		var coder process.ExitCoder
		if errors.As(err, &coder) && coder.ExitCode() > 0 {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
