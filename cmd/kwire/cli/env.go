// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Env carries the streams and the log level of one command invocation.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// Level is shared by every logger created for the invocation.
	// Commands raise or lower it once the runtime config is loaded.
	Level *slog.LevelVar
}

type envKey struct{}

// WithEnv returns a context carrying env. Nil fields fall back to the
// process streams and an info level.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env.withDefaults())
}

// EnvFrom returns the Env carried by ctx, or one bound to the process
// streams.
func EnvFrom(ctx context.Context) *Env {
	if env, ok := ctx.Value(envKey{}).(*Env); ok {
		return env
	}
	return (&Env{}).withDefaults()
}

func (e *Env) withDefaults() *Env {
	result := *e
	if result.Stdout == nil {
		result.Stdout = os.Stdout
	}
	if result.Stderr == nil {
		result.Stderr = os.Stderr
	}
	if result.Level == nil {
		result.Level = new(slog.LevelVar)
	}
	return &result
}
