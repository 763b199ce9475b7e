// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// testContext captures the command streams.
func testContext(t *testing.T) (context.Context, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	ctx := WithEnv(context.Background(), &Env{Stdout: &stdout, Stderr: &stderr})
	return ctx, &stdout, &stderr
}

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "kwire",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "plan",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "plan"
					return nil
				},
			},
		},
	}

	ctx, _, _ := testContext(t)
	if err := root.Execute(ctx, []string{"plan"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "plan" {
		t.Errorf("dispatched to %q, want %q", called, "plan")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var receivedArgs []string

	root := &Command{
		Name: "kwire",
		Subcommands: []*Command{
			{
				Name: "debug",
				Subcommands: []*Command{
					{
						Name: "graph",
						Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	ctx, _, _ := testContext(t)
	if err := root.Execute(ctx, []string{"debug", "graph", "3"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "3" {
		t.Errorf("args = %v, want [3]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var runDir, partition string

	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&runDir, "run-dir", ".", "model run directory")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				partition = args[0]
			}
			return nil
		},
	}

	ctx, _, _ := testContext(t)
	if err := command.Execute(ctx, []string{"--run-dir", "/data/run", "4"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if runDir != "/data/run" {
		t.Errorf("runDir = %q, want %q", runDir, "/data/run")
	}
	if partition != "4" {
		t.Errorf("partition = %q, want %q", partition, "4")
	}
}

func TestCommand_Execute_PassesLogger(t *testing.T) {
	command := &Command{
		Name: "run",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if logger == nil {
				t.Fatal("logger is nil")
			}
			logger.Info("partition started", "partition", 2)
			logger.Debug("hidden at info level")
			return nil
		},
	}

	ctx, _, stderr := testContext(t)
	if err := command.Execute(ctx, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	output := stderr.String()
	if !strings.Contains(output, `"msg":"partition started"`) {
		t.Errorf("stderr = %q, want a JSON log line", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("stderr = %q, debug line logged at info level", output)
	}
}

func TestCommand_Execute_LevelFromEnv(t *testing.T) {
	level := new(slog.LevelVar)
	var stderr bytes.Buffer
	ctx := WithEnv(context.Background(), &Env{Stderr: &stderr, Level: level})

	command := &Command{
		Name: "run",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			EnvFrom(ctx).Level.Set(slog.LevelDebug)
			logger.Debug("visible after lowering")
			return nil
		},
	}
	if err := command.Execute(ctx, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(stderr.String(), "visible after lowering") {
		t.Errorf("stderr = %q, want the debug line", stderr.String())
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "plan",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("plan", pflag.ContinueOnError)
			flagSet.Bool("json", false, "output as JSON")
			flagSet.String("settings", "analysis_settings.json", "analysis settings")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error { return nil },
	}

	ctx, _, _ := testContext(t)
	err := command.Execute(ctx, []string{"--setings", "a.json"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	message := err.Error()
	if !strings.Contains(message, "did you mean --settings") {
		t.Errorf("error = %q, want suggestion for '--settings'", message)
	}
	if !strings.Contains(message, "setings") {
		t.Errorf("error = %q, should mention the bad flag", message)
	}
	if !strings.Contains(message, "--help") {
		t.Errorf("error = %q, should point to --help", message)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "plan",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("plan", pflag.ContinueOnError)
			flagSet.Bool("json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error { return nil },
	}

	ctx, _, _ := testContext(t)
	err := command.Execute(ctx, []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "kwire",
		Subcommands: []*Command{
			{Name: "run"},
			{Name: "finalize"},
			{Name: "status"},
		},
	}

	ctx, _, _ := testContext(t)
	err := root.Execute(ctx, []string{"finalise"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "finalize"`) {
		t.Errorf("error = %q, want suggestion for 'finalize'", err.Error())
	}

	err = root.Execute(ctx, []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want an unknown command error without suggestion", err)
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "kwire",
				Summary: "ktools pipeline supervisor",
				Subcommands: []*Command{
					{Name: "run", Summary: "Run one event partition"},
				},
			}

			ctx, _, stderr := testContext(t)
			if err := root.Execute(ctx, []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(stderr.String(), "Run one event partition") {
				t.Errorf("help output = %q", stderr.String())
			}
		})
	}
}

func TestCommand_Execute_HelpAfterArgs(t *testing.T) {
	called := false
	command := &Command{
		Name:    "run",
		Summary: "Run one event partition",
		Flags: func() *pflag.FlagSet {
			return pflag.NewFlagSet("run", pflag.ContinueOnError)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			called = true
			return nil
		},
	}

	ctx, _, stderr := testContext(t)
	if err := command.Execute(ctx, []string{"3", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called {
		t.Error("Run called for --help")
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("stderr = %q, want help output", stderr.String())
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "kwire",
		Subcommands: []*Command{
			{Name: "run", Summary: "Run one event partition"},
		},
	}

	ctx, _, _ := testContext(t)
	err := root.Execute(ctx, nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v, want 'subcommand required'", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "kwire",
		Description: "Supervise ktools loss pipelines.",
		Subcommands: []*Command{
			{Name: "run", Summary: "Run one event partition"},
			{Name: "plan", Summary: "Show the process graph of a partition"},
		},
		Examples: []Example{
			{
				Description: "Run the third of eight partitions",
				Command:     "kwire run 3 --total 8",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Supervise ktools loss pipelines.",
		"Usage:",
		"kwire <command> [flags]",
		"Commands:",
		"Show the process graph of a partition",
		"Examples:",
		"# Run the third of eight partitions",
		"kwire run 3 --total 8",
		"Run 'kwire <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:  "plan",
		Usage: "kwire plan <partition> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("plan", pflag.ContinueOnError)
			flagSet.Bool("hash", false, "print the graph hash only")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{"kwire plan <partition> [flags]", "Flags:", "--hash"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "kwire"}
	debug := &Command{Name: "debug", parent: root}
	graph := &Command{Name: "graph", parent: debug}

	if got := graph.fullName(); got != "kwire debug graph" {
		t.Errorf("fullName() = %q, want %q", got, "kwire debug graph")
	}
}
