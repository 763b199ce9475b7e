// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riskwire/kwire/lib/ktools"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs.
	Development Environment = "development"
	// Staging is for pre-production model validation.
	Staging Environment = "staging"
	// Production is for production analyses.
	Production Environment = "production"
)

// TeeMode selects how stream fan-out is performed.
type TeeMode string

const (
	// TeeInline copies streams inside the supervisor.
	TeeInline TeeMode = "inline"
	// TeeProcess runs coreutils tee, exactly as the shell pipeline does.
	TeeProcess TeeMode = "process"
)

// Config is the master configuration for kwire.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Ktools configures the pipeline wiring.
	Ktools KtoolsConfig `yaml:"ktools"`

	// Supervisor configures process supervision.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Log configures kwire's own logging and the shared stderr log.
	Log LogConfig `yaml:"log"`

	// Result configures the result log and metrics.
	Result ResultConfig `yaml:"result"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Booleans are pointers so that an override can set false.
type ConfigOverrides struct {
	Paths      *PathsConfig      `yaml:"paths,omitempty"`
	Ktools     *KtoolsOverrides  `yaml:"ktools,omitempty"`
	Supervisor *SupervisorConfig `yaml:"supervisor,omitempty"`
	Log        *LogOverrides     `yaml:"log,omitempty"`
	Result     *ResultConfig     `yaml:"result,omitempty"`
}

// KtoolsOverrides is the overridable subset of KtoolsConfig.
type KtoolsOverrides struct {
	NumProcesses      *int  `yaml:"num_processes,omitempty"`
	LegacyStream      *bool `yaml:"legacy_stream,omitempty"`
	FIFORelative      *bool `yaml:"fifo_relative,omitempty"`
	DisableErrorGuard *bool `yaml:"disable_error_guard,omitempty"`
	Debug             *bool `yaml:"debug,omitempty"`
}

// LogOverrides is the overridable subset of LogConfig.
type LogOverrides struct {
	Level        string `yaml:"level,omitempty"`
	KeepPrevious *bool  `yaml:"keep_previous,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// RunDir is the model run directory holding fifo/, work/, output/
	// and log/. Default: the current directory.
	RunDir string `yaml:"run_dir"`

	// Bin is where the ktools binaries are installed. Binaries found
	// here take precedence over PATH. Empty means PATH only.
	Bin string `yaml:"bin"`
}

// KtoolsConfig configures the pipeline. Defaults follow the ktools
// runtime defaults of the Oasis platform.
type KtoolsConfig struct {
	// NumProcesses is the number of event partitions. -1 means one per
	// CPU.
	NumProcesses int `yaml:"num_processes"`

	// AllocGUL is the gulcalc allocation rule (0 to 3).
	AllocGUL int `yaml:"alloc_gul"`

	// AllocIL is the insured loss fmcalc allocation rule (0 to 3).
	AllocIL int `yaml:"alloc_il"`

	// AllocRI is the reinsurance fmcalc allocation rule (0 to 3).
	AllocRI int `yaml:"alloc_ri"`

	// EveShuffle is the eve event shuffle rule (0 to 3).
	EveShuffle int `yaml:"eve_shuffle"`

	// LegacyStream makes gulcalc write the legacy coverage stream.
	LegacyStream bool `yaml:"legacy_stream"`

	// FIFORelative emits FIFO and file paths relative to the run
	// directory instead of absolute.
	FIFORelative bool `yaml:"fifo_relative"`

	// DisableErrorGuard keeps a run going after a process fails. The
	// run still fails at the join.
	DisableErrorGuard bool `yaml:"disable_error_guard"`

	// Debug traces every command in rendered scripts and logs every
	// process start at info level.
	Debug bool `yaml:"debug"`
}

// SupervisorConfig configures process supervision.
type SupervisorConfig struct {
	// GracePeriod is how long a cancelled process group has between
	// SIGTERM and SIGKILL. Default: 10s
	GracePeriod string `yaml:"grace_period"`

	// Timeout bounds a whole partition run. Empty means no timeout.
	Timeout string `yaml:"timeout"`

	// Tee selects inline or process fan-out. Default: inline
	Tee TeeMode `yaml:"tee"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the kwire log level: debug, info, warn or error.
	Level string `yaml:"level"`

	// KeepPrevious compresses the previous stderr log of a partition
	// instead of truncating it.
	KeepPrevious bool `yaml:"keep_previous"`
}

// ResultConfig configures run results. In both paths, {run} is
// replaced by the run name (P<n> or finalize).
type ResultConfig struct {
	// Path is the JSONL result log. Empty means log/kwire_<run>.jsonl
	// in the run directory.
	Path string `yaml:"path"`

	// MetricsPath is a Prometheus textfile written at the end of each
	// run. Empty disables metrics.
	MetricsPath string `yaml:"metrics_path"`
}

// RunPlaceholder is replaced by the run name in result paths.
const RunPlaceholder = "{run}"

// ResultPath returns the configured result log of run, or "" for the
// default.
func (c *Config) ResultPath(run string) string {
	return strings.ReplaceAll(c.Result.Path, RunPlaceholder, run)
}

// MetricsPath returns the metrics textfile of run, or "" when metrics
// are disabled.
func (c *Config) MetricsPath(run string) string {
	return strings.ReplaceAll(c.Result.MetricsPath, RunPlaceholder, run)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			RunDir: ".",
		},
		Ktools: KtoolsConfig{
			NumProcesses: ktools.DefaultNumProcesses,
			AllocGUL:     ktools.DefaultAllocGUL,
			AllocIL:      ktools.DefaultAllocIL,
			AllocRI:      ktools.DefaultAllocRI,
			EveShuffle:   int(ktools.DefaultShuffle),
		},
		Supervisor: SupervisorConfig{
			GracePeriod: "10s",
			Tee:         TeeInline,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the KWIRE_CONFIG environment variable.
// Fails if KWIRE_CONFIG is not set.
func Load() (*Config, error) {
	configPath := os.Getenv("KWIRE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KWIRE_CONFIG environment variable not set; " +
			"set it to the path of your kwire.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, on top of
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production keeps the evidence of previous runs.
		if overrides == nil {
			keep := true
			overrides = &ConfigOverrides{
				Log: &LogOverrides{KeepPrevious: &keep},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.RunDir != "" {
			c.Paths.RunDir = overrides.Paths.RunDir
		}
		if overrides.Paths.Bin != "" {
			c.Paths.Bin = overrides.Paths.Bin
		}
	}

	if overrides.Ktools != nil {
		if overrides.Ktools.NumProcesses != nil {
			c.Ktools.NumProcesses = *overrides.Ktools.NumProcesses
		}
		if overrides.Ktools.LegacyStream != nil {
			c.Ktools.LegacyStream = *overrides.Ktools.LegacyStream
		}
		if overrides.Ktools.FIFORelative != nil {
			c.Ktools.FIFORelative = *overrides.Ktools.FIFORelative
		}
		if overrides.Ktools.DisableErrorGuard != nil {
			c.Ktools.DisableErrorGuard = *overrides.Ktools.DisableErrorGuard
		}
		if overrides.Ktools.Debug != nil {
			c.Ktools.Debug = *overrides.Ktools.Debug
		}
	}

	if overrides.Supervisor != nil {
		if overrides.Supervisor.GracePeriod != "" {
			c.Supervisor.GracePeriod = overrides.Supervisor.GracePeriod
		}
		if overrides.Supervisor.Timeout != "" {
			c.Supervisor.Timeout = overrides.Supervisor.Timeout
		}
		if overrides.Supervisor.Tee != "" {
			c.Supervisor.Tee = overrides.Supervisor.Tee
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.KeepPrevious != nil {
			c.Log.KeepPrevious = *overrides.Log.KeepPrevious
		}
	}

	if overrides.Result != nil {
		if overrides.Result.Path != "" {
			c.Result.Path = overrides.Result.Path
		}
		if overrides.Result.MetricsPath != "" {
			c.Result.MetricsPath = overrides.Result.MetricsPath
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"KWIRE_RUN_DIR": c.Paths.RunDir,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.RunDir = expandVars(c.Paths.RunDir, vars)
	vars["KWIRE_RUN_DIR"] = c.Paths.RunDir

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Result.Path = expandVars(c.Result.Path, vars)
	c.Result.MetricsPath = expandVars(c.Result.MetricsPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the process environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.RunDir == "" {
		errs = append(errs, fmt.Errorf("paths.run_dir is required"))
	}

	if c.Ktools.NumProcesses == 0 || c.Ktools.NumProcesses < -1 {
		errs = append(errs, fmt.Errorf("ktools.num_processes must be positive or -1, got %d", c.Ktools.NumProcesses))
	}
	if c.Ktools.AllocGUL < 0 || c.Ktools.AllocGUL > ktools.MaxAllocGUL {
		errs = append(errs, fmt.Errorf("ktools.alloc_gul must be between 0 and %d, got %d", ktools.MaxAllocGUL, c.Ktools.AllocGUL))
	}
	if c.Ktools.AllocIL < 0 || c.Ktools.AllocIL > ktools.MaxAllocFM {
		errs = append(errs, fmt.Errorf("ktools.alloc_il must be between 0 and %d, got %d", ktools.MaxAllocFM, c.Ktools.AllocIL))
	}
	if c.Ktools.AllocRI < 0 || c.Ktools.AllocRI > ktools.MaxAllocFM {
		errs = append(errs, fmt.Errorf("ktools.alloc_ri must be between 0 and %d, got %d", ktools.MaxAllocFM, c.Ktools.AllocRI))
	}
	if !ktools.Shuffle(c.Ktools.EveShuffle).Valid() {
		errs = append(errs, fmt.Errorf("ktools.eve_shuffle must be between 0 and 3, got %d", c.Ktools.EveShuffle))
	}
	if c.Environment == Production && c.Ktools.DisableErrorGuard {
		errs = append(errs, fmt.Errorf("ktools.disable_error_guard is not allowed in production"))
	}

	if _, err := c.GracePeriod(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	teeModes := []TeeMode{TeeInline, TeeProcess}
	if !slices.Contains(teeModes, c.Supervisor.Tee) {
		errs = append(errs, fmt.Errorf("supervisor.tee must be one of: %v", teeModes))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GracePeriod returns the parsed supervisor grace period.
func (c *Config) GracePeriod() (time.Duration, error) {
	if c.Supervisor.GracePeriod == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(c.Supervisor.GracePeriod)
	if err != nil || duration < 0 {
		return 0, fmt.Errorf("supervisor.grace_period: invalid duration %q", c.Supervisor.GracePeriod)
	}
	return duration, nil
}

// Timeout returns the parsed run timeout. Zero means none.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Supervisor.Timeout == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(c.Supervisor.Timeout)
	if err != nil || duration < 0 {
		return 0, fmt.Errorf("supervisor.timeout: invalid duration %q", c.Supervisor.Timeout)
	}
	return duration, nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NumProcesses returns the number of event partitions, resolving -1 to
// the CPU count.
func (c *Config) NumProcesses() int {
	if c.Ktools.NumProcesses == ktools.DefaultNumProcesses {
		return runtime.NumCPU()
	}
	return c.Ktools.NumProcesses
}

// BinaryPath returns the full path to a ktools binary.
// It looks in Paths.Bin first, then falls back to exec.LookPath.
func (c *Config) BinaryPath(name string) (string, error) {
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if info, err := os.Stat(binPath); err == nil && !info.IsDir() {
			return binPath, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
