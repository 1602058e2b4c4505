// Package config provides configuration management for tabula with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (TABULA_* prefix)
//  3. Project config (.tabula/config.yaml)
//  4. Global config (~/.tabula/config.yaml)
//  5. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for tabula.
type Config struct {
	// Project locates scripts, data files and plans.
	Project ProjectConfig `yaml:"project" json:"project" mapstructure:"project"`

	// Output controls where artifacts go and what happens to them.
	Output OutputConfig `yaml:"output" json:"output" mapstructure:"output"`

	// Execution controls failure policy, pauses and scheduling.
	Execution ExecutionConfig `yaml:"execution" json:"execution" mapstructure:"execution"`

	// Macro controls macro file resolution.
	Macro MacroConfig `yaml:"macro" json:"macro" mapstructure:"macro"`

	// Data controls how iteration data is merged.
	Data DataConfig `yaml:"data" json:"data" mapstructure:"data"`
}

// ProjectConfig holds project-relative directories.
type ProjectConfig struct {
	// ScriptDir is searched for scripts and macro files given by name.
	// Default: "artifact/script"
	ScriptDir string `yaml:"script_dir" json:"script_dir" mapstructure:"script_dir"`

	// DataDir is searched for data files given by name.
	// Default: "artifact/data"
	DataDir string `yaml:"data_dir" json:"data_dir" mapstructure:"data_dir"`

	// PlanDir is searched for plans given by name.
	// Default: "artifact/plan"
	PlanDir string `yaml:"plan_dir" json:"plan_dir" mapstructure:"plan_dir"`
}

// OutputConfig holds artifact settings.
type OutputConfig struct {
	// Dir is the root output directory. Each run writes under Dir/<run id>.
	// Default: "output"
	Dir string `yaml:"dir" json:"dir" mapstructure:"dir"`

	// OpenResults opens each saved iteration artifact after the iteration.
	// Default: false
	OpenResults bool `yaml:"open_results" json:"open_results" mapstructure:"open_results"`

	// OpenCommand is the program used to open artifacts. Empty uses the
	// platform default (xdg-open, open).
	OpenCommand string `yaml:"open_command" json:"open_command" mapstructure:"open_command"`
}

// ExecutionConfig holds execution policy.
type ExecutionConfig struct {
	// ResetFailFast ignores a failing outcome carried from the previous script,
	// so a fail-fast script still runs after a failure.
	// Default: false
	ResetFailFast bool `yaml:"reset_fail_fast" json:"reset_fail_fast" mapstructure:"reset_fail_fast"`

	// PollInterval is how often the scheduler checks running scripts.
	// Default: 500ms
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" mapstructure:"poll_interval"`

	// InteractivePause makes PauseBefore/PauseAfter wait for Enter.
	// Default: false
	InteractivePause bool `yaml:"interactive_pause" json:"interactive_pause" mapstructure:"interactive_pause"`

	// MaxParallel caps concurrently running parallel plan entries. 0 means no cap.
	// Default: 0
	MaxParallel int `yaml:"max_parallel" json:"max_parallel" mapstructure:"max_parallel"`

	// StartInterval is the minimum gap between starting two plan entries.
	// Default: 0
	StartInterval time.Duration `yaml:"start_interval" json:"start_interval" mapstructure:"start_interval"`
}

// MacroConfig holds macro resolution settings.
type MacroConfig struct {
	// Extension is appended to macro files named without one.
	// Default: ".yaml"
	Extension string `yaml:"extension" json:"extension" mapstructure:"extension"`
}

// DataConfig holds iteration data settings.
type DataConfig struct {
	// Settings are run-wide variables added to every iteration unless the
	// data defines them.
	Settings map[string]string `yaml:"settings" json:"settings" mapstructure:"settings"`

	// ExcludedKeys are keys, or prefixes ending in "." or "*", never written
	// to iteration data.
	ExcludedKeys []string `yaml:"excluded_keys" json:"excluded_keys" mapstructure:"excluded_keys"`

	// EnvPrefix selects environment variables merged into iteration data.
	// Default: "TABULA_DATA_"
	EnvPrefix string `yaml:"env_prefix" json:"env_prefix" mapstructure:"env_prefix"`
}
