package config

import (
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/mrz1836/tabula/internal/constants"
)

// RunConfig is the read-only view of configuration shared by every worker of
// one run. It is built once per run and passed by value.
type RunConfig struct {
	runID            string
	startTime        time.Time
	outputDir        string
	scriptDir        string
	dataDir          string
	planDir          string
	openResults      bool
	openCommand      string
	resetFailFast    bool
	pollInterval     time.Duration
	interactivePause bool
	maxParallel      int
	startInterval    time.Duration
	macroExtension   string
	envPrefix        string
	settings         map[string]string
	excludedKeys     []string
}

// NewRunConfig snapshots cfg for a run. cfg may be nil, in which case
// defaults are used.
func NewRunConfig(cfg *Config, runID string, start time.Time) RunConfig {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return RunConfig{
		runID:            runID,
		startTime:        start,
		outputDir:        cfg.Output.Dir,
		scriptDir:        cfg.Project.ScriptDir,
		dataDir:          cfg.Project.DataDir,
		planDir:          cfg.Project.PlanDir,
		openResults:      cfg.Output.OpenResults,
		openCommand:      cfg.Output.OpenCommand,
		resetFailFast:    cfg.Execution.ResetFailFast,
		pollInterval:     cfg.Execution.PollInterval,
		interactivePause: cfg.Execution.InteractivePause,
		maxParallel:      cfg.Execution.MaxParallel,
		startInterval:    cfg.Execution.StartInterval,
		macroExtension:   cfg.Macro.Extension,
		envPrefix:        cfg.Data.EnvPrefix,
		settings:         maps.Clone(cfg.Data.Settings),
		excludedKeys:     slices.Clone(cfg.Data.ExcludedKeys),
	}
}

// RunID identifies the run. It names the run output directory.
func (r RunConfig) RunID() string { return r.runID }

// StartTime is when the run started.
func (r RunConfig) StartTime() time.Time { return r.startTime }

// OutputDir is the root directory for run output.
func (r RunConfig) OutputDir() string { return r.outputDir }

// ScriptDir is the project directory searched for scripts and macros.
func (r RunConfig) ScriptDir() string { return r.scriptDir }

// DataDir is the project directory searched for data files.
func (r RunConfig) DataDir() string { return r.dataDir }

// PlanDir is the project directory searched for plans.
func (r RunConfig) PlanDir() string { return r.planDir }

// OpenResults reports whether each saved artifact is opened.
func (r RunConfig) OpenResults() bool { return r.openResults }

// OpenCommand is the command used to open artifacts.
func (r RunConfig) OpenCommand() string { return r.openCommand }

// ResetFailFast reports whether a failure carried from a previous script is cleared.
func (r RunConfig) ResetFailFast() bool { return r.resetFailFast }

// InteractivePause reports whether pauses wait for Enter.
func (r RunConfig) InteractivePause() bool { return r.interactivePause }

// MaxParallel bounds concurrent parallel entries. Zero means no limit.
func (r RunConfig) MaxParallel() int { return r.maxParallel }

// StartInterval is the minimum gap between script starts.
func (r RunConfig) StartInterval() time.Duration { return r.startInterval }

// MacroExtension is appended to macro sources given without one.
func (r RunConfig) MacroExtension() string { return r.macroExtension }

// EnvPrefix selects the environment variables merged into iteration data.
func (r RunConfig) EnvPrefix() string { return r.envPrefix }

// PollInterval returns the scheduler poll interval, never zero.
func (r RunConfig) PollInterval() time.Duration {
	if r.pollInterval <= 0 {
		return constants.DefaultPollInterval
	}
	return r.pollInterval
}

// Settings returns a copy of the run-wide data settings.
func (r RunConfig) Settings() map[string]string {
	return maps.Clone(r.settings)
}

// ExcludedKeys returns a copy of the configured exclusions.
func (r RunConfig) ExcludedKeys() []string {
	return slices.Clone(r.excludedKeys)
}

// RunDir is the output directory for this run: <output dir>/<run id>.
func (r RunConfig) RunDir() string {
	if r.runID == "" {
		return r.outputDir
	}
	return filepath.Join(r.outputDir, r.runID)
}
