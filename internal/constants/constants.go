// Package constants provides centralized constant values used throughout tabula.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by tabula for organizing data.
const (
	// TabulaHome is the hidden directory name where tabula stores its global data.
	// This directory is created in the user's home directory.
	TabulaHome = ".tabula"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// DefaultOutputDir is where iteration artifacts and summaries are written
	// when no output directory is configured.
	DefaultOutputDir = "output"

	// DefaultScriptDir is the project-relative directory searched for scripts and macros.
	DefaultScriptDir = "artifact/script"

	// DefaultDataDir is the project-relative directory searched for data files.
	DefaultDataDir = "artifact/data"

	// DefaultPlanDir is the project-relative directory searched for plans.
	DefaultPlanDir = "artifact/plan"
)

// File names and extensions.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.tabula/logs/tabula.log
	CLILogFileName = "tabula.log"

	// GlobalConfigName is the name of the global configuration file.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the project-local configuration directory.
	ProjectConfigDir = ".tabula"

	// ProjectConfigName is the name of the project-specific configuration file.
	ProjectConfigName = "config.yaml"

	// WorkbookExt is the extension of every workbook document.
	WorkbookExt = ".yaml"

	// SummaryFileName is the name of the aggregated run summary.
	SummaryFileName = "execution-summary.json"

	// ScriptSummarySuffix is appended to the artifact base name of a persisted script summary.
	ScriptSummarySuffix = ".summary.json"
)

// Artifact naming.
const (
	// ArtifactTimestampFormat formats the run start time inside iteration artifact names.
	ArtifactTimestampFormat = "20060102_150405"

	// RunIDFormat formats the run start time into the run identifier.
	RunIDFormat = "20060102_150405"
)

// Reserved sheet names.
const (
	// DefaultDataSheet holds data shared by every data sheet in a data file.
	DefaultDataSheet = "#default"

	// DataSheet is the sheet written into each execution unit with the merged iteration data.
	DataSheet = "#data"
)

// MaxIterations bounds the iterations one iteration directive may select.
const MaxIterations = 10000

// Timing defaults for scheduling.
const (
	// DefaultPollInterval is how often the scheduler checks on running workers.
	DefaultPollInterval = 500 * time.Millisecond

	// MinPollInterval bounds the polling interval from below.
	MinPollInterval = 10 * time.Millisecond

	// WatchDebounce is the quiet period after a file change before a watch re-run.
	WatchDebounce = 300 * time.Millisecond

	// LockRetryInterval is the interval between lock acquisition attempts.
	LockRetryInterval = 50 * time.Millisecond

	// LockTimeout is how long a workbook save waits for its lock.
	LockTimeout = 5 * time.Second
)

// Command names understood by the iteration loop itself.
const (
	// StepTarget is the target of loop-level commands.
	StepTarget = "step"

	// MacroCommand invokes a macro. Params: file, sheet, name.
	MacroCommand = "macro"

	// SectionCommand marks the start of a block of N expanded steps. Params: count.
	SectionCommand = "section"

	// MacroProvenancePrefix prefixes the provenance marker carried by expanded rows.
	MacroProvenancePrefix = "macro:"
)

// Log rotation for the CLI log file.
const (
	// LogMaxSizeMB is the size in megabytes at which the log file rotates.
	LogMaxSizeMB = 10

	// LogMaxBackups is how many rotated log files are kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is how long rotated log files are kept.
	LogMaxAgeDays = 28

	// LogCompress gzips rotated log files.
	LogCompress = true
)

// DataEnvPrefix selects the process environment variables merged into iteration data.
const DataEnvPrefix = "TABULA_DATA_"
