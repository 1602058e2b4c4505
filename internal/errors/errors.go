// Package errors provides centralized error handling for tabula.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrWorkbookNotFound indicates a script, data, macro or plan file does not exist.
	ErrWorkbookNotFound = errors.New("workbook not found")

	// ErrWorkbookInvalid indicates a workbook document failed schema validation
	// or could not be decoded.
	ErrWorkbookInvalid = errors.New("invalid workbook")

	// ErrSheetNotFound indicates a named worksheet is missing from a workbook.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrSheetExists indicates an attempt to add a sheet whose name is taken.
	ErrSheetExists = errors.New("sheet already exists")

	// ErrWorkbookClosed indicates an operation on a workbook after Close.
	ErrWorkbookClosed = errors.New("workbook closed")

	// ErrSummaryNotFound indicates a persisted summary does not exist.
	ErrSummaryNotFound = errors.New("summary not found")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrMacroNotFound indicates a macro invocation could not be resolved.
	ErrMacroNotFound = errors.New("macro not found")

	// ErrMacroCycle indicates a macro invokes itself, directly or through other macros.
	ErrMacroCycle = errors.New("macro invokes itself")

	// ErrInvalidMacroInvocation indicates a macro step is missing file, sheet or name.
	ErrInvalidMacroInvocation = errors.New("invalid macro invocation")

	// ErrInvalidIterationDirective indicates the iteration selection could not be parsed.
	ErrInvalidIterationDirective = errors.New("invalid iteration directive")

	// ErrIterationOutOfRange indicates an iteration ordinal outside 1..count.
	ErrIterationOutOfRange = errors.New("iteration out of range")

	// ErrInvalidFlowControl indicates a flow control directive could not be parsed.
	ErrInvalidFlowControl = errors.New("invalid flow control")

	// ErrInvalidFilter indicates a filter condition could not be parsed.
	ErrInvalidFilter = errors.New("invalid filter condition")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCommandNotFound indicates no command is registered for a step's target and command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrCommandDuplicate indicates a command with the same name is already registered.
	ErrCommandDuplicate = errors.New("command already registered")

	// ErrScenarioNotFound indicates a selected scenario has no sheet in the script.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrIterationFatal indicates an iteration could not continue. It forces fail-immediate.
	ErrIterationFatal = errors.New("iteration aborted")

	// ErrSchedulerPanic indicates the plan scheduler recovered from a panic.
	ErrSchedulerPanic = errors.New("scheduler panic")

	// ErrWorkerPanic indicates a script worker recovered from a panic.
	ErrWorkerPanic = errors.New("worker panic")

	// ErrPlanEmpty indicates a plan contains no runnable entries.
	ErrPlanEmpty = errors.New("plan has no runnable entries")

	// ErrPreflightFailed indicates one or more plan entries failed validation before the run.
	ErrPreflightFailed = errors.New("plan preflight failed")

	// ErrExecutionFailed indicates the run finished with failed steps.
	// The CLI maps it to a non-zero exit code.
	ErrExecutionFailed = errors.New("execution has failures")

	// ErrInterrupted indicates the run was interrupted by a signal.
	ErrInterrupted = errors.New("execution interrupted")

	// ErrJSONErrorOutput indicates that an error has already been output as JSON.
	// Commands should silence cobra's error printing when this is returned.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)
