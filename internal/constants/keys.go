package constants

// ReservedPrefix marks data keys owned by tabula. Reserved keys sort after
// user keys in the #data sheet.
const ReservedPrefix = "tabula."

// Iteration directives read from the data file.
const (
	// KeyIteration selects which data columns become iterations, e.g. "1-3,5" or "all".
	KeyIteration = "tabula.scope.iteration"

	// KeyFallbackToPrevious makes a missing column fall back to the last available value.
	KeyFallbackToPrevious = "tabula.scope.fallbackToPrevious"
)

// Housekeeping keys computed for each iteration.
const (
	KeyCurrentIteration   = "tabula.scope.currentIteration"
	KeyCurrentIterationID = "tabula.scope.currentIterationId"
	KeyLastIteration      = "tabula.scope.lastIteration"
	KeyIsFirstIteration   = "tabula.scope.isFirstIteration"
	KeyIsLastIteration    = "tabula.scope.isLastIteration"
	KeyIterationCount     = "tabula.scope.iterationCount"
)

// Run bookkeeping keys. These never reach the #data sheet.
const (
	KeyRunID   = "tabula.runId"
	KeyOutBase = "tabula.outBase"
	KeyScript  = "tabula.script"
)

// Carry-over keys passed from one script to the next.
const (
	KeyLastCompletedIteration = "tabula.intra.lastCompletedIteration"
	KeyLastOutcome            = "tabula.intra.lastOutcome"
	KeyFailImmediate          = "tabula.intra.failImmediate"
	KeyEndImmediate           = "tabula.intra.endImmediate"
)

// Reference data prefixes. Variables named with these prefixes are copied
// into the summary of the script or scenario that set them.
const (
	ScriptRefPrefix   = "tabula.scriptRef."
	ScenarioRefPrefix = "tabula.scenarioRef."
)

// Outcome values stored under KeyLastOutcome.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
)
