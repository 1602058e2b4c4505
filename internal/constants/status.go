package constants

// StepStatus is the outcome of a single executed step.
type StepStatus string

// Step status constants.
const (
	StepStatusPass    StepStatus = "pass"
	StepStatusFail    StepStatus = "fail"
	StepStatusWarn    StepStatus = "warn"
	StepStatusSkipped StepStatus = "skipped"
)

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// Executed reports whether the step actually ran. Skipped steps do not count
// towards the success rate.
func (s StepStatus) Executed() bool {
	return s == StepStatusPass || s == StepStatusFail || s == StepStatusWarn
}

// LoopState represents the state of a script's iteration loop.
//
//	NotStarted → Preparing
//	Preparing → Running, Completing
//	Running → IterationComplete
//	IterationComplete → Running, Completing
//	Completing → Done
const (
	LoopStateNotStarted        LoopState = "not_started"
	LoopStatePreparing         LoopState = "preparing"
	LoopStateRunning           LoopState = "running"
	LoopStateIterationComplete LoopState = "iteration_complete"
	LoopStateCompleting        LoopState = "completing"
	LoopStateDone              LoopState = "done"
)

// LoopState is the lifecycle state of one script execution.
type LoopState string

// String returns the string representation of the LoopState.
func (s LoopState) String() string {
	return string(s)
}

// SummaryKind identifies the level of an ExecutionSummary node.
type SummaryKind string

// Summary levels, outermost first.
const (
	SummaryKindExecution SummaryKind = "execution"
	SummaryKindScript    SummaryKind = "script"
	SummaryKindIteration SummaryKind = "iteration"
	SummaryKindScenario  SummaryKind = "scenario"
)
