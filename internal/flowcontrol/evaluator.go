package flowcontrol

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/tabula/internal/constants"
)

// Action tells the iteration loop what to do after a check.
type Action int

// Actions, in increasing scope.
const (
	// ActionContinue runs the step, or moves on after it.
	ActionContinue Action = iota
	// ActionSkipStep records the step and does not run it.
	ActionSkipStep
	// ActionStopIteration ends the current iteration.
	ActionStopIteration
	// ActionStopScript ends the remaining steps of the script's iteration and
	// lets the fail-fast policy stop the script.
	ActionStopScript
	// ActionStopPlan ends the execution: fail-immediate or end-immediate.
	ActionStopPlan
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionSkipStep:
		return "skip_step"
	case ActionStopIteration:
		return "stop_iteration"
	case ActionStopScript:
		return "stop_script"
	case ActionStopPlan:
		return "stop_plan"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is the result of a flow control check.
type Decision struct {
	Action Action
	// Status is the step status to record when the step does not run.
	Status  constants.StepStatus
	Message string
	// FailImmediate and EndImmediate are set by FailIf and EndIf.
	FailImmediate bool
	EndImmediate  bool
}

// Proceed reports whether the step should run.
func (d Decision) Proceed() bool {
	return d.Action == ActionContinue
}

// Continue is the decision to run the step.
func Continue() Decision {
	return Decision{Action: ActionContinue}
}

// Evaluator applies flow controls around step execution.
type Evaluator struct {
	pauser Pauser
	logger zerolog.Logger
}

// NewEvaluator creates an Evaluator. A nil pauser never pauses.
func NewEvaluator(pauser Pauser, logger zerolog.Logger) *Evaluator {
	if pauser == nil {
		pauser = NoopPauser{}
	}
	return &Evaluator{pauser: pauser, logger: logger}
}

// Before runs the pre-execution checks in order: PauseBefore, SkipIf,
// ProceedIf, FailIf, EndIf, EndLoopIf. The first decisive check wins.
func (e *Evaluator) Before(ctx context.Context, fc *FlowControls, r Resolver, step string) Decision {
	if fc.Len() == 0 {
		return Continue()
	}

	if entry, ok := fc.matches(PauseBefore, r); ok {
		e.pause(ctx, fmt.Sprintf("paused before %s %s", step, entry.Filter))
	}

	if entry, ok := fc.matches(SkipIf, r); ok {
		return Decision{
			Action:  ActionSkipStep,
			Status:  constants.StepStatusSkipped,
			Message: fmt.Sprintf("SKIPPED: SkipIf(%s) matched", entry.Text),
		}
	}

	if entry, present := fc.Get(ProceedIf); present && !entry.Filter.Match(r) {
		return Decision{
			Action:  ActionSkipStep,
			Status:  constants.StepStatusSkipped,
			Message: fmt.Sprintf("SKIPPED: ProceedIf(%s) not matched", entry.Text),
		}
	}

	if entry, ok := fc.matches(FailIf, r); ok {
		e.logger.Warn().Str("step", step).Str("condition", entry.Text).Msg("FailIf matched, failing execution")
		return Decision{
			Action:        ActionStopPlan,
			Status:        constants.StepStatusFail,
			Message:       fmt.Sprintf("FailIf(%s) matched", entry.Text),
			FailImmediate: true,
		}
	}

	if entry, ok := fc.matches(EndIf, r); ok {
		e.logger.Info().Str("step", step).Str("condition", entry.Text).Msg("EndIf matched, ending execution")
		return Decision{
			Action:       ActionStopPlan,
			Status:       constants.StepStatusPass,
			Message:      fmt.Sprintf("EndIf(%s) matched", entry.Text),
			EndImmediate: true,
		}
	}

	if entry, ok := fc.matches(EndLoopIf, r); ok {
		return Decision{
			Action:  ActionStopIteration,
			Status:  constants.StepStatusSkipped,
			Message: fmt.Sprintf("EndLoopIf(%s) matched", entry.Text),
		}
	}

	return Continue()
}

// After runs the post-execution checks: PauseAfter.
func (e *Evaluator) After(ctx context.Context, fc *FlowControls, r Resolver, step string) Decision {
	if entry, ok := fc.matches(PauseAfter, r); ok {
		e.pause(ctx, fmt.Sprintf("paused after %s %s", step, entry.Filter))
	}
	return Continue()
}

// OnResult maps a step outcome to a decision. A failed step under fail-fast
// stops the rest of the iteration.
func (e *Evaluator) OnResult(status constants.StepStatus, failFast bool) Decision {
	if status == constants.StepStatusFail && failFast {
		return Decision{Action: ActionStopScript, Status: status, Message: "fail-fast: step failed"}
	}
	return Continue()
}

func (e *Evaluator) pause(ctx context.Context, message string) {
	if err := e.pauser.Pause(ctx, message); err != nil {
		e.logger.Warn().Err(err).Msg("pause interrupted")
	}
}
