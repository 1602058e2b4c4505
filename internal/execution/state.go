// Package execution runs one script: it materializes an execution unit per
// iteration, drives its steps through the flow-control evaluator and
// produces the script summary and the data carried to the next script.
//
// Import rules:
//   - CAN import: internal/config, internal/constants, internal/domain, internal/errors,
//     internal/flowcontrol, internal/iteration, internal/macro, internal/step,
//     internal/summary, internal/workbook, internal/clock
//   - MUST NOT import: internal/plan, internal/cli
package execution

import (
	"fmt"
	"slices"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// ValidTransitions defines the iteration loop lifecycle.
//
//	NotStarted → Preparing
//	Preparing → Running, Completing
//	Running → IterationComplete
//	IterationComplete → Running, Completing
//	Completing → Done
//
//nolint:gochecknoglobals // read-only lookup table
var ValidTransitions = map[constants.LoopState][]constants.LoopState{
	constants.LoopStateNotStarted:        {constants.LoopStatePreparing},
	constants.LoopStatePreparing:         {constants.LoopStateRunning, constants.LoopStateCompleting},
	constants.LoopStateRunning:           {constants.LoopStateIterationComplete},
	constants.LoopStateIterationComplete: {constants.LoopStateRunning, constants.LoopStateCompleting},
	constants.LoopStateCompleting:        {constants.LoopStateDone},
}

// IsValidTransition reports whether the loop may move from one state to another.
func IsValidTransition(from, to constants.LoopState) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// lifecycle tracks the state of one Run.
type lifecycle struct {
	state   constants.LoopState
	history []constants.LoopState
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: constants.LoopStateNotStarted}
}

func (l *lifecycle) transition(to constants.LoopState) error {
	if !IsValidTransition(l.state, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			tabulaerrors.ErrInvalidTransition, l.state, to)
	}
	l.history = append(l.history, l.state)
	l.state = to
	return nil
}
