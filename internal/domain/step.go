package domain

import (
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
)

// Script sheet column layout. Row 0 of every scenario sheet is a header.
const (
	ColActivity     = 0
	ColDescription  = 1
	ColTarget       = 2
	ColCommand      = 3
	ColFirstParam   = 4
	ParamColumns    = 5
	ColFlowControls = ColFirstParam + ParamColumns
	ColResult       = ColFlowControls + 1
	ColMessage      = ColResult + 1
	ColElapsedMs    = ColMessage + 1
	ColProvenance   = ColElapsedMs + 1
	StepColumns     = ColProvenance + 1
)

// StepRow is one step of a scenario as authored in the script.
type StepRow struct {
	Activity     string   `json:"activity,omitempty"`
	Description  string   `json:"description,omitempty"`
	Target       string   `json:"target"`
	Command      string   `json:"command"`
	Params       []string `json:"params,omitempty"`
	FlowControls string   `json:"flow_controls,omitempty"`

	// Provenance marks rows spliced in by macro expansion.
	Provenance string `json:"provenance,omitempty"`
}

// StepRowFromCells builds a StepRow from the cells of a scenario sheet row.
func StepRowFromCells(cells []string) StepRow {
	cell := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}

	params := make([]string, 0, ParamColumns)
	for i := 0; i < ParamColumns; i++ {
		params = append(params, cell(ColFirstParam+i))
	}
	// trailing empty params carry no meaning
	for len(params) > 0 && params[len(params)-1] == "" {
		params = params[:len(params)-1]
	}

	return StepRow{
		Activity:     strings.TrimSpace(cell(ColActivity)),
		Description:  cell(ColDescription),
		Target:       strings.TrimSpace(cell(ColTarget)),
		Command:      strings.TrimSpace(cell(ColCommand)),
		Params:       params,
		FlowControls: cell(ColFlowControls),
		Provenance:   cell(ColProvenance),
	}
}

// Cells renders the row back into scenario sheet cells. Result columns are left empty.
func (r StepRow) Cells() []string {
	cells := make([]string, StepColumns)
	cells[ColActivity] = r.Activity
	cells[ColDescription] = r.Description
	cells[ColTarget] = r.Target
	cells[ColCommand] = r.Command
	for i := 0; i < len(r.Params) && i < ParamColumns; i++ {
		cells[ColFirstParam+i] = r.Params[i]
	}
	cells[ColFlowControls] = r.FlowControls
	cells[ColProvenance] = r.Provenance
	return cells
}

// Name returns the fully qualified command name, target.command.
func (r StepRow) Name() string {
	return r.Target + "." + r.Command
}

// Param returns the i-th parameter or "".
func (r StepRow) Param(i int) string {
	if i >= 0 && i < len(r.Params) {
		return r.Params[i]
	}
	return ""
}

// IsEmpty reports whether the row has no command.
func (r StepRow) IsEmpty() bool {
	return r.Target == "" && r.Command == ""
}

// IsMacro reports whether the row invokes a macro.
func (r StepRow) IsMacro() bool {
	return r.Target == constants.StepTarget && r.Command == constants.MacroCommand
}

// IsSection reports whether the row marks the start of an expanded section.
func (r StepRow) IsSection() bool {
	return r.Target == constants.StepTarget && r.Command == constants.SectionCommand
}

// SectionSize returns the step count declared by a section marker.
func (r StepRow) SectionSize() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Param(0)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Clone returns a deep copy of the row.
func (r StepRow) Clone() StepRow {
	c := r
	c.Params = append([]string(nil), r.Params...)
	return c
}
