// Package domain provides shared domain types for the tabula execution engine.
// These types are used across internal packages to keep data structures consistent.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"fmt"
	"path/filepath"
	"strings"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// PlanLink ties an execution definition to the plan row it came from.
type PlanLink struct {
	// File is the plan workbook path.
	File string `json:"file"`

	// Name is the plan sheet (sub-plan) name.
	Name string `json:"name"`

	// Sequence is the 1-based row number of the entry within its sheet.
	Sequence int `json:"sequence"`
}

// ExecutionDefinition describes one script run: which scenarios, which data,
// and how failures propagate. A plain script run has a nil Plan.
//
// Example JSON representation:
//
//	{
//	    "script": "artifact/script/login.yaml",
//	    "scenarios": ["Login", "Logout"],
//	    "data_file": "artifact/data/login.data.yaml",
//	    "data_sheets": ["qa"],
//	    "fail_fast": true,
//	    "serial": true,
//	    "run_id": "20260101_120000"
//	}
type ExecutionDefinition struct {
	// Description is a free-text note from the plan.
	Description string `json:"description,omitempty"`

	// Script is the script workbook path.
	Script string `json:"script"`

	// Scenarios lists the scenario sheets to run. Empty means every sheet
	// that is not a reserved sheet.
	Scenarios []string `json:"scenarios,omitempty"`

	// DataFile is the data workbook path. Empty means no data file.
	DataFile string `json:"data_file,omitempty"`

	// DataSheets lists the data sheets merged over #default.
	DataSheets []string `json:"data_sheets,omitempty"`

	// FailFast stops the script at the first iteration that does not pass.
	FailFast bool `json:"fail_fast"`

	// Serial makes the scheduler wait for this entry before starting the next.
	Serial bool `json:"serial"`

	// Plan is set when the definition comes from a plan.
	Plan *PlanLink `json:"plan,omitempty"`

	// RunID groups every definition of one invocation.
	RunID string `json:"run_id"`

	// First and Last mark the position of the definition in the execution.
	// Set by the scheduler.
	First bool `json:"-"`
	Last  bool `json:"-"`
}

// ScriptName returns the script file name without directory and extension.
func (d *ExecutionDefinition) ScriptName() string {
	base := filepath.Base(d.Script)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Label returns a short human-readable identifier for logs.
func (d *ExecutionDefinition) Label() string {
	if d.Plan == nil {
		return d.ScriptName()
	}
	return fmt.Sprintf("%s#%d %s", d.Plan.Name, d.Plan.Sequence, d.ScriptName())
}

// Validate checks the definition has what a run needs.
func (d *ExecutionDefinition) Validate() error {
	if strings.TrimSpace(d.Script) == "" {
		return fmt.Errorf("script path: %w", tabulaerrors.ErrEmptyValue)
	}
	if d.Plan != nil && d.Plan.Sequence < 1 {
		return fmt.Errorf("plan sequence %d: %w", d.Plan.Sequence, tabulaerrors.ErrValueOutOfRange)
	}
	return nil
}
