// Package plan turns plan workbooks into execution definitions and runs them
// serially or in parallel, aggregating every script summary into one run summary.
//
// Import rules:
//   - CAN import: internal/config, internal/constants, internal/domain, internal/errors,
//     internal/execution, internal/iteration, internal/summary, internal/workbook
//   - MUST NOT import: internal/cli
package plan

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/workbook"
)

// Plan sheet columns. Row 0 is the header.
const (
	colDescription = iota
	colScript
	colScenarios
	colDataFile
	colDataSheets
	colFailFast
	colSerial
	colEnabled
)

// listSeparator separates scenario and data sheet names in a plan cell.
const listSeparator = ","

// LoadOption configures LoadPlan.
type LoadOption func(*loadOptions)

type loadOptions struct {
	opener    workbook.Opener
	scriptDir string
	dataDir   string
	ext       string
	runID     string
}

// WithSearchDirs resolves relative script and data paths that do not exist
// next to the plan against the project directories.
func WithSearchDirs(opener workbook.Opener, scriptDir, dataDir string) LoadOption {
	return func(o *loadOptions) {
		o.opener = opener
		o.scriptDir = scriptDir
		o.dataDir = dataDir
	}
}

// WithRunID stamps every definition with the run id.
func WithRunID(runID string) LoadOption {
	return func(o *loadOptions) { o.runID = runID }
}

// LoadPlan reads the named plan sheets of wb, or every sheet not starting
// with "#" when sheets is empty, and returns the enabled entries in order.
func LoadPlan(wb workbook.Workbook, planFile string, sheets []string, opts ...LoadOption) ([]*domain.ExecutionDefinition, error) {
	o := loadOptions{ext: constants.WorkbookExt}
	for _, opt := range opts {
		opt(&o)
	}

	if len(sheets) == 0 {
		for _, name := range wb.SheetNames() {
			if !strings.HasPrefix(name, "#") {
				sheets = append(sheets, name)
			}
		}
	}

	planDir := filepath.Dir(planFile)
	var defs []*domain.ExecutionDefinition
	for _, name := range sheets {
		ws, err := wb.Sheet(name)
		if err != nil {
			return nil, tabulaerrors.Wrapf(err, "plan %s", planFile)
		}

		rows := ws.Rows()
		for i := 1; i < len(rows); i++ {
			def, err := o.entry(rows[i], planFile, planDir, name, i)
			if err != nil {
				return nil, err
			}
			if def != nil {
				defs = append(defs, def)
			}
		}
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: %w", planFile, tabulaerrors.ErrPlanEmpty)
	}
	return defs, nil
}

// entry converts one plan row. Blank and disabled rows return nil.
func (o *loadOptions) entry(cells []string, planFile, planDir, sheet string, row int) (*domain.ExecutionDefinition, error) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	script := cell(colScript)
	if script == "" {
		return nil, nil //nolint:nilnil // blank row
	}

	enabled, err := parseFlag(cell(colEnabled), true)
	if err != nil {
		return nil, fmt.Errorf("%s %s row %d enabled: %w", planFile, sheet, row+1, err)
	}
	if !enabled {
		return nil, nil //nolint:nilnil // disabled row
	}

	failFast, err := parseFlag(cell(colFailFast), true)
	if err != nil {
		return nil, fmt.Errorf("%s %s row %d fail-fast: %w", planFile, sheet, row+1, err)
	}
	serial, err := parseFlag(cell(colSerial), true)
	if err != nil {
		return nil, fmt.Errorf("%s %s row %d serial: %w", planFile, sheet, row+1, err)
	}

	def := &domain.ExecutionDefinition{
		Description: cell(colDescription),
		Script:      o.resolve(script, planDir, o.scriptDir),
		Scenarios:   splitList(cell(colScenarios)),
		DataSheets:  splitList(cell(colDataSheets)),
		FailFast:    failFast,
		Serial:      serial,
		RunID:       o.runID,
		Plan:        &domain.PlanLink{File: planFile, Name: sheet, Sequence: row},
	}
	if data := cell(colDataFile); data != "" {
		def.DataFile = o.resolve(data, planDir, o.dataDir)
	}
	return def, nil
}

// resolve finds path as given, next to the plan, then under projectDir.
func (o *loadOptions) resolve(path, planDir, projectDir string) string {
	return Resolve(o.opener, path, o.ext, planDir, projectDir)
}

// Resolve returns the first existing candidate for path: as given, then
// under each of dirs in order, each tried with and without ext. Absolute
// paths, a nil opener and paths with no existing candidate come back unchanged.
func Resolve(opener workbook.Opener, path, ext string, dirs ...string) string {
	if opener == nil || filepath.IsAbs(path) {
		return path
	}

	names := []string{path}
	if ext != "" && !strings.EqualFold(filepath.Ext(path), ext) {
		names = append(names, path+ext)
	}
	for _, dir := range append([]string{""}, dirs...) {
		for _, n := range names {
			if c := filepath.Join(dir, n); opener.Exists(c) {
				return c
			}
		}
	}
	return path
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFlag reads a yes/no plan cell; empty means def.
func parseFlag(s string, def bool) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return def, nil
	case "y", "yes", "on":
		return true, nil
	case "n", "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%q: %w", s, tabulaerrors.ErrInvalidArgument)
	}
	return b, nil
}
