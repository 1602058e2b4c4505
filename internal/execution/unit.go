package execution

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/macro"
	"github.com/mrz1836/tabula/internal/workbook"
)

// Scenario is one scenario sheet of an execution unit. Steps[i] lives on
// sheet row i+1; row 0 is the header.
type Scenario struct {
	Name  string
	Steps []domain.StepRow
	sheet workbook.Worksheet
}

// Unit is the per-iteration copy of a script: the script's scenarios with
// macros expanded and a #data sheet holding the iteration's variables.
type Unit struct {
	book      workbook.Workbook
	scenarios []*Scenario
}

// NewUnit clones script to path, writes data to its #data sheet and expands
// the macros of each named scenario. The unit is saved right away when
// expansion changed anything, and again at teardown.
func NewUnit(ctx context.Context, script workbook.Workbook, path string, data *iteration.Data,
	scenarios []string, expander *macro.Expander, baseDir string,
) (*Unit, error) {
	book := script.Clone(path)

	book.RemoveSheet(constants.DataSheet)
	ws, err := book.AddSheet(constants.DataSheet)
	if err != nil {
		_ = book.Close()
		return nil, fmt.Errorf("failed to create data sheet: %w", err)
	}
	data.WriteTo(ws)

	u := &Unit{book: book}
	modified := false
	for _, name := range scenarios {
		sheet, err := book.Sheet(name)
		if err != nil {
			_ = book.Close()
			return nil, fmt.Errorf("scenario %q: %w", name, tabulaerrors.ErrScenarioNotFound)
		}

		rows := sheet.Rows()
		steps := make([]domain.StepRow, 0, len(rows))
		for _, cells := range rows[min(1, len(rows)):] {
			steps = append(steps, domain.StepRowFromCells(cells))
		}

		expanded, changed := expander.Expand(ctx, steps, baseDir)
		if changed {
			modified = true
			out := make([][]string, 0, len(expanded)+1)
			if len(rows) > 0 {
				out = append(out, rows[0])
			}
			for _, s := range expanded {
				out = append(out, s.Cells())
			}
			sheet.SetRows(out)
		}
		u.scenarios = append(u.scenarios, &Scenario{Name: name, Steps: expanded, sheet: sheet})
	}

	if modified {
		if err := book.Save(ctx); err != nil {
			_ = book.Close()
			return nil, fmt.Errorf("failed to save execution unit: %w", err)
		}
	}
	return u, nil
}

// Path returns the artifact path of the unit.
func (u *Unit) Path() string {
	return u.book.Path()
}

// Scenarios returns the unit's scenarios in execution order.
func (u *Unit) Scenarios() []*Scenario {
	return u.scenarios
}

// Annotate writes a step result into the scenario sheet.
func (s *Scenario) Annotate(index int, status constants.StepStatus, message string, elapsed time.Duration) {
	row := index + 1
	s.sheet.SetCell(row, domain.ColResult, strings.ToUpper(status.String()))
	s.sheet.SetCell(row, domain.ColMessage, message)
	s.sheet.SetCell(row, domain.ColElapsedMs, strconv.FormatInt(elapsed.Milliseconds(), 10))
}

// Save writes the unit to its artifact path.
func (u *Unit) Save(ctx context.Context) error {
	return u.book.Save(ctx)
}

// Close releases the unit.
func (u *Unit) Close() error {
	return u.book.Close()
}

// SelectScenarios returns the scenario sheets to run: the requested ones, or
// every sheet whose name does not start with "#".
func SelectScenarios(script workbook.Workbook, requested []string) ([]string, error) {
	if len(requested) == 0 {
		var names []string
		for _, name := range script.SheetNames() {
			if !strings.HasPrefix(name, "#") {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("%s: %w", script.Path(), tabulaerrors.ErrScenarioNotFound)
		}
		return names, nil
	}
	for _, name := range requested {
		if !script.HasSheet(name) {
			return nil, fmt.Errorf("%s in %s: %w", name, script.Path(), tabulaerrors.ErrScenarioNotFound)
		}
	}
	return requested, nil
}
