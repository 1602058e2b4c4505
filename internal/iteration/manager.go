// Package iteration turns a data workbook into per-iteration data: which data
// columns run (the iteration directive) and the merged variables of each run.
package iteration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// DirectiveAll selects every data column.
const DirectiveAll = "all"

// Manager maps iteration ordinals (1..Count) to data column references.
// Resolution is fixed at construction.
type Manager struct {
	refs      []int
	directive string
}

// NewManager parses an iteration directive such as "1-3,5" or "all".
// columns is the number of value columns in the data set, used by "all".
// An empty directive runs column 1 once. At most constants.MaxIterations
// iterations may be selected.
func NewManager(directive string, columns int) (*Manager, error) {
	directive = strings.TrimSpace(directive)
	m := &Manager{directive: directive}

	switch strings.ToLower(directive) {
	case "":
		m.refs = []int{1}
		return m, nil
	case DirectiveAll:
		if columns > constants.MaxIterations {
			return nil, fmt.Errorf("%q selects %d columns, limit is %d: %w",
				directive, columns, constants.MaxIterations, tabulaerrors.ErrInvalidIterationDirective)
		}
		for i := 1; i <= max(columns, 1); i++ {
			m.refs = append(m.refs, i)
		}
		return m, nil
	}

	for _, token := range strings.Split(directive, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		refs, err := parseToken(token, constants.MaxIterations-len(m.refs))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", directive, err)
		}
		m.refs = append(m.refs, refs...)
	}
	if len(m.refs) == 0 {
		return nil, fmt.Errorf("%q: %w", directive, tabulaerrors.ErrInvalidIterationDirective)
	}
	return m, nil
}

// parseToken parses "4" or a range "2-5"; a descending range "5-2" runs backwards.
// limit is the number of references the token may still add.
func parseToken(token string, limit int) ([]int, error) {
	from, to, isRange := strings.Cut(token, "-")
	start, err := parseRef(from)
	if err != nil {
		return nil, err
	}
	if !isRange {
		if limit < 1 {
			return nil, errTooMany()
		}
		return []int{start}, nil
	}
	end, err := parseRef(to)
	if err != nil {
		return nil, err
	}
	if abs(end-start) >= limit {
		return nil, errTooMany()
	}

	step := 1
	if end < start {
		step = -1
	}
	refs := make([]int, 0, abs(end-start)+1)
	for r := start; ; r += step {
		refs = append(refs, r)
		if r == end {
			break
		}
	}
	return refs, nil
}

func errTooMany() error {
	return fmt.Errorf("more than %d iterations: %w", constants.MaxIterations, tabulaerrors.ErrInvalidIterationDirective)
}

func parseRef(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("column %q: %w", s, tabulaerrors.ErrInvalidIterationDirective)
	}
	return n, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Count returns the total number of iterations.
func (m *Manager) Count() int {
	return len(m.refs)
}

// Reference returns the data column for the 1-based iteration ordinal.
func (m *Manager) Reference(index int) (int, error) {
	if index < 1 || index > len(m.refs) {
		return 0, fmt.Errorf("iteration %d of %d: %w", index, len(m.refs), tabulaerrors.ErrIterationOutOfRange)
	}
	return m.refs[index-1], nil
}

// IsFirst reports whether index is the first iteration.
func (m *Manager) IsFirst(index int) bool { return index == 1 }

// IsLast reports whether index is the last iteration.
func (m *Manager) IsLast(index int) bool { return index == len(m.refs) }

// String returns the directive the manager was built from.
func (m *Manager) String() string {
	if m.directive == "" {
		return "1"
	}
	return m.directive
}
