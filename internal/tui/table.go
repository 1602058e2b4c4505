package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/summary"
)

// DefaultSummaryDepth shows the run, its scripts and their iterations.
const DefaultSummaryDepth = 2

// SummaryRow is one flattened node of a summary tree.
type SummaryRow struct {
	Depth       int                   `json:"depth"`
	Name        string                `json:"name"`
	Kind        constants.SummaryKind `json:"kind"`
	Pass        int                   `json:"pass"`
	Fail        int                   `json:"fail"`
	Warn        int                   `json:"warn"`
	Skipped     int                   `json:"skipped"`
	SuccessRate float64               `json:"success_rate"`
	Duration    time.Duration         `json:"duration"`
	Passed      bool                  `json:"passed"`
}

// SummaryTableOption configures a SummaryTable.
type SummaryTableOption func(*SummaryTable)

// WithMaxDepth limits how deep the tree is shown. Negative shows everything.
func WithMaxDepth(depth int) SummaryTableOption {
	return func(t *SummaryTable) { t.maxDepth = depth }
}

// SummaryTable renders an execution summary as a bordered table followed by
// the recorded errors.
type SummaryTable struct {
	root     *summary.ExecutionSummary
	rows     []SummaryRow
	errors   []string
	maxDepth int
	styles   *TableStyles
}

// NewSummaryTable flattens root. Counts must be aggregated.
func NewSummaryTable(root *summary.ExecutionSummary, opts ...SummaryTableOption) *SummaryTable {
	t := &SummaryTable{
		root:     root,
		maxDepth: DefaultSummaryDepth,
		styles:   NewTableStyles(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if root == nil {
		return t
	}

	root.Walk(func(node *summary.ExecutionSummary, depth int) {
		for _, e := range node.Errors {
			t.errors = append(t.errors, node.Name+": "+e)
		}
		if t.maxDepth >= 0 && depth > t.maxDepth {
			return
		}
		t.rows = append(t.rows, SummaryRow{
			Depth:       depth,
			Name:        node.Name,
			Kind:        node.Kind,
			Pass:        node.Pass,
			Fail:        node.Fail,
			Warn:        node.Warn,
			Skipped:     node.Skipped,
			SuccessRate: node.SuccessRate(),
			Duration:    node.Duration(),
			Passed:      node.AllPassed(),
		})
	})
	return t
}

// Rows returns the flattened rows.
func (t *SummaryTable) Rows() []SummaryRow {
	return t.rows
}

// Errors returns every error in the tree, prefixed with its node name.
func (t *SummaryTable) Errors() []string {
	return t.errors
}

// Headers returns the column headers.
func (t *SummaryTable) Headers() []string {
	return []string{"NAME", "KIND", "PASS", "FAIL", "WARN", "SKIP", "RATE", "TIME", "RESULT"}
}

// Render writes the table and the error list to w.
func (t *SummaryTable) Render(w io.Writer) error {
	failedRows := make(map[int]bool, len(t.rows))
	cells := make([][]string, 0, len(t.rows))
	for i, r := range t.rows {
		if !r.Passed {
			failedRows[i] = true
		}
		cells = append(cells, t.cells(r))
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(t.styles.Border).
		Headers(t.Headers()...).
		Rows(cells...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return t.styles.Header
			case failedRows[row]:
				return t.styles.Failed
			default:
				return t.styles.Cell
			}
		})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return err
	}
	if len(t.errors) == 0 {
		return nil
	}

	styles := NewOutputStyles()
	if _, err := fmt.Fprintln(w, styles.Error.Render(fmt.Sprintf("%d error(s):", len(t.errors)))); err != nil {
		return err
	}
	for _, e := range t.errors {
		if _, err := fmt.Fprintln(w, "  "+e); err != nil {
			return err
		}
	}
	return nil
}

func (t *SummaryTable) cells(r SummaryRow) []string {
	result := "✓ PASS"
	if !r.Passed {
		result = "✗ FAIL"
	}
	return []string{
		strings.Repeat("  ", r.Depth) + r.Name,
		string(r.Kind),
		strconv.Itoa(r.Pass),
		strconv.Itoa(r.Fail),
		strconv.Itoa(r.Warn),
		strconv.Itoa(r.Skipped),
		fmt.Sprintf("%.1f%%", r.SuccessRate),
		formatDuration(r.Duration),
		result,
	}
}

// formatDuration rounds to a readable precision.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
