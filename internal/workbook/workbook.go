// Package workbook is the tabular file contract used by scripts, data files,
// macro libraries and plans: a workbook is an ordered set of named worksheets,
// each an ordered list of rows of string cells.
//
// Workbooks are not safe for concurrent use. Each execution unit is owned by
// a single worker.
package workbook

import (
	"context"
	"fmt"
	"slices"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// Worksheet is one named sheet of a workbook.
type Worksheet interface {
	Name() string
	RowCount() int
	// Row returns a copy of row i, or nil when out of range.
	Row(i int) []string
	// Rows returns a copy of every row.
	Rows() [][]string
	Cell(row, col int) string
	// SetCell writes a value, growing the sheet as needed.
	SetCell(row, col int, value string)
	AppendRow(cells ...string)
	// SetRows replaces the whole content of the sheet.
	SetRows(rows [][]string)
}

// Workbook is a set of named worksheets bound to a path.
type Workbook interface {
	Path() string
	SheetNames() []string
	HasSheet(name string) bool
	Sheet(name string) (Worksheet, error)
	// AddSheet creates an empty sheet. It fails if the name is taken.
	AddSheet(name string) (Worksheet, error)
	RemoveSheet(name string)
	// Clone copies every sheet into a new workbook bound to path.
	Clone(path string) Workbook
	Save(ctx context.Context) error
	Close() error
}

// Opener opens workbooks by path.
type Opener interface {
	Open(ctx context.Context, path string) (Workbook, error)
	Exists(path string) bool
}

// Book is the Workbook implementation backed by a Backend.
type Book struct {
	path    string
	backend Backend
	sheets  []*Sheet
	closed  bool
}

// NewBook creates an empty workbook bound to path.
func NewBook(backend Backend, path string) *Book {
	return &Book{path: path, backend: backend}
}

// Path returns the path the workbook saves to.
func (b *Book) Path() string { return b.path }

// SheetNames returns sheet names in document order.
func (b *Book) SheetNames() []string {
	names := make([]string, 0, len(b.sheets))
	for _, s := range b.sheets {
		names = append(names, s.name)
	}
	return names
}

// HasSheet reports whether a sheet exists.
func (b *Book) HasSheet(name string) bool {
	return b.find(name) >= 0
}

// Sheet returns the named sheet.
func (b *Book) Sheet(name string) (Worksheet, error) {
	i := b.find(name)
	if i < 0 {
		return nil, fmt.Errorf("%s in %s: %w", name, b.path, tabulaerrors.ErrSheetNotFound)
	}
	return b.sheets[i], nil
}

// AddSheet appends a new empty sheet.
func (b *Book) AddSheet(name string) (Worksheet, error) {
	if b.HasSheet(name) {
		return nil, fmt.Errorf("%s in %s: %w", name, b.path, tabulaerrors.ErrSheetExists)
	}
	s := &Sheet{name: name}
	b.sheets = append(b.sheets, s)
	return s, nil
}

// RemoveSheet deletes the named sheet if present.
func (b *Book) RemoveSheet(name string) {
	if i := b.find(name); i >= 0 {
		b.sheets = slices.Delete(b.sheets, i, i+1)
	}
}

// Clone copies the workbook to a new path using the same backend.
func (b *Book) Clone(path string) Workbook {
	c := &Book{path: path, backend: b.backend, sheets: make([]*Sheet, 0, len(b.sheets))}
	for _, s := range b.sheets {
		c.sheets = append(c.sheets, &Sheet{name: s.name, rows: copyRows(s.rows)})
	}
	return c
}

// Save writes the workbook through its backend.
func (b *Book) Save(ctx context.Context) error {
	if b.closed {
		return fmt.Errorf("save %s: %w", b.path, tabulaerrors.ErrWorkbookClosed)
	}
	return b.backend.Store(ctx, b.path, b.document())
}

// Close releases the workbook. Further saves fail.
func (b *Book) Close() error {
	b.closed = true
	return nil
}

func (b *Book) find(name string) int {
	for i, s := range b.sheets {
		if s.name == name {
			return i
		}
	}
	return -1
}

func (b *Book) document() *Document {
	doc := &Document{Sheets: make([]SheetDocument, 0, len(b.sheets))}
	for _, s := range b.sheets {
		doc.Sheets = append(doc.Sheets, SheetDocument{Name: s.name, Rows: copyRows(s.rows)})
	}
	return doc
}

func bookFromDocument(backend Backend, path string, doc *Document) (*Book, error) {
	b := NewBook(backend, path)
	for _, sd := range doc.Sheets {
		if b.HasSheet(sd.Name) {
			return nil, fmt.Errorf("duplicate sheet %q in %s: %w", sd.Name, path, tabulaerrors.ErrWorkbookInvalid)
		}
		b.sheets = append(b.sheets, &Sheet{name: sd.Name, rows: copyRows(sd.Rows)})
	}
	return b, nil
}

// Sheet is the Worksheet implementation.
type Sheet struct {
	name string
	rows [][]string
}

// Name returns the sheet name.
func (s *Sheet) Name() string { return s.name }

// RowCount returns the number of rows.
func (s *Sheet) RowCount() int { return len(s.rows) }

// Row returns a copy of row i.
func (s *Sheet) Row(i int) []string {
	if i < 0 || i >= len(s.rows) {
		return nil
	}
	return slices.Clone(s.rows[i])
}

// Rows returns a copy of all rows.
func (s *Sheet) Rows() [][]string { return copyRows(s.rows) }

// Cell returns the value at row, col or "".
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.rows) || col < 0 || col >= len(s.rows[row]) {
		return ""
	}
	return s.rows[row][col]
}

// SetCell writes value at row, col.
func (s *Sheet) SetCell(row, col int, value string) {
	if row < 0 || col < 0 {
		return
	}
	for len(s.rows) <= row {
		s.rows = append(s.rows, nil)
	}
	for len(s.rows[row]) <= col {
		s.rows[row] = append(s.rows[row], "")
	}
	s.rows[row][col] = value
}

// AppendRow adds a row at the end.
func (s *Sheet) AppendRow(cells ...string) {
	s.rows = append(s.rows, slices.Clone(cells))
}

// SetRows replaces every row.
func (s *Sheet) SetRows(rows [][]string) {
	s.rows = copyRows(rows)
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

var (
	_ Workbook  = (*Book)(nil)
	_ Worksheet = (*Sheet)(nil)
)
