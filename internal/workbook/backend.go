package workbook

import (
	"context"
	"fmt"
)

// Document is the serialized form of a workbook.
type Document struct {
	Sheets []SheetDocument `yaml:"sheets" json:"sheets"`
}

// SheetDocument is the serialized form of a worksheet.
type SheetDocument struct {
	Name string     `yaml:"name" json:"name"`
	Rows [][]string `yaml:"rows" json:"rows"`
}

// Backend loads and stores workbook documents.
type Backend interface {
	Load(ctx context.Context, path string) (*Document, error)
	Store(ctx context.Context, path string, doc *Document) error
	Exists(path string) bool
}

// Loader opens workbooks from a Backend.
type Loader struct {
	backend Backend
}

// NewLoader creates a Loader.
func NewLoader(backend Backend) *Loader {
	return &Loader{backend: backend}
}

// Open loads the workbook at path.
func (l *Loader) Open(ctx context.Context, path string) (Workbook, error) {
	doc, err := l.backend.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return bookFromDocument(l.backend, path, doc)
}

// Exists reports whether a workbook exists at path.
func (l *Loader) Exists(path string) bool {
	return l.backend.Exists(path)
}

// Create returns a new empty workbook bound to path. Nothing is written until Save.
func (l *Loader) Create(path string) Workbook {
	return NewBook(l.backend, path)
}

var _ Opener = (*Loader)(nil)
