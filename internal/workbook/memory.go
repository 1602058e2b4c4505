package workbook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// MemoryBackend keeps workbook documents in memory. It is safe for concurrent
// use and is what dry runs and tests plug in place of files.
type MemoryBackend struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	loads map[string]int
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]*Document), loads: make(map[string]int)}
}

// Put stores a document built from sheet name → rows, in the given sheet order.
func (m *MemoryBackend) Put(path string, sheets ...SheetDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = cloneDocument(&Document{Sheets: sheets})
}

// Load returns a copy of the stored document.
func (m *MemoryBackend) Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, tabulaerrors.ErrWorkbookNotFound)
	}
	m.loads[path]++
	return cloneDocument(doc), nil
}

// Store saves a copy of doc.
func (m *MemoryBackend) Store(ctx context.Context, path string, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = cloneDocument(doc)
	return nil
}

// Exists reports whether a document is stored at path.
func (m *MemoryBackend) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[path]
	return ok
}

// Document returns a copy of the stored document, or nil.
func (m *MemoryBackend) Document(path string) *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.docs[path]; ok {
		return cloneDocument(doc)
	}
	return nil
}

// Paths returns every stored path, sorted.
func (m *MemoryBackend) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LoadCount returns how many times path was loaded.
func (m *MemoryBackend) LoadCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads[path]
}

// Sheet returns the rows of one sheet of a stored document.
func (d *Document) Sheet(name string) ([][]string, bool) {
	for _, s := range d.Sheets {
		if s.Name == name {
			return s.Rows, true
		}
	}
	return nil, false
}

func cloneDocument(doc *Document) *Document {
	c := &Document{Sheets: make([]SheetDocument, 0, len(doc.Sheets))}
	for _, s := range doc.Sheets {
		c.Sheets = append(c.Sheets, SheetDocument{Name: s.Name, Rows: copyRows(s.Rows)})
	}
	return c
}

var _ Backend = (*MemoryBackend)(nil)
