package workbook

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/flock"
)

// yamlDocument keeps raw scalar text so "007" or "1.0" survive a load.
type yamlDocument struct {
	Sheets []struct {
		Name string        `yaml:"name"`
		Rows [][]yaml.Node `yaml:"rows"`
	} `yaml:"sheets"`
}

// FileBackend stores workbooks as YAML files.
type FileBackend struct {
	lockTimeout time.Duration
}

// NewFileBackend creates a FileBackend.
func NewFileBackend() *FileBackend {
	return &FileBackend{lockTimeout: constants.LockTimeout}
}

// Exists reports whether path is an existing regular file.
func (f *FileBackend) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads, validates and decodes a workbook file.
func (f *FileBackend) Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //#nosec G304 -- workbook paths come from CLI arguments and plans
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, tabulaerrors.ErrWorkbookNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return DecodeYAML(data)
}

// Store writes doc atomically under an exclusive lock.
func (f *FileBackend) Store(ctx context.Context, path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return flock.WriteFile(ctx, path, data, f.lockTimeout)
}

// DecodeYAML validates and decodes a YAML workbook document.
func DecodeYAML(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", tabulaerrors.ErrWorkbookInvalid, err)
	}
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	var yd yamlDocument
	if err := yaml.Unmarshal(data, &yd); err != nil {
		return nil, fmt.Errorf("%w: %w", tabulaerrors.ErrWorkbookInvalid, err)
	}

	doc := &Document{Sheets: make([]SheetDocument, 0, len(yd.Sheets))}
	for _, s := range yd.Sheets {
		rows := make([][]string, len(s.Rows))
		for i, r := range s.Rows {
			cells := make([]string, len(r))
			for j := range r {
				cells[j] = scalarText(&r[j])
			}
			rows[i] = cells
		}
		doc.Sheets = append(doc.Sheets, SheetDocument{Name: s.Name, Rows: rows})
	}
	return doc, nil
}

func scalarText(n *yaml.Node) string {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

var _ Backend = (*FileBackend)(nil)
