// Package macro expands macro invocations in scenario step lists. A macro is
// a named block of steps kept in a macro workbook and spliced into a scenario
// before it runs.
package macro

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mrz1836/tabula/internal/domain"
)

// Key identifies a macro body.
type Key struct {
	Source string
	Sheet  string
	Name   string
}

func (k Key) String() string {
	return k.Source + "#" + k.Sheet + "#" + k.Name
}

// Cache holds resolved macro bodies for the whole process. Entries are
// either absent or complete; readers always get their own copy.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key][]domain.StepRow
	group   singleflight.Group
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key][]domain.StepRow)}
}

// Get returns a copy of the cached body.
func (c *Cache) Get(key Key) ([]domain.StepRow, bool) {
	c.mu.RLock()
	rows, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneRows(rows), true
}

// GetOrLoad returns the cached body, loading it at most once across
// concurrent callers. Failed or empty loads are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, key Key, load func(context.Context) ([]domain.StepRow, error)) ([]domain.StepRow, error) {
	if rows, ok := c.Get(key); ok {
		return rows, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if rows, ok := c.Get(key); ok {
			return rows, nil
		}
		rows, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			c.mu.Lock()
			c.entries[key] = cloneRows(rows)
			c.mu.Unlock()
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneRows(v.([]domain.StepRow)), nil //nolint:forcetypeassert // only []domain.StepRow is stored
}

// Len returns the number of cached macros.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sources returns the sorted, distinct macro workbooks of the cached macros.
func (c *Cache) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sources := make([]string, 0, len(c.entries))
	for key := range c.entries {
		sources = append(sources, key.Source)
	}
	slices.Sort(sources)
	return slices.Compact(sources)
}

func cloneRows(rows []domain.StepRow) []domain.StepRow {
	out := slices.Clone(rows)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}
