package iteration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/workbook"
)

// DataSet is the merged content of a data workbook's #default sheet and
// selected data sheets. Column A holds variable names, columns B onwards
// hold one value per iteration reference.
type DataSet struct {
	names  []string
	values map[string][]string
}

// NewDataSet builds a DataSet from data sheet rows.
func NewDataSet(rows ...[][]string) *DataSet {
	d := &DataSet{values: make(map[string][]string)}
	for _, r := range rows {
		d.merge(r)
	}
	return d
}

// LoadDataSet reads #default, when present, then each of sheets in order.
// Later sheets override earlier ones per variable. A nil workbook yields an
// empty DataSet.
func LoadDataSet(wb workbook.Workbook, sheets []string) (*DataSet, error) {
	d := NewDataSet()
	if wb == nil {
		return d, nil
	}

	if ws, err := wb.Sheet(constants.DefaultDataSheet); err == nil {
		d.merge(ws.Rows())
	}
	for _, name := range sheets {
		if name == constants.DefaultDataSheet {
			continue
		}
		ws, err := wb.Sheet(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load data sheet: %w", err)
		}
		d.merge(ws.Rows())
	}
	return d, nil
}

func (d *DataSet) merge(rows [][]string) {
	for _, cells := range rows {
		if len(cells) == 0 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if name == "" {
			continue
		}
		if _, seen := d.values[name]; !seen {
			d.names = append(d.names, name)
		}
		d.values[name] = append([]string(nil), cells[1:]...)
	}
}

// Names returns variable names in first-seen order.
func (d *DataSet) Names() []string {
	return append([]string(nil), d.names...)
}

// Columns returns the widest value count of any variable.
func (d *DataSet) Columns() int {
	n := 0
	for _, v := range d.values {
		n = max(n, len(v))
	}
	return n
}

// Value returns the value of name for column ref. When the column is
// missing and fallback is set, the last available value is used.
func (d *DataSet) Value(name string, ref int, fallback bool) (string, bool) {
	vals, ok := d.values[name]
	if !ok {
		return "", false
	}
	if ref >= 1 && ref <= len(vals) {
		return vals[ref-1], true
	}
	if fallback && len(vals) > 0 {
		return vals[len(vals)-1], true
	}
	return "", true
}

// Directive returns the iteration directive set in the data.
func (d *DataSet) Directive() string {
	v, _ := d.Value(constants.KeyIteration, 1, false)
	return v
}

// FallbackToPrevious reports whether missing columns reuse the last value. Defaults to true.
func (d *DataSet) FallbackToPrevious() bool {
	v, ok := d.Value(constants.KeyFallbackToPrevious, 1, false)
	if !ok || strings.TrimSpace(v) == "" {
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err != nil || b
}

// Manager builds the iteration manager for this data set.
func (d *DataSet) Manager() (*Manager, error) {
	return NewManager(d.Directive(), d.Columns())
}
