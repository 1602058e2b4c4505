package iteration

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/workbook"
)

// DefaultExclusions are keys never written to iteration data. A trailing "."
// or "*" makes an entry a prefix match.
//
//nolint:gochecknoglobals // read-only defaults
var DefaultExclusions = []string{
	constants.KeyRunID,
	constants.KeyOutBase,
	constants.KeyScript,
	"tabula.intra.",
	"os.",
	"user.",
}

// Merger combines a data set with run-wide settings, housekeeping keys and
// environment values into the data of one iteration.
type Merger struct {
	settings map[string]string
	env      map[string]string
	excluded []string
}

// NewMerger creates a Merger. settings and env are added only where the data
// does not define the key. excluded extends DefaultExclusions.
func NewMerger(settings, env map[string]string, excluded []string) *Merger {
	return &Merger{
		settings: settings,
		env:      env,
		excluded: append(append([]string(nil), DefaultExclusions...), excluded...),
	}
}

// EnvWithPrefix collects environment entries whose name starts with prefix,
// with the prefix removed. environ is in os.Environ form.
func EnvWithPrefix(prefix string, environ []string) map[string]string {
	env := make(map[string]string)
	if prefix == "" {
		return env
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			continue
		}
		env[strings.TrimPrefix(name, prefix)] = value
	}
	return env
}

// EnvFromOS is EnvWithPrefix over the process environment.
func EnvFromOS(prefix string) map[string]string {
	return EnvWithPrefix(prefix, os.Environ())
}

// Merge builds the data of iteration index (1-based).
func (m *Merger) Merge(ds *DataSet, mgr *Manager, index int) (*Data, error) {
	ref, err := mgr.Reference(index)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(ds.names)+len(m.settings)+8)
	fallback := ds.FallbackToPrevious()
	for _, name := range ds.names {
		v, _ := ds.Value(name, ref, fallback)
		values[name] = v
	}

	for k, v := range m.settings {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}

	count := mgr.Count()
	values[constants.KeyCurrentIteration] = strconv.Itoa(index)
	values[constants.KeyCurrentIterationID] = strconv.Itoa(ref)
	values[constants.KeyIsFirstIteration] = strconv.FormatBool(mgr.IsFirst(index))
	values[constants.KeyIsLastIteration] = strconv.FormatBool(mgr.IsLast(index))
	values[constants.KeyIterationCount] = strconv.Itoa(count)
	if index > 1 {
		values[constants.KeyLastIteration] = strconv.Itoa(index - 1)
	} else {
		delete(values, constants.KeyLastIteration)
	}

	for k, v := range m.env {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}

	for k := range values {
		if m.isExcluded(k) {
			delete(values, k)
		}
	}

	return &Data{Index: index, Ref: ref, Count: count, values: values}, nil
}

func (m *Merger) isExcluded(key string) bool {
	return MatchesAny(key, m.excluded)
}

// MatchesAny reports whether key equals an entry, or starts with an entry
// ending in "." or "*".
func MatchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		switch {
		case strings.HasSuffix(p, "*"):
			if strings.HasPrefix(key, strings.TrimSuffix(p, "*")) {
				return true
			}
		case strings.HasSuffix(p, "."):
			if strings.HasPrefix(key, p) {
				return true
			}
		case key == p:
			return true
		}
	}
	return false
}

// Data is the merged variable set of one iteration.
type Data struct {
	// Index is the 1-based iteration ordinal.
	Index int
	// Ref is the data column the iteration reads.
	Ref int
	// Count is the total number of iterations.
	Count  int
	values map[string]string
}

// Get returns a variable.
func (d *Data) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Values returns a copy of every variable.
func (d *Data) Values() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Keys returns user keys sorted, followed by reserved keys sorted.
func (d *Data) Keys() []string {
	var user, reserved []string
	for k := range d.values {
		if strings.HasPrefix(k, constants.ReservedPrefix) {
			reserved = append(reserved, k)
		} else {
			user = append(user, k)
		}
	}
	sort.Strings(user)
	sort.Strings(reserved)
	return append(user, reserved...)
}

// WriteTo replaces the content of ws with one name/value row per variable,
// user keys first, a blank row, then reserved keys.
func (d *Data) WriteTo(ws workbook.Worksheet) {
	keys := d.Keys()
	rows := make([][]string, 0, len(keys)+1)
	separated := false
	for i, k := range keys {
		if !separated && strings.HasPrefix(k, constants.ReservedPrefix) {
			if i > 0 {
				rows = append(rows, []string{})
			}
			separated = true
		}
		rows = append(rows, []string{k, d.values[k]})
	}
	ws.SetRows(rows)
}
