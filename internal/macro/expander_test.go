package macro

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	"github.com/mrz1836/tabula/internal/workbook"
)

var macroHeader = []string{"macro", "description", "target", "command", "p1", "p2", "p3", "p4", "p5", "flow"}

func step(target, command string, params ...string) domain.StepRow {
	return domain.StepRow{Target: target, Command: command, Params: params}
}

func invoke(file, sheet, name string) domain.StepRow {
	return domain.StepRow{Activity: "Login", Target: constants.StepTarget, Command: constants.MacroCommand, Params: []string{file, sheet, name}, FlowControls: "SkipIf(${skip} = true)"}
}

func newFixture(t *testing.T) (*workbook.MemoryBackend, *Expander) {
	t.Helper()
	backend := workbook.NewMemoryBackend()
	backend.Put("scripts/common.yaml", workbook.SheetDocument{
		Name: "Lib",
		Rows: [][]string{
			macroHeader,
			{"login", "", "base", "save", "user", "ada"},
			{"", "", "base", "save", "pass", "x"},
			{"login", "", "base", "verbose", "logged in"},
			{"logout", "", "base", "clear", "user"},
			{"outer", "", "base", "verbose", "before"},
			{"", "", "step", "macro", "common", "Lib", "logout"},
			{"loop", "", "step", "macro", "common", "Lib", "loop"},
		},
	})
	e := NewExpander(workbook.NewLoader(backend), NewCache(), WithScriptDir("scripts"))
	return backend, e
}

func TestExpander_SplicesMacroBody(t *testing.T) {
	_, e := newFixture(t)
	rows := []domain.StepRow{
		step("base", "verbose", "start"),
		invoke("common.yaml", "Lib", "login"),
		step("base", "verbose", "end"),
	}

	out, modified := e.Expand(context.Background(), rows, "scripts")
	require.True(t, modified)
	require.Len(t, out, len(rows)+3)

	marker := out[1]
	assert.True(t, marker.IsSection())
	assert.Equal(t, 3, marker.SectionSize())
	assert.Equal(t, "Login", marker.Activity)
	assert.Equal(t, "SkipIf(${skip} = true)", marker.FlowControls)

	for _, r := range out[2:5] {
		assert.Equal(t, "macro:scripts/common.yaml#Lib#login", r.Provenance)
		assert.Empty(t, r.Activity)
	}
	assert.Equal(t, "logged in", out[4].Param(0))
	assert.Equal(t, "end", out[5].Param(0))
}

func TestExpander_CacheHitIsIdempotent(t *testing.T) {
	backend, e := newFixture(t)
	rows := []domain.StepRow{invoke("common", "Lib", "login")}

	first, _ := e.Expand(context.Background(), rows, "")
	second, _ := e.Expand(context.Background(), rows, "")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.LoadCount("scripts/common.yaml"))
	assert.Equal(t, 1, e.cache.Len())
	assert.Equal(t, []string{"scripts/common.yaml"}, e.Sources())
}

func TestExpander_ConcurrentPopulation(t *testing.T) {
	backend, e := newFixture(t)
	rows := []domain.StepRow{invoke("common", "Lib", "login")}

	var wg sync.WaitGroup
	results := make([][]domain.StepRow, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Expand(context.Background(), rows, "")
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 4)
	}
	assert.LessOrEqual(t, backend.LoadCount("scripts/common.yaml"), 1)
}

func TestExpander_MissingMacroLeavesInvocation(t *testing.T) {
	_, e := newFixture(t)
	tests := []struct {
		name string
		row  domain.StepRow
	}{
		{"missing file", invoke("nope.yaml", "Lib", "login")},
		{"missing sheet", invoke("common", "Nope", "login")},
		{"missing name", invoke("common", "Lib", "nope")},
		{"incomplete invocation", invoke("common", "", "login")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []domain.StepRow{tt.row}
			out, modified := e.Expand(context.Background(), rows, "")
			assert.False(t, modified)
			assert.Equal(t, rows, out)
		})
	}
	assert.Equal(t, 0, e.cache.Len())
}

func TestExpander_NestedAndCycle(t *testing.T) {
	_, e := newFixture(t)

	out, modified := e.Expand(context.Background(), []domain.StepRow{invoke("common", "Lib", "outer")}, "")
	require.True(t, modified)
	// outer marker(3): verbose, logout marker(1), clear
	require.Len(t, out, 4)
	assert.Equal(t, 3, out[0].SectionSize())
	assert.True(t, out[2].IsSection())
	assert.Equal(t, 1, out[2].SectionSize())
	assert.Equal(t, "clear", out[3].Command)
	assert.Equal(t, "macro:scripts/common.yaml#Lib#logout", out[3].Provenance)

	out, modified = e.Expand(context.Background(), []domain.StepRow{invoke("common", "Lib", "loop")}, "")
	require.True(t, modified)
	require.Len(t, out, 2)
	assert.True(t, out[1].IsMacro(), "self-invocation stays unexpanded")
}

func TestScan(t *testing.T) {
	rows := [][]string{
		macroHeader,
		{"a", "", "base", "verbose", "1"},
		{"", "", "", ""},
		{"", "", "base", "verbose", "2"},
		{"b", "", "base", "verbose", "3"},
	}

	body := Scan(rows, "a")
	require.Len(t, body, 2)
	assert.Equal(t, "2", body[1].Param(0))
	assert.Empty(t, Scan(rows, "zzz"))
}
