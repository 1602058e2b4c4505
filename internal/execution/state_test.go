package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/workbook"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to constants.LoopState
		want     bool
	}{
		{constants.LoopStateNotStarted, constants.LoopStatePreparing, true},
		{constants.LoopStatePreparing, constants.LoopStateRunning, true},
		{constants.LoopStatePreparing, constants.LoopStateCompleting, true},
		{constants.LoopStateRunning, constants.LoopStateIterationComplete, true},
		{constants.LoopStateIterationComplete, constants.LoopStateRunning, true},
		{constants.LoopStateIterationComplete, constants.LoopStateCompleting, true},
		{constants.LoopStateCompleting, constants.LoopStateDone, true},
		{constants.LoopStateNotStarted, constants.LoopStateRunning, false},
		{constants.LoopStateRunning, constants.LoopStateCompleting, false},
		{constants.LoopStateDone, constants.LoopStatePreparing, false},
		{constants.LoopStateRunning, constants.LoopStateRunning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestLifecycle_RejectsInvalidTransition(t *testing.T) {
	l := newLifecycle()
	require.NoError(t, l.transition(constants.LoopStatePreparing))
	err := l.transition(constants.LoopStateDone)
	require.ErrorIs(t, err, tabulaerrors.ErrInvalidTransition)
	assert.Equal(t, constants.LoopStatePreparing, l.state)
}

func TestArtifactName(t *testing.T) {
	start := time.Date(2026, 3, 9, 14, 5, 6, 0, time.UTC)

	def := &domain.ExecutionDefinition{Script: "artifact/script/login.yaml"}
	assert.Equal(t, "login.20260309_140506.003.yaml", ArtifactName(def, start, 3))
	assert.Equal(t, "login.20260309_140506.summary.json", SummaryName(def, start))

	def.Plan = &domain.PlanLink{File: "artifact/plan/regression.yaml", Name: "smoke", Sequence: 7}
	assert.Equal(t, "regression.smoke.007,login.20260309_140506.012.yaml", ArtifactName(def, start, 12))

	def = &domain.ExecutionDefinition{Script: "bare"}
	assert.Equal(t, "bare.20260309_140506.001"+constants.WorkbookExt, ArtifactName(def, start, 1))
}

func TestSelectScenarios(t *testing.T) {
	backend := workbook.NewMemoryBackend()
	backend.Put("s.yaml",
		workbook.SheetDocument{Name: "A"},
		workbook.SheetDocument{Name: constants.DataSheet},
		workbook.SheetDocument{Name: "B"},
	)
	book := workbook.NewBook(backend, "s.yaml")
	loaded, err := workbook.NewLoader(backend).Open(t.Context(), "s.yaml")
	require.NoError(t, err)

	names, err := SelectScenarios(loaded, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	names, err = SelectScenarios(loaded, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names)

	_, err = SelectScenarios(loaded, []string{"C"})
	require.ErrorIs(t, err, tabulaerrors.ErrScenarioNotFound)

	_, err = SelectScenarios(book, nil)
	require.ErrorIs(t, err, tabulaerrors.ErrScenarioNotFound)
}

func TestContext_Flags(t *testing.T) {
	c := NewContext(domain.IntraExecutionData{"carried": "yes"}, nil)
	v, ok := c.Lookup("carried")
	require.True(t, ok)
	assert.Equal(t, "yes", v)

	c.Set(constants.ScenarioRefPrefix+"id", "42")
	assert.Equal(t, map[string]string{"id": "42"}, c.WithPrefix(constants.ScenarioRefPrefix))

	assert.False(t, c.FailImmediate())
	c.MarkFailImmediate()
	c.MarkEndImmediate()
	assert.True(t, c.FailImmediate())
	assert.True(t, c.EndImmediate())
	assert.Equal(t, "true", c.Values()[constants.KeyFailImmediate])
}
