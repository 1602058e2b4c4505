package execution

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/step"
	"github.com/mrz1836/tabula/internal/summary"
	"github.com/mrz1836/tabula/internal/workbook"
)

var (
	scriptHeader = []string{"activity", "description", "target", "command", "p1", "p2", "p3", "p4", "p5", "flow", "result", "message", "elapsed", "source"}
	t0           = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

type fixture struct {
	backend *workbook.MemoryBackend
	runner  *Runner
	events  *recordingListener
}

func stepCells(target, command, p1, p2, flow string) []string {
	return []string{"Check", "", target, command, p1, p2, "", "", "", flow}
}

func newFixture(t *testing.T, cfg *config.Config, steps ...[]string) *fixture {
	t.Helper()
	backend := workbook.NewMemoryBackend()
	backend.Put("scripts/login.yaml",
		workbook.SheetDocument{Name: "Main", Rows: append([][]string{scriptHeader}, steps...)},
		workbook.SheetDocument{Name: "#notes", Rows: [][]string{{"ignored"}}},
	)
	backend.Put("data/login.data.yaml", workbook.SheetDocument{
		Name: constants.DefaultDataSheet,
		Rows: [][]string{
			{constants.KeyIteration, "1-5"},
			{"expected", "ok", "bad", "ok", "ok", "ok"},
			{"skip", "false"},
		},
	})
	backend.Put("scripts/common.yaml", workbook.SheetDocument{
		Name: "Lib",
		Rows: [][]string{
			{"macro", "description", "target", "command"},
			{"prep", "", "base", "save", "a", "1"},
			{"", "", "base", "save", "b", "2"},
		},
	})

	registry := step.NewRegistry()
	require.NoError(t, step.RegisterBase(registry))
	require.NoError(t, registry.Register(step.NewCommand("test", "boom", func(context.Context, step.Variables, []string) step.Result {
		panic("kaboom")
	})))

	events := &recordingListener{}
	runner := NewRunner(config.NewRunConfig(cfg, "r1", t0), workbook.NewLoader(backend), registry,
		WithClock(clock.NewStepClock(t0, 0)),
		WithListener(events),
		WithMerger(iteration.NewMerger(nil, nil, nil)),
	)
	return &fixture{backend: backend, runner: runner, events: events}
}

func definition(failFast bool) *domain.ExecutionDefinition {
	return &domain.ExecutionDefinition{
		Script:   "scripts/login.yaml",
		DataFile: "data/login.data.yaml",
		FailFast: failFast,
		RunID:    "r1",
		First:    true,
		Last:     true,
	}
}

type recordingListener struct {
	NoopListener
	events []string
}

func (l *recordingListener) OnExecutionBegin(context.Context, *domain.ExecutionDefinition) {
	l.events = append(l.events, "execution-begin")
}

func (l *recordingListener) OnIterationBegin(_ context.Context, _ *domain.ExecutionDefinition, data *iteration.Data) {
	l.events = append(l.events, fmt.Sprintf("iteration-begin-%d", data.Index))
}

func (l *recordingListener) OnIterationComplete(_ context.Context, _ *domain.ExecutionDefinition, it *summary.ExecutionSummary) {
	l.events = append(l.events, fmt.Sprintf("iteration-complete-%d", it.Iteration))
}

func (l *recordingListener) OnScriptComplete(context.Context, *domain.ExecutionDefinition, *summary.ExecutionSummary) {
	l.events = append(l.events, "script-complete")
}

func (l *recordingListener) OnExecutionComplete(context.Context, *domain.ExecutionDefinition, *summary.ExecutionSummary) {
	l.events = append(l.events, "execution-complete")
}

func TestRunner_FailFastStopsAfterFailingIteration(t *testing.T) {
	f := newFixture(t, nil, stepCells("base", "assertEqual", "ok", "${expected}", ""))

	out := f.runner.Run(context.Background(), definition(true), nil)

	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.Summary.ExecutionCount(), "iteration 2 of 5 fails")
	assert.Equal(t, 1, out.Summary.Pass)
	assert.Equal(t, 1, out.Summary.Fail)
	assert.False(t, out.StopAll)
	assert.Equal(t, constants.OutcomeFailed, out.Intra[constants.KeyLastOutcome])
	assert.Equal(t, 2, out.Intra.Int(constants.KeyLastCompletedIteration))
}

func TestRunner_WithoutFailFastRunsEveryIteration(t *testing.T) {
	f := newFixture(t, nil, stepCells("base", "assertEqual", "ok", "${expected}", ""))

	out := f.runner.Run(context.Background(), definition(false), nil)

	assert.Equal(t, 5, out.Summary.ExecutionCount())
	assert.Equal(t, 4, out.Summary.Pass)
	assert.Equal(t, 1, out.Summary.Fail)
	assert.InDelta(t, 80.0, out.Summary.SuccessRate(), 0.001)
}

func TestRunner_EndIfStopsExecution(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "verbose", "before", "", "EndIf(${tabula.scope.currentIteration} = 3)"),
		stepCells("base", "verbose", "after", "", ""),
	)

	out := f.runner.Run(context.Background(), definition(false), nil)

	assert.Equal(t, 3, out.Summary.ExecutionCount())
	assert.True(t, out.StopAll)
	assert.True(t, out.Intra.Bool(constants.KeyEndImmediate))
	assert.False(t, out.Intra.Bool(constants.KeyFailImmediate))
	assert.Zero(t, out.Summary.Fail)

	last := out.Summary.Children[2]
	require.Len(t, last.Children, 1)
	assert.Len(t, last.Children[0].Steps, 1, "steps after EndIf do not run")
}

func TestRunner_FailIfSetsFailImmediate(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "verbose", "x", "", "FailIf(${expected} = bad)"),
	)

	out := f.runner.Run(context.Background(), definition(false), nil)

	assert.Equal(t, 2, out.Summary.ExecutionCount())
	assert.True(t, out.StopAll)
	assert.True(t, out.Intra.Bool(constants.KeyFailImmediate))
	assert.Equal(t, 1, out.Summary.Fail)
}

func TestRunner_EndLoopIfBreaksOnlyTheIteration(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "verbose", "x", "", "EndLoopIf(${expected} = bad)"),
		stepCells("base", "verbose", "y", "", ""),
	)

	out := f.runner.Run(context.Background(), definition(true), nil)

	assert.Equal(t, 5, out.Summary.ExecutionCount())
	assert.False(t, out.StopAll)
	assert.Equal(t, 8, out.Summary.Pass)
	assert.Equal(t, 1, out.Summary.Skipped)
}

func TestRunner_CarriedFailureSkipsFailFastScript(t *testing.T) {
	intra := domain.IntraExecutionData{constants.KeyLastOutcome: constants.OutcomeFailed}

	t.Run("skipped", func(t *testing.T) {
		f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
		out := f.runner.Run(context.Background(), definition(true), intra)

		assert.Zero(t, out.Summary.ExecutionCount())
		assert.True(t, out.Summary.HasErrors())
		assert.Equal(t, constants.OutcomeFailed, out.Intra[constants.KeyLastOutcome])
	})

	t.Run("not fail-fast", func(t *testing.T) {
		f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
		out := f.runner.Run(context.Background(), definition(false), intra)
		assert.Equal(t, 5, out.Summary.ExecutionCount())
	})

	t.Run("reset policy", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Execution.ResetFailFast = true
		f := newFixture(t, cfg, stepCells("base", "verbose", "x", "", ""))
		out := f.runner.Run(context.Background(), definition(true), intra)

		assert.Equal(t, 5, out.Summary.ExecutionCount())
		assert.Equal(t, constants.OutcomePassed, out.Intra[constants.KeyLastOutcome])
	})

	t.Run("fail-immediate", func(t *testing.T) {
		f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
		out := f.runner.Run(context.Background(), definition(false),
			domain.IntraExecutionData{constants.KeyFailImmediate: "true"})

		assert.Zero(t, out.Summary.ExecutionCount())
		assert.True(t, out.StopAll)
	})
}

func TestRunner_PanicBecomesIterationFatal(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "verbose", "first", "", ""),
		stepCells("test", "boom", "", "", ""),
	)

	out := f.runner.Run(context.Background(), definition(false), nil)

	require.Equal(t, 1, out.Summary.ExecutionCount())
	it := out.Summary.Children[0]
	assert.Equal(t, 1, it.Pass, "steps before the panic are kept")
	require.NotEmpty(t, it.Errors)
	assert.Contains(t, it.Errors[0], tabulaerrors.ErrIterationFatal.Error())
	assert.True(t, out.StopAll)
	assert.True(t, out.Intra.Bool(constants.KeyFailImmediate))
	assert.True(t, f.backend.Exists(it.ArtifactPath), "teardown saves the unit")
}

func TestRunner_ListenerOrder(t *testing.T) {
	f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
	def := definition(false)
	def.DataFile = ""

	f.runner.Run(context.Background(), def, nil)

	assert.Equal(t, []string{
		"execution-begin",
		"iteration-begin-1",
		"iteration-complete-1",
		"script-complete",
		"execution-complete",
	}, f.events.events)
}

func TestRunner_MiddleScriptFiresNoExecutionEvents(t *testing.T) {
	f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
	def := definition(false)
	def.DataFile = ""
	def.First, def.Last = false, false

	f.runner.Run(context.Background(), def, nil)

	assert.Equal(t, []string{"iteration-begin-1", "iteration-complete-1", "script-complete"}, f.events.events)
}

func TestRunner_UnitArtifact(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "save", "greeting", "hi ${expected}", ""),
		stepCells("step", "macro", "common", "Lib", ""),
	)
	def := definition(false)
	def.Scenarios = []string{"Main"}

	out := f.runner.Run(context.Background(), def, nil)
	require.Equal(t, 5, out.Summary.ExecutionCount())

	path := filepath.Join("output", "r1", "login.20260102_030405.001.yaml")
	assert.Equal(t, path, out.Summary.Children[0].ArtifactPath)
	doc := f.backend.Document(path)
	require.NotNil(t, doc)

	rows, ok := doc.Sheet("Main")
	require.True(t, ok)
	assert.Equal(t, "PASS", rows[1][domain.ColResult])
	assert.Equal(t, "WARN", rows[2][domain.ColResult], "invocation without a macro name stays and warns")

	data, ok := doc.Sheet(constants.DataSheet)
	require.True(t, ok)
	assert.Contains(t, data, []string{"expected", "ok"})
}

func TestRunner_SkippedSectionSkipsMacroSteps(t *testing.T) {
	f := newFixture(t, nil,
		[]string{"Prep", "", "step", "macro", "common", "Lib", "prep", "", "", "SkipIf(true)"},
		stepCells("base", "verbose", "after", "", ""),
	)
	def := definition(false)
	def.DataFile = ""

	out := f.runner.Run(context.Background(), def, nil)
	require.Equal(t, 1, out.Summary.ExecutionCount())
	steps := out.Summary.Children[0].Children[0].Steps

	require.Len(t, steps, 4)
	for _, s := range steps[:3] {
		assert.Equal(t, constants.StepStatusSkipped, s.Status)
	}
	assert.Equal(t, constants.StepStatusPass, steps[3].Status)
	assert.Equal(t, constants.MacroProvenancePrefix+"scripts/common.yaml#Lib#prep", steps[1].Provenance)
	assert.Equal(t, []string{"scripts/common.yaml"}, f.runner.MacroSources())
}

func TestRunner_MissingScript(t *testing.T) {
	f := newFixture(t, nil)
	def := definition(false)
	def.Script = "scripts/missing.yaml"

	out := f.runner.Run(context.Background(), def, nil)

	require.ErrorIs(t, out.Err, tabulaerrors.ErrWorkbookNotFound)
	assert.Zero(t, out.Summary.ExecutionCount())
	assert.Equal(t, constants.OutcomeFailed, out.Intra[constants.KeyLastOutcome])
}

func TestRunner_CanceledContextRecordsInterruption(t *testing.T) {
	f := newFixture(t, nil, stepCells("base", "verbose", "x", "", ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.runner.Run(ctx, definition(false), nil)

	assert.Zero(t, out.Summary.ExecutionCount())
	require.NotEmpty(t, out.Summary.Errors)
	assert.Contains(t, out.Summary.Errors[0], tabulaerrors.ErrInterrupted.Error())
}

func TestRunner_ScriptRefData(t *testing.T) {
	f := newFixture(t, nil,
		stepCells("base", "save", constants.ScriptRefPrefix+"build", "1.2.3", ""),
		stepCells("base", "save", "user.var", "carried", ""),
	)
	def := definition(false)
	def.DataFile = ""

	out := f.runner.Run(context.Background(), def, nil)

	assert.Equal(t, "1.2.3", out.Summary.RefData["build"])
	assert.Equal(t, "1.2.3", out.Intra[constants.ScriptRefPrefix+"build"])
	assert.NotContains(t, out.Intra, "user.var", "default exclusions apply to carried data")
	assert.Equal(t, 1, out.Intra.Int(constants.KeyLastCompletedIteration))
}
