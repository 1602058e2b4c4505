package plan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/execution"
	"github.com/mrz1836/tabula/internal/summary"
)

type span struct {
	start, end time.Time
}

// fakeRunner records when each script runs and returns canned outcomes.
type fakeRunner struct {
	mu       sync.Mutex
	delay    time.Duration
	spans    map[string]span
	received map[string]domain.IntraExecutionData
	stopAll  map[string]bool
	ends     map[string]bool
	panics   map[string]bool
	running  int
	peak     int
}

func newFakeRunner(delay time.Duration) *fakeRunner {
	return &fakeRunner{
		delay:    delay,
		spans:    make(map[string]span),
		received: make(map[string]domain.IntraExecutionData),
		stopAll:  make(map[string]bool),
		ends:     make(map[string]bool),
		panics:   make(map[string]bool),
	}
}

func (f *fakeRunner) Run(_ context.Context, def *domain.ExecutionDefinition, intra domain.IntraExecutionData) *execution.Outcome {
	name := def.Script
	f.mu.Lock()
	f.running++
	f.peak = max(f.peak, f.running)
	f.received[name] = intra
	f.mu.Unlock()

	start := time.Now()
	time.Sleep(f.delay)

	f.mu.Lock()
	f.running--
	f.spans[name] = span{start: start, end: time.Now()}
	stop := f.stopAll[name]
	ends := f.ends[name]
	panics := f.panics[name]
	f.mu.Unlock()

	if panics {
		panic("worker exploded")
	}

	s := summary.New(constants.SummaryKindScript, name, start)
	s.AddStep(summary.StepRecord{Command: "base.verbose", Status: constants.StepStatusPass})
	next := domain.IntraExecutionData{"from": name}
	switch {
	case stop:
		next[constants.KeyFailImmediate] = "true"
	case ends:
		next[constants.KeyEndImmediate] = "true"
	}
	return &execution.Outcome{Summary: s, Intra: next, StopAll: stop || ends}
}

func testConfig(mutate func(*config.Config)) config.RunConfig {
	cfg := config.DefaultConfig()
	cfg.Execution.PollInterval = 10 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	return config.NewRunConfig(cfg, "run", time.Now())
}

func defs(entries ...string) []*domain.ExecutionDefinition {
	var out []*domain.ExecutionDefinition
	for _, e := range entries {
		serial := e[0] == 's'
		out = append(out, &domain.ExecutionDefinition{Script: e[1:], Serial: serial})
	}
	return out
}

func TestScheduler_SerialThenParallel(t *testing.T) {
	runner := newFakeRunner(30 * time.Millisecond)
	s := NewScheduler(runner, testConfig(nil))

	list := defs("sA", "pB", "pC")
	root := s.Execute(context.Background(), list)

	require.Len(t, root.Children, 3)
	assert.Equal(t, "A", root.Children[0].Name)
	assert.Equal(t, 3, root.Pass)
	assert.False(t, root.HasErrors())

	a := runner.spans["A"]
	assert.False(t, runner.spans["B"].start.Before(a.end), "B starts after A finishes")
	assert.False(t, runner.spans["C"].start.Before(a.end), "C starts after A finishes")
	assert.Equal(t, 2, runner.peak, "B and C run together")

	assert.Equal(t, "A", runner.received["B"]["from"], "carried data from the serial entry")
	assert.True(t, list[0].First)
	assert.True(t, list[2].Last)
	assert.False(t, list[1].First || list[1].Last)
}

func TestScheduler_MaxParallel(t *testing.T) {
	runner := newFakeRunner(20 * time.Millisecond)
	s := NewScheduler(runner, testConfig(func(c *config.Config) { c.Execution.MaxParallel = 1 }))

	root := s.Execute(context.Background(), defs("pA", "pB", "pC"))

	require.Len(t, root.Children, 3)
	assert.Equal(t, 1, runner.peak)
}

func TestScheduler_StartInterval(t *testing.T) {
	runner := newFakeRunner(0)
	s := NewScheduler(runner, testConfig(func(c *config.Config) { c.Execution.StartInterval = 40 * time.Millisecond }))

	s.Execute(context.Background(), defs("pA", "pB"))

	gap := runner.spans["B"].start.Sub(runner.spans["A"].start)
	assert.GreaterOrEqual(t, gap, 30*time.Millisecond)
}

func TestScheduler_StopAllSkipsRemaining(t *testing.T) {
	runner := newFakeRunner(0)
	runner.stopAll["A"] = true
	s := NewScheduler(runner, testConfig(nil))

	root := s.Execute(context.Background(), defs("sA", "sB", "pC"))

	require.Len(t, root.Children, 1)
	assert.NotContains(t, runner.spans, "B")
	assert.NotContains(t, runner.spans, "C")
	assert.Len(t, root.Errors, 2, "each skipped entry is recorded")
}

func TestScheduler_EndImmediateSkipsWithoutErrors(t *testing.T) {
	runner := newFakeRunner(0)
	runner.ends["A"] = true
	s := NewScheduler(runner, testConfig(nil))

	root := s.Execute(context.Background(), defs("sA", "sB", "pC"))

	require.Len(t, root.Children, 1)
	assert.NotContains(t, runner.spans, "B")
	assert.NotContains(t, runner.spans, "C")
	assert.False(t, root.HasErrors(), "ending early is not a failure")
	assert.True(t, root.AllPassed())
}

func TestScheduler_PanicIsRecordedAndPersisted(t *testing.T) {
	store := &recordingStore{}
	runner := newFakeRunner(20 * time.Millisecond)
	s := NewScheduler(runner, testConfig(nil), WithStore(store))

	list := defs("pA")
	list = append(list, nil)
	var root *summary.ExecutionSummary
	require.NotPanics(t, func() {
		root = s.Execute(context.Background(), list)
	})

	require.NotEmpty(t, root.Errors)
	assert.Contains(t, root.Errors[0], tabulaerrors.ErrSchedulerPanic.Error())
	require.Len(t, root.Children, 1, "running entries are joined")
	assert.Equal(t, "A", root.Children[0].Name)
	assert.Same(t, root, store.saved)
	assert.False(t, root.EndTime.IsZero())
}

func TestScheduler_WorkerPanicIsRecorded(t *testing.T) {
	runner := newFakeRunner(0)
	runner.panics["B"] = true
	s := NewScheduler(runner, testConfig(nil))

	root := s.Execute(context.Background(), defs("sA", "pB", "sC"))

	require.Len(t, root.Children, 3)
	assert.True(t, root.HasErrors())
	var b *summary.ExecutionSummary
	for _, c := range root.Children {
		if c.Name == "B" {
			b = c
		}
	}
	require.NotNil(t, b)
	require.Len(t, b.Errors, 1)
	assert.Contains(t, b.Errors[0], tabulaerrors.ErrWorkerPanic.Error())
	assert.Contains(t, runner.spans, "C", "later entries still run")
}

type nilRunner struct{}

func (nilRunner) Run(context.Context, *domain.ExecutionDefinition, domain.IntraExecutionData) *execution.Outcome {
	return nil
}

func TestScheduler_NilOutcomeIsRecorded(t *testing.T) {
	s := NewScheduler(nilRunner{}, testConfig(nil))
	root := s.Execute(context.Background(), defs("sA"))
	require.Len(t, root.Errors, 1)
	assert.Contains(t, root.Errors[0], "finished without a summary")
}

func TestScheduler_EmptyPlan(t *testing.T) {
	s := NewScheduler(newFakeRunner(0), testConfig(nil))
	root := s.Execute(context.Background(), nil)
	require.Len(t, root.Errors, 1)
	assert.Contains(t, root.Errors[0], tabulaerrors.ErrPlanEmpty.Error())
}

type recordingStore struct {
	summary.NopStore
	path  string
	saved *summary.ExecutionSummary
}

func (r *recordingStore) Save(_ context.Context, path string, s *summary.ExecutionSummary) error {
	r.path, r.saved = path, s
	return nil
}

func TestScheduler_PersistsRunSummary(t *testing.T) {
	store := &recordingStore{}
	s := NewScheduler(newFakeRunner(0), testConfig(nil), WithStore(store))

	root := s.Execute(context.Background(), defs("sA"))

	assert.Same(t, root, store.saved)
	assert.Equal(t, "output/run/"+constants.SummaryFileName, store.path)
	assert.False(t, root.EndTime.IsZero())
}
