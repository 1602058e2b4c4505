package execution

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/flowcontrol"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/logging"
	"github.com/mrz1836/tabula/internal/macro"
	"github.com/mrz1836/tabula/internal/step"
	"github.com/mrz1836/tabula/internal/summary"
	"github.com/mrz1836/tabula/internal/workbook"
)

// Outcome is the result of running one script.
type Outcome struct {
	// Summary is the script summary, one child per iteration.
	Summary *summary.ExecutionSummary
	// Intra is the data handed to the next script.
	Intra domain.IntraExecutionData
	// StopAll is set when the script ended with fail-immediate or end-immediate.
	StopAll bool
	// Err is the preparation error, if the script could not start.
	Err error
}

// Runner runs scripts. A Runner is safe for concurrent use; each Run owns
// its own Context.
type Runner struct {
	cfg       config.RunConfig
	opener    workbook.Opener
	registry  *step.Registry
	expander  *macro.Expander
	evaluator *flowcontrol.Evaluator
	merger    *iteration.Merger
	store     summary.Store
	listener  Listener
	results   ResultOpener
	clock     clock.Clock
	logger    zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExpander sets the macro expander. Runners of one run share an expander
// so macros are read once.
func WithExpander(e *macro.Expander) RunnerOption {
	return func(r *Runner) { r.expander = e }
}

// WithEvaluator sets the flow-control evaluator.
func WithEvaluator(e *flowcontrol.Evaluator) RunnerOption {
	return func(r *Runner) { r.evaluator = e }
}

// WithMerger sets the iteration data merger.
func WithMerger(m *iteration.Merger) RunnerOption {
	return func(r *Runner) { r.merger = m }
}

// WithStore sets where script summaries are persisted.
func WithStore(s summary.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithListener sets the lifecycle listener.
func WithListener(l Listener) RunnerOption {
	return func(r *Runner) { r.listener = l }
}

// WithResultOpener sets how artifacts are opened when output.open_results is on.
func WithResultOpener(o ResultOpener) RunnerOption {
	return func(r *Runner) { r.results = o }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a Runner.
func NewRunner(cfg config.RunConfig, opener workbook.Opener, registry *step.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		opener:   opener,
		registry: registry,
		store:    summary.NopStore{},
		listener: NoopListener{},
		results:  CommandOpener{Command: cfg.OpenCommand()},
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.expander == nil {
		r.expander = macro.NewExpander(opener, macro.NewCache(),
			macro.WithScriptDir(cfg.ScriptDir()),
			macro.WithExtension(cfg.MacroExtension()),
			macro.WithLogger(r.logger))
	}
	if r.evaluator == nil {
		r.evaluator = flowcontrol.NewEvaluator(flowcontrol.NoopPauser{Logger: &r.logger}, r.logger)
	}
	if r.merger == nil {
		r.merger = iteration.NewMerger(cfg.Settings(), iteration.EnvFromOS(cfg.EnvPrefix()), cfg.ExcludedKeys())
	}
	return r
}

// prepared holds what every iteration of a script reads.
type prepared struct {
	script    workbook.Workbook
	data      *iteration.DataSet
	manager   *iteration.Manager
	scenarios []string
}

// MacroSources returns the macro workbooks read by this runner so far.
func (r *Runner) MacroSources() []string {
	return r.expander.Sources()
}

// Run executes every iteration of def. It always returns an Outcome with a
// summary, even when the script cannot start.
func (r *Runner) Run(ctx context.Context, def *domain.ExecutionDefinition, intra domain.IntraExecutionData) *Outcome {
	start := r.clock.Now()
	logger := r.logger.With().
		Str("run_id", def.RunID).
		Str("script", def.Label()).
		Logger()
	ctx = logger.WithContext(ctx)

	script := summary.New(constants.SummaryKindScript, def.Label(), start)
	ectx := NewContext(intra, flowcontrol.NewTimeTracker(r.clock))
	ectx.Set(constants.KeyRunID, def.RunID)
	ectx.Set(constants.KeyScript, def.Script)
	ectx.Set(constants.KeyOutBase, r.cfg.RunDir())

	life := newLifecycle()
	r.transition(ctx, life, constants.LoopStatePreparing, script)

	out := &Outcome{Summary: script}
	lastCompleted := 0

	p, err := r.prepare(ctx, def)
	switch {
	case err != nil:
		out.Err = err
		script.AddError(err)
		logger.Error().Err(err).Msg("script could not be prepared")
	case r.skipCarriedOver(ctx, def, intra, ectx, script):
		_ = p.script.Close()
	default:
		lastCompleted = r.iterate(ctx, def, p, ectx, script, life, start)
		_ = p.script.Close()
	}

	r.transition(ctx, life, constants.LoopStateCompleting, script)
	r.complete(ctx, def, ectx, script, start, lastCompleted, out)
	r.transition(ctx, life, constants.LoopStateDone, script)
	return out
}

func (r *Runner) transition(ctx context.Context, life *lifecycle, to constants.LoopState, s *summary.ExecutionSummary) {
	if err := life.transition(to); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("invalid loop transition")
		s.AddError(err)
	}
}

// prepare loads the script and its data and builds the iteration manager.
func (r *Runner) prepare(ctx context.Context, def *domain.ExecutionDefinition) (*prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", tabulaerrors.ErrInterrupted, err)
	}
	if err := def.Validate(); err != nil {
		return nil, tabulaerrors.Wrap(err, "invalid execution definition")
	}

	script, err := r.opener.Open(ctx, def.Script)
	if err != nil {
		return nil, tabulaerrors.Wrapf(err, "failed to open script %s", def.Script)
	}

	scenarios, err := SelectScenarios(script, def.Scenarios)
	if err != nil {
		_ = script.Close()
		return nil, err
	}

	var dataBook workbook.Workbook
	if def.DataFile != "" {
		dataBook, err = r.opener.Open(ctx, def.DataFile)
		if err != nil {
			_ = script.Close()
			return nil, tabulaerrors.Wrapf(err, "failed to open data file %s", def.DataFile)
		}
		defer func() { _ = dataBook.Close() }()
	}

	ds, err := iteration.LoadDataSet(dataBook, def.DataSheets)
	if err != nil {
		_ = script.Close()
		return nil, err
	}
	mgr, err := ds.Manager()
	if err != nil {
		_ = script.Close()
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Strs("scenarios", scenarios).
		Str("iterations", mgr.String()).
		Int("count", mgr.Count()).
		Msg("script prepared")

	return &prepared{script: script, data: ds, manager: mgr, scenarios: scenarios}, nil
}

// skipCarriedOver decides whether the previous script's outcome prevents
// this one from running.
func (r *Runner) skipCarriedOver(ctx context.Context, def *domain.ExecutionDefinition,
	intra domain.IntraExecutionData, ectx *Context, s *summary.ExecutionSummary,
) bool {
	logger := zerolog.Ctx(ctx)

	if intra.Bool(constants.KeyFailImmediate) {
		ectx.MarkFailImmediate()
		s.AddErrorf("not run: fail-immediate carried from the previous script")
		logger.Warn().Msg("skipping script, fail-immediate is set")
		return true
	}

	if intra[constants.KeyLastOutcome] != constants.OutcomeFailed {
		return false
	}
	if r.cfg.ResetFailFast() {
		ectx.Remove(constants.KeyLastOutcome)
		logger.Info().Msg("previous script failed, fail-fast state reset")
		return false
	}
	if def.FailFast {
		s.AddErrorf("not run: previous script failed and fail-fast is on")
		logger.Warn().Msg("skipping script, previous script failed")
		return true
	}
	return false
}

// iterate runs the iterations in order and returns the last completed index.
func (r *Runner) iterate(ctx context.Context, def *domain.ExecutionDefinition, p *prepared,
	ectx *Context, script *summary.ExecutionSummary, life *lifecycle, start time.Time,
) int {
	last := 0
	for index := 1; index <= p.manager.Count(); index++ {
		if err := ctx.Err(); err != nil {
			script.AddError(fmt.Errorf("%w: before iteration %d", tabulaerrors.ErrInterrupted, index))
			break
		}

		r.transition(ctx, life, constants.LoopStateRunning, script)
		it, stop := r.runIteration(ctx, def, p, ectx, index, start)
		script.AddChild(it)
		last = index
		r.transition(ctx, life, constants.LoopStateIterationComplete, script)
		r.listener.OnIterationComplete(ctx, def, it)

		if stop {
			zerolog.Ctx(ctx).Info().
				Int("iteration", index).
				Bool("fail_immediate", ectx.FailImmediate()).
				Bool("end_immediate", ectx.EndImmediate()).
				Msg("stopping script")
			break
		}
	}
	return last
}

// runIteration materializes and runs one iteration. Teardown always runs and
// a panic anywhere in the iteration becomes an iteration-fatal error.
func (r *Runner) runIteration(ctx context.Context, def *domain.ExecutionDefinition, p *prepared,
	ectx *Context, index int, start time.Time,
) (it *summary.ExecutionSummary, stop bool) {
	it = summary.New(constants.SummaryKindIteration, fmt.Sprintf("%s #%d", def.ScriptName(), index), r.clock.Now())
	it.Iteration = index
	logger := zerolog.Ctx(ctx).With().Int("iteration", index).Logger()
	ctx = logger.WithContext(ctx)

	var unit *Unit
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: %v", tabulaerrors.ErrIterationFatal, rec)
			it.AddError(err)
			ectx.MarkFailImmediate()
			logger.Error().Err(err).Msg("iteration aborted")
		}
		r.teardown(ctx, ectx, unit, it)
		stop = shouldStop(ctx, ectx, it, def.FailFast)
	}()

	data, err := r.merger.Merge(p.data, p.manager, index)
	if err != nil {
		r.fatal(ctx, ectx, it, err)
		return it, stop
	}
	it.IterationRef = data.Ref
	ectx.beginIteration(data)
	logger.Debug().Dict("data", safeLogValues(data.Values())).Msg("iteration data merged")

	path := filepath.Join(r.cfg.RunDir(), ArtifactName(def, start, index))
	unit, err = NewUnit(ctx, p.script, path, data, p.scenarios, r.expander, filepath.Dir(def.Script))
	if err != nil {
		r.fatal(ctx, ectx, it, err)
		return it, stop
	}
	it.ArtifactPath = unit.Path()

	if index == 1 && def.First {
		r.listener.OnExecutionBegin(ctx, def)
	}
	r.listener.OnIterationBegin(ctx, def, data)

	for _, sc := range unit.Scenarios() {
		scenario := summary.New(constants.SummaryKindScenario, sc.Name, r.clock.Now())
		it.AddChild(scenario)
		action := r.runScenario(ctx, def, ectx, sc, scenario)
		for k, v := range ectx.WithPrefix(constants.ScenarioRefPrefix) {
			scenario.SetRefData(k, v)
		}
		scenario.Finish(r.clock.Now())
		if action != flowcontrol.ActionContinue {
			break
		}
	}
	return it, stop
}

func (r *Runner) fatal(ctx context.Context, ectx *Context, it *summary.ExecutionSummary, err error) {
	err = fmt.Errorf("%w: %w", tabulaerrors.ErrIterationFatal, err)
	it.AddError(err)
	ectx.MarkFailImmediate()
	zerolog.Ctx(ctx).Error().Err(err).Msg("iteration aborted")
}

// runScenario runs the steps of one scenario. The returned action is
// ActionContinue unless the iteration must end.
func (r *Runner) runScenario(ctx context.Context, def *domain.ExecutionDefinition, ectx *Context,
	sc *Scenario, s *summary.ExecutionSummary,
) flowcontrol.Action {
	logger := zerolog.Ctx(ctx)

	for i := 0; i < len(sc.Steps); i++ {
		if err := ctx.Err(); err != nil {
			s.AddError(fmt.Errorf("%w: in scenario %s", tabulaerrors.ErrInterrupted, sc.Name))
			return flowcontrol.ActionStopPlan
		}

		row := sc.Steps[i]
		if row.IsEmpty() {
			continue
		}

		fc, err := flowcontrol.Parse(row.FlowControls)
		if err != nil {
			r.record(sc, s, i, row, step.Fail(err.Error()), 0)
			if d := r.evaluator.OnResult(constants.StepStatusFail, def.FailFast); !d.Proceed() {
				return d.Action
			}
			continue
		}

		decision := r.evaluator.Before(ctx, fc, ectx, row.Name())
		ectx.apply(decision)

		if row.IsSection() {
			if decision.Action == flowcontrol.ActionSkipStep {
				i += r.skipSection(sc, s, i, row, decision.Message)
				continue
			}
			if decision.Proceed() {
				continue
			}
		}

		switch decision.Action {
		case flowcontrol.ActionContinue:
		case flowcontrol.ActionSkipStep:
			r.record(sc, s, i, row, step.Result{Status: decision.Status, Message: decision.Message}, 0)
			continue
		default:
			r.record(sc, s, i, row, step.Result{Status: decision.Status, Message: decision.Message}, 0)
			logger.Info().Str("step", row.Name()).Stringer("action", decision.Action).Msg(decision.Message)
			return decision.Action
		}

		if entry, ok := fc.Get(flowcontrol.TimeTrackStart); ok {
			label := flowcontrol.Substitute(entry.Text, ectx)
			if closed := ectx.tracker.Start(label, row.Name()); closed != nil {
				s.AddTimeTrack(*closed)
			}
		}

		began := r.clock.Now()
		res := r.execute(ctx, ectx, row)
		elapsed := r.clock.Now().Sub(began)
		r.record(sc, s, i, row, res, elapsed)

		if fc.Has(flowcontrol.TimeTrackEnd) {
			if rec := ectx.tracker.End(row.Name()); rec != nil {
				s.AddTimeTrack(*rec)
			}
		}

		r.evaluator.After(ctx, fc, ectx, row.Name())

		if d := r.evaluator.OnResult(res.Status, def.FailFast); !d.Proceed() {
			logger.Info().Str("step", row.Name()).Msg(d.Message)
			return d.Action
		}
	}
	return flowcontrol.ActionContinue
}

// execute runs one step. step.macro rows that survived expansion warn, and
// unknown commands fail.
func (r *Runner) execute(ctx context.Context, ectx *Context, row domain.StepRow) step.Result {
	if row.IsMacro() {
		return step.Warn(fmt.Sprintf("macro not expanded: %s", strings.Join(row.Params, ", ")))
	}
	bound, err := r.registry.Bind(row, ectx)
	if err != nil {
		return step.Fail(err.Error())
	}
	return bound.Execute(ctx)
}

// skipSection records a skipped section marker and the steps it covers. It
// returns the number of covered steps.
func (r *Runner) skipSection(sc *Scenario, s *summary.ExecutionSummary, at int, marker domain.StepRow, message string) int {
	n := min(marker.SectionSize(), len(sc.Steps)-at-1)
	skipped := step.Skipped(message)
	r.record(sc, s, at, marker, skipped, 0)
	for j := at + 1; j <= at+n; j++ {
		r.record(sc, s, j, sc.Steps[j], skipped, 0)
	}
	return n
}

func (r *Runner) record(sc *Scenario, s *summary.ExecutionSummary, index int, row domain.StepRow, res step.Result, elapsed time.Duration) {
	sc.Annotate(index, res.Status, res.Message, elapsed)
	s.AddStep(summary.StepRecord{
		Row:         index + 2,
		Activity:    row.Activity,
		Description: row.Description,
		Command:     row.Name(),
		Status:      res.Status,
		Message:     res.Message,
		Elapsed:     elapsed,
		Provenance:  row.Provenance,
	})
}

// teardown closes time tracking, saves and closes the unit and finalizes
// the iteration summary. It runs even after a panic or an interruption.
func (r *Runner) teardown(ctx context.Context, ectx *Context, unit *Unit, it *summary.ExecutionSummary) {
	logger := zerolog.Ctx(ctx)
	saveCtx := context.WithoutCancel(ctx)

	if rec := ectx.tracker.Close(); rec != nil {
		it.AddTimeTrack(*rec)
	}

	if unit != nil {
		if err := unit.Save(saveCtx); err != nil {
			it.AddError(err)
			logger.Error().Err(err).Str("path", unit.Path()).Msg("failed to save execution unit")
		}
		if err := unit.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close execution unit")
		}
		if r.cfg.OpenResults() && r.results != nil && ctx.Err() == nil {
			if err := r.results.Open(ctx, unit.Path()); err != nil {
				logger.Warn().Err(err).Msg("failed to open execution unit")
			}
		}
	}

	it.Finish(r.clock.Now())
	it.Aggregate()
}

// shouldStop is the stop predicate checked after every iteration.
func shouldStop(ctx context.Context, ectx *Context, it *summary.ExecutionSummary, failFast bool) bool {
	return (!it.AllPassed() && failFast) || ectx.FailImmediate() || ectx.EndImmediate() || ctx.Err() != nil
}

// complete fires completion events, builds the carried data and persists the summary.
func (r *Runner) complete(ctx context.Context, def *domain.ExecutionDefinition, ectx *Context,
	script *summary.ExecutionSummary, start time.Time, lastCompleted int, out *Outcome,
) {
	for k, v := range ectx.WithPrefix(constants.ScriptRefPrefix) {
		script.SetRefData(k, v)
	}
	script.Finish(r.clock.Now())
	script.Aggregate()

	r.listener.OnScriptComplete(ctx, def, script)
	if def.Last {
		r.listener.OnExecutionComplete(ctx, def, script)
	}

	out.Intra = r.nextIntra(ectx, lastCompleted, script.AllPassed())
	out.StopAll = ectx.FailImmediate() || ectx.EndImmediate()

	path := filepath.Join(r.cfg.RunDir(), SummaryName(def, start))
	if err := r.store.Save(context.WithoutCancel(ctx), path, script); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to persist script summary")
	}
}

// nextIntra builds the data handed to the next script.
func (r *Runner) nextIntra(ectx *Context, lastCompleted int, passed bool) domain.IntraExecutionData {
	excluded := append(append([]string(nil), iteration.DefaultExclusions...), r.cfg.ExcludedKeys()...)
	excluded = append(excluded, "tabula.scope.")

	next := make(domain.IntraExecutionData)
	for k, v := range ectx.Values() {
		if !iteration.MatchesAny(k, excluded) {
			next[k] = v
		}
	}

	outcome := constants.OutcomePassed
	if !passed {
		outcome = constants.OutcomeFailed
	}
	next[constants.KeyLastCompletedIteration] = strconv.Itoa(lastCompleted)
	next[constants.KeyLastOutcome] = outcome
	next[constants.KeyFailImmediate] = strconv.FormatBool(ectx.FailImmediate())
	next[constants.KeyEndImmediate] = strconv.FormatBool(ectx.EndImmediate())
	return next
}

func safeLogValues(values map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range values {
		if strings.HasPrefix(k, constants.ReservedPrefix) {
			continue
		}
		d.Str(k, logging.SafeValue(k, v))
	}
	return d
}
