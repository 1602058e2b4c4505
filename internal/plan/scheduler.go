package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/execution"
	"github.com/mrz1836/tabula/internal/summary"
)

// ScriptRunner runs one script. *execution.Runner implements it.
type ScriptRunner interface {
	Run(ctx context.Context, def *domain.ExecutionDefinition, intra domain.IntraExecutionData) *execution.Outcome
}

// Scheduler runs execution definitions in order, waiting for serial entries
// and starting parallel ones in the background.
type Scheduler struct {
	runner ScriptRunner
	cfg    config.RunConfig
	store  summary.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStore sets where the run summary is persisted.
func WithStore(s summary.Store) Option {
	return func(sc *Scheduler) { sc.store = s }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(sc *Scheduler) { sc.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(sc *Scheduler) { sc.logger = logger }
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner ScriptRunner, cfg config.RunConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		store:  summary.NopStore{},
		clock:  clock.RealClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handle tracks a started script.
type handle struct {
	def     *domain.ExecutionDefinition
	done    chan struct{}
	outcome *execution.Outcome
}

func (h *handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Execute runs defs and returns the run summary with one child per script
// that ran. It never panics; failures end up in the summary.
func (s *Scheduler) Execute(ctx context.Context, defs []*domain.ExecutionDefinition) (root *summary.ExecutionSummary) {
	root = summary.New(constants.SummaryKindExecution, s.cfg.RunID(), s.clock.Now())
	logger := s.logger.With().Str("run_id", s.cfg.RunID()).Logger()
	ctx = logger.WithContext(ctx)

	var pending []*handle
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: %v", tabulaerrors.ErrSchedulerPanic, rec)
			root.AddError(err)
			logger.Error().Err(err).Msg("scheduler failed")
			pending = s.join(ctx, pending, root)
		}
		s.finish(ctx, root)
	}()

	if len(defs) == 0 {
		root.AddError(tabulaerrors.ErrPlanEmpty)
		return root
	}
	markPositions(defs)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval := s.cfg.StartInterval(); interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	var slots *semaphore.Weighted
	if n := s.cfg.MaxParallel(); n > 0 {
		slots = semaphore.NewWeighted(int64(n))
	}

	intra := domain.IntraExecutionData{}
	stop := stopState{}
	for i, def := range defs {
		pending = s.reap(ctx, pending, root, &stop)
		if stop.set {
			s.notRun(ctx, root, defs[i:], stop)
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			root.AddError(fmt.Errorf("%w: %s not started", tabulaerrors.ErrInterrupted, def.Label()))
			break
		}

		if def.Serial {
			h := s.start(ctx, def, intra.Clone(), func() {})
			s.wait(ctx, h)
			if h.outcome != nil && h.outcome.Intra != nil {
				intra = h.outcome.Intra
			}
			s.merge(ctx, root, h, &stop)
			continue
		}

		release := func() {}
		if slots != nil {
			if err := slots.Acquire(ctx, 1); err != nil {
				root.AddError(fmt.Errorf("%w: %s not started", tabulaerrors.ErrInterrupted, def.Label()))
				break
			}
			release = func() { slots.Release(1) }
		}
		pending = append(pending, s.start(ctx, def, intra.Clone(), release))
	}

	pending = s.join(ctx, pending, root)
	return root
}

type stopState struct {
	set    bool
	failed bool
	by     string
}

// markPositions flags the first and last definitions of the execution.
func markPositions(defs []*domain.ExecutionDefinition) {
	for i, d := range defs {
		if d == nil {
			continue
		}
		d.First = i == 0
		d.Last = i == len(defs)-1
	}
}

// start runs def on its own goroutine. A panic in the worker becomes a
// failed outcome.
func (s *Scheduler) start(ctx context.Context, def *domain.ExecutionDefinition, intra domain.IntraExecutionData, release func()) *handle {
	h := &handle{def: def, done: make(chan struct{})}
	zerolog.Ctx(ctx).Debug().Str("script", def.Label()).Bool("serial", def.Serial).Msg("starting script")

	go func() {
		defer close(h.done)
		defer release()
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("%w: %s: %v", tabulaerrors.ErrWorkerPanic, def.Label(), rec)
				sum := summary.New(constants.SummaryKindScript, def.Label(), s.clock.Now())
				sum.AddError(err)
				sum.Finish(s.clock.Now())
				h.outcome = &execution.Outcome{Summary: sum, Err: err, Intra: intra}
			}
		}()
		h.outcome = s.runner.Run(ctx, def, intra)
	}()
	return h
}

// wait blocks until h finishes, checking it on every poll interval.
func (s *Scheduler) wait(ctx context.Context, h *handle) {
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()
	for !h.finished() {
		select {
		case <-h.done:
		case <-ticker.C:
			zerolog.Ctx(ctx).Trace().Str("script", h.def.Label()).Msg("waiting for script")
		}
	}
}

// reap merges every finished handle and returns the ones still running.
func (s *Scheduler) reap(ctx context.Context, pending []*handle, root *summary.ExecutionSummary, stop *stopState) []*handle {
	running := pending[:0]
	for _, h := range pending {
		if h.finished() {
			s.merge(ctx, root, h, stop)
			continue
		}
		running = append(running, h)
	}
	return running
}

// join polls the remaining handles until all have finished.
func (s *Scheduler) join(ctx context.Context, pending []*handle, root *summary.ExecutionSummary) []*handle {
	if len(pending) == 0 {
		return nil
	}
	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	stop := stopState{}
	for {
		pending = s.reap(ctx, pending, root, &stop)
		if len(pending) == 0 {
			return nil
		}
		<-ticker.C
	}
}

// merge adds a finished script to the run summary and records stop requests.
func (s *Scheduler) merge(ctx context.Context, root *summary.ExecutionSummary, h *handle, stop *stopState) {
	out := h.outcome
	if out == nil || out.Summary == nil {
		root.AddErrorf("%s finished without a summary", h.def.Label())
		return
	}
	root.AddChild(out.Summary)

	if out.StopAll && !stop.set {
		stop.set = true
		stop.failed = out.Intra.Bool(constants.KeyFailImmediate)
		stop.by = h.def.Label()
	}

	zerolog.Ctx(ctx).Debug().
		Str("script", h.def.Label()).
		Bool("stop_all", out.StopAll).
		Msg("script merged")
}

// notRun records the entries skipped after a stop request. Entries skipped
// after an end-immediate stop are not failures.
func (s *Scheduler) notRun(ctx context.Context, root *summary.ExecutionSummary, rest []*domain.ExecutionDefinition, stop stopState) {
	logger := zerolog.Ctx(ctx)
	for _, def := range rest {
		if stop.failed {
			root.AddErrorf("not run: %s (fail-immediate set by %s)", def.Label(), stop.by)
		}
		logger.Info().Str("script", def.Label()).Str("stopped_by", stop.by).Msg("script not run")
	}
}

// finish aggregates and persists the run summary.
func (s *Scheduler) finish(ctx context.Context, root *summary.ExecutionSummary) {
	root.Finish(s.clock.Now())
	root.Aggregate()

	path := filepath.Join(s.cfg.RunDir(), constants.SummaryFileName)
	if err := s.store.Save(context.WithoutCancel(ctx), path, root); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to persist run summary")
	}
}

var _ ScriptRunner = (*execution.Runner)(nil)
