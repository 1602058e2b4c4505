package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/execution"
	"github.com/mrz1836/tabula/internal/flowcontrol"
	"github.com/mrz1836/tabula/internal/plan"
	"github.com/mrz1836/tabula/internal/step"
	"github.com/mrz1836/tabula/internal/summary"
	"github.com/mrz1836/tabula/internal/tui"
	"github.com/mrz1836/tabula/internal/workbook"
)

// session is everything one run needs, built from configuration.
type session struct {
	cfg       config.RunConfig
	loader    *workbook.Loader
	runner    *execution.Runner
	scheduler *plan.Scheduler
	out       tui.Output
	logger    zerolog.Logger
}

// sessionDeps lets tests replace the file system, the step commands and the
// clock.
type sessionDeps struct {
	backend  workbook.Backend
	registry *step.Registry
	clock    clock.Clock
	stdin    io.Reader
	stderr   io.Writer
}

func defaultDeps() (sessionDeps, error) {
	registry := step.NewRegistry()
	if err := step.RegisterBase(registry); err != nil {
		return sessionDeps{}, err
	}
	return sessionDeps{
		backend:  workbook.NewFileBackend(),
		registry: registry,
		clock:    clock.RealClock{},
		stdin:    os.Stdin,
		stderr:   os.Stderr,
	}, nil
}

// newSession loads configuration, applies overrides and wires the runner
// and the scheduler. The run id is the start time.
func newSession(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, overrides *config.Config, deps sessionDeps) (*session, error) {
	logger := GetLogger()

	cfg, err := config.LoadWithOverrides(ctx, flags.ConfigFile, overrides)
	if err != nil {
		return nil, err
	}

	start := deps.clock.Now()
	runID := newRunID(start)
	runCfg := config.NewRunConfig(cfg, runID, start)
	logger = logger.With().Str("run_id", runID).Logger()

	loader := workbook.NewLoader(deps.backend)
	store := summary.NewFileStore()

	var pauser flowcontrol.Pauser = flowcontrol.NoopPauser{Logger: &logger}
	if runCfg.InteractivePause() {
		pauser = flowcontrol.NewPromptPauser(deps.stdin, deps.stderr)
	}

	runner := execution.NewRunner(runCfg, loader, deps.registry,
		execution.WithEvaluator(flowcontrol.NewEvaluator(pauser, logger)),
		execution.WithStore(store),
		execution.WithListener(execution.LoggingListener{}),
		execution.WithResultOpener(execution.CommandOpener{Command: runCfg.OpenCommand()}),
		execution.WithClock(deps.clock),
		execution.WithLogger(logger),
	)
	scheduler := plan.NewScheduler(runner, runCfg,
		plan.WithStore(store),
		plan.WithClock(deps.clock),
		plan.WithLogger(logger),
	)

	tui.CheckNoColor()
	return &session{
		cfg:       runCfg,
		loader:    loader,
		runner:    runner,
		scheduler: scheduler,
		out:       tui.NewOutput(cmd.OutOrStdout(), flags.Output),
		logger:    logger,
	}, nil
}

// newRunID formats start as a run id. Runs started within the same second,
// such as quick watch re-runs, get distinct ids.
func newRunID(start time.Time) string {
	runIDMu.Lock()
	defer runIDMu.Unlock()

	id := start.Format(constants.RunIDFormat)
	if id == lastRunID.base {
		lastRunID.seq++
		return fmt.Sprintf("%s_%d", id, lastRunID.seq)
	}
	lastRunID.base, lastRunID.seq = id, 0
	return id
}

//nolint:gochecknoglobals // last issued run id, guarded by runIDMu
var (
	runIDMu   sync.Mutex
	lastRunID struct {
		base string
		seq  int
	}
)

// report prints the run summary and turns failures into an error for the
// exit code.
func (s *session) report(ctx context.Context, root *summary.ExecutionSummary, verbose bool) error {
	depth := tui.DefaultSummaryDepth
	if verbose {
		depth = -1
	}
	if err := s.out.Summary(root, tui.WithMaxDepth(depth)); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: partial results in %s", errors.ErrInterrupted, s.cfg.RunDir())
	}
	if !root.AllPassed() {
		return fmt.Errorf("%w: %d failed step(s), results in %s", errors.ErrExecutionFailed, root.Fail, s.cfg.RunDir())
	}
	s.out.Success("all steps passed, results in " + s.cfg.RunDir())
	return nil
}
