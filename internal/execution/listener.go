package execution

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mrz1836/tabula/internal/domain"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/summary"
)

// Listener receives lifecycle events of script executions. Events of one
// script arrive on that script's worker goroutine; a Listener shared by
// parallel scripts must be safe for concurrent use.
type Listener interface {
	// OnExecutionBegin fires once, before the first iteration of the first script.
	OnExecutionBegin(ctx context.Context, def *domain.ExecutionDefinition)

	// OnIterationBegin fires after the execution unit of an iteration is ready.
	OnIterationBegin(ctx context.Context, def *domain.ExecutionDefinition, data *iteration.Data)

	// OnIterationComplete fires after the iteration is torn down.
	OnIterationComplete(ctx context.Context, def *domain.ExecutionDefinition, it *summary.ExecutionSummary)

	// OnScriptComplete fires once per script with its final summary.
	OnScriptComplete(ctx context.Context, def *domain.ExecutionDefinition, script *summary.ExecutionSummary)

	// OnExecutionComplete fires once, after the last script of the execution.
	OnExecutionComplete(ctx context.Context, def *domain.ExecutionDefinition, script *summary.ExecutionSummary)
}

// NoopListener ignores every event.
type NoopListener struct{}

// OnExecutionBegin implements Listener.
func (NoopListener) OnExecutionBegin(context.Context, *domain.ExecutionDefinition) {}

// OnIterationBegin implements Listener.
func (NoopListener) OnIterationBegin(context.Context, *domain.ExecutionDefinition, *iteration.Data) {}

// OnIterationComplete implements Listener.
func (NoopListener) OnIterationComplete(context.Context, *domain.ExecutionDefinition, *summary.ExecutionSummary) {
}

// OnScriptComplete implements Listener.
func (NoopListener) OnScriptComplete(context.Context, *domain.ExecutionDefinition, *summary.ExecutionSummary) {
}

// OnExecutionComplete implements Listener.
func (NoopListener) OnExecutionComplete(context.Context, *domain.ExecutionDefinition, *summary.ExecutionSummary) {
}

// LoggingListener writes every event to the context logger.
type LoggingListener struct{}

// OnExecutionBegin implements Listener.
func (LoggingListener) OnExecutionBegin(ctx context.Context, def *domain.ExecutionDefinition) {
	zerolog.Ctx(ctx).Info().Str("run_id", def.RunID).Msg("execution started")
}

// OnIterationBegin implements Listener.
func (LoggingListener) OnIterationBegin(ctx context.Context, def *domain.ExecutionDefinition, data *iteration.Data) {
	zerolog.Ctx(ctx).Info().
		Str("script", def.Label()).
		Int("iteration", data.Index).
		Int("of", data.Count).
		Int("data_column", data.Ref).
		Msg("iteration started")
}

// OnIterationComplete implements Listener.
func (LoggingListener) OnIterationComplete(ctx context.Context, def *domain.ExecutionDefinition, it *summary.ExecutionSummary) {
	event := zerolog.Ctx(ctx).Info()
	if !it.AllPassed() {
		event = zerolog.Ctx(ctx).Warn()
	}
	event.
		Str("script", def.Label()).
		Int("iteration", it.Iteration).
		Int("pass", it.Pass).
		Int("fail", it.Fail).
		Int("skipped", it.Skipped).
		Dur("duration", it.Duration()).
		Msg("iteration completed")
}

// OnScriptComplete implements Listener.
func (LoggingListener) OnScriptComplete(ctx context.Context, def *domain.ExecutionDefinition, script *summary.ExecutionSummary) {
	zerolog.Ctx(ctx).Info().
		Str("script", def.Label()).
		Int("iterations", script.ExecutionCount()).
		Float64("success_rate", script.SuccessRate()).
		Msg("script completed")
}

// OnExecutionComplete implements Listener.
func (LoggingListener) OnExecutionComplete(ctx context.Context, def *domain.ExecutionDefinition, _ *summary.ExecutionSummary) {
	zerolog.Ctx(ctx).Info().Str("run_id", def.RunID).Msg("execution completed")
}

// Ensure implementations satisfy Listener.
var (
	_ Listener = NoopListener{}
	_ Listener = LoggingListener{}
)
