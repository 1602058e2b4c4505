package flowcontrol

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

type recordingPauser struct {
	messages []string
}

func (p *recordingPauser) Pause(_ context.Context, message string) error {
	p.messages = append(p.messages, message)
	return nil
}

func TestParse(t *testing.T) {
	fc, err := Parse("SkipIf(${a} = (1)) ,\n proceedIf(${b} is defined); TimeTrackStart(login flow) EndIf()")
	require.NoError(t, err)
	assert.Equal(t, 4, fc.Len())

	skip, ok := fc.Get(SkipIf)
	require.True(t, ok)
	assert.Equal(t, "${a} = (1)", skip.Text)

	track, _ := fc.Get(TimeTrackStart)
	assert.Equal(t, "login flow", track.Text)
	assert.True(t, track.Filter.IsEmpty())

	assert.True(t, fc.Has(ProceedIf))
	assert.True(t, fc.Has(EndIf))
	assert.False(t, fc.Has(FailIf))

	empty, err := Parse("  ")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	var nilFC *FlowControls
	assert.False(t, nilFC.Has(SkipIf))
}

func TestParse_Invalid(t *testing.T) {
	for _, text := range []string{"SkipIf(${a} = 1", "Explode(true)", "(x)", "SkipIf", "SkipIf(a b c)"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			require.ErrorIs(t, err, tabulaerrors.ErrInvalidFlowControl)
		})
	}
}

func TestEvaluator_Before(t *testing.T) {
	vars := MapResolver{"env": "prod", "row": ""}

	tests := []struct {
		name     string
		controls string
		action   Action
		status   constants.StepStatus
	}{
		{"no controls", "", ActionContinue, ""},
		{"skip matched", "SkipIf(${env} = prod)", ActionSkipStep, constants.StepStatusSkipped},
		{"skip not matched", "SkipIf(${env} = qa)", ActionContinue, ""},
		{"proceed matched", "ProceedIf(${env} = prod)", ActionContinue, ""},
		{"proceed not matched", "ProceedIf(${env} = qa)", ActionSkipStep, constants.StepStatusSkipped},
		{"fail matched", "FailIf(${env} = prod)", ActionStopPlan, constants.StepStatusFail},
		{"end matched", "EndIf(${env} = prod)", ActionStopPlan, constants.StepStatusPass},
		{"end loop matched", "EndLoopIf(${row} is empty)", ActionStopIteration, constants.StepStatusSkipped},
		{"skip wins over fail", "FailIf(true) SkipIf(true)", ActionSkipStep, constants.StepStatusSkipped},
		{"time track only", "TimeTrackStart(x)", ActionContinue, ""},
	}

	e := NewEvaluator(nil, zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := Parse(tt.controls)
			require.NoError(t, err)

			d := e.Before(context.Background(), fc, vars, "row 3")
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.status, d.Status)
			assert.Equal(t, tt.action == ActionContinue, d.Proceed())
		})
	}
}

func TestEvaluator_ImmediateFlags(t *testing.T) {
	e := NewEvaluator(nil, zerolog.Nop())

	fc, _ := Parse("FailIf(true)")
	d := e.Before(context.Background(), fc, MapResolver{}, "s")
	assert.True(t, d.FailImmediate)
	assert.False(t, d.EndImmediate)

	fc, _ = Parse("EndIf(true)")
	d = e.Before(context.Background(), fc, MapResolver{}, "s")
	assert.True(t, d.EndImmediate)
	assert.False(t, d.FailImmediate)
}

func TestEvaluator_Pauses(t *testing.T) {
	p := &recordingPauser{}
	e := NewEvaluator(p, zerolog.Nop())

	fc, _ := Parse("PauseBefore(${x} = 1) PauseAfter()")
	e.Before(context.Background(), fc, MapResolver{"x": "1"}, "row 2")
	e.After(context.Background(), fc, MapResolver{"x": "1"}, "row 2")

	require.Len(t, p.messages, 2)
	assert.Contains(t, p.messages[0], "before row 2")
	assert.Contains(t, p.messages[1], "after row 2")
}

func TestEvaluator_OnResult(t *testing.T) {
	e := NewEvaluator(nil, zerolog.Nop())
	assert.Equal(t, ActionStopScript, e.OnResult(constants.StepStatusFail, true).Action)
	assert.Equal(t, ActionContinue, e.OnResult(constants.StepStatusFail, false).Action)
	assert.Equal(t, ActionContinue, e.OnResult(constants.StepStatusWarn, true).Action)
	assert.Equal(t, "stop_script", ActionStopScript.String())
}

func TestPromptPauser(t *testing.T) {
	var out strings.Builder
	p := NewPromptPauser(strings.NewReader("\n"), &out)
	require.NoError(t, p.Pause(context.Background(), "paused"))
	assert.Contains(t, out.String(), "press Enter")

	eof := NewPromptPauser(strings.NewReader(""), &out)
	require.NoError(t, eof.Pause(context.Background(), "paused"))
}

func TestPromptPauser_ConcurrentPauses(t *testing.T) {
	var out strings.Builder
	p := NewPromptPauser(strings.NewReader("\n\n"), &out)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Pause(context.Background(), "worker")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 2, strings.Count(out.String(), "worker: press Enter"))
}

func TestPromptPauser_CanceledPauseHandsLineToNext(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	p := NewPromptPauser(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Pause(ctx, "first"), context.Canceled)

	go func() { _, _ = pw.Write([]byte("\n")) }()

	done := make(chan error, 1)
	go func() { done <- p.Pause(context.Background(), "second") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second pause did not receive the line")
	}

	_ = pw.Close()
	require.NoError(t, p.Pause(context.Background(), "after close"))
	require.NoError(t, p.Pause(context.Background(), "still closed"))
}

func TestTimeTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewTimeTracker(clock.NewStepClock(start, time.Second))

	assert.Nil(t, tracker.End("row 1"))
	assert.Nil(t, tracker.Start("login", "row 1"))
	assert.True(t, tracker.Open())

	rec := tracker.End("row 4")
	require.NotNil(t, rec)
	assert.Equal(t, "login", rec.Label)
	assert.Equal(t, "row 1", rec.StartStep)
	assert.Equal(t, "row 4", rec.EndStep)
	assert.Equal(t, time.Second, rec.Elapsed)
	assert.False(t, rec.Forced)

	tracker.Start("", "row 5")
	forced := tracker.Close()
	require.NotNil(t, forced)
	assert.True(t, forced.Forced)
	assert.Equal(t, "row 5", forced.Label)
	assert.Nil(t, tracker.Close())

	tracker.Start("a", "row 6")
	replaced := tracker.Start("b", "row 7")
	require.NotNil(t, replaced)
	assert.Equal(t, "a", replaced.Label)
	assert.True(t, replaced.Forced)
}
