package flowcontrol

import (
	"time"

	"github.com/mrz1836/tabula/internal/clock"
	"github.com/mrz1836/tabula/internal/summary"
)

type openSpan struct {
	label string
	step  string
	start time.Time
}

// TimeTracker measures spans between TimeTrackStart and TimeTrackEnd steps.
// At most one span is open. Each worker owns its own tracker.
type TimeTracker struct {
	clock clock.Clock
	open  *openSpan
}

// NewTimeTracker creates a TimeTracker.
func NewTimeTracker(c clock.Clock) *TimeTracker {
	if c == nil {
		c = clock.RealClock{}
	}
	return &TimeTracker{clock: c}
}

// Start opens a span. A span already open is closed first and returned.
func (t *TimeTracker) Start(label, step string) *summary.TimeTrackRecord {
	var closed *summary.TimeTrackRecord
	if t.open != nil {
		closed = t.finish(step, true)
	}
	if label == "" {
		label = step
	}
	t.open = &openSpan{label: label, step: step, start: t.clock.Now()}
	return closed
}

// End closes the open span. It returns nil when none is open.
func (t *TimeTracker) End(step string) *summary.TimeTrackRecord {
	if t.open == nil {
		return nil
	}
	return t.finish(step, false)
}

// Close force-closes the open span, if any. Called at the end of an iteration.
func (t *TimeTracker) Close() *summary.TimeTrackRecord {
	if t.open == nil {
		return nil
	}
	return t.finish("", true)
}

// Open reports whether a span is being tracked.
func (t *TimeTracker) Open() bool {
	return t.open != nil
}

func (t *TimeTracker) finish(step string, forced bool) *summary.TimeTrackRecord {
	end := t.clock.Now()
	rec := &summary.TimeTrackRecord{
		Label:     t.open.label,
		StartStep: t.open.step,
		EndStep:   step,
		Start:     t.open.start,
		End:       end,
		Elapsed:   end.Sub(t.open.start),
		Forced:    forced,
	}
	t.open = nil
	return rec
}
