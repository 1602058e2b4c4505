// Package summary holds the hierarchical execution summary: execution,
// script, iteration and scenario nodes with pass/fail/warn/skipped counts.
package summary

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/tabula/internal/constants"
)

// StepRecord is the outcome of one step.
type StepRecord struct {
	Row         int                  `json:"row"`
	Activity    string               `json:"activity,omitempty"`
	Description string               `json:"description,omitempty"`
	Command     string               `json:"command"`
	Status      constants.StepStatus `json:"status"`
	Message     string               `json:"message,omitempty"`
	Elapsed     time.Duration        `json:"elapsed"`
	Provenance  string               `json:"provenance,omitempty"`
}

// TimeTrackRecord is one TimeTrackStart/TimeTrackEnd span.
type TimeTrackRecord struct {
	Label     string        `json:"label"`
	StartStep string        `json:"start_step,omitempty"`
	EndStep   string        `json:"end_step,omitempty"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	Elapsed   time.Duration `json:"elapsed"`
	// Forced is set when the span was closed at the end of an iteration.
	Forced bool `json:"forced,omitempty"`
}

// ExecutionSummary is one node of the summary tree.
type ExecutionSummary struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Kind      constants.SummaryKind `json:"kind"`
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time"`

	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Warn    int `json:"warn"`
	Skipped int `json:"skipped"`

	// Iteration and IterationRef are set on iteration nodes.
	Iteration    int `json:"iteration,omitempty"`
	IterationRef int `json:"iteration_ref,omitempty"`

	// ArtifactPath is the saved execution unit of an iteration node.
	ArtifactPath string `json:"artifact_path,omitempty"`

	// RefData holds script or scenario reference variables.
	RefData map[string]string `json:"ref_data,omitempty"`

	Errors     []string          `json:"errors,omitempty"`
	Steps      []StepRecord      `json:"steps,omitempty"`
	TimeTracks []TimeTrackRecord `json:"time_tracks,omitempty"`
	Timing     *Timing           `json:"timing,omitempty"`

	Children []*ExecutionSummary `json:"children,omitempty"`
}

// New creates a summary node.
func New(kind constants.SummaryKind, name string, start time.Time) *ExecutionSummary {
	return &ExecutionSummary{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		StartTime: start,
	}
}

// AddStep records a step outcome on this node.
func (s *ExecutionSummary) AddStep(rec StepRecord) {
	s.Steps = append(s.Steps, rec)
	s.count(rec.Status, 1)
}

func (s *ExecutionSummary) count(status constants.StepStatus, n int) {
	switch status {
	case constants.StepStatusPass:
		s.Pass += n
	case constants.StepStatusFail:
		s.Fail += n
	case constants.StepStatusWarn:
		s.Warn += n
	case constants.StepStatusSkipped:
		s.Skipped += n
	}
}

// AddChild nests a child node. Counts roll up on Aggregate.
func (s *ExecutionSummary) AddChild(child *ExecutionSummary) {
	if child != nil {
		s.Children = append(s.Children, child)
	}
}

// AddError records a failure that has no step of its own.
func (s *ExecutionSummary) AddError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}

// AddErrorf records a formatted failure message.
func (s *ExecutionSummary) AddErrorf(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// AddTimeTrack records a time-tracking span.
func (s *ExecutionSummary) AddTimeTrack(rec TimeTrackRecord) {
	s.TimeTracks = append(s.TimeTracks, rec)
}

// SetRefData stores a reference variable.
func (s *ExecutionSummary) SetRefData(key, value string) {
	if s.RefData == nil {
		s.RefData = make(map[string]string)
	}
	s.RefData[key] = value
}

// Finish sets the end time.
func (s *ExecutionSummary) Finish(end time.Time) {
	s.EndTime = end
}

// Duration returns the elapsed time of the node.
func (s *ExecutionSummary) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Aggregate recomputes counts and timing of this node and every descendant
// from their steps. It may be called repeatedly.
func (s *ExecutionSummary) Aggregate() {
	s.aggregate()
}

func (s *ExecutionSummary) aggregate() []time.Duration {
	s.Pass, s.Fail, s.Warn, s.Skipped = 0, 0, 0, 0

	durations := make([]time.Duration, 0, len(s.Steps))
	for _, st := range s.Steps {
		s.count(st.Status, 1)
		if st.Status.Executed() {
			durations = append(durations, st.Elapsed)
		}
	}

	for _, c := range s.Children {
		durations = append(durations, c.aggregate()...)
		s.Pass += c.Pass
		s.Fail += c.Fail
		s.Warn += c.Warn
		s.Skipped += c.Skipped
	}

	s.Timing = NewTiming(durations)
	return durations
}

// Executed returns the number of steps that ran.
func (s *ExecutionSummary) Executed() int {
	return s.Pass + s.Fail + s.Warn
}

// Total returns every recorded step, skipped included.
func (s *ExecutionSummary) Total() int {
	return s.Executed() + s.Skipped
}

// SuccessRate returns pass / executed as a percentage, 0 when nothing ran.
func (s *ExecutionSummary) SuccessRate() float64 {
	executed := s.Executed()
	if executed == 0 {
		return 0
	}
	return float64(s.Pass) / float64(executed) * 100
}

// HasErrors reports whether this node or a descendant recorded an error.
func (s *ExecutionSummary) HasErrors() bool {
	if len(s.Errors) > 0 {
		return true
	}
	for _, c := range s.Children {
		if c.HasErrors() {
			return true
		}
	}
	return false
}

// AllPassed reports no failed step and no error in the subtree. Counts
// must be current, see Aggregate.
func (s *ExecutionSummary) AllPassed() bool {
	return s.Fail == 0 && !s.HasErrors()
}

// ExecutionCount returns the number of direct children, e.g. the iterations
// run by a script.
func (s *ExecutionSummary) ExecutionCount() int {
	return len(s.Children)
}

// Walk visits the node and its descendants depth first.
func (s *ExecutionSummary) Walk(fn func(node *ExecutionSummary, depth int)) {
	s.walk(fn, 0)
}

func (s *ExecutionSummary) walk(fn func(*ExecutionSummary, int), depth int) {
	fn(s, depth)
	for _, c := range s.Children {
		c.walk(fn, depth+1)
	}
}
