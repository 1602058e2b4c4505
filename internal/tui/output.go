package tui

import (
	"encoding/json"
	"fmt"
	"io"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/summary"
)

// Output format names.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Output writes command results in one format.
type Output interface {
	// Success prints a success message.
	Success(msg string)
	// Error prints an error with its suggested action, if known.
	Error(err error)
	// Warning prints a warning.
	Warning(msg string)
	// Info prints an informational message.
	Info(msg string)
	// Summary prints a run summary.
	Summary(root *summary.ExecutionSummary, opts ...SummaryTableOption) error
	// JSON prints v as indented JSON.
	JSON(v any) error
}

// NewOutput returns the Output for format. Anything but "json" is text.
func NewOutput(w io.Writer, format string) Output {
	if format == FormatJSON {
		return NewJSONOutput(w)
	}
	return NewTTYOutput(w)
}

// TTYOutput prints styled text.
type TTYOutput struct {
	w      io.Writer
	styles *OutputStyles
}

// NewTTYOutput creates a TTYOutput.
func NewTTYOutput(w io.Writer) *TTYOutput {
	return &TTYOutput{w: w, styles: NewOutputStyles()}
}

// Success prints a success message.
func (o *TTYOutput) Success(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Success.Render("✓ "+msg))
}

// Error prints an error and, when known, what to do about it.
func (o *TTYOutput) Error(err error) {
	_, _ = fmt.Fprintln(o.w, o.styles.Error.Render("✗ "+err.Error()))
	if _, action := tabulaerrors.Actionable(err); action != "" {
		_, _ = fmt.Fprintln(o.w, o.styles.Dim.Render("  "+action))
	}
}

// Warning prints a warning.
func (o *TTYOutput) Warning(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Warning.Render("⚠ "+msg))
}

// Info prints an informational message.
func (o *TTYOutput) Info(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.Info.Render(msg))
}

// Summary prints root as a table.
func (o *TTYOutput) Summary(root *summary.ExecutionSummary, opts ...SummaryTableOption) error {
	return NewSummaryTable(root, opts...).Render(o.w)
}

// JSON prints v as indented JSON.
func (o *TTYOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

// JSONOutput prints one JSON object per message.
type JSONOutput struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewJSONOutput creates a JSONOutput.
func NewJSONOutput(w io.Writer) *JSONOutput {
	return &JSONOutput{w: w, encoder: json.NewEncoder(w)}
}

type jsonMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type jsonError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Success prints {"type":"success","message":...}.
func (o *JSONOutput) Success(msg string) { o.message("success", msg) }

// Warning prints {"type":"warning","message":...}.
func (o *JSONOutput) Warning(msg string) { o.message("warning", msg) }

// Info prints {"type":"info","message":...}.
func (o *JSONOutput) Info(msg string) { o.message("info", msg) }

func (o *JSONOutput) message(kind, msg string) {
	//nolint:errchkjson // No error return per interface contract
	_ = o.encoder.Encode(jsonMessage{Type: kind, Message: msg})
}

// Error prints the error with the user message and suggestion when known.
func (o *JSONOutput) Error(err error) {
	out := jsonError{Type: "error", Message: err.Error()}
	if msg, action := tabulaerrors.Actionable(err); action != "" {
		out.Details = msg
		out.Suggestion = action
	}
	//nolint:errchkjson // No error return per interface contract
	_ = o.encoder.Encode(out)
}

// Summary prints the whole summary tree.
func (o *JSONOutput) Summary(root *summary.ExecutionSummary, _ ...SummaryTableOption) error {
	return encodeJSON(o.w, root)
}

// JSON prints v as indented JSON.
func (o *JSONOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

var (
	_ Output = (*TTYOutput)(nil)
	_ Output = (*JSONOutput)(nil)
)
