// Package flowcontrol parses and evaluates the per-step flow controls of a
// script, e.g. SkipIf(${env} = prod) or EndLoopIf(${row} is empty), and
// tracks time between TimeTrackStart and TimeTrackEnd markers.
package flowcontrol

import (
	"fmt"
	"strings"
	"unicode"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// Directive names a flow control.
type Directive string

// Supported directives.
const (
	PauseBefore    Directive = "PauseBefore"
	PauseAfter     Directive = "PauseAfter"
	SkipIf         Directive = "SkipIf"
	ProceedIf      Directive = "ProceedIf"
	FailIf         Directive = "FailIf"
	EndIf          Directive = "EndIf"
	EndLoopIf      Directive = "EndLoopIf"
	TimeTrackStart Directive = "TimeTrackStart"
	TimeTrackEnd   Directive = "TimeTrackEnd"
)

//nolint:gochecknoglobals // lookup table
var knownDirectives = map[string]Directive{
	"pausebefore":    PauseBefore,
	"pauseafter":     PauseAfter,
	"skipif":         SkipIf,
	"proceedif":      ProceedIf,
	"failif":         FailIf,
	"endif":          EndIf,
	"endloopif":      EndLoopIf,
	"timetrackstart": TimeTrackStart,
	"timetrackend":   TimeTrackEnd,
}

// takesLabel reports directives whose content is a label, not a condition.
func (d Directive) takesLabel() bool {
	return d == TimeTrackStart || d == TimeTrackEnd
}

// Entry is one parsed directive.
type Entry struct {
	Directive Directive
	// Text is the raw content between the parentheses.
	Text   string
	Filter Filter
}

// FlowControls is the parsed flow control cell of a step. A nil
// *FlowControls has no directives.
type FlowControls struct {
	entries map[Directive]Entry
}

// Parse reads directives written as Name(content), separated by whitespace,
// commas or semicolons. Parentheses inside the content must balance. A
// directive given twice keeps the last one.
func Parse(text string) (*FlowControls, error) {
	fc := &FlowControls{entries: make(map[Directive]Entry)}
	rest := strings.TrimSpace(text)

	for rest != "" {
		rest = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || r == ',' || r == ';'
		})
		if rest == "" {
			break
		}

		open := strings.IndexByte(rest, '(')
		if open <= 0 {
			return nil, fmt.Errorf("%q: expected Directive(...): %w", text, tabulaerrors.ErrInvalidFlowControl)
		}
		name := strings.TrimSpace(rest[:open])
		directive, ok := knownDirectives[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown directive %q: %w", name, tabulaerrors.ErrInvalidFlowControl)
		}

		end := closingParen(rest, open)
		if end < 0 {
			return nil, fmt.Errorf("%q: unbalanced parentheses: %w", text, tabulaerrors.ErrInvalidFlowControl)
		}
		content := strings.TrimSpace(rest[open+1 : end])
		rest = rest[end+1:]

		entry := Entry{Directive: directive, Text: content}
		if !directive.takesLabel() {
			f, err := ParseFilter(content)
			if err != nil {
				return nil, fmt.Errorf("%s: %w: %w", directive, tabulaerrors.ErrInvalidFlowControl, err)
			}
			entry.Filter = f
		}
		fc.entries[directive] = entry
	}
	return fc, nil
}

func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Get returns the entry for d.
func (fc *FlowControls) Get(d Directive) (Entry, bool) {
	if fc == nil {
		return Entry{}, false
	}
	e, ok := fc.entries[d]
	return e, ok
}

// Has reports whether d is present.
func (fc *FlowControls) Has(d Directive) bool {
	_, ok := fc.Get(d)
	return ok
}

// Len returns the number of directives.
func (fc *FlowControls) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.entries)
}

// matches reports whether d is present and its filter holds.
func (fc *FlowControls) matches(d Directive, r Resolver) (Entry, bool) {
	e, ok := fc.Get(d)
	if !ok {
		return Entry{}, false
	}
	return e, e.Filter.Match(r)
}
