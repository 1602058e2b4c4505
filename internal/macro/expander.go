package macro

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/workbook"
)

// Macro sheet columns: the macro name sits where scenarios keep the activity.
const colMacroName = domain.ColActivity

// Expander replaces macro invocations with section markers followed by the
// macro's steps.
type Expander struct {
	opener    workbook.Opener
	cache     *Cache
	scriptDir string
	ext       string
	logger    zerolog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithScriptDir sets the project script directory used to resolve macro files.
func WithScriptDir(dir string) Option {
	return func(e *Expander) { e.scriptDir = dir }
}

// WithExtension sets the extension appended to macro files named without one.
func WithExtension(ext string) Option {
	return func(e *Expander) { e.ext = ext }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Expander) { e.logger = logger }
}

// NewExpander creates an Expander sharing cache with every other expander of the run.
func NewExpander(opener workbook.Opener, cache *Cache, opts ...Option) *Expander {
	e := &Expander{
		opener: opener,
		cache:  cache,
		ext:    constants.WorkbookExt,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sources returns the macro workbooks this expander has read macros from.
func (e *Expander) Sources() []string {
	return e.cache.Sources()
}

// Expand returns rows with every resolvable macro invocation replaced by a
// section marker and the macro's steps. baseDir is the directory of the
// script being expanded. modified reports whether anything was spliced.
// Unresolvable invocations are logged and left in place.
func (e *Expander) Expand(ctx context.Context, rows []domain.StepRow, baseDir string) ([]domain.StepRow, bool) {
	return e.expand(ctx, rows, baseDir, nil)
}

func (e *Expander) expand(ctx context.Context, rows []domain.StepRow, baseDir string, stack []Key) ([]domain.StepRow, bool) {
	out := make([]domain.StepRow, 0, len(rows))
	modified := false

	for _, row := range rows {
		if !row.IsMacro() {
			out = append(out, row)
			continue
		}

		key, err := e.resolve(row, baseDir)
		if err != nil {
			e.logger.Error().Err(err).Str("step", row.Description).Msg("skipping macro expansion")
			out = append(out, row)
			continue
		}

		if slices.Contains(stack, key) {
			e.logger.Error().Err(tabulaerrors.ErrMacroCycle).Str("macro", key.String()).Msg("skipping macro expansion")
			out = append(out, row)
			continue
		}

		body := e.lookup(ctx, key)
		if len(body) == 0 {
			out = append(out, row)
			continue
		}

		nested, _ := e.expand(ctx, body, filepath.Dir(key.Source), slices.Concat(stack, []Key{key}))
		out = append(out, sectionMarker(row, len(nested)))
		provenance := constants.MacroProvenancePrefix + key.String()
		for _, n := range nested {
			if n.Provenance == "" {
				n.Provenance = provenance
			}
			out = append(out, n)
		}
		modified = true

		e.logger.Debug().
			Str("macro", key.Name).
			Str("source", key.Source).
			Int("steps", len(nested)).
			Msg("expanded macro")
	}

	return out, modified
}

// lookup returns the macro body, or an empty list when it cannot be found.
func (e *Expander) lookup(ctx context.Context, key Key) []domain.StepRow {
	rows, err := e.cache.GetOrLoad(ctx, key, func(ctx context.Context) ([]domain.StepRow, error) {
		return e.load(ctx, key)
	})
	if err != nil {
		e.logger.Error().Err(err).Str("macro", key.String()).Msg("macro not resolved")
		return nil
	}
	return rows
}

func (e *Expander) load(ctx context.Context, key Key) ([]domain.StepRow, error) {
	wb, err := e.opener.Open(ctx, key.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tabulaerrors.ErrMacroNotFound, err)
	}
	defer func() { _ = wb.Close() }()

	ws, err := wb.Sheet(key.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tabulaerrors.ErrMacroNotFound, err)
	}

	body := Scan(ws.Rows(), key.Name)
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", key.Name, tabulaerrors.ErrMacroNotFound)
	}
	return body, nil
}

// Scan extracts the steps of macro name from macro sheet rows: from the first
// row naming it, through rows with an empty or equal name, up to the next
// differently-named row.
func Scan(rows [][]string, name string) []domain.StepRow {
	var body []domain.StepRow
	started := false
	for _, cells := range rows {
		rowName := ""
		if len(cells) > colMacroName {
			rowName = strings.TrimSpace(cells[colMacroName])
		}
		if !started {
			if rowName != name {
				continue
			}
			started = true
		} else if rowName != "" && rowName != name {
			break
		}

		step := domain.StepRowFromCells(cells)
		step.Activity = ""
		if !step.IsEmpty() {
			body = append(body, step)
		}
	}
	return body
}

func (e *Expander) resolve(row domain.StepRow, baseDir string) (Key, error) {
	file := strings.TrimSpace(row.Param(0))
	sheet := strings.TrimSpace(row.Param(1))
	name := strings.TrimSpace(row.Param(2))
	if file == "" || sheet == "" || name == "" {
		return Key{}, fmt.Errorf("file=%q sheet=%q name=%q: %w", file, sheet, name, tabulaerrors.ErrInvalidMacroInvocation)
	}
	return Key{Source: e.locate(file, baseDir), Sheet: sheet, Name: name}, nil
}

// locate resolves a macro file: the path as given, then relative to the
// script directory and the project script directory, each with and without
// the default extension.
func (e *Expander) locate(file, baseDir string) string {
	names := []string{file}
	if filepath.Ext(file) == "" && e.ext != "" {
		names = append(names, file+e.ext)
	}

	candidates := slices.Clone(names)
	if !filepath.IsAbs(file) {
		for _, dir := range []string{baseDir, e.scriptDir} {
			if dir == "" {
				continue
			}
			for _, n := range names {
				candidates = append(candidates, filepath.Join(dir, n))
			}
		}
	}

	for _, c := range candidates {
		if e.opener.Exists(c) {
			return filepath.Clean(c)
		}
	}
	return filepath.Clean(file)
}

// sectionMarker turns the invocation into step.section(count). It keeps the
// invocation's activity, description and flow controls, so skipping the
// marker skips the whole macro.
func sectionMarker(invocation domain.StepRow, count int) domain.StepRow {
	return domain.StepRow{
		Activity:     invocation.Activity,
		Description:  invocation.Description,
		Target:       constants.StepTarget,
		Command:      constants.SectionCommand,
		Params:       []string{strconv.Itoa(count)},
		FlowControls: invocation.FlowControls,
		Provenance:   invocation.Provenance,
	}
}
