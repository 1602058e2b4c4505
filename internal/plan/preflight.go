package plan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/tabula/internal/domain"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/execution"
	"github.com/mrz1836/tabula/internal/iteration"
	"github.com/mrz1836/tabula/internal/workbook"
)

// defaultPreflightLimit bounds concurrent workbook loads during preflight.
const defaultPreflightLimit = 8

// Preflight checks every definition before anything runs: the script opens
// and has the selected scenarios, the data file opens, its sheets exist and
// its iteration directive parses. All problems are reported together.
func Preflight(ctx context.Context, opener workbook.Opener, defs []*domain.ExecutionDefinition, limit int) error {
	if limit <= 0 {
		limit = defaultPreflightLimit
	}

	var (
		mu       sync.Mutex
		problems []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, def := range defs {
		g.Go(func() error {
			report := func(err error) {
				mu.Lock()
				problems = append(problems, fmt.Errorf("%s: %w", def.Label(), err))
				mu.Unlock()
			}
			defer func() {
				if rec := recover(); rec != nil {
					report(fmt.Errorf("check panicked: %v", rec)) //nolint:err113 // panic value
				}
			}()
			if err := check(gctx, opener, def); err != nil {
				report(err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", tabulaerrors.ErrInterrupted, err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", tabulaerrors.ErrPreflightFailed, errors.Join(problems...))
	}
	return nil
}

func check(ctx context.Context, opener workbook.Opener, def *domain.ExecutionDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	script, err := opener.Open(ctx, def.Script)
	if err != nil {
		return err
	}
	defer func() { _ = script.Close() }()
	if _, err := execution.SelectScenarios(script, def.Scenarios); err != nil {
		return err
	}

	if def.DataFile == "" {
		return nil
	}
	data, err := opener.Open(ctx, def.DataFile)
	if err != nil {
		return err
	}
	defer func() { _ = data.Close() }()

	ds, err := iteration.LoadDataSet(data, def.DataSheets)
	if err != nil {
		return err
	}
	_, err = ds.Manager()
	return err
}
