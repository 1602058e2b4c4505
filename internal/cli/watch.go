package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/signal"
)

// runOnce runs a script or plan and returns the files it read.
type runOnce func(ctx context.Context) ([]string, error)

// withSignals runs fn with a context canceled on SIGINT or SIGTERM.
func withSignals(cmd *cobra.Command, fn func(ctx context.Context) error) error {
	h := signal.NewHandler(cmd.Context())
	defer h.Stop()
	return fn(h.Context())
}

func errMissingArgument(name string) error {
	return fmt.Errorf("%w: a %s is required, as argument or --%s", errors.ErrInvalidArgument, name, name)
}

// watch runs once, then again every time one of the files it read changes,
// until ctx is canceled. Run failures are logged, not returned.
func watch(ctx context.Context, logger zerolog.Logger, run runOnce) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	files := newWatchSet()
	rerun := func() {
		read, err := run(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("run finished with errors")
		}
		for _, dir := range files.update(read) {
			if err := watcher.Add(dir); err != nil {
				logger.Warn().Err(err).Str("dir", dir).Msg("failed to watch directory")
			}
		}
		logger.Info().Int("files", files.len()).Msg("watching for changes, press Ctrl+C to stop")
	}
	rerun()

	trigger := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files.relevant(event) {
				continue
			}
			logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(constants.WatchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			rerun()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// watchSet tracks watched files by absolute path. Directories are watched
// rather than files so editors that save by rename are still seen.
type watchSet struct {
	files map[string]bool
	dirs  map[string]bool
}

func newWatchSet() *watchSet {
	return &watchSet{files: make(map[string]bool), dirs: make(map[string]bool)}
}

// update adds paths and returns directories not watched yet.
func (w *watchSet) update(paths []string) []string {
	var added []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = true
		if dir := filepath.Dir(abs); !w.dirs[dir] {
			w.dirs[dir] = true
			added = append(added, dir)
		}
	}
	return added
}

func (w *watchSet) len() int {
	return len(w.files)
}

// relevant reports a write, create or rename of a watched file.
func (w *watchSet) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}
