package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the bursts of write events editors and copy tools produce
const DefaultDebounce = 500 * time.Millisecond

// Watcher converts XML files under a root as they are created or modified
type Watcher struct {
	batch       *Batch
	debounce    time.Duration
	initialScan bool
	logger      zerolog.Logger
}

// WatchOptions configures a Watcher
type WatchOptions struct {
	Debounce time.Duration
	// InitialScan converts the files already present before watching
	InitialScan bool
}

// NewWatcher creates a watcher that lays out output like batch does
func NewWatcher(batch *Batch, opts WatchOptions, logger zerolog.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		batch:       batch,
		debounce:    opts.Debounce,
		initialScan: opts.InitialScan,
		logger:      logger,
	}
}

// Run watches root until ctx is cancelled. Every conversion is reported to observer,
// and the returned report covers the whole session.
func (w *Watcher) Run(ctx context.Context, root string, observer Observer) (*Report, error) {
	if observer == nil {
		observer = Observers{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, root); err != nil {
		return nil, err
	}

	report := NewReport(root)
	logger := w.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Str("root", root).Dur("debounce", w.debounce).Msg("watching for XML files")

	observer.Start(0)

	if w.initialScan {
		jobs, err := w.batch.Plan(root)
		if err != nil {
			return nil, err
		}
		for _, job := range jobs {
			if ctx.Err() != nil {
				break
			}
			w.convert(ctx, job.InputPath, report, observer)
		}
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			report.Cancelled = len(pending) > 0
			report.Finish()
			observer.Finish(report)
			return report, nil

		case event, ok := <-fw.Events:
			if !ok {
				report.Finish()
				observer.Finish(report)
				return report, errors.New("file watcher closed")
			}
			w.handleEvent(fw, event, pending, logger)

		case err, ok := <-fw.Errors:
			if !ok {
				continue
			}
			logger.Error().Err(err).Msg("watcher error")

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)
				w.convert(ctx, path, report, observer)
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event, pending map[string]time.Time, logger zerolog.Logger) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.batch.IsOutputDir(event.Name) {
				return
			}
			if err := w.addTree(fw, event.Name); err != nil {
				logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !IsXMLFile(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		pending[event.Name] = time.Now()
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		delete(pending, event.Name)
	}
}

// addTree adds dir and its subfolders, skipping output folders
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.batch.IsOutputDir(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) convert(ctx context.Context, path string, report *Report, observer Observer) {
	if _, err := os.Stat(path); err != nil {
		// Removed before the debounce window closed
		return
	}

	outcome := w.batch.converter.ConvertFile(ctx, path, w.batch.OutputPath(path))
	report.Add(outcome)
	observer.FileDone(outcome)
}
