package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultOutputSuffix is appended to a folder name to form its output folder
const DefaultOutputSuffix = " - CONVERTED"

// Job pairs an input document with the FDF file it produces
type Job struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// Batch converts every XML file under a folder tree
type Batch struct {
	converter *Converter
	suffix    string
	logger    zerolog.Logger
}

// NewBatch creates a batch runner; an empty suffix means DefaultOutputSuffix
func NewBatch(converter *Converter, suffix string, logger zerolog.Logger) *Batch {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	return &Batch{converter: converter, suffix: suffix, logger: logger}
}

// Suffix returns the output folder suffix
func (b *Batch) Suffix() string {
	return b.suffix
}

// Converter returns the converter used for each job
func (b *Batch) Converter() *Converter {
	return b.converter
}

// Plan walks root and returns one job per XML file, in walk order.
// Folders whose name ends with the output suffix are not descended into.
func (b *Batch) Plan(root string) ([]Job, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", root)
	}

	var jobs []Job
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, the rest of the tree is still planned
			b.logger.Warn().Err(walkErr).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && b.IsOutputDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsXMLFile(d.Name()) {
			return nil
		}

		jobs = append(jobs, Job{InputPath: path, OutputPath: b.OutputPath(path)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	return jobs, nil
}

// OutputDir returns the sibling output folder for the folder holding inputPath
func (b *Batch) OutputDir(inputPath string) string {
	dir := filepath.Clean(filepath.Dir(inputPath))
	return filepath.Join(filepath.Dir(dir), filepath.Base(dir)+b.suffix)
}

// OutputPath returns the FDF path for inputPath
func (b *Batch) OutputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(b.OutputDir(inputPath), name+".fdf")
}

// IsOutputDir reports whether dir is an output folder
func (b *Batch) IsOutputDir(dir string) bool {
	return strings.HasSuffix(filepath.Base(filepath.Clean(dir)), b.suffix)
}

// Run plans root and converts every job in order. Cancellation is honoured between
// files only; a file that has started is always finished.
func (b *Batch) Run(ctx context.Context, root string, observer Observer) (*Report, error) {
	jobs, err := b.Plan(root)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = Observers{}
	}

	report := NewReport(root)
	logger := b.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Str("root", root).Int("files", len(jobs)).Msg("conversion started")

	observer.Start(len(jobs))
	for _, job := range jobs {
		if ctx.Err() != nil {
			report.Cancelled = true
			logger.Warn().Msg("conversion cancelled")
			break
		}

		outcome := b.converter.ConvertFile(ctx, job.InputPath, job.OutputPath)
		report.Add(outcome)
		observer.FileDone(outcome)
	}
	report.Finish()
	observer.Finish(report)

	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("date_warnings", report.DateWarnings).
		Dur("duration", report.Duration).
		Msg("conversion finished")

	return report, nil
}

// IsXMLFile reports whether name has an .xml extension, in any case
func IsXMLFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xml")
}

// LogObserver writes one log line per converted file
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates an observer logging to logger
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Start implements Observer
func (l *LogObserver) Start(total int) {
	l.logger.Debug().Int("files", total).Msg("planned conversion")
}

// FileDone implements Observer
func (l *LogObserver) FileDone(outcome Outcome) {
	if outcome.Succeeded() {
		l.logger.Info().
			Str("file", outcome.FileName).
			Str("output", outcome.OutputPath).
			Int("fields", outcome.FieldCount).
			Msg("FDF created")
		return
	}
	l.logger.Error().Err(outcome.Err).Str("file", outcome.FileName).Msg("error processing file")
}

// Finish implements Observer
func (l *LogObserver) Finish(report *Report) {
	l.logger.Debug().Str("run_id", report.RunID).Int("files", report.Total()).Msg("run complete")
}
