// Package convert runs InfoPath submissions through extraction and FDF serialization,
// one file at a time, and aggregates the per-file outcomes of a run.
package convert

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	converrors "github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert/errors"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/fdf"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/infopath"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/normalize"
)

// DefaultMaxFileSize bounds how much of an input document is read
const DefaultMaxFileSize = 100 * 1024 * 1024

// Options configures a Converter
type Options struct {
	TemplatePath  string
	NamespaceMode infopath.NamespaceMode
	MaxFileSize   int64
	Extractor     infopath.Options
	FDF           fdf.Options
}

// DefaultOptions returns dynamic namespace discovery with default extraction
func DefaultOptions() Options {
	return Options{
		NamespaceMode: infopath.NamespaceModeDynamic,
		MaxFileSize:   DefaultMaxFileSize,
		Extractor:     infopath.DefaultOptions(),
		FDF:           fdf.DefaultOptions(),
	}
}

// Converter turns one XML document into one FDF file
type Converter struct {
	opts      Options
	extractor *infopath.Extractor
	logger    zerolog.Logger
}

// NewConverter creates a converter
func NewConverter(opts Options, logger zerolog.Logger) *Converter {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.NamespaceMode == "" {
		opts.NamespaceMode = infopath.NamespaceModeDynamic
	}

	return &Converter{
		opts:      opts,
		extractor: infopath.NewExtractor(opts.Extractor),
		logger:    logger,
	}
}

// Options returns the converter options
func (c *Converter) Options() Options {
	return c.opts
}

// Request describes one conversion
type Request struct {
	InputPath  string
	OutputPath string
	// Namespaces overrides discovery when set
	Namespaces infopath.NamespaceMap
	// TemplatePath overrides the configured template when set
	TemplatePath string
}

// Convert reads, extracts, and writes one file. It never returns an error: failures
// are reported on the outcome so a batch can continue.
func (c *Converter) Convert(req Request) Outcome {
	outcome := Outcome{
		FileName:   filepath.Base(req.InputPath),
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Issues:     converrors.NewErrorCollection(req.InputPath),
	}

	preview, err := c.extract(req.InputPath, req.Namespaces)
	if err != nil {
		return outcome.fail(err)
	}
	outcome.NamespaceSource = preview.NamespaceSource
	outcome.ExtendedCount = preview.Result.ExtendedCount
	outcome.DateWarnings = preview.Result.DateWarnings
	outcome.FieldCount = len(preview.Result.Fields)

	for _, w := range outcome.DateWarnings {
		outcome.Issues.Add(converrors.New(converrors.ErrorTypeDateFormat, "date format error").
			WithField(w.Field).WithContext(w.Value))
	}
	for _, w := range outcome.Issues.Warnings {
		c.logger.Warn().
			Str("file", outcome.FileName).
			Str("field", w.Field).
			Str("value", w.Context).
			Msg(w.Message)
	}

	template := req.TemplatePath
	if template == "" {
		template = c.opts.TemplatePath
	}

	doc := fdf.Document{TemplatePath: template, Fields: make([]fdf.Field, 0, len(preview.Result.Fields))}
	for _, f := range preview.Result.Fields {
		doc.Fields = append(doc.Fields, fdf.Field{Name: f.Name, Value: f.Value})
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return outcome.fail(converrors.Wrap(converrors.ErrorTypeWrite, err).WithFile(req.InputPath))
	}

	if err := fdf.WriteFile(req.OutputPath, doc, c.opts.FDF); err != nil {
		var encErr *fdf.EncodingError
		if stderrors.As(err, &encErr) {
			return outcome.fail(converrors.Wrap(converrors.ErrorTypeEncoding, err).
				WithFile(req.InputPath).WithField(encErr.Field))
		}
		return outcome.fail(converrors.Wrap(converrors.ErrorTypeWrite, err).WithFile(req.InputPath))
	}

	outcome.Status = StatusSuccess
	return outcome
}

// ConvertFile converts inputPath into outputPath using the configured namespace mode
func (c *Converter) ConvertFile(ctx context.Context, inputPath, outputPath string) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{
			FileName:  filepath.Base(inputPath),
			InputPath: inputPath,
		}.fail(err)
	}

	return c.Convert(Request{InputPath: inputPath, OutputPath: outputPath})
}

// Preview is the extraction of one document without writing anything
type Preview struct {
	InputPath       string                     `json:"input_path"`
	Namespaces      infopath.NamespaceMap      `json:"namespaces"`
	NamespaceSource infopath.NamespaceSource   `json:"namespace_source"`
	Result          *infopath.ExtractionResult `json:"result"`
}

// Extract returns the fields a conversion of inputPath would write
func (c *Converter) Extract(ctx context.Context, inputPath string) (*Preview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.extract(inputPath, nil)
}

func (c *Converter) extract(inputPath string, ns infopath.NamespaceMap) (*Preview, error) {
	raw, err := c.readInput(inputPath)
	if err != nil {
		return nil, err
	}

	preview := &Preview{InputPath: inputPath, Namespaces: ns, NamespaceSource: infopath.SourceStatic}
	if ns == nil {
		res := infopath.ResolveNamespaces(raw, c.opts.NamespaceMode)
		if res.Err != nil {
			c.logger.Debug().Err(res.Err).Str("file", inputPath).Msg("namespace scan failed, using static table")
		}
		preview.Namespaces = res.Map
		preview.NamespaceSource = res.Source
	}

	doc, err := infopath.ParseDocument(raw)
	if err != nil {
		return nil, converrors.Wrap(converrors.ErrorTypeStructuralParse, err).WithFile(inputPath)
	}

	result, err := c.extractor.Extract(doc, preview.Namespaces)
	if err != nil {
		errType := converrors.ErrorTypeUnknown
		var encErr *normalize.EncodingError
		if stderrors.As(err, &encErr) {
			errType = converrors.ErrorTypeEncoding
		}
		return nil, converrors.Wrap(errType, err).WithFile(inputPath)
	}
	preview.Result = result

	return preview, nil
}

// readInput reads at most MaxFileSize bytes, failing when the file is larger
func (c *Converter) readInput(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, converrors.Wrap(converrors.ErrorTypeRead, err).WithFile(path)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, c.opts.MaxFileSize+1))
	if err != nil {
		return nil, converrors.Wrap(converrors.ErrorTypeRead, err).WithFile(path)
	}
	if int64(len(raw)) > c.opts.MaxFileSize {
		return nil, converrors.New(converrors.ErrorTypeRead,
			fmt.Sprintf("file exceeds maximum size of %d bytes", c.opts.MaxFileSize)).WithFile(path)
	}

	return raw, nil
}
