package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/pdftemplate"
)

// Printer writes colored status lines
type Printer struct {
	out     io.Writer
	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
	header  *color.Color
}

// NewPrinter creates a printer; noColor disables escape sequences
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
		header:  color.New(color.FgCyan, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.success, p.failure, p.warning, p.info, p.header} {
			c.DisableColor()
		}
	}
	return p
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	p.success.Fprintf(p.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Failure prints an error message
func (p *Printer) Failure(format string, args ...interface{}) {
	p.failure.Fprintf(p.out, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	p.warning.Fprintf(p.out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	p.info.Fprintf(p.out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Outcome prints the result of one file
func (p *Printer) Outcome(o convert.Outcome) {
	if !o.Succeeded() {
		p.Failure("Error processing file %s: %s", o.FileName, o.Error)
		return
	}
	p.Success("FDF created: %s", o.OutputPath)
	for _, w := range o.DateWarnings {
		p.Warning("Date format error in file '%s' for value: '%s'", o.FileName, w.Value)
	}
}

// Template prints the warnings of a template inspection
func (p *Printer) Template(report *pdftemplate.Report) {
	if report.OK() {
		p.Info("Template %s: %d page(s), fillable form", report.Path, report.Pages)
		return
	}
	for _, w := range report.Warnings {
		p.Warning("%s", w)
	}
}

// Summary prints the end-of-run counts, followed by every failure
func (p *Printer) Summary(report *convert.Report) {
	p.header.Fprintln(p.out, "\n=== Conversion Summary ===")
	p.Success("Successfully converted %d file(s).", report.Succeeded)
	if report.Failed > 0 {
		p.Failure("Failed to convert %d file(s).", report.Failed)
	} else {
		p.Info("Failed to convert 0 file(s).")
	}
	if report.DateWarnings > 0 {
		p.Warning("Date formatting errors encountered in %d field(s).", report.DateWarnings)
	} else {
		p.Info("Date formatting errors encountered in 0 field(s).")
	}
	p.Info("Extended fields visited: %d", report.ExtendedCount)
	if report.Cancelled {
		p.Warning("Run cancelled before all files were processed.")
	}

	for _, o := range report.Failures() {
		p.Failure("%s: %s", o.FileName, o.Error)
	}
}
