// Package ui renders conversion progress and the end-of-run summary on a terminal.
package ui

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert"
)

// ProgressObserver draws a progress bar for a batch run and prints the summary when
// the run ends. In watch mode the total is unknown, so it prints one line per file.
type ProgressObserver struct {
	out     io.Writer
	printer *Printer
	watch   bool
	bar     *progressbar.ProgressBar
}

// NewProgressObserver creates an observer writing to out; watch selects per-file lines
func NewProgressObserver(out io.Writer, noColor, watch bool) *ProgressObserver {
	return &ProgressObserver{out: out, printer: NewPrinter(out, noColor), watch: watch}
}

// Start implements convert.Observer
func (p *ProgressObserver) Start(total int) {
	if p.watch {
		p.printer.Info("Watching for XML files")
		return
	}
	if total <= 0 {
		p.printer.Warning("No XML files found")
		return
	}

	out := p.out
	p.bar = progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// FileDone implements convert.Observer
func (p *ProgressObserver) FileDone(outcome convert.Outcome) {
	if p.bar != nil {
		_ = p.bar.Add(1)
		return
	}
	p.printer.Outcome(outcome)
}

// Finish implements convert.Observer
func (p *ProgressObserver) Finish(report *convert.Report) {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
	p.printer.Summary(report)
}
