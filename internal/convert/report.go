package convert

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	converrors "github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert/errors"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/infopath"
)

// Status tags an outcome
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the result of converting one file
type Outcome struct {
	Status          Status                   `json:"status"`
	FileName        string                   `json:"file_name"`
	InputPath       string                   `json:"input_path"`
	OutputPath      string                   `json:"output_path,omitempty"`
	Err             error                    `json:"-"`
	Error           string                   `json:"error,omitempty"`
	DateWarnings    []infopath.DateWarning   `json:"date_warnings,omitempty"`
	ExtendedCount   int                      `json:"extended_count"`
	FieldCount      int                      `json:"field_count"`
	NamespaceSource infopath.NamespaceSource `json:"namespace_source,omitempty"`

	// Issues holds the typed errors and warnings raised for the file
	Issues *converrors.ErrorCollection `json:"issues,omitempty"`
}

func (o Outcome) fail(err error) Outcome {
	o.Status = StatusFailure
	o.Err = err
	o.Error = err.Error()
	o.OutputPath = ""

	var convErr *converrors.ConversionError
	if o.Issues != nil && stderrors.As(err, &convErr) {
		o.Issues.Add(convErr)
	}
	return o
}

// Succeeded reports whether the FDF file was written
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Observer watches the progress of a run
type Observer interface {
	Start(total int)
	FileDone(outcome Outcome)
	Finish(report *Report)
}

// Observers fans events out to several observers in order
type Observers []Observer

func (obs Observers) Start(total int) {
	for _, o := range obs {
		o.Start(total)
	}
}

func (obs Observers) FileDone(outcome Outcome) {
	for _, o := range obs {
		o.FileDone(outcome)
	}
}

func (obs Observers) Finish(report *Report) {
	for _, o := range obs {
		o.Finish(report)
	}
}

// Report aggregates the outcomes of a run. It is append-only and owned by the run
// that creates it.
type Report struct {
	RunID         string        `json:"run_id"`
	Root          string        `json:"root"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Outcomes      []Outcome     `json:"outcomes"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	DateWarnings  int           `json:"date_warnings"`
	ExtendedCount int           `json:"extended_count"`
	Cancelled     bool          `json:"cancelled,omitempty"`
}

// NewReport starts a report with a fresh run id
func NewReport(root string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Root:      root,
		StartedAt: time.Now(),
		Outcomes:  make([]Outcome, 0),
	}
}

// Add appends one outcome and updates the counters
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.DateWarnings += len(o.DateWarnings)
	r.ExtendedCount += o.ExtendedCount
}

// Finish stamps the run duration
func (r *Report) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// Total returns the number of files processed
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Failures returns the failed outcomes in processing order
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Summary renders the end-of-run summary
func (r *Report) Summary() string {
	var b strings.Builder
	b.WriteString("=== Conversion Summary ===\n")
	fmt.Fprintf(&b, "Successfully converted %d file(s).\n", r.Succeeded)
	fmt.Fprintf(&b, "Failed to convert %d file(s).\n", r.Failed)
	fmt.Fprintf(&b, "Date formatting errors encountered in %d field(s).\n", r.DateWarnings)
	fmt.Fprintf(&b, "Extended fields visited: %d\n", r.ExtendedCount)
	if r.Cancelled {
		b.WriteString("Run cancelled before all files were processed.\n")
	}
	return b.String()
}
