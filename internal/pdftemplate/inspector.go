// Package pdftemplate checks the PDF form that generated FDF files point at.
//
// FDF files name their template by path only, so nothing here blocks a conversion:
// problems come back as warnings for the operator.
package pdftemplate

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Report describes a template file
type Report struct {
	Path        string   `json:"path"`
	Exists      bool     `json:"exists"`
	Readable    bool     `json:"readable"`
	Pages       int      `json:"pages"`
	HasAcroForm bool     `json:"has_acroform"`
	Warnings    []string `json:"warnings,omitempty"`
}

// OK reports whether the template looks usable as a fill-in form
func (r *Report) OK() bool {
	return len(r.Warnings) == 0
}

// Inspector opens templates with pdfcpu for structure and ledongthuc/pdf for a
// second readability check
type Inspector struct {
	maxFileSize int64
}

// NewInspector creates an inspector; files above maxFileSize are not opened
func NewInspector(maxFileSize int64) *Inspector {
	return &Inspector{maxFileSize: maxFileSize}
}

// Inspect examines the template at path. It only returns an error for an empty path.
func (i *Inspector) Inspect(path string) (*Report, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("template path cannot be empty")
	}

	report := &Report{Path: path}
	warn := func(format string, args ...interface{}) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(format, args...))
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		warn("template not found on this machine: %s", path)
		return report, nil
	}
	if err != nil {
		warn("cannot access template: %v", err)
		return report, nil
	}
	report.Exists = true

	if info.IsDir() {
		warn("template path is a directory: %s", path)
		return report, nil
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		warn("template does not have a .pdf extension: %s", path)
	}
	if info.Size() == 0 {
		warn("template is empty: %s", path)
		return report, nil
	}
	if i.maxFileSize > 0 && info.Size() > i.maxFileSize {
		warn("template too large to inspect: %d bytes (max: %d bytes)", info.Size(), i.maxFileSize)
		return report, nil
	}

	pages, hasForm, err := readStructure(path)
	if err != nil {
		warn("template is not a readable PDF: %v", err)
		return report, nil
	}
	report.Pages = pages
	report.HasAcroForm = hasForm
	if !hasForm {
		warn("template has no AcroForm; FDF values will have no fields to fill")
	}

	if err := checkReadable(path); err != nil {
		warn("template failed a secondary read check: %v", err)
		return report, nil
	}
	report.Readable = true

	return report, nil
}

// readStructure returns the page count and whether the catalog carries an AcroForm
func readStructure(path string) (int, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return 0, false, fmt.Errorf("failed to ensure page count: %w", err)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return ctx.PageCount, false, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return ctx.PageCount, false, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return ctx.PageCount, false, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}

	return ctx.PageCount, acroFormDict != nil, nil
}

// checkReadable opens the file with a second, independent parser
func checkReadable(path string) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return fmt.Errorf("no pages")
	}
	return nil
}
