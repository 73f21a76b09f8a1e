package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	converrors "github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert/errors"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/infopath"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/logging"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/normalize"
)

const janeXML = `<?xml version="1.0" encoding="UTF-8"?>
<dfs:myFields xmlns:dfs="http://schemas.microsoft.com/office/infopath/2003/dataFormSolution"
    xmlns:d="http://schemas.microsoft.com/office/infopath/2003/ado/dataFields">
  <dfs:dataFields>
    <d:MASTER_PART1 Name="Jane &amp; Co" DOB="1990-05-01"/>
  </dfs:dataFields>
</dfs:myFields>`

const templatePath = "C:/Forms/FinalSheet2024.pdf"

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	opts := DefaultOptions()
	opts.TemplatePath = templatePath
	return NewConverter(opts, logging.Nop())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// recorder is an Observer that keeps everything it sees
type recorder struct {
	mu       sync.Mutex
	total    int
	outcomes []Outcome
	finished *Report
	done     chan Outcome
}

func (r *recorder) Start(total int) { r.total = total }

func (r *recorder) FileDone(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- o
	}
}

func (r *recorder) Finish(report *Report) { r.finished = report }

func TestConverter_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jane.xml")
	out := filepath.Join(dir, "out", "jane.fdf")
	writeFile(t, in, janeXML)

	outcome := newTestConverter(t).ConvertFile(context.Background(), in, out)
	require.True(t, outcome.Succeeded(), "unexpected failure: %v", outcome.Err)
	assert.Equal(t, "jane.xml", outcome.FileName)
	assert.Equal(t, out, outcome.OutputPath)
	assert.Equal(t, 2, outcome.FieldCount)
	assert.Equal(t, infopath.SourceScanned, outcome.NamespaceSource)
	assert.Empty(t, outcome.DateWarnings)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	expected := "%FDF-1.2\n" +
		"1 0 obj\n" +
		"<< /FDF <<\n" +
		"/F (C:/Forms/FinalSheet2024.pdf)\n" +
		"/Fields [\n" +
		"<< /T (Name) /V (Jane &amp; Co) >>\n" +
		"<< /T (DOB) /V (05/01/90) >>\n" +
		"] >> >>\n" +
		"endobj\n" +
		"trailer\n" +
		"<< /Root 1 0 R >>\n" +
		"%%EOF\n"
	assert.Equal(t, expected, string(data))
}

func TestConverter_RequestOverrides(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "form.xml")
	out := filepath.Join(dir, "form.fdf")
	writeFile(t, in, `<root xmlns:x="urn:custom"><x:MASTER_PART1 City="Akron"/></root>`)

	outcome := newTestConverter(t).Convert(Request{
		InputPath:    in,
		OutputPath:   out,
		Namespaces:   infopath.NamespaceMap{"x": "urn:custom"},
		TemplatePath: "other.pdf",
	})
	require.True(t, outcome.Succeeded(), "unexpected failure: %v", outcome.Err)
	assert.Equal(t, infopath.SourceStatic, outcome.NamespaceSource)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/F (other.pdf)")
	assert.Contains(t, string(data), "<< /T (City) /V (Akron) >>")
}

func TestConverter_DateWarning(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "late.xml")
	writeFile(t, in, `<root xmlns:d="urn:d"><d:MASTER_PART1 Due="2024-02-30"/></root>`)

	outcome := newTestConverter(t).ConvertFile(context.Background(), in, filepath.Join(dir, "late.fdf"))
	require.True(t, outcome.Succeeded())
	assert.Equal(t, []infopath.DateWarning{{Field: "Due", Value: "2024-02-30"}}, outcome.DateWarnings)

	require.NotNil(t, outcome.Issues)
	assert.False(t, outcome.Issues.HasErrors())
	require.Len(t, outcome.Issues.Warnings, 1)
	assert.Equal(t, converrors.ErrorTypeDateFormat, outcome.Issues.Warnings[0].Type)
	assert.Equal(t, "Due", outcome.Issues.Warnings[0].Field)
	assert.Equal(t, in, outcome.Issues.Warnings[0].FilePath)
}

func TestConverter_MalformedXML(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unclosed element", raw: `<root><unclosed></root>`},
		{name: "trailing text", raw: `<root xmlns:d="urn:d"><d:MASTER_PART1 Name="a"/></root>trailing junk`},
		{name: "second root", raw: `<root xmlns:d="urn:d"><d:MASTER_PART1 Name="a"/></root><other/>`},
		{name: "duplicate attribute", raw: `<root xmlns:d="urn:d"><d:MASTER_PART1 Name="a" Name="b"/></root>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "broken.xml")
			out := filepath.Join(dir, "out", "broken.fdf")
			writeFile(t, in, tt.raw)

			outcome := newTestConverter(t).ConvertFile(context.Background(), in, out)
			assert.Equal(t, StatusFailure, outcome.Status)
			assert.Contains(t, outcome.Error, "broken.xml")
			assert.Equal(t, converrors.ErrorTypeStructuralParse, converrors.TypeOf(outcome.Err))
			require.NotNil(t, outcome.Issues)
			assert.True(t, outcome.Issues.HasErrors())
			assert.Equal(t, "Found 1 error(s) and 0 warning(s)", outcome.Issues.Summary())

			_, err := os.Stat(filepath.Dir(out))
			assert.True(t, os.IsNotExist(err), "no output for a failed file")
		})
	}
}

func TestConverter_WriteError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jane.xml")
	writeFile(t, in, janeXML)

	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "not a directory")

	outcome := newTestConverter(t).ConvertFile(context.Background(), in, filepath.Join(blocker, "jane.fdf"))
	assert.Equal(t, StatusFailure, outcome.Status)
	assert.Equal(t, converrors.ErrorTypeWrite, converrors.TypeOf(outcome.Err))
	assert.Contains(t, outcome.Error, "jane.xml")
}

func TestConverter_ReadErrors(t *testing.T) {
	dir := t.TempDir()

	outcome := newTestConverter(t).ConvertFile(context.Background(), filepath.Join(dir, "missing.xml"), filepath.Join(dir, "x.fdf"))
	assert.Equal(t, converrors.ErrorTypeRead, converrors.TypeOf(outcome.Err))

	big := filepath.Join(dir, "big.xml")
	writeFile(t, big, janeXML)

	opts := DefaultOptions()
	opts.MaxFileSize = 16
	outcome = NewConverter(opts, logging.Nop()).ConvertFile(context.Background(), big, filepath.Join(dir, "big.fdf"))
	assert.Equal(t, converrors.ErrorTypeRead, converrors.TypeOf(outcome.Err))
	assert.Contains(t, outcome.Error, "maximum size")
}

func TestConverter_StrictEncoding(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "snow.xml")
	writeFile(t, in, `<root xmlns:d="urn:d"><d:MASTER_PART1 Weather="`+"\u2603"+`"/></root>`)

	opts := DefaultOptions()
	opts.Extractor.Pipeline = normalize.NewPipeline(normalize.EncodingStrict, "")
	outcome := NewConverter(opts, logging.Nop()).ConvertFile(context.Background(), in, filepath.Join(dir, "snow.fdf"))

	assert.Equal(t, StatusFailure, outcome.Status)
	assert.Equal(t, converrors.ErrorTypeEncoding, converrors.TypeOf(outcome.Err))

	// The default policy substitutes a placeholder instead
	outcome = newTestConverter(t).ConvertFile(context.Background(), in, filepath.Join(dir, "snow.fdf"))
	assert.True(t, outcome.Succeeded())
}

func TestConverter_TemplateEncodingError(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jane.xml")
	writeFile(t, in, janeXML)

	opts := DefaultOptions()
	opts.TemplatePath = "\u8868.pdf"
	outcome := NewConverter(opts, logging.Nop()).ConvertFile(context.Background(), in, filepath.Join(dir, "jane.fdf"))

	assert.Equal(t, converrors.ErrorTypeEncoding, converrors.TypeOf(outcome.Err))
}

func TestConverter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := newTestConverter(t).ConvertFile(ctx, "any.xml", "any.fdf")
	assert.Equal(t, StatusFailure, outcome.Status)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}

func TestConverter_Extract(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "jane.xml")
	writeFile(t, in, janeXML)

	preview, err := newTestConverter(t).Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, infopath.SourceScanned, preview.NamespaceSource)
	assert.Contains(t, preview.Namespaces, "d")
	assert.Equal(t, []infopath.FieldRecord{
		{Name: "Name", Value: "Jane &amp; Co"},
		{Name: "DOB", Value: "05/01/90"},
	}, preview.Result.Fields)
}

func TestBatch_Plan(t *testing.T) {
	root := filepath.Join(t.TempDir(), "forms")
	writeFile(t, filepath.Join(root, "a.xml"), janeXML)
	writeFile(t, filepath.Join(root, "B.XML"), janeXML)
	writeFile(t, filepath.Join(root, "notes.txt"), "skip")
	writeFile(t, filepath.Join(root, "2024", "c.xml"), janeXML)
	writeFile(t, filepath.Join(root, "2024 - CONVERTED", "old.xml"), janeXML)

	batch := NewBatch(newTestConverter(t), "", logging.Nop())
	jobs, err := batch.Plan(root)
	require.NoError(t, err)

	parent := filepath.Dir(root)
	assert.ElementsMatch(t, []Job{
		{InputPath: filepath.Join(root, "2024", "c.xml"), OutputPath: filepath.Join(root, "2024 - CONVERTED", "c.fdf")},
		{InputPath: filepath.Join(root, "B.XML"), OutputPath: filepath.Join(parent, "forms - CONVERTED", "B.fdf")},
		{InputPath: filepath.Join(root, "a.xml"), OutputPath: filepath.Join(parent, "forms - CONVERTED", "a.fdf")},
	}, jobs)
}

func TestBatch_PlanErrors(t *testing.T) {
	batch := NewBatch(newTestConverter(t), "", logging.Nop())

	_, err := batch.Plan(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.xml")
	writeFile(t, file, janeXML)
	_, err = batch.Plan(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestBatch_Run(t *testing.T) {
	root := filepath.Join(t.TempDir(), "forms")
	writeFile(t, filepath.Join(root, "good.xml"), janeXML)
	writeFile(t, filepath.Join(root, "bad.xml"), `<root><oops></root>`)

	rec := &recorder{}
	report, err := NewBatch(newTestConverter(t), "", logging.Nop()).Run(context.Background(), root, rec)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, rec.total)
	assert.Len(t, rec.outcomes, 2)
	assert.Same(t, report, rec.finished)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "bad.xml", failures[0].FileName)
	assert.Contains(t, failures[0].Error, "bad.xml")

	_, err = os.Stat(filepath.Join(filepath.Dir(root), "forms - CONVERTED", "good.fdf"))
	assert.NoError(t, err)

	summary := report.Summary()
	assert.Contains(t, summary, "Successfully converted 1 file(s).")
	assert.Contains(t, summary, "Failed to convert 1 file(s).")
	assert.Contains(t, summary, "Date formatting errors encountered in 0 field(s).")
}

func TestBatch_RunCancelledBetweenFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "forms")
	writeFile(t, filepath.Join(root, "a.xml"), janeXML)
	writeFile(t, filepath.Join(root, "b.xml"), janeXML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewBatch(newTestConverter(t), "", logging.Nop()).Run(ctx, root, nil)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Zero(t, report.Total())
	assert.Contains(t, report.Summary(), "cancelled")
}

func TestBatch_CustomSuffix(t *testing.T) {
	batch := NewBatch(newTestConverter(t), "_fdf", logging.Nop())

	assert.Equal(t, filepath.Join("in", "sub_fdf", "x.fdf"), batch.OutputPath(filepath.Join("in", "sub", "x.xml")))
	assert.True(t, batch.IsOutputDir(filepath.Join("in", "sub_fdf")))
	assert.False(t, batch.IsOutputDir(filepath.Join("in", "sub")))
}

func TestIsXMLFile(t *testing.T) {
	assert.True(t, IsXMLFile("a.xml"))
	assert.True(t, IsXMLFile("A.XmL"))
	assert.False(t, IsXMLFile("a.xml.bak"))
	assert.False(t, IsXMLFile("xml"))
}

func TestReport_Counters(t *testing.T) {
	report := NewReport("root")
	report.Add(Outcome{Status: StatusSuccess, ExtendedCount: 3, DateWarnings: []infopath.DateWarning{{Field: "A"}}})
	report.Add(Outcome{Status: StatusSuccess, ExtendedCount: 2})
	report.Add(Outcome{Status: StatusFailure})
	report.Finish()

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.DateWarnings)
	assert.Equal(t, 5, report.ExtendedCount)
	assert.True(t, strings.HasPrefix(report.Summary(), "=== Conversion Summary ===\n"))
}

func TestWatcher_ConvertsNewFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "incoming")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, filepath.Join(root, "existing.xml"), janeXML)

	batch := NewBatch(newTestConverter(t), "", logging.Nop())
	watcher := NewWatcher(batch, WatchOptions{Debounce: 50 * time.Millisecond, InitialScan: true}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{done: make(chan Outcome, 4)}
	type result struct {
		report *Report
		err    error
	}
	finished := make(chan result, 1)
	go func() {
		report, err := watcher.Run(ctx, root, rec)
		finished <- result{report, err}
	}()

	select {
	case o := <-rec.done:
		assert.Equal(t, "existing.xml", o.FileName)
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan did not convert existing file")
	}

	writeFile(t, filepath.Join(root, "new.xml"), janeXML)

	select {
	case o := <-rec.done:
		assert.Equal(t, "new.xml", o.FileName)
		assert.True(t, o.Succeeded(), "unexpected failure: %v", o.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not convert new file")
	}

	cancel()
	res := <-finished
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.report.Succeeded)

	_, err := os.Stat(filepath.Join(filepath.Dir(root), "incoming - CONVERTED", "new.fdf"))
	assert.NoError(t, err)
}
