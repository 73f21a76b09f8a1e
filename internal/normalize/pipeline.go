// Package normalize turns raw form values into text that can be embedded in an
// FDF literal string: dates are rewritten as MM/DD/YY, typographic characters are
// reduced to Latin-1, and markup characters are escaped.
package normalize

// Result is the outcome of running a value through the pipeline
type Result struct {
	Value       string
	DateWarning bool
}

// Pipeline applies date formatting, sanitization and escaping in that order
type Pipeline struct {
	sanitizer Sanitizer
}

// NewPipeline creates a pipeline using the given encoding policy and placeholder
func NewPipeline(policy EncodingPolicy, placeholder string) *Pipeline {
	return &Pipeline{
		sanitizer: NewSanitizer(policy, placeholder),
	}
}

// DefaultPipeline returns a pipeline that replaces unencodable characters with "?"
func DefaultPipeline() *Pipeline {
	return NewPipeline(EncodingReplace, DefaultPlaceholder)
}

// Apply normalizes a single value.
//
// A date warning does not stop processing: the original value continues through
// sanitization and escaping. An error is only returned under the strict encoding policy.
func (p *Pipeline) Apply(value string) (Result, error) {
	formatted, warn := FormatDate(value)

	clean, err := p.sanitizer.Sanitize(formatted)
	if err != nil {
		return Result{DateWarning: warn}, err
	}

	return Result{
		Value:       EscapeMarkup(clean),
		DateWarning: warn,
	}, nil
}
