package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ConversionError is a file-scoped failure or warning raised while converting one document
type ConversionError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// ErrorType represents the categories of conversion errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeStructuralParse
	ErrorTypeDateFormat
	ErrorTypeEncoding
	ErrorTypeWrite
	ErrorTypeRead
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
)

// Error implements the error interface
func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.FilePath != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.FilePath, e.Message)
	}
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is matches any ConversionError of the same type, so callers can test
// errors.Is(err, errors.New(errors.ErrorTypeWrite, ""))
func (e *ConversionError) Is(target error) bool {
	t, ok := target.(*ConversionError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeStructuralParse:
		return "STRUCTURAL_PARSE"
	case ErrorTypeDateFormat:
		return "DATE_FORMAT"
	case ErrorTypeEncoding:
		return "ENCODING"
	case ErrorTypeWrite:
		return "WRITE"
	case ErrorTypeRead:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeDateFormat:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// New creates a ConversionError
func New(errorType ErrorType, message string) *ConversionError {
	return &ConversionError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps err as a ConversionError of the given type, keeping it as the cause
func Wrap(errorType ErrorType, err error) *ConversionError {
	return &ConversionError{
		Type:      errorType,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Err:       err,
	}
}

// WithContext adds context to an existing ConversionError
func (e *ConversionError) WithContext(context string) *ConversionError {
	e.Context = context
	return e
}

// WithFile adds file path information to an existing ConversionError
func (e *ConversionError) WithFile(filePath string) *ConversionError {
	e.FilePath = filePath
	return e
}

// WithField names the field responsible for the error
func (e *ConversionError) WithField(field string) *ConversionError {
	e.Field = field
	return e
}

// GetSeverity returns the severity of this specific error
func (e *ConversionError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsWarning reports whether the error leaves the conversion intact
func (e *ConversionError) IsWarning() bool {
	return e.GetSeverity() < SeverityError
}

// TypeOf returns the conversion error type carried anywhere in err's chain
func TypeOf(err error) ErrorType {
	var ce *ConversionError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeUnknown
}

// ErrorCollection gathers the errors and warnings raised for one file
type ErrorCollection struct {
	Errors   []*ConversionError `json:"errors"`
	Warnings []*ConversionError `json:"warnings"`
	FilePath string             `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*ConversionError, 0),
		Warnings: make([]*ConversionError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *ConversionError) {
	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	if err.IsWarning() {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// HasErrors returns true if any non-warning error was added
func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.Errors) > 0
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	return len(ec.Errors), len(ec.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
