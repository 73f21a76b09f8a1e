// Package fdf renders field/value pairs as a Forms Data Format document.
package fdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Header is the first line of every FDF document
const Header = "%FDF-1.2"

// Field is a single text field entry
type Field struct {
	Name  string
	Value string
}

// Document is an FDF document bound to a PDF template
type Document struct {
	// TemplatePath is written to /F; viewers resolve it to the form to populate
	TemplatePath string
	Fields       []Field
}

// Options controls serialization
type Options struct {
	// EscapeLiterals backslash-escapes \, ( and ) inside literal strings
	EscapeLiterals bool
}

// DefaultOptions returns the options used by the converter
func DefaultOptions() Options {
	return Options{EscapeLiterals: true}
}

// EncodingError reports text that cannot be written as Latin-1
type EncodingError struct {
	// Field is the offending field name, or "/F" for the template path
	Field string
	Err   error
}

// Error implements the error interface
func (e *EncodingError) Error() string {
	return fmt.Sprintf("field %s cannot be encoded as Latin-1: %v", e.Field, e.Err)
}

// Unwrap returns the underlying encoder error
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// ErrEmptyFieldName is returned for a field without a name
var ErrEmptyFieldName = errors.New("fdf: field name is empty")

// Encode renders doc as Latin-1 FDF bytes.
//
// Records are written one per line in the order given. Any character outside Latin-1
// fails the whole document.
func Encode(doc Document, opts Options) ([]byte, error) {
	encoder := charmap.ISO8859_1.NewEncoder()

	literal := func(field, s string) ([]byte, error) {
		if opts.EscapeLiterals {
			s = EscapeLiteral(s)
		}
		encoded, err := encoder.Bytes([]byte(s))
		if err != nil {
			return nil, &EncodingError{Field: field, Err: err}
		}
		return encoded, nil
	}

	var buf bytes.Buffer
	buf.WriteString(Header + "\n")
	buf.WriteString("1 0 obj\n")
	buf.WriteString("<< /FDF <<\n")

	template, err := literal("/F", doc.TemplatePath)
	if err != nil {
		return nil, err
	}
	buf.WriteString("/F (")
	buf.Write(template)
	buf.WriteString(")\n")

	buf.WriteString("/Fields [\n")
	for i, field := range doc.Fields {
		if field.Name == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrEmptyFieldName)
		}

		name, err := literal(field.Name, field.Name)
		if err != nil {
			return nil, err
		}
		value, err := literal(field.Name, field.Value)
		if err != nil {
			return nil, err
		}

		buf.WriteString("<< /T (")
		buf.Write(name)
		buf.WriteString(") /V (")
		buf.Write(value)
		buf.WriteString(") >>\n")
	}
	buf.WriteString("] >> >>\n")
	buf.WriteString("endobj\n")
	buf.WriteString("trailer\n")
	buf.WriteString("<< /Root 1 0 R >>\n")
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), nil
}

// WriteFile encodes doc and writes it to path.
// Nothing is created when encoding fails; a partially written file is removed.
func WriteFile(path string, doc Document, opts Options) (err error) {
	data, err := Encode(doc, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create FDF file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close FDF file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write FDF file: %w", err)
	}

	return nil
}

// literalEscaper escapes the characters with meaning inside a PDF literal string
var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// EscapeLiteral escapes backslashes and parentheses for a PDF literal string
func EscapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
