package normalize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxLatin1 is the highest code point representable in a single-byte FDF string
const maxLatin1 = 0xFF

// DefaultPlaceholder replaces characters that cannot be represented in Latin-1
const DefaultPlaceholder = "?"

// EncodingPolicy decides what happens to characters outside Latin-1
type EncodingPolicy string

const (
	// EncodingReplace substitutes the placeholder for each unrepresentable character
	EncodingReplace EncodingPolicy = "replace"
	// EncodingDrop removes unrepresentable characters
	EncodingDrop EncodingPolicy = "drop"
	// EncodingStrict fails the value with an EncodingError
	EncodingStrict EncodingPolicy = "strict"
)

// Valid reports whether the policy is one of the known values
func (p EncodingPolicy) Valid() bool {
	switch p {
	case EncodingReplace, EncodingDrop, EncodingStrict:
		return true
	default:
		return false
	}
}

// EncodingError reports a character that survived sanitization but has no Latin-1 form
type EncodingError struct {
	Rune  rune
	Value string
}

// Error implements the error interface
func (e *EncodingError) Error() string {
	return fmt.Sprintf("character %U (%q) cannot be encoded as Latin-1 in value %q", e.Rune, e.Rune, e.Value)
}

// typographic maps smart punctuation produced by word processors to plain ASCII
var typographic = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2013", "-",
	"\u2014", "--",
	"\u2026", "...",
	"\u00a0", " ",
)

// Sanitizer makes text safe for single-byte FDF output
type Sanitizer struct {
	Policy      EncodingPolicy
	Placeholder string
}

// NewSanitizer creates a sanitizer, defaulting an empty policy to replace
func NewSanitizer(policy EncodingPolicy, placeholder string) Sanitizer {
	if policy == "" {
		policy = EncodingReplace
	}
	if placeholder == "" && policy == EncodingReplace {
		placeholder = DefaultPlaceholder
	}
	return Sanitizer{Policy: policy, Placeholder: placeholder}
}

// Sanitize replaces typographic characters and resolves anything outside Latin-1.
//
// Characters above U+00FF are first folded through compatibility decomposition so
// that, for example, "ő" becomes "o" and "™" becomes "TM". Whatever is still out of
// range is handled according to the policy.
func (s Sanitizer) Sanitize(value string) (string, error) {
	value = typographic.Replace(value)
	if IsLatin1(value) {
		return value, nil
	}

	var b strings.Builder
	b.Grow(len(value))

	for _, r := range value {
		if r <= maxLatin1 {
			b.WriteRune(r)
			continue
		}

		if folded, ok := foldRune(r); ok {
			b.WriteString(folded)
			continue
		}

		switch s.Policy {
		case EncodingStrict:
			return "", &EncodingError{Rune: r, Value: value}
		case EncodingDrop:
			// nothing written
		default:
			b.WriteString(s.Placeholder)
		}
	}

	return b.String(), nil
}

// IsLatin1 reports whether every rune of s fits in a single Latin-1 byte
func IsLatin1(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			for _, r := range s[i:] {
				if r > maxLatin1 {
					return false
				}
			}
			return true
		}
	}
	return true
}

// foldRune decomposes r and keeps the Latin-1 base characters, dropping combining marks
func foldRune(r rune) (string, bool) {
	decomposed := norm.NFKD.String(string(r))

	var b strings.Builder
	for _, d := range decomposed {
		if unicode.Is(unicode.Mn, d) {
			continue
		}
		if d > maxLatin1 {
			return "", false
		}
		b.WriteRune(d)
	}

	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
