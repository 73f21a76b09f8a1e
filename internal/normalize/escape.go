package normalize

import (
	"regexp"
	"strings"
)

// entityRef matches a character or entity reference at the start of a string
var entityRef = regexp.MustCompile(`^&(amp|lt|gt|quot|apos|#[0-9]+|#[xX][0-9a-fA-F]+);`)

// EscapeMarkup replaces &, < and > with their entity forms.
//
// Ampersands are handled first and an ampersand that already begins a reference is
// kept as is, so EscapeMarkup(EscapeMarkup(s)) == EscapeMarkup(s).
func EscapeMarkup(value string) string {
	if !strings.ContainsAny(value, "&<>") {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '&':
			if entityRef.MatchString(value[i:]) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
