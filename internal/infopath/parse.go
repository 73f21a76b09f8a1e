package infopath

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseDocument parses raw XML into an element tree.
// Documents declaring a non UTF-8 encoding are decoded through the IANA charset index.
// Input with more than one root element, text outside the root or a repeated
// attribute is rejected even where the tokenizer would accept it.
func ParseDocument(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader

	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, utf8BOM))
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if err := checkWellFormed(raw); err != nil {
		return nil, err
	}

	return doc, nil
}

// checkWellFormed catches the shapes the tree builder tolerates: etree keeps every
// top-level token and collapses a repeated attribute into one.
func checkWellFormed(raw []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charsetReader

	depth, roots := 0, 0
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fmt.Errorf("document has more than one root element (second is <%s>)", qualified(t.Name))
				}
			}
			if err := checkAttributes(t); err != nil {
				return err
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("text outside the root element: %q", strings.TrimSpace(string(t)))
			}
		}
	}
}

func checkAttributes(el xml.StartElement) error {
	if len(el.Attr) < 2 {
		return nil
	}
	seen := make(map[xml.Name]bool, len(el.Attr))
	for _, attr := range el.Attr {
		if seen[attr.Name] {
			return fmt.Errorf("attribute %s repeated on element <%s>", qualified(attr.Name), qualified(el.Name))
		}
		seen[attr.Name] = true
	}
	return nil
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
