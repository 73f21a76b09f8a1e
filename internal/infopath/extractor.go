package infopath

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/normalize"
)

// Options configures an Extractor
type Options struct {
	// MasterElement is the local name of the repeating record element
	MasterElement string
	// MasterPriority lists prefixes searched before the alphabetical remainder
	MasterPriority []string
	// ContainerElement and ContainerPrefix locate the extended fields container
	ContainerElement string
	ContainerPrefix  string
	// DataPrefix is the namespace prefix of extended field elements
	DataPrefix string
	// ExtendedAttributes selects the policy for extended attribute sub-fields
	ExtendedAttributes AttributePolicy
	// Strategies run in order; empty means master attributes then extended fields
	Strategies []Strategy
	// Pipeline normalizes values; nil means normalize.DefaultPipeline()
	Pipeline *normalize.Pipeline
}

// DefaultOptions returns options matching the InfoPath ADO form layout
func DefaultOptions() Options {
	return Options{
		MasterElement:      DefaultMasterElement,
		ContainerElement:   DefaultContainerElement,
		ContainerPrefix:    PrefixDataFormSolution,
		DataPrefix:         PrefixMyFields,
		ExtendedAttributes: AttributeNormalize,
		Strategies:         []Strategy{StrategyMasterAttributes, StrategyExtendedFields},
	}
}

// Extractor flattens InfoPath documents into field records
type Extractor struct {
	opts     Options
	pipeline *normalize.Pipeline
}

// NewExtractor creates an extractor, filling unset options with defaults
func NewExtractor(opts Options) *Extractor {
	defaults := DefaultOptions()
	if opts.MasterElement == "" {
		opts.MasterElement = defaults.MasterElement
	}
	if opts.ContainerElement == "" {
		opts.ContainerElement = defaults.ContainerElement
	}
	if opts.ContainerPrefix == "" {
		opts.ContainerPrefix = defaults.ContainerPrefix
	}
	if opts.DataPrefix == "" {
		opts.DataPrefix = defaults.DataPrefix
	}
	if opts.ExtendedAttributes == "" {
		opts.ExtendedAttributes = defaults.ExtendedAttributes
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = defaults.Strategies
	}

	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = normalize.DefaultPipeline()
	}

	return &Extractor{opts: opts, pipeline: pipeline}
}

// Options returns the effective options
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract walks doc using ns and returns the ordered field records.
//
// Name counters live only for the duration of this call. The master strategy and the
// extended strategy each get their own counter.
func (e *Extractor) Extract(doc *etree.Document, ns NamespaceMap) (*ExtractionResult, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	result := &ExtractionResult{Fields: make([]FieldRecord, 0)}

	for _, strategy := range e.opts.Strategies {
		var err error
		switch strategy {
		case StrategyMasterAttributes:
			err = e.extractMasterAttributes(doc.Root(), ns, NewFieldCounter(), result)
		case StrategyExtendedFields:
			err = e.extractExtendedFields(doc.Root(), ns, NewFieldCounter(), result)
		default:
			err = fmt.Errorf("unknown extraction strategy %d", strategy)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy, err)
		}
	}

	return result, nil
}

// extractMasterAttributes emits one record per non-blank master element attribute
func (e *Extractor) extractMasterAttributes(root *etree.Element, ns NamespaceMap, counter FieldCounter, result *ExtractionResult) error {
	for _, namespace := range MasterSearchOrder(ns, e.opts.MasterPriority) {
		masters := findDescendants(root, namespace.URI, e.opts.MasterElement)
		// a submission saved from a single data connection can be the master itself
		if root.Tag == e.opts.MasterElement && root.NamespaceURI() == namespace.URI {
			masters = append([]*etree.Element{root}, masters...)
		}
		result.MasterCount += len(masters)

		for _, master := range masters {
			for i := range master.Attr {
				attr := &master.Attr[i]
				if isNamespaceDecl(attr) || attr.NamespaceURI() == XSINamespace {
					continue
				}
				if isBlank(attr.Value) {
					continue
				}

				name := counter.Next(attr.Key)
				if err := e.appendNormalized(result, name, attr.Value); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// extractExtendedFields emits records for the data-namespace children of the container
func (e *Extractor) extractExtendedFields(root *etree.Element, ns NamespaceMap, counter FieldCounter, result *ExtractionResult) error {
	dataURI, ok := ns[e.opts.DataPrefix]
	if !ok || dataURI == "" {
		return nil
	}

	container := root
	if containerURI, ok := ns[e.opts.ContainerPrefix]; ok {
		if found := findDescendants(root, containerURI, e.opts.ContainerElement); len(found) > 0 {
			container = found[0]
		}
	}

	for _, child := range container.ChildElements() {
		result.ExtendedCount++
		if child.NamespaceURI() != dataURI {
			continue
		}

		for i := range child.Attr {
			attr := &child.Attr[i]
			if isNamespaceDecl(attr) || attr.NamespaceURI() != dataURI {
				continue
			}
			if isBlank(attr.Value) {
				continue
			}

			name := counter.Next(child.Tag + "_" + attr.Key)
			if e.opts.ExtendedAttributes == AttributeRaw {
				result.Fields = append(result.Fields, FieldRecord{Name: name, Value: attr.Value})
				continue
			}
			if err := e.appendNormalized(result, name, attr.Value); err != nil {
				return err
			}
		}

		text := child.Text()
		if isBlank(text) || isNil(child) {
			continue
		}
		if err := e.appendNormalized(result, counter.Next(child.Tag), text); err != nil {
			return err
		}
	}

	return nil
}

// appendNormalized runs value through the pipeline and appends the record
func (e *Extractor) appendNormalized(result *ExtractionResult, name, value string) error {
	normalized, err := e.pipeline.Apply(value)
	if normalized.DateWarning {
		result.DateWarnings = append(result.DateWarnings, DateWarning{Field: name, Value: value})
	}
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}

	result.Fields = append(result.Fields, FieldRecord{Name: name, Value: normalized.Value})
	return nil
}

// findDescendants returns descendants of root (root excluded) with the given
// namespace URI and local name, in document order
func findDescendants(root *etree.Element, uri, local string) []*etree.Element {
	var found []*etree.Element

	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			if child.Tag == local && child.NamespaceURI() == uri {
				found = append(found, child)
			}
			walk(child)
		}
	}
	walk(root)

	return found
}

func isNamespaceDecl(attr *etree.Attr) bool {
	return attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns")
}

// isNil reports whether el carries xsi:nil="true"
func isNil(el *etree.Element) bool {
	for i := range el.Attr {
		attr := &el.Attr[i]
		if attr.Key != "nil" || attr.NamespaceURI() != XSINamespace {
			continue
		}
		v := strings.TrimSpace(attr.Value)
		return v == "true" || v == "1"
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
