// Package infopath extracts FDF field values from InfoPath form submissions.
//
// A submission carries its data in two places: the attributes of a repeating
// "master" element (one per data connection namespace) and the children of the
// form's extended fields container. Both are flattened into an ordered list of
// uniquely named field records.
package infopath

import "fmt"

// Default element names used by InfoPath ADO-backed forms
const (
	DefaultMasterElement    = "MASTER_PART1"
	DefaultContainerElement = "myFields"
)

// FieldRecord is one value destined for one FDF field
type FieldRecord struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DateWarning records a value that looked like a date but failed to parse
type DateWarning struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ExtractionResult is the ordered output of extracting one document
type ExtractionResult struct {
	Fields []FieldRecord `json:"fields"`
	// MasterCount is the number of master elements matched across all namespaces
	MasterCount int `json:"master_count"`
	// ExtendedCount is the number of children visited in the extended fields container
	ExtendedCount int           `json:"extended_count"`
	DateWarnings  []DateWarning `json:"date_warnings,omitempty"`
}

// FieldCounter hands out disambiguated names within one document.
// The first occurrence of a base name keeps it, later ones get _2, _3, ...
type FieldCounter map[string]int

// NewFieldCounter creates an empty counter
func NewFieldCounter() FieldCounter {
	return make(FieldCounter)
}

// Next records one more occurrence of base and returns the name to emit
func (c FieldCounter) Next(base string) string {
	c[base]++
	n := c[base]
	if n == 1 {
		return base
	}
	return fmt.Sprintf("%s_%d", base, n)
}

// Strategy is one of the closed set of extraction passes
type Strategy int

const (
	// StrategyMasterAttributes reads the attributes of every master element
	StrategyMasterAttributes Strategy = iota
	// StrategyExtendedFields reads the children of the extended fields container
	StrategyExtendedFields
)

// String returns the strategy name
func (s Strategy) String() string {
	switch s {
	case StrategyMasterAttributes:
		return "master_attributes"
	case StrategyExtendedFields:
		return "extended_fields"
	default:
		return "unknown"
	}
}

// AttributePolicy decides how attribute sub-fields of extended elements are treated
type AttributePolicy string

const (
	// AttributeNormalize runs extended attributes through the same pipeline as other values
	AttributeNormalize AttributePolicy = "normalize"
	// AttributeRaw copies extended attribute values as they appear in the document
	AttributeRaw AttributePolicy = "raw"
)

// Valid reports whether the policy is one of the known values
func (p AttributePolicy) Valid() bool {
	return p == AttributeNormalize || p == AttributeRaw
}
