package infopath

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"unicode/utf8"
)

// Well-known InfoPath namespace prefixes
const (
	PrefixDataFormSolution = "dfs"
	PrefixQueryFields      = "q"
	PrefixDataFields       = "d"
	PrefixMyFields         = "my"

	// XSINamespace is the XML-Schema-instance namespace carrying the nil marker
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
)

// NamespaceMap maps a namespace prefix to its URI
type NamespaceMap map[string]string

// NamespaceMode selects how a document's namespaces are resolved
type NamespaceMode string

const (
	// NamespaceModeStatic always uses the built-in table
	NamespaceModeStatic NamespaceMode = "static"
	// NamespaceModeDynamic scans the document for xmlns declarations
	NamespaceModeDynamic NamespaceMode = "dynamic"
)

// NamespaceSource records where a resolved map came from
type NamespaceSource string

const (
	SourceStatic   NamespaceSource = "static"
	SourceScanned  NamespaceSource = "scanned"
	SourceFallback NamespaceSource = "fallback"
)

// Resolution is a namespace map together with how it was obtained
type Resolution struct {
	Map    NamespaceMap
	Source NamespaceSource
	// Err holds the scan or read error that caused a fallback, if any
	Err error
}

// staticNamespaces is the table used by the 2005 form revision
var staticNamespaces = NamespaceMap{
	PrefixDataFormSolution: "http://schemas.microsoft.com/office/infopath/2003/dataFormSolution",
	PrefixQueryFields:      "http://schemas.microsoft.com/office/infopath/2003/ado/queryFields",
	PrefixDataFields:       "http://schemas.microsoft.com/office/infopath/2003/ado/dataFields",
	PrefixMyFields:         "http://schemas.microsoft.com/office/infopath/2003/myXSD/2005-05-04T13:10:26",
}

// xmlnsDecl matches xmlns:prefix="uri" and xmlns:prefix='uri'
var xmlnsDecl = regexp.MustCompile(`xmlns:([A-Za-z_][A-Za-z0-9_.\-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)

// StaticNamespaces returns a fresh copy of the built-in namespace table
func StaticNamespaces() NamespaceMap {
	return staticNamespaces.Clone()
}

// Clone returns an independent copy of the map
func (m NamespaceMap) Clone() NamespaceMap {
	out := make(NamespaceMap, len(m))
	for prefix, uri := range m {
		out[prefix] = uri
	}
	return out
}

// Prefixes returns the map's prefixes in alphabetical order
func (m NamespaceMap) Prefixes() []string {
	prefixes := make([]string, 0, len(m))
	for prefix := range m {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// ScanNamespaces finds every xmlns:prefix declaration in raw document text.
// The first declaration of a prefix wins.
func ScanNamespaces(raw []byte) (NamespaceMap, error) {
	ns := make(NamespaceMap)

	for _, match := range xmlnsDecl.FindAllSubmatch(raw, -1) {
		prefix := string(match[1])
		uri := match[2]
		if uri == nil {
			uri = match[3]
		}
		if !utf8.Valid(uri) {
			return nil, fmt.Errorf("namespace %q has a URI that is not valid UTF-8", prefix)
		}
		if _, seen := ns[prefix]; seen {
			continue
		}
		ns[prefix] = string(uri)
	}

	return ns, nil
}

// ResolveNamespaces builds the namespace map for one document.
//
// In dynamic mode the raw text is scanned; a scan error or an empty result falls back
// to the static table so extraction can still make a best-effort attempt.
func ResolveNamespaces(raw []byte, mode NamespaceMode) Resolution {
	if mode == NamespaceModeStatic {
		return Resolution{Map: StaticNamespaces(), Source: SourceStatic}
	}

	ns, err := ScanNamespaces(raw)
	if err != nil {
		return Resolution{Map: StaticNamespaces(), Source: SourceFallback, Err: err}
	}
	if len(ns) == 0 {
		return Resolution{Map: StaticNamespaces(), Source: SourceFallback}
	}

	return Resolution{Map: ns, Source: SourceScanned}
}

// ResolveNamespacesFile reads path and resolves its namespaces; read failures fall back
// to the static table
func ResolveNamespacesFile(path string, mode NamespaceMode) Resolution {
	if mode == NamespaceModeStatic {
		return Resolution{Map: StaticNamespaces(), Source: SourceStatic}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Resolution{Map: StaticNamespaces(), Source: SourceFallback, Err: err}
	}
	return ResolveNamespaces(raw, mode)
}

// Namespace is a single prefix/URI pair
type Namespace struct {
	Prefix string
	URI    string
}

// MasterSearchOrder returns the namespaces to search for the master element.
//
// Prefixes named in priority come first in the given order, the remaining prefixes
// follow alphabetically. A URI reachable through several prefixes is listed once,
// under the first prefix that reaches it.
func MasterSearchOrder(ns NamespaceMap, priority []string) []Namespace {
	order := make([]Namespace, 0, len(ns))
	seenURI := make(map[string]bool, len(ns))
	seenPrefix := make(map[string]bool, len(priority))

	add := func(prefix string) {
		if seenPrefix[prefix] {
			return
		}
		seenPrefix[prefix] = true

		uri, ok := ns[prefix]
		if !ok || uri == "" || seenURI[uri] {
			return
		}
		seenURI[uri] = true
		order = append(order, Namespace{Prefix: prefix, URI: uri})
	}

	for _, prefix := range priority {
		add(prefix)
	}
	for _, prefix := range ns.Prefixes() {
		add(prefix)
	}

	return order
}
