// Package index extracts keyword, variable and test-case definitions from
// Robot Framework documents.
package index

import (
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/filekind"
)

// SymbolKind is the kind of a named definition.
type SymbolKind int

const (
	KindKeyword SymbolKind = iota
	KindVariable
	KindTestCase
)

// String returns the lowercase name of the kind.
func (k SymbolKind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindVariable:
		return "variable"
	case KindTestCase:
		return "test"
	default:
		return "unknown"
	}
}

// ParseSymbolKind parses the names produced by SymbolKind.String.
func ParseSymbolKind(s string) (SymbolKind, bool) {
	switch strings.ToLower(s) {
	case "keyword", "kw":
		return KindKeyword, true
	case "variable", "var":
		return KindVariable, true
	case "test", "testcase", "task":
		return KindTestCase, true
	}
	return 0, false
}

// BuiltinScheme prefixes the synthetic file of built-in catalog locations.
const BuiltinScheme = "builtin:///"

// Location is a range in a file. Lines are 1-based; columns are 0-based byte
// offsets. A zero EndColumn means the location spans whole lines.
type Location struct {
	File      string
	Line      int
	EndLine   int
	Column    int
	EndColumn int
}

// IsSynthetic reports whether the location points into the built-in catalog
// rather than a real file. Synthetic locations cannot be opened.
func (l Location) IsSynthetic() bool {
	return strings.HasPrefix(l.File, BuiltinScheme)
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l == Location{}
}

// BuiltinLocation returns the synthetic location of a built-in library.
func BuiltinLocation(library string) Location {
	return Location{File: BuiltinScheme + library}
}

// Origin says where a keyword definition came from. The concrete type is one of
// User, Library or Builtin.
type Origin interface {
	// Location returns where the definition lives.
	Location() Location

	isOrigin()
}

// User is a keyword written in a workspace document.
type User struct {
	Loc Location
}

// Library is a keyword provided by an external library, located by introspection.
type Library struct {
	Name string
	Loc  Location
}

// Builtin is a keyword from the static built-in catalog. Source is set once
// introspection has located the keyword's implementation.
type Builtin struct {
	Name   string
	Source Location
}

func (o User) Location() Location    { return o.Loc }
func (o Library) Location() Location { return o.Loc }

func (o Builtin) Location() Location {
	if !o.Source.IsZero() {
		return o.Source
	}
	return BuiltinLocation(o.Name)
}

func (User) isOrigin()    {}
func (Library) isOrigin() {}
func (Builtin) isOrigin() {}

// ArgumentSpec is one declared keyword argument.
type ArgumentSpec struct {
	// Name is the argument name without sigil or braces.
	Name string

	// Sigil is '$', '@' (rest arguments) or '&' (keyword arguments).
	Sigil byte

	// Default is the default value; only meaningful when HasDefault is set.
	Default    string
	HasDefault bool

	// Variadic is true for rest and keyword-argument parameters.
	Variadic bool
}

// Optional reports whether callers may omit the argument.
func (a ArgumentSpec) Optional() bool {
	return a.HasDefault || a.Variadic
}

// Variable returns the argument as it is referenced in a keyword body, e.g. "${name}".
func (a ArgumentSpec) Variable() string {
	sigil := a.Sigil
	if sigil == 0 {
		sigil = '$'
	}
	return string(sigil) + "{" + a.Name + "}"
}

// String formats the argument the way it is declared.
func (a ArgumentSpec) String() string {
	s := a.Variable()
	if a.HasDefault {
		s += "=" + a.Default
	}
	return s
}

// KeywordDefinition is a user, library or built-in keyword.
type KeywordDefinition struct {
	Name   string
	Doc    string
	Args   []ArgumentSpec
	Origin Origin
}

// Location returns the location of the definition.
func (d KeywordDefinition) Location() Location {
	if d.Origin == nil {
		return Location{}
	}
	return d.Origin.Location()
}

// LibraryName returns the owning library, or "" for user keywords.
func (d KeywordDefinition) LibraryName() string {
	switch o := d.Origin.(type) {
	case Library:
		return o.Name
	case Builtin:
		return o.Name
	}
	return ""
}

// Signature renders the keyword name followed by its arguments.
func (d KeywordDefinition) Signature() string {
	if len(d.Args) == 0 {
		return d.Name
	}
	parts := make([]string, 0, len(d.Args)+1)
	parts = append(parts, d.Name)
	for _, a := range d.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, "    ")
}

// Scope is the visibility of a variable.
type Scope int

const (
	ScopeSuite Scope = iota
	ScopeTest
	ScopeKeyword
	ScopeGlobal
)

// String returns the lowercase scope name.
func (s Scope) String() string {
	switch s {
	case ScopeTest:
		return "test"
	case ScopeKeyword:
		return "keyword"
	case ScopeGlobal:
		return "global"
	default:
		return "suite"
	}
}

// VariableDefinition is a variable assignment.
type VariableDefinition struct {
	// Name includes the sigil and braces, e.g. "${HOST}".
	Name  string
	Value string
	Scope Scope

	// Owner names the test or keyword owning a test- or keyword-scoped variable.
	Owner    string
	Location Location
}

// TestCaseDefinition is a test case or task.
type TestCaseDefinition struct {
	Name     string
	Doc      string
	Tags     []string
	Location Location
}

// ImportKind is the kind of a settings-section import.
type ImportKind string

const (
	ImportLibrary   ImportKind = "Library"
	ImportResource  ImportKind = "Resource"
	ImportVariables ImportKind = "Variables"
)

// Import is a Library, Resource or Variables setting.
type Import struct {
	Kind ImportKind
	Name string
	Args []string
	Line int
}

// FileDefinitions holds everything extracted from one document.
type FileDefinitions struct {
	// Path identifies the document.
	Path string

	// Kind is the document kind (suite, resource, ...).
	Kind filekind.Kind

	Keywords  []KeywordDefinition
	Variables []VariableDefinition
	TestCases []TestCaseDefinition
	Imports   []Import
}

// Libraries returns the names of the libraries the document imports.
func (f *FileDefinitions) Libraries() []string {
	var libs []string
	for _, imp := range f.Imports {
		if imp.Kind == ImportLibrary {
			libs = append(libs, imp.Name)
		}
	}
	return libs
}
