// Package resolve answers what a name refers to and where it is used.
package resolve

import (
	"errors"
	"regexp"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/symbols"
)

var (
	// ErrNotFound is returned when a name has no definition.
	ErrNotFound = errors.New("symbol not found")

	// ErrNotRenamable is returned for names only defined by libraries or the
	// built-in catalog.
	ErrNotRenamable = errors.New("symbol is not defined in the workspace")

	// ErrInvalidName is returned when a new name cannot be written as one cell.
	ErrInvalidName = errors.New("invalid name")
)

// gherkinPrefix matches the behavior-driven prefixes ignored in keyword calls.
var gherkinPrefix = regexp.MustCompile(`(?i)^(given|when|then|and|but)\s+`)

// DocumentSource provides the documents usage search scans.
type DocumentSource interface {
	// Documents returns the files to scan.
	Documents() []string

	// ReadDocument returns the current text of file.
	ReadDocument(file string) (string, error)
}

// Resolver resolves names against one symbol table.
type Resolver struct {
	table *symbols.Table
	docs  DocumentSource
}

// New creates a resolver over table scanning docs for usages.
func New(table *symbols.Table, docs DocumentSource) *Resolver {
	return &Resolver{table: table, docs: docs}
}

// Table returns the underlying symbol table.
func (r *Resolver) Table() *symbols.Table {
	return r.table
}

// Keywords returns every definition of the keyword called by name. A call
// written with a Given/When/Then/And/But prefix resolves to the bare name when
// the prefixed name is not itself a keyword.
func (r *Resolver) Keywords(name string) []index.KeywordDefinition {
	if defs := r.table.LookupKeyword(name); len(defs) > 0 {
		return defs
	}
	if bare, ok := StripGherkin(name); ok {
		return r.table.LookupKeyword(bare)
	}
	return nil
}

// Keyword returns the keyword a call to name resolves to after precedence
// is applied.
func (r *Resolver) Keyword(name string) (index.KeywordDefinition, bool) {
	return symbols.Best(r.Keywords(name))
}

// Definitions returns the locations of every definition of name.
func (r *Resolver) Definitions(name string, kind index.SymbolKind) []index.Location {
	var locs []index.Location
	switch kind {
	case index.KindKeyword:
		for _, d := range r.Keywords(name) {
			locs = append(locs, d.Location())
		}
	case index.KindVariable:
		for _, d := range r.table.LookupVariable(name) {
			locs = append(locs, d.Location)
		}
	case index.KindTestCase:
		for _, d := range r.table.LookupTestCase(name) {
			locs = append(locs, d.Location)
		}
	}
	return locs
}

// Best returns the location of the preferred definition of name.
func (r *Resolver) Best(name string, kind index.SymbolKind) (index.Location, bool) {
	if kind == index.KindKeyword {
		d, ok := r.Keyword(name)
		return d.Location(), ok
	}
	locs := r.Definitions(name, kind)
	if len(locs) == 0 {
		return index.Location{}, false
	}
	return locs[0], true
}

// StripGherkin removes a leading Given/When/Then/And/But from a keyword call.
func StripGherkin(name string) (string, bool) {
	loc := gherkinPrefix.FindStringIndex(strings.TrimSpace(name))
	if loc == nil {
		return name, false
	}
	return strings.TrimSpace(name)[loc[1]:], true
}
