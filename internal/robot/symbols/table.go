// Package symbols holds the per-root symbol table of keywords, variables and
// test cases.
package symbols

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/albertocavalcante/rfls/internal/robot/builtins"
	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// Table maps normalized names to definitions for one workspace root.
//
// User definitions are stored per file and replaced wholesale when a file is
// re-parsed. Library keywords found by introspection are stored per library and
// survive per-file operations. The built-in catalog is shared and never
// modified; precise source locations for its entries are kept in an overlay
// owned by the table.
type Table struct {
	mu sync.RWMutex

	catalog *builtins.Catalog

	files     map[string]*index.FileDefinitions
	fileOrder []string

	keywords  map[string][]index.KeywordDefinition
	variables map[string][]index.VariableDefinition
	tests     map[string][]index.TestCaseDefinition

	// libraries holds introspected library keywords by normalized library name.
	libraries map[string][]index.KeywordDefinition

	// precise maps a builtin library and keyword to its introspected source.
	precise map[preciseKey]index.Location
}

type preciseKey struct {
	library string
	keyword string
}

// New creates an empty table backed by catalog. A nil catalog is allowed and
// behaves as an empty one.
func New(catalog *builtins.Catalog) *Table {
	return &Table{
		catalog:   catalog,
		files:     make(map[string]*index.FileDefinitions),
		keywords:  make(map[string][]index.KeywordDefinition),
		variables: make(map[string][]index.VariableDefinition),
		tests:     make(map[string][]index.TestCaseDefinition),
		libraries: make(map[string][]index.KeywordDefinition),
		precise:   make(map[preciseKey]index.Location),
	}
}

// Catalog returns the built-in catalog the table falls back to.
func (t *Table) Catalog() *builtins.Catalog {
	return t.catalog
}

// UpsertFile replaces every definition located in file with defs. Readers see
// either the old entries or the new ones, never a mix. A nil defs removes the
// file.
func (t *Table) UpsertFile(file string, defs *index.FileDefinitions) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(file)
	if defs == nil {
		return
	}

	stored := *defs
	stored.Path = file
	t.files[file] = &stored
	t.fileOrder = append(t.fileOrder, file)

	for _, kw := range stored.Keywords {
		key := index.NormalizeName(kw.Name)
		t.keywords[key] = append(t.keywords[key], kw)
	}
	for _, v := range stored.Variables {
		key := index.VariableKey(v.Name)
		t.variables[key] = append(t.variables[key], v)
	}
	for _, tc := range stored.TestCases {
		key := index.NormalizeName(tc.Name)
		t.tests[key] = append(t.tests[key], tc)
	}
}

// RemoveFile drops every definition located in file.
func (t *Table) RemoveFile(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeLocked(file)
}

func (t *Table) removeLocked(file string) {
	if _, ok := t.files[file]; !ok {
		return
	}
	delete(t.files, file)
	t.fileOrder = slices.DeleteFunc(t.fileOrder, func(f string) bool { return f == file })

	t.keywords = filterMap(t.keywords, func(d index.KeywordDefinition) bool {
		return d.Location().File == file
	})
	t.variables = filterMap(t.variables, func(d index.VariableDefinition) bool {
		return d.Location.File == file
	})
	t.tests = filterMap(t.tests, func(d index.TestCaseDefinition) bool {
		return d.Location.File == file
	})
}

// filterMap removes the values matching drop, deleting names left empty.
func filterMap[T any](m map[string][]T, drop func(T) bool) map[string][]T {
	for key, defs := range m {
		kept := slices.DeleteFunc(defs, drop)
		if len(kept) == 0 {
			delete(m, key)
			continue
		}
		m[key] = kept
	}
	return m
}

// ClearAll drops every user definition. Library keywords and the built-in
// catalog are kept.
func (t *Table) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files = make(map[string]*index.FileDefinitions)
	t.fileOrder = nil
	t.keywords = make(map[string][]index.KeywordDefinition)
	t.variables = make(map[string][]index.VariableDefinition)
	t.tests = make(map[string][]index.TestCaseDefinition)
}

// SetLibrary replaces the introspected keywords of library. Definitions are
// stored with a Library origin.
func (t *Table) SetLibrary(library string, defs []index.KeywordDefinition) {
	stored := make([]index.KeywordDefinition, 0, len(defs))
	for _, d := range defs {
		d.Origin = index.Library{Name: library, Loc: d.Location()}
		stored = append(stored, d)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := index.NormalizeName(library)
	if len(stored) == 0 {
		delete(t.libraries, key)
		return
	}
	t.libraries[key] = stored
}

// HasLibrary reports whether keywords of library were set.
func (t *Table) HasLibrary(library string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.libraries[index.NormalizeName(library)]
	return ok
}

// ClearLibraries drops all introspected library keywords and precise
// built-in locations, e.g. when the root's interpreter changes.
func (t *Table) ClearLibraries() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.libraries = make(map[string][]index.KeywordDefinition)
	t.precise = make(map[preciseKey]index.Location)
}

// SetPreciseLocations records introspected source locations for built-in
// keywords of library, keyed by keyword name.
func (t *Table) SetPreciseLocations(library string, locs map[string]index.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lib := index.NormalizeName(library)
	for name, loc := range locs {
		t.precise[preciseKey{library: lib, keyword: index.NormalizeName(name)}] = loc
	}
}

// LookupKeyword returns every keyword named name: user definitions in
// discovery order, then library keywords, then built-in catalog entries.
// A "Prefix.Keyword" name that matches nothing directly is retried with the
// prefix read as a library or resource file name.
func (t *Table) LookupKeyword(name string) []index.KeywordDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := index.NormalizeName(name)
	if key == "" {
		return nil
	}

	var result []index.KeywordDefinition
	result = append(result, t.keywords[key]...)
	for _, lib := range t.sortedLibrariesLocked() {
		for _, d := range t.libraries[lib] {
			if index.NormalizeName(d.Name) == key {
				result = append(result, d)
			}
		}
	}
	result = append(result, t.builtinLocked(t.catalog.Lookup(name))...)
	if len(result) > 0 {
		return result
	}

	return t.lookupQualifiedLocked(name)
}

func (t *Table) lookupQualifiedLocked(name string) []index.KeywordDefinition {
	prefix, kw, ok := builtins.SplitQualified(name)
	if !ok {
		return nil
	}
	qualifier := index.NormalizeName(prefix)
	key := index.NormalizeName(kw)

	var result []index.KeywordDefinition
	for _, d := range t.keywords[key] {
		base := filepath.Base(d.Location().File)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if index.NormalizeName(base) == qualifier {
			result = append(result, d)
		}
	}
	for _, d := range t.libraries[qualifier] {
		if index.NormalizeName(d.Name) == key {
			result = append(result, d)
		}
	}
	// The catalog applies its own qualified matching.
	result = append(result, t.builtinLocked(t.catalog.Lookup(name))...)
	return result
}

// builtinLocked applies the precise-location overlay to catalog entries.
func (t *Table) builtinLocked(defs []index.KeywordDefinition) []index.KeywordDefinition {
	if len(t.precise) == 0 {
		return defs
	}
	for i, d := range defs {
		b, ok := d.Origin.(index.Builtin)
		if !ok {
			continue
		}
		k := preciseKey{library: index.NormalizeName(b.Name), keyword: index.NormalizeName(d.Name)}
		if loc, ok := t.precise[k]; ok {
			b.Source = loc
			defs[i].Origin = b
		}
	}
	return defs
}

// LookupVariable returns every variable whose name matches name. The sigil is
// not significant: "${X}", "@{X}" and "X" are the same variable.
func (t *Table) LookupVariable(name string) []index.VariableDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.variables[index.VariableKey(name)])
}

// LookupTestCase returns every test case named name.
func (t *Table) LookupTestCase(name string) []index.TestCaseDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.tests[index.NormalizeName(name)])
}

// AllKeywords returns user keywords in file discovery order, then library
// keywords, then the built-in catalog.
func (t *Table) AllKeywords() []index.KeywordDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []index.KeywordDefinition
	for _, f := range t.fileOrder {
		result = append(result, t.files[f].Keywords...)
	}
	for _, lib := range t.sortedLibrariesLocked() {
		result = append(result, t.libraries[lib]...)
	}
	return append(result, t.builtinLocked(t.catalog.All())...)
}

// UserKeywords returns user keywords in file discovery order.
func (t *Table) UserKeywords() []index.KeywordDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []index.KeywordDefinition
	for _, f := range t.fileOrder {
		result = append(result, t.files[f].Keywords...)
	}
	return result
}

// AllVariables returns every variable in file discovery order.
func (t *Table) AllVariables() []index.VariableDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []index.VariableDefinition
	for _, f := range t.fileOrder {
		result = append(result, t.files[f].Variables...)
	}
	return result
}

// AllTestCases returns every test case in file discovery order.
func (t *Table) AllTestCases() []index.TestCaseDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []index.TestCaseDefinition
	for _, f := range t.fileOrder {
		result = append(result, t.files[f].TestCases...)
	}
	return result
}

// Files returns the indexed files in discovery order.
func (t *Table) Files() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.fileOrder)
}

// File returns the definitions stored for file, or nil.
func (t *Table) File(file string) *index.FileDefinitions {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, ok := t.files[file]
	if !ok {
		return nil
	}
	copied := *f
	return &copied
}

// Stats summarizes the table contents.
type Stats struct {
	Files     int
	Keywords  int
	Variables int
	TestCases int
	Libraries int
}

// Stats returns the number of user files and definitions held.
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var s Stats
	s.Files = len(t.files)
	for _, f := range t.files {
		s.Keywords += len(f.Keywords)
		s.Variables += len(f.Variables)
		s.TestCases += len(f.TestCases)
	}
	s.Libraries = len(t.libraries)
	return s
}

func (t *Table) sortedLibrariesLocked() []string {
	libs := make([]string, 0, len(t.libraries))
	for lib := range t.libraries {
		libs = append(libs, lib)
	}
	slices.Sort(libs)
	return libs
}
