package builtins

import (
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// Catalog is an immutable table of built-in keywords keyed by normalized name.
// It is built once and shared by every symbol table; no method mutates it.
type Catalog struct {
	byName    map[string][]index.KeywordDefinition
	all       []index.KeywordDefinition
	libraries []string
}

// NewCatalog builds a catalog from definitions. Definitions without an origin
// are attributed to the "BuiltIn" library.
func NewCatalog(defs ...index.KeywordDefinition) *Catalog {
	c := &Catalog{byName: make(map[string][]index.KeywordDefinition)}
	seenLib := make(map[string]bool)

	for _, d := range defs {
		if _, ok := d.Origin.(index.Builtin); !ok {
			d.Origin = index.Builtin{Name: "BuiltIn"}
		}
		key := index.NormalizeName(d.Name)
		c.byName[key] = append(c.byName[key], d)
		c.all = append(c.all, d)

		lib := d.LibraryName()
		if !seenLib[lib] {
			seenLib[lib] = true
			c.libraries = append(c.libraries, lib)
		}
	}
	return c
}

// NewCatalogFromProvider builds a catalog from every library a provider lists.
func NewCatalogFromProvider(p Provider) (*Catalog, error) {
	libs, err := p.Libraries()
	if err != nil {
		return nil, err
	}
	var defs []index.KeywordDefinition
	for _, lib := range libs {
		for _, kw := range lib.Keywords {
			defs = append(defs, kw.Definition(lib.Name))
		}
	}
	return NewCatalog(defs...), nil
}

// Lookup returns the entries named name. A "Library.Keyword" qualified name
// only matches entries of that library.
func (c *Catalog) Lookup(name string) []index.KeywordDefinition {
	if c == nil {
		return nil
	}
	if defs := c.byName[index.NormalizeName(name)]; len(defs) > 0 {
		return clone(defs)
	}

	lib, kw, ok := SplitQualified(name)
	if !ok {
		return nil
	}
	var result []index.KeywordDefinition
	for _, d := range c.byName[index.NormalizeName(kw)] {
		if index.NormalizeName(d.LibraryName()) == index.NormalizeName(lib) {
			result = append(result, d)
		}
	}
	return result
}

// All returns every entry in catalog order.
func (c *Catalog) All() []index.KeywordDefinition {
	if c == nil {
		return nil
	}
	return clone(c.all)
}

// Libraries returns the library names present in the catalog.
func (c *Catalog) Libraries() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.libraries...)
}

// HasLibrary reports whether the catalog holds keywords of library.
func (c *Catalog) HasLibrary(library string) bool {
	key := index.NormalizeName(library)
	for _, l := range c.Libraries() {
		if index.NormalizeName(l) == key {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.all)
}

// SplitQualified splits "Library.Keyword" at its last dot.
func SplitQualified(name string) (library, keyword string, ok bool) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

func clone(defs []index.KeywordDefinition) []index.KeywordDefinition {
	if len(defs) == 0 {
		return nil
	}
	return append([]index.KeywordDefinition(nil), defs...)
}
