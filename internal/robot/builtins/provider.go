// Package builtins provides the static catalog of standard-library keywords.
package builtins

import (
	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// Library is the keyword listing of one library.
type Library struct {
	// Name is the library name as imported, e.g. "BuiltIn".
	Name string `json:"library"`

	// Version is the library version the listing was taken from.
	Version string `json:"version,omitempty"`

	// Keywords lists the library's keywords.
	Keywords []Keyword `json:"keywords"`
}

// Keyword is one catalog entry as stored in the data files.
type Keyword struct {
	// Name is the keyword name.
	Name string `json:"name"`

	// Args lists arguments in library documentation notation ("name=default", "*args").
	Args []string `json:"args,omitempty"`

	// Doc is the short documentation.
	Doc string `json:"doc,omitempty"`
}

// Definition converts the entry into a builtin keyword definition owned by library.
func (k Keyword) Definition(library string) index.KeywordDefinition {
	var args []index.ArgumentSpec
	for _, a := range k.Args {
		args = append(args, index.ParseLibdocArgument(a))
	}
	return index.KeywordDefinition{
		Name:   k.Name,
		Doc:    k.Doc,
		Args:   args,
		Origin: index.Builtin{Name: library},
	}
}

// Provider supplies library keyword listings.
type Provider interface {
	// Libraries returns the listings this provider knows about.
	Libraries() ([]Library, error)
}

// ProviderFunc is a function type that implements Provider.
type ProviderFunc func() ([]Library, error)

// Libraries implements the Provider interface.
func (f ProviderFunc) Libraries() ([]Library, error) {
	return f()
}

// ChainProvider chains multiple providers.
type ChainProvider struct {
	providers []Provider
}

// NewChainProvider creates a provider that merges results from all providers.
// A library listed by several providers keeps the first provider's listing.
func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

// Libraries merges listings from all providers.
func (c *ChainProvider) Libraries() ([]Library, error) {
	seen := make(map[string]bool)
	var result []Library
	for _, p := range c.providers {
		libs, err := p.Libraries()
		if err != nil {
			continue // Skip providers that fail
		}
		for _, lib := range libs {
			key := index.NormalizeName(lib.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, lib)
		}
	}
	return result, nil
}
