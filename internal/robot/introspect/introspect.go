// Package introspect asks an external Python interpreter where library
// keywords are implemented.
package introspect

import (
	"context"
	"errors"
	"sync"

	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// ErrNoInterpreter is returned when no interpreter is available.
var ErrNoInterpreter = errors.New("no python interpreter available")

// KeywordSource describes one keyword as reported by the interpreter.
type KeywordSource struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	Doc  string   `json:"doc,omitempty"`

	// Source is the implementing file; Line is 1-based, 0 when unknown.
	Source string `json:"source,omitempty"`
	Line   int    `json:"lineno,omitempty"`
}

// Location returns the source location, or the zero Location when the
// interpreter did not report one.
func (k KeywordSource) Location() index.Location {
	if k.Source == "" {
		return index.Location{}
	}
	return index.Location{File: k.Source, Line: max(k.Line, 1), EndLine: max(k.Line, 1)}
}

// Introspector lists the keywords of a library.
type Introspector interface {
	Keywords(ctx context.Context, library string) ([]KeywordSource, error)
}

// Func adapts a function to the Introspector interface.
type Func func(ctx context.Context, library string) ([]KeywordSource, error)

// Keywords implements Introspector.
func (f Func) Keywords(ctx context.Context, library string) ([]KeywordSource, error) {
	return f(ctx, library)
}

// None is an Introspector for roots without an interpreter.
var None Introspector = Func(func(context.Context, string) ([]KeywordSource, error) {
	return nil, ErrNoInterpreter
})

// Definitions converts introspection results into library keyword definitions.
func Definitions(library string, sources []KeywordSource) []index.KeywordDefinition {
	defs := make([]index.KeywordDefinition, 0, len(sources))
	for _, s := range sources {
		var args []index.ArgumentSpec
		for _, a := range s.Args {
			args = append(args, index.ParseLibdocArgument(a))
		}
		defs = append(defs, index.KeywordDefinition{
			Name:   s.Name,
			Doc:    s.Doc,
			Args:   args,
			Origin: index.Library{Name: library, Loc: s.Location()},
		})
	}
	return defs
}

// Locations returns the reported source locations keyed by keyword name.
// Keywords without a source are left out.
func Locations(sources []KeywordSource) map[string]index.Location {
	locs := make(map[string]index.Location, len(sources))
	for _, s := range sources {
		if loc := s.Location(); !loc.IsZero() {
			locs[s.Name] = loc
		}
	}
	return locs
}

// Cached memoizes results per library, failures included, so a missing
// library is not looked up on every re-index.
type Cached struct {
	inner Introspector

	mu      sync.Mutex
	results map[string]cachedResult
}

type cachedResult struct {
	keywords []KeywordSource
	err      error
}

// NewCached wraps inner with a per-library cache.
func NewCached(inner Introspector) *Cached {
	return &Cached{inner: inner, results: make(map[string]cachedResult)}
}

// Keywords implements Introspector. Context errors are not cached.
func (c *Cached) Keywords(ctx context.Context, library string) ([]KeywordSource, error) {
	key := index.NormalizeName(library)

	c.mu.Lock()
	r, ok := c.results[key]
	c.mu.Unlock()
	if ok {
		return r.keywords, r.err
	}

	keywords, err := c.inner.Keywords(ctx, library)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	c.mu.Lock()
	c.results[key] = cachedResult{keywords: keywords, err: err}
	c.mu.Unlock()
	return keywords, err
}

// Invalidate forgets every cached result.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = make(map[string]cachedResult)
}
