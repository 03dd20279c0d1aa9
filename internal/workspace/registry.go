package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/rfls/internal/rfconfig"
	"github.com/albertocavalcante/rfls/internal/robot/builtins"
	"github.com/albertocavalcante/rfls/internal/robot/builtins/loader"
	"github.com/albertocavalcante/rfls/internal/robot/introspect"
)

// ErrUnknownRoot is returned for roots that were never added.
var ErrUnknownRoot = errors.New("unknown workspace root")

// EventKind identifies a root lifecycle event.
type EventKind int

const (
	RootAdded EventKind = iota
	RootRemoved
	RootReindexed
)

func (k EventKind) String() string {
	switch k {
	case RootAdded:
		return "added"
	case RootRemoved:
		return "removed"
	case RootReindexed:
		return "reindexed"
	default:
		return "unknown"
	}
}

// Event reports a change in the set of roots or in a root's index.
type Event struct {
	Kind  EventKind
	Root  string
	Stats Stats
}

// Factory creates the indexer of a new root.
type Factory func(root string) (*Indexer, error)

// Registry owns one Indexer per workspace root. Roots share nothing but the
// document reader and catalog handed to the factory.
type Registry struct {
	factory Factory

	mu        sync.RWMutex
	roots     map[string]*entry
	listeners []func(Event)
}

type entry struct {
	ix      *Indexer
	watcher *Watcher
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, roots: make(map[string]*entry)}
}

// OnEvent registers fn to be called after every lifecycle event.
// Listeners run synchronously on the goroutine that caused the event.
func (r *Registry) OnEvent(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, fn)
}

func (r *Registry) emit(ev Event) {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Add creates and indexes the indexer of root. Adding a known root returns
// the existing indexer.
func (r *Registry) Add(ctx context.Context, root string) (*Indexer, error) {
	root = filepath.Clean(root)

	r.mu.RLock()
	e, ok := r.roots[root]
	r.mu.RUnlock()
	if ok {
		return e.ix, nil
	}

	ix, err := r.factory(root)
	if err != nil {
		return nil, fmt.Errorf("creating indexer for %s: %w", root, err)
	}

	r.mu.Lock()
	if e, ok := r.roots[root]; ok {
		r.mu.Unlock()
		ix.Close()
		return e.ix, nil
	}
	r.roots[root] = &entry{ix: ix}
	r.mu.Unlock()

	stats, err := ix.IndexAll(ctx)
	if err != nil {
		log.Printf("registry: indexing %s: %v", root, err)
	}
	r.emit(Event{Kind: RootAdded, Root: root, Stats: stats})
	return ix, nil
}

// Watch starts a filesystem watcher feeding root's indexer.
func (r *Registry) Watch(root string) error {
	root = filepath.Clean(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.roots[root]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	if e.watcher != nil {
		return nil
	}
	w, err := NewWatcher(root, e.ix.Config().Index.Exclude, e.ix)
	if err != nil {
		return err
	}
	e.watcher = w
	return nil
}

// Remove detaches root and drops its index.
func (r *Registry) Remove(root string) error {
	root = filepath.Clean(root)

	r.mu.Lock()
	e, ok := r.roots[root]
	if ok {
		delete(r.roots, root)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	e.close()
	r.emit(Event{Kind: RootRemoved, Root: root})
	return nil
}

// Get returns the indexer of root.
func (r *Registry) Get(root string) (*Indexer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.roots[filepath.Clean(root)]
	if !ok {
		return nil, false
	}
	return e.ix, true
}

// ForPath returns the indexer of the innermost root containing path.
func (r *Registry) ForPath(path string) (*Indexer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Indexer
	for root, e := range r.roots {
		if !e.ix.Owns(path) {
			continue
		}
		if best == nil || len(root) > len(best.Root()) {
			best = e.ix
		}
	}
	return best, best != nil
}

// Roots returns the registered roots, sorted.
func (r *Registry) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roots := make([]string, 0, len(r.roots))
	for root := range r.roots {
		roots = append(roots, root)
	}
	slices.Sort(roots)
	return roots
}

// Indexers returns the indexers of all roots, sorted by root.
func (r *Registry) Indexers() []*Indexer {
	var out []*Indexer
	for _, root := range r.Roots() {
		if ix, ok := r.Get(root); ok {
			out = append(out, ix)
		}
	}
	return out
}

// Reindex fully re-indexes one root.
func (r *Registry) Reindex(ctx context.Context, root string) (Stats, error) {
	ix, ok := r.Get(root)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	stats, err := ix.Reindex(ctx)
	if err != nil {
		return stats, fmt.Errorf("reindexing %s: %w", ix.Root(), err)
	}
	r.emit(Event{Kind: RootReindexed, Root: ix.Root(), Stats: stats})
	return stats, nil
}

// ReindexAll re-indexes every root concurrently.
func (r *Registry) ReindexAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, root := range r.Roots() {
		g.Go(func() error {
			_, err := r.Reindex(ctx, root)
			return err
		})
	}
	return g.Wait()
}

// Close detaches every root without emitting events.
func (r *Registry) Close() {
	r.mu.Lock()
	roots := r.roots
	r.roots = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range roots {
		e.close()
	}
}

func (e *entry) close() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			log.Printf("registry: closing watcher for %s: %v", e.ix.Root(), err)
		}
	}
	e.ix.Close()
	e.ix.Table().ClearAll()
	e.ix.Table().ClearLibraries()
}

// FactoryOptions configures DefaultFactory.
type FactoryOptions struct {
	// Reader is shared by all roots; nil reads from disk.
	Reader DocumentReader

	// NoIntrospection disables library introspection for every root.
	NoIntrospection bool
}

// DefaultFactory creates indexers configured from each root's discovered
// configuration. A root whose configuration cannot be loaded falls back to
// the defaults.
func DefaultFactory(opts FactoryOptions) Factory {
	return func(root string) (*Indexer, error) {
		cfg, path, err := rfconfig.DiscoverConfig(root)
		if err != nil {
			log.Printf("registry: config for %s: %v; using defaults", root, err)
			cfg = rfconfig.DefaultConfig()
		} else if path != "" {
			log.Printf("registry: %s uses %s", root, path)
		}

		catalog, err := loadCatalog(cfg)
		if err != nil {
			return nil, err
		}

		var intro introspect.Introspector = introspect.None
		if !opts.NoIntrospection && !cfg.Python.DisableIntrospection {
			intro = introspect.NewCached(introspect.NewPython(cfg.Python.Interpreter, cfg.Python.Path, root))
		}

		return NewIndexer(root, Options{
			Config:       cfg,
			Catalog:      catalog,
			Reader:       opts.Reader,
			Introspector: intro,
		}), nil
	}
}

func loadCatalog(cfg *rfconfig.Config) (*builtins.Catalog, error) {
	catalog, err := loader.Load(cfg.Catalog.Dirs...)
	if err == nil {
		return catalog, nil
	}
	if len(cfg.Catalog.Dirs) == 0 {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	log.Printf("registry: catalog dirs %s: %v; using bundled catalog", strings.Join(cfg.Catalog.Dirs, ", "), err)
	return loader.Default()
}
