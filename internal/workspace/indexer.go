package workspace

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/rfls/internal/rfconfig"
	"github.com/albertocavalcante/rfls/internal/robot/builtins"
	"github.com/albertocavalcante/rfls/internal/robot/filekind"
	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/introspect"
	"github.com/albertocavalcante/rfls/internal/robot/resolve"
	"github.com/albertocavalcante/rfls/internal/robot/symbols"
)

// Options configures an Indexer.
type Options struct {
	// Config holds the root's settings; nil uses rfconfig.DefaultConfig.
	Config *rfconfig.Config

	// Catalog is the shared built-in catalog.
	Catalog *builtins.Catalog

	// Files lists candidate documents; nil walks the root on disk.
	Files FileProvider

	// Reader returns document text; nil reads from disk.
	Reader DocumentReader

	// Introspector locates library keywords; nil disables introspection.
	Introspector introspect.Introspector
}

// Stats summarizes one bulk index run.
type Stats struct {
	Files    int
	Indexed  int
	Failed   int
	TimedOut bool
	Duration time.Duration
}

// Indexer owns the symbol table of one workspace root.
type Indexer struct {
	root   string
	cfg    *rfconfig.Config
	files  FileProvider
	reader DocumentReader
	intro  introspect.Introspector
	table  *symbols.Table
	res    *resolve.Resolver

	mu       sync.Mutex
	states   map[string]*fileState
	libsDone map[string]bool
	noInterp bool
	closed   bool
}

// fileState serializes work on one document. gen changes on every delete so
// a re-index scheduled before the delete can tell it is stale.
type fileState struct {
	mu       sync.Mutex
	gen      uint64
	debounce *Debouncer
}

// NewIndexer creates an indexer for root. Nothing is indexed until IndexAll.
func NewIndexer(root string, opts Options) *Indexer {
	cfg := opts.Config
	if cfg == nil {
		cfg = rfconfig.DefaultConfig()
	}
	files := opts.Files
	if files == nil {
		files = DiskProvider{Extensions: cfg.Index.Extensions, Exclude: cfg.Index.Exclude}
	}
	reader := opts.Reader
	if reader == nil {
		reader = DiskReader{}
	}
	intro := opts.Introspector
	if intro == nil {
		intro = introspect.None
	}

	ix := &Indexer{
		root:     filepath.Clean(root),
		cfg:      cfg,
		files:    files,
		reader:   reader,
		intro:    intro,
		table:    symbols.New(opts.Catalog),
		states:   make(map[string]*fileState),
		libsDone: make(map[string]bool),
	}
	ix.res = resolve.New(ix.table, ix)
	return ix
}

// Root returns the workspace root directory.
func (ix *Indexer) Root() string { return ix.root }

// Config returns the root's configuration.
func (ix *Indexer) Config() *rfconfig.Config { return ix.cfg }

// Table returns the root's symbol table.
func (ix *Indexer) Table() *symbols.Table { return ix.table }

// Resolver returns a resolver over the root's table and documents.
func (ix *Indexer) Resolver() *resolve.Resolver { return ix.res }

// Owns reports whether path lies under the root.
func (ix *Indexer) Owns(path string) bool {
	rel, err := filepath.Rel(ix.root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Documents implements resolve.DocumentSource.
func (ix *Indexer) Documents() []string {
	return ix.table.Files()
}

// ReadDocument implements resolve.DocumentSource.
func (ix *Indexer) ReadDocument(file string) (string, error) {
	return ix.reader.Read(file)
}

// IndexAll discovers and indexes every document of the root, one at a time,
// then introspects the imported libraries. Running past the configured
// timeout abandons the remaining files; that is logged, not returned. An
// error is returned only when ctx itself is done.
func (ix *Indexer) IndexAll(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	runCtx := ctx
	if d := ix.cfg.Index.Timeout.Duration; d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	files, err := ix.files.Files(runCtx, ix.root)
	if err != nil {
		log.Printf("indexer: discovery in %s: %v", ix.root, err)
	}
	stats.Files = len(files)

	for _, path := range files {
		if runCtx.Err() != nil {
			break
		}
		if err := ix.IndexFile(path); err != nil {
			stats.Failed++
			continue
		}
		stats.Indexed++
	}

	if runCtx.Err() == nil {
		ix.introspectLibraries(runCtx)
	}

	stats.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if runCtx.Err() != nil {
		stats.TimedOut = true
		log.Printf("indexer: %s timed out after %v (%d/%d files indexed)", ix.root, ix.cfg.Index.Timeout.Duration, stats.Indexed, stats.Files)
		return stats, nil
	}

	log.Printf("indexer: %s indexed %d/%d files in %v", ix.root, stats.Indexed, stats.Files, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// Reindex drops everything known about the root's documents and indexes
// the root again. Introspected library keywords are looked up afresh.
func (ix *Indexer) Reindex(ctx context.Context) (Stats, error) {
	ix.cancelPending()

	ix.mu.Lock()
	ix.libsDone = make(map[string]bool)
	ix.noInterp = false
	ix.mu.Unlock()

	ix.table.ClearAll()
	ix.table.ClearLibraries()
	if c, ok := ix.intro.(*introspect.Cached); ok {
		c.Invalidate()
	}
	return ix.IndexAll(ctx)
}

// IndexFile parses path and replaces its entries in the table. When the
// document cannot be read its previous entries are kept.
func (ix *Indexer) IndexFile(path string) error {
	st := ix.state(path)
	st.mu.Lock()
	defer st.mu.Unlock()

	return ix.indexLocked(path)
}

func (ix *Indexer) indexLocked(path string) error {
	text, err := ix.reader.Read(path)
	if err != nil {
		log.Printf("indexer: skipping %s: %v", path, err)
		return err
	}
	defs := index.Extract(path, text)
	if defs.Kind == filekind.KindUnknown {
		defs.Kind = filekind.FromPath(path, ix.cfg.Index.Extensions...)
	}
	ix.table.UpsertFile(path, defs)
	return nil
}

// Changed schedules a debounced re-index of path.
func (ix *Indexer) Changed(path string) {
	if !ix.accepts(path) {
		return
	}

	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return
	}
	st := ix.stateLocked(path)
	gen := st.gen
	ix.mu.Unlock()

	delay := ix.cfg.Index.Debounce.Duration
	if delay <= 0 {
		ix.reindexIfCurrent(path, st, gen)
		return
	}
	st.debounce.Trigger(func() {
		ix.reindexIfCurrent(path, st, gen)
	})
}

// Created indexes a new document and introspects any library it imports.
func (ix *Indexer) Created(path string) {
	if !ix.accepts(path) {
		return
	}
	if err := ix.IndexFile(path); err != nil {
		return
	}
	ix.introspectBounded()
}

// Deleted removes path from the table. A directory path removes every
// document below it. Pending re-indexes of removed documents are dropped.
func (ix *Indexer) Deleted(path string) {
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)

	var targets []string
	for _, f := range ix.table.Files() {
		if f == path || strings.HasPrefix(f, prefix) {
			targets = append(targets, f)
		}
	}
	if len(targets) == 0 && ix.accepts(path) {
		targets = append(targets, path)
	}

	for _, f := range targets {
		ix.mu.Lock()
		st := ix.stateLocked(f)
		st.gen++
		ix.mu.Unlock()

		st.debounce.Cancel()

		st.mu.Lock()
		ix.table.RemoveFile(f)
		st.mu.Unlock()
	}
}

// Flush runs pending debounced re-indexes now.
func (ix *Indexer) Flush() {
	ix.mu.Lock()
	states := make([]*fileState, 0, len(ix.states))
	for _, st := range ix.states {
		states = append(states, st)
	}
	ix.mu.Unlock()

	for _, st := range states {
		st.debounce.Flush()
	}
}

// Close drops pending work. The table stays readable.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	ix.closed = true
	ix.mu.Unlock()

	ix.cancelPending()
}

func (ix *Indexer) cancelPending() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, st := range ix.states {
		st.debounce.Cancel()
	}
}

func (ix *Indexer) reindexIfCurrent(path string, st *fileState, gen uint64) {
	if !ix.reindexLocked(path, st, gen) {
		return
	}
	ix.introspectBounded()
}

// reindexLocked re-indexes path unless a newer change superseded gen.
func (ix *Indexer) reindexLocked(path string, st *fileState, gen uint64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	ix.mu.Lock()
	stale := st.gen != gen
	ix.mu.Unlock()
	if stale {
		return false
	}
	return ix.indexLocked(path) == nil
}

// introspectBounded introspects newly imported libraries within the index
// timeout. It runs on the notification path and must not block it.
func (ix *Indexer) introspectBounded() {
	d := ix.cfg.Index.Timeout.Duration
	if d <= 0 {
		d = rfconfig.DefaultIndexTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	ix.introspectLibraries(ctx)
}

func (ix *Indexer) state(path string) *fileState {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	return ix.stateLocked(path)
}

func (ix *Indexer) stateLocked(path string) *fileState {
	st, ok := ix.states[path]
	if !ok {
		st = &fileState{debounce: NewDebouncer(ix.cfg.Index.Debounce.Duration)}
		ix.states[path] = st
	}
	return st
}

func (ix *Indexer) accepts(path string) bool {
	if p, ok := ix.files.(interface{ Accepts(string) bool }); ok {
		return p.Accepts(path)
	}
	return true
}

// introspectLibraries asks the introspector about every imported library not
// seen before. Catalog libraries only get precise locations; other
// libraries become library keywords of this root.
func (ix *Indexer) introspectLibraries(ctx context.Context) {
	for _, imp := range ix.pendingLibraries() {
		if ctx.Err() != nil {
			return
		}

		sources, err := ix.intro.Keywords(ctx, imp.target)
		if errors.Is(err, introspect.ErrNoInterpreter) {
			ix.mu.Lock()
			first := !ix.noInterp
			ix.noInterp = true
			ix.mu.Unlock()
			if first {
				log.Printf("indexer: %s: no interpreter, library keywords keep catalog locations", ix.root)
			}
			return
		}
		if err != nil {
			log.Printf("indexer: introspect %s: %v", imp.name, err)
			continue
		}

		if ix.table.Catalog().HasLibrary(imp.name) {
			ix.table.SetPreciseLocations(imp.name, introspect.Locations(sources))
		} else {
			ix.table.SetLibrary(imp.name, introspect.Definitions(imp.name, sources))
		}
	}
}

type libraryImport struct {
	// name is the library as keywords are qualified with it.
	name string
	// target is what the introspector imports.
	target string
}

func (ix *Indexer) pendingLibraries() []libraryImport {
	var imports []libraryImport
	seen := map[string]bool{}
	add := func(imp libraryImport) {
		key := index.NormalizeName(imp.target)
		if seen[key] {
			return
		}
		seen[key] = true
		imports = append(imports, imp)
	}

	add(libraryImport{name: "BuiltIn", target: "BuiltIn"})
	for _, file := range ix.table.Files() {
		defs := ix.table.File(file)
		if defs == nil {
			continue
		}
		for _, lib := range defs.Libraries() {
			add(libraryTarget(file, lib))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.noInterp {
		return nil
	}
	var out []libraryImport
	for _, imp := range imports {
		key := index.NormalizeName(imp.target)
		if ix.libsDone[key] {
			continue
		}
		ix.libsDone[key] = true
		out = append(out, imp)
	}
	return out
}

// libraryTarget resolves a library import. Imports by path are made
// absolute against the importing document and named after the file.
func libraryTarget(importer, lib string) libraryImport {
	if !strings.HasSuffix(lib, ".py") && !strings.ContainsAny(lib, `/\`) {
		return libraryImport{name: lib, target: lib}
	}
	target := filepath.FromSlash(lib)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(importer), target)
	}
	name := strings.TrimSuffix(filepath.Base(target), ".py")
	return libraryImport{name: name, target: target}
}
