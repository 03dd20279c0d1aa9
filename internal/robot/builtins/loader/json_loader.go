// Package loader loads the built-in keyword catalog from JSON listings.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/albertocavalcante/rfls/internal/robot/builtins"
)

// StandardLibraries lists the bundled library listings, in lookup order.
var StandardLibraries = []string{
	"BuiltIn",
	"Collections",
	"String",
	"DateTime",
	"OperatingSystem",
	"Process",
	"XML",
}

// JSONProvider loads library listings from JSON files.
type JSONProvider struct {
	// mu protects the cache
	mu sync.RWMutex

	// cache stores parsed listings by library name
	cache map[string]builtins.Library

	// names lists the library files to load, without extension
	names []string

	// dataFS holds the JSON data files (bundled, on disk or mock in tests)
	dataFS fsReader
}

// NewJSONProvider creates a provider over the bundled standard library listings.
func NewJSONProvider() *JSONProvider {
	return &JSONProvider{
		cache:  make(map[string]builtins.Library),
		names:  StandardLibraries,
		dataFS: bundledFS{},
	}
}

// NewDirProvider creates a provider over every *.json listing in dir.
func NewDirProvider(dir string) (*JSONProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return &JSONProvider{
		cache:  make(map[string]builtins.Library),
		names:  names,
		dataFS: &diskFS{baseDir: dir},
	}, nil
}

// newTestJSONProvider creates a JSON provider for testing with injectable data.
func newTestJSONProvider() *JSONProvider {
	return &JSONProvider{
		cache:  make(map[string]builtins.Library),
		dataFS: &memFS{files: make(map[string][]byte)},
	}
}

// injectTestData injects a listing into the provider (for testing only).
func (p *JSONProvider) injectTestData(name string, data []byte) {
	if fs, ok := p.dataFS.(*memFS); ok {
		fs.files[name+".json"] = data
		p.names = append(p.names, name)
	}
}

// Libraries implements the builtins.Provider interface.
func (p *JSONProvider) Libraries() ([]builtins.Library, error) {
	result := make([]builtins.Library, 0, len(p.names))
	for _, name := range p.names {
		lib, err := p.Library(name)
		if err != nil {
			return nil, err
		}
		result = append(result, lib)
	}
	return result, nil
}

// Library returns the listing stored in name.json.
func (p *JSONProvider) Library(name string) (builtins.Library, error) {
	p.mu.RLock()
	if cached, ok := p.cache[name]; ok {
		p.mu.RUnlock()
		return cached, nil
	}
	p.mu.RUnlock()

	filename := name + ".json"
	data, err := p.dataFS.ReadFile(filename)
	if err != nil {
		return builtins.Library{}, fmt.Errorf("failed to load library %s: %w", name, err)
	}

	var lib builtins.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return builtins.Library{}, fmt.Errorf("failed to parse JSON file %s: %w", filename, err)
	}
	if lib.Name == "" {
		lib.Name = name
	}

	p.mu.Lock()
	p.cache[name] = lib
	p.mu.Unlock()

	return lib, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *builtins.Catalog
	defaultErr     error
)

// Default returns the catalog built from the bundled listings. It is built once
// per process and shared.
func Default() (*builtins.Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = builtins.NewCatalogFromProvider(NewJSONProvider())
	})
	return defaultCatalog, defaultErr
}

// Load builds a catalog from the bundled listings plus any listings in extraDirs.
// Listings in extraDirs override bundled ones of the same library.
func Load(extraDirs ...string) (*builtins.Catalog, error) {
	if len(extraDirs) == 0 {
		return Default()
	}
	var providers []builtins.Provider
	for _, dir := range extraDirs {
		p, err := NewDirProvider(dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	providers = append(providers, NewJSONProvider())
	return builtins.NewCatalogFromProvider(builtins.NewChainProvider(providers...))
}
