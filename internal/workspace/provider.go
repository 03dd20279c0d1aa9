// Package workspace indexes workspace roots and keeps their symbol tables
// current as files change.
package workspace

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/albertocavalcante/rfls/internal/robot/filekind"
	"github.com/albertocavalcante/rfls/internal/robot/index"
)

// FileProvider lists the candidate documents of a root.
type FileProvider interface {
	Files(ctx context.Context, root string) ([]string, error)
}

// DiskProvider discovers documents by walking the root directory.
type DiskProvider struct {
	// Extensions lists extra suffixes indexed on top of the defaults.
	Extensions []string

	// Exclude lists extra directory names to skip.
	Exclude []string
}

// Files implements FileProvider.
func (p DiskProvider) Files(_ context.Context, root string) ([]string, error) {
	return index.Discover(root, index.DiscoverOptions{
		Extensions: p.extensions(),
		Exclude:    p.Exclude,
	})
}

// Accepts reports whether path has an indexed extension.
func (p DiskProvider) Accepts(path string) bool {
	return filekind.IsRobotFile(path, p.extensions()...)
}

func (p DiskProvider) extensions() []string {
	if len(p.Extensions) == 0 {
		return filekind.DefaultExtensions
	}
	return append(slices.Clone(filekind.DefaultExtensions), p.Extensions...)
}

// DocumentReader returns the current text of a document.
type DocumentReader interface {
	Read(path string) (string, error)
}

// DiskReader reads documents from the filesystem.
type DiskReader struct{}

// Read implements DocumentReader.
func (DiskReader) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// Overlay serves open editor buffers and falls back to another reader for
// everything else. It is shared by every root of a server.
type Overlay struct {
	mu   sync.RWMutex
	docs map[string]string
	base DocumentReader
}

// NewOverlay creates an overlay on top of base.
func NewOverlay(base DocumentReader) *Overlay {
	if base == nil {
		base = DiskReader{}
	}
	return &Overlay{docs: make(map[string]string), base: base}
}

// Set records the buffer content of an open document.
func (o *Overlay) Set(path, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.docs[path] = text
}

// Close forgets the buffer of path; reads go back to the base reader.
func (o *Overlay) Close(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.docs, path)
}

// Get returns the buffer of path if it is open.
func (o *Overlay) Get(path string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	text, ok := o.docs[path]
	return text, ok
}

// Open returns the paths with open buffers.
func (o *Overlay) Open() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	paths := make([]string, 0, len(o.docs))
	for p := range o.docs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Read implements DocumentReader.
func (o *Overlay) Read(path string) (string, error) {
	if text, ok := o.Get(path); ok {
		return text, nil
	}
	return o.base.Read(path)
}
