package loader

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

//go:embed data/*.json
var dataFiles embed.FS

// fsReader is an interface for reading catalog files (allows testing and different backends).
type fsReader interface {
	ReadFile(name string) ([]byte, error)
}

// bundledFS reads the catalog compiled into the binary.
type bundledFS struct{}

func (bundledFS) ReadFile(name string) ([]byte, error) {
	data, err := dataFiles.ReadFile(path.Join("data", name))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled %s: %w", name, err)
	}
	return data, nil
}

// diskFS reads catalog files from a directory, used for user supplied catalogs.
type diskFS struct {
	baseDir string
}

func (d *diskFS) ReadFile(name string) ([]byte, error) {
	fullPath := filepath.Join(d.baseDir, name)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}
	return data, nil
}

// memFS is a simple in-memory filesystem for testing.
type memFS struct {
	files map[string][]byte
}

func (m *memFS) ReadFile(name string) ([]byte, error) {
	if data, ok := m.files[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("file not found: %s", name)
}
