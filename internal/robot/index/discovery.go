package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/rfls/internal/robot/filekind"
)

// DiscoverOptions controls which files Discover returns.
type DiscoverOptions struct {
	// Extensions lists the accepted file suffixes. Empty means filekind.DefaultExtensions.
	Extensions []string

	// Exclude lists directory names that are never descended into.
	Exclude []string
}

// defaultExcludes are directories that never hold workspace sources.
var defaultExcludes = []string{"node_modules", "venv", ".venv", "__pycache__", "results"}

// Discover finds all Robot Framework documents under root.
// Hidden directories are skipped, as are the configured exclusions.
// Unreadable directories are skipped rather than failing the walk.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	exclude := make(map[string]bool)
	for _, d := range defaultExcludes {
		exclude[d] = true
	}
	for _, d := range opts.Exclude {
		exclude[d] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path == root {
				return nil
			}
			name := entry.Name()
			if strings.HasPrefix(name, ".") || exclude[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if filekind.IsRobotFile(entry.Name(), opts.Extensions...) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}
