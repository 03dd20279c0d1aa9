package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives document changes below a watched root.
type ChangeHandler interface {
	Created(path string)
	Changed(path string)
	Deleted(path string)
}

// Watcher forwards filesystem events of a root to a ChangeHandler.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	ignore    map[string]bool
	handler   ChangeHandler

	// Errors receives watcher errors. It is never closed; drops when full.
	Errors chan error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher watches root recursively, skipping hidden directories and
// the given directory names.
func NewWatcher(root string, exclude []string, handler ChangeHandler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		root:      filepath.Clean(root),
		ignore:    make(map[string]bool),
		handler:   handler,
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
	for _, name := range defaultIgnoreDirs {
		w.ignore[name] = true
	}
	for _, name := range exclude {
		w.ignore[name] = true
	}

	if err := w.addRecursive(w.root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

var defaultIgnoreDirs = []string{"node_modules", "__pycache__", "venv", "results"}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) skipDir(path string) bool {
	if path == w.root {
		return false
	}
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || w.ignore[name]
}

// addRecursive watches dir and every directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %s: %v", w.root, err)
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if !info.IsDir() {
			w.handler.Created(path)
			return
		}
		if w.skipDir(path) {
			return
		}
		if err := w.addRecursive(path); err != nil {
			log.Printf("watcher: %v", err)
		}
		// Files may land before the directory watch exists.
		_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() && p != path && w.skipDir(p) {
				return filepath.SkipDir
			}
			if !d.IsDir() {
				w.handler.Created(p)
			}
			return nil
		})
	case event.Has(fsnotify.Write):
		w.handler.Changed(path)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.handler.Deleted(path)
	}
}
