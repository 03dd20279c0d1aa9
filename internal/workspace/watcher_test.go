package workspace

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	created []string
	changed []string
	deleted []string
}

func (r *recorder) Created(path string) { r.add(&r.created, path) }
func (r *recorder) Changed(path string) { r.add(&r.changed, path) }
func (r *recorder) Deleted(path string) { r.add(&r.deleted, path) }

func (r *recorder) add(list *[]string, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	*list = append(*list, path)
}

func (r *recorder) has(list *[]string, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Contains(*list, path)
}

func TestWatcherEvents(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "a.robot")
	require.NoError(t, os.WriteFile(existing, []byte(suiteText), 0o644))

	rec := &recorder{}
	w, err := NewWatcher(root, []string{"build"}, rec)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, os.WriteFile(existing, []byte(suiteText+"\n"), 0o644))
	assert.Eventually(t, func() bool { return rec.has(&rec.changed, existing) }, 2*time.Second, 10*time.Millisecond)

	created := filepath.Join(root, "b.resource")
	require.NoError(t, os.WriteFile(created, []byte(resourceText), 0o644))
	assert.Eventually(t, func() bool { return rec.has(&rec.created, created) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(existing))
	assert.Eventually(t, func() bool { return rec.has(&rec.deleted, existing) }, 2*time.Second, 10*time.Millisecond)

	// New directories are watched too.
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	nested := filepath.Join(sub, "c.robot")
	require.NoError(t, os.WriteFile(nested, []byte(suiteText), 0o644))
	assert.Eventually(t, func() bool { return rec.has(&rec.created, nested) }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "build"), 0o755))

	rec := &recorder{}
	w, err := NewWatcher(root, []string{"build"}, rec)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ignored := filepath.Join(root, "build", "x.robot")
	require.NoError(t, os.WriteFile(ignored, []byte(suiteText), 0o644))
	marker := filepath.Join(root, "marker.robot")
	require.NoError(t, os.WriteFile(marker, []byte(suiteText), 0o644))

	require.Eventually(t, func() bool { return rec.has(&rec.created, marker) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, rec.has(&rec.created, ignored))
}

func TestWatcherFeedsIndexer(t *testing.T) {
	root := t.TempDir()
	ix := NewIndexer(root, Options{Config: testConfig(0)})
	t.Cleanup(ix.Close)

	w, err := NewWatcher(root, nil, ix)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	path := filepath.Join(root, "common.resource")
	require.NoError(t, os.WriteFile(path, []byte(resourceText), 0o644))
	assert.Eventually(t, func() bool {
		return len(ix.Table().LookupKeyword("Open Session")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		return len(ix.Table().LookupKeyword("Open Session")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegistryWatch(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(func(r string) (*Indexer, error) {
		return NewIndexer(r, Options{Config: testConfig(0)}), nil
	})
	t.Cleanup(reg.Close)

	_, err := reg.Add(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, reg.Watch(root))
	require.NoError(t, reg.Watch(root), "watching twice is a no-op")
	assert.ErrorIs(t, reg.Watch(filepath.Join(root, "nope")), ErrUnknownRoot)
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, &recorder{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
