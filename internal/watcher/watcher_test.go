package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockedit/internal/logging"
)

func newWatcher(t *testing.T, delay time.Duration) *FileWatcher {
	t.Helper()
	fw, err := NewFileWatcher(delay, logging.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })
	return fw
}

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path   string
		filter FileFilter
		want   bool
	}{
		{"doc.html", HTMLFilter, true},
		{"doc.HTM", HTMLFilter, true},
		{"doc.md", HTMLFilter, false},
		{"doc.normalized.html", SuffixFilter(".normalized.html"), false},
		{"doc.html", SuffixFilter(".normalized.html"), true},
		{"dir/.hidden.html", NoHiddenFilter, false},
		{"dir/visible.html", NoHiddenFilter, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter(tt.path))
		})
	}
}

func TestValidatePath(t *testing.T) {
	for _, bad := range []string{"", "..", "../outside", "a/../../b"} {
		_, err := validatePath(bad)
		assert.Error(t, err, bad)
	}
	for _, good := range []string{".", "docs", "/tmp/docs", "a/../b"} {
		_, err := validatePath(good)
		assert.NoError(t, err, good)
	}
}

func TestDebouncer_GroupsAndDeduplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(30 * time.Millisecond)
	go d.Run(ctx)

	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.html"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.html"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.html"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.html", batch[0].Path)
		assert.Equal(t, "b.html", batch[1].Path)
		assert.Equal(t, EventTypeModified, batch[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestAddRecursive_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested", "deeper"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))

	fw := newWatcher(t, 10*time.Millisecond)
	require.NoError(t, fw.AddRecursive(root))

	list := fw.WatchList()
	assert.Contains(t, list, filepath.Clean(root))
	assert.Contains(t, list, filepath.Join(root, "nested", "deeper"))
	for _, dir := range list {
		assert.NotContains(t, dir, ".git")
	}
}

func TestFileWatcher_DeliversFilteredBatches(t *testing.T) {
	dir := t.TempDir()
	fw := newWatcher(t, 50*time.Millisecond)
	fw.AddFilter(HTMLFilter)
	fw.AddFilter(SuffixFilter(".normalized.html"))
	require.NoError(t, fw.AddPath(dir))

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan struct{}, 1)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		mu.Lock()
		for _, e := range events {
			seen = append(seen, filepath.Base(e.Path))
		}
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.normalized.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.html"), []byte("<p>x</p>"), 0o644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, "doc.html")
	assert.NotContains(t, seen, "notes.txt")
	assert.NotContains(t, seen, "doc.normalized.html")
}

func TestFileWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	fw := newWatcher(t, 50*time.Millisecond)
	fw.AddFilter(HTMLFilter)
	require.NoError(t, fw.AddPath(dir))

	batches := make(chan []ChangeEvent, 8)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		batches <- events
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	sub := filepath.Join(dir, "chapter")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		for _, p := range fw.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	target := filepath.Join(sub, "page.html")
	require.NoError(t, os.WriteFile(target, []byte("<p>x</p>"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case events := <-batches:
			for _, e := range events {
				if e.Path == target {
					return
				}
			}
		case <-deadline:
			t.Fatal("no event for file in new directory")
		}
	}
}
