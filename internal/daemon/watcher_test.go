package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherFiresOnDebouncedWrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one"), 0o644))

	changed := make(chan string, 8)
	w, err := newWatcher(root, 20*time.Millisecond, []string{".git"}, newSuppressionMap(0),
		func(path string) { changed <- path }, testLogger())
	require.NoError(t, err)
	defer w.stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.start(ctx))

	// Two rapid writes within the debounce window should coalesce to one fire.
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("two"), 0o644))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("three"), 0o644))

	select {
	case path := <-changed:
		assert.Equal(t, "a.txt", path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher to fire")
	}

	select {
	case path := <-changed:
		t.Fatalf("unexpected second fire for %s", path)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherIgnoresConfiguredPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))

	changed := make(chan string, 8)
	w, err := newWatcher(root, 20*time.Millisecond, []string{".git"}, newSuppressionMap(0),
		func(path string) { changed <- path }, testLogger())
	require.NoError(t, err)
	defer w.stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/other"), 0o644))

	select {
	case path := <-changed:
		t.Fatalf("ignored directory should not fire, got %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherWatchesNewlyCreatedSubdirectory(t *testing.T) {
	root := t.TempDir()

	changed := make(chan string, 8)
	w, err := newWatcher(root, 20*time.Millisecond, nil, newSuppressionMap(0),
		func(path string) { changed <- path }, testLogger())
	require.NoError(t, err)
	defer w.stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.start(ctx))

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond) // let the watcher pick up the new directory
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("x"), 0o644))

	select {
	case path := <-changed:
		assert.Equal(t, filepath.Join("nested", "b.txt"), path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for nested watch to fire")
	}
}

func TestSuppressionMapConsumesOnCheck(t *testing.T) {
	s := newSuppressionMap(50 * time.Millisecond)
	s.Mark("a.txt")

	assert.True(t, s.Check("a.txt"))
	assert.False(t, s.Check("a.txt"), "Check should consume the entry")
}

func TestSuppressionMapExpires(t *testing.T) {
	s := newSuppressionMap(10 * time.Millisecond)
	s.Mark("a.txt")
	time.Sleep(30 * time.Millisecond)
	assert.False(t, s.Check("a.txt"))
}
