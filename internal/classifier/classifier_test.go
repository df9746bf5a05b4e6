package classifier

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/index"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestIndex(t *testing.T) *index.Store {
	t.Helper()

	s, err := index.Open(context.Background(), filepath.Join(t.TempDir(), "filemole.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func writeFile(t *testing.T, dir, name, content string) os.FileInfo {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	info, err := os.Stat(p)
	require.NoError(t, err)

	return info
}

func TestClassifyCreateAlwaysUpserts(t *testing.T) {
	idx := newTestIndex(t)
	c := New(idx, discardLogger())

	dir := t.TempDir()
	info := writeFile(t, dir, "a.txt", "hello")

	entry, err := c.ClassifyCreate(context.Background(), dir, "a.txt", info)
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Size)

	stored, err := idx.Get(context.Background(), dir, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Size)
}

func TestClassifyChangeMissingRowCountsAsChanged(t *testing.T) {
	idx := newTestIndex(t)
	c := New(idx, discardLogger())

	dir := t.TempDir()
	info := writeFile(t, dir, "b.txt", "first")

	changed, _, err := c.ClassifyChange(context.Background(), dir, "b.txt", info)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = idx.Get(context.Background(), dir, "b.txt")
	assert.NoError(t, err)
}

func TestClassifyChangeDetectsSizeDifference(t *testing.T) {
	idx := newTestIndex(t)
	c := New(idx, discardLogger())

	dir := t.TempDir()
	info := writeFile(t, dir, "c.txt", "short")

	_, err := c.ClassifyCreate(context.Background(), dir, "c.txt", info)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	info2 := writeFile(t, dir, "c.txt", "a much longer body")

	changed, entry, err := c.ClassifyChange(context.Background(), dir, "c.txt", info2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(len("a much longer body")), entry.Size)
}

func TestClassifyChangeNoopWhenIdentical(t *testing.T) {
	idx := newTestIndex(t)
	c := New(idx, discardLogger())

	dir := t.TempDir()
	info := writeFile(t, dir, "d.txt", "stable")

	_, err := c.ClassifyCreate(context.Background(), dir, "d.txt", info)
	require.NoError(t, err)

	changed, _, err := c.ClassifyChange(context.Background(), dir, "d.txt", info)
	require.NoError(t, err)
	assert.False(t, changed)
}
