package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/events"
	"github.com/filemole/filemole/internal/ignore"
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

func newTestIgnore(t *testing.T, root string) *ignore.Engine {
	t.Helper()

	eng, err := ignore.New(ignore.Config{
		Root:           root,
		IgnoreFileName: ".molemonitorignore",
		Logger:         discardLogger(),
	})
	require.NoError(t, err)

	return eng
}

func TestRunIndexesEveryFileUnderEachRoot(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(rootA, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "sub", "nested.txt"), []byte("nested"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rootB, "b.txt"), []byte("beta"), 0o644))

	idx := newTestIndex(t)

	s := New(Config{
		Roots: []Root{
			{Mole: "one", Path: rootA, Ignore: newTestIgnore(t, rootA)},
			{Mole: "two", Path: rootB, Ignore: newTestIgnore(t, rootB)},
		},
		Index:  idx,
		Logger: discardLogger(),
	})

	require.NoError(t, s.Run(context.Background()))

	entries, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRunSkipsIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.tmp"), []byte("skip"), 0o644))

	idx := newTestIndex(t)

	s := New(Config{
		Roots:  []Root{{Mole: "one", Path: root, Ignore: newTestIgnore(t, root)}},
		Index:  idx,
		Logger: discardLogger(),
	})

	require.NoError(t, s.Run(context.Background()))

	entries, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name)
}

func TestRunDeletesStaleRowsNotSeenByAnyRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "current.txt"), []byte("current"), 0o644))

	idx := newTestIndex(t)

	// A row from a prior run whose file is now gone.
	require.NoError(t, idx.Upsert(context.Background(), index.Entry{
		Directory: root,
		Name:      "vanished.txt",
		Size:      1,
		Created:   time.Now().UTC(),
		Modified:  time.Now().UTC(),
	}))

	s := New(Config{
		Roots:  []Root{{Mole: "one", Path: root, Ignore: newTestIgnore(t, root)}},
		Index:  idx,
		Logger: discardLogger(),
	})

	require.NoError(t, s.Run(context.Background()))

	entries, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "current.txt", entries[0].Name)
}

func TestRunPublishesInitialScanCompletedPerMole(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	idx := newTestIndex(t)
	bus := events.NewBus(discardLogger())

	received := make(chan events.Event, 4)
	sub := bus.Subscribe(events.SinkFunc(func(ev events.Event) {
		if ev.Kind == events.InitialScanCompleted {
			received <- ev
		}
	}))
	defer sub.Unsubscribe()

	s := New(Config{
		Roots:  []Root{{Mole: "one", Path: root, Ignore: newTestIgnore(t, root)}},
		Index:  idx,
		Bus:    bus,
		Logger: discardLogger(),
	})

	require.NoError(t, s.Run(context.Background()))

	select {
	case ev := <-received:
		assert.Equal(t, "one", ev.Mole)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for InitialScanCompleted")
	}
}

func TestScanRootOnlyReconcilesItsOwnSubtree(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(rootA, "a.txt"), []byte("a"), 0o644))

	idx := newTestIndex(t)

	// A stale row under rootB from an earlier, unrelated scan.
	require.NoError(t, idx.Upsert(context.Background(), index.Entry{
		Directory: rootB,
		Name:      "stale.txt",
		Size:      1,
		Created:   time.Now().UTC().Add(-time.Hour),
		Modified:  time.Now().UTC().Add(-time.Hour),
	}))

	s := New(Config{
		Roots:  []Root{{Mole: "one", Path: rootA, Ignore: newTestIgnore(t, rootA)}},
		Index:  idx,
		Logger: discardLogger(),
	})

	require.NoError(t, s.ScanRoot(context.Background(), Root{Mole: "one", Path: rootA, Ignore: newTestIgnore(t, rootA)}))

	// rootA's file is indexed, rootB's unrelated stale row survives because
	// ScanRoot must not reconcile outside its own subtree.
	entries, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunWithNoRootsIsNoop(t *testing.T) {
	s := New(Config{Index: newTestIndex(t), Logger: discardLogger()})
	require.NoError(t, s.Run(context.Background()))
}
