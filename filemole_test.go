package filemole

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/config"
	"github.com/filemole/filemole/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestConfig(t *testing.T, moleRoot string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Moles = map[string]config.MoleConfig{
		"test": {Path: moleRoot, Kind: "local"},
	}

	return cfg
}

func TestOpenRegistersMolesAndRunIndexesExistingFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	fm, err := Open(context.Background(), newTestConfig(t, root), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	require.NoError(t, fm.Run(context.Background()))

	entries, err := fm.Search(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello.txt", entries[0].Name)
}

func TestAddMoleIsIdempotent(t *testing.T) {
	root := t.TempDir()

	fm, err := Open(context.Background(), newTestConfig(t, root), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	require.NoError(t, fm.AddMole("test", root))
	require.NoError(t, fm.AddMole("test", root))
}

func TestEnableTrackingPublishesInitialContentChanged(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "tracked.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("v1"), 0o644))

	fm, err := Open(context.Background(), newTestConfig(t, root), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	received := make(chan events.Event, 4)
	fm.Subscribe(events.SinkFunc(func(ev events.Event) {
		if ev.Kind == events.ContentChanged {
			received <- ev
		}
	}))

	require.NoError(t, fm.EnableTracking(context.Background(), filePath))
	assert.True(t, fm.IsTracked(filePath))

	select {
	case ev := <-received:
		assert.Equal(t, filePath, ev.Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the initial content-changed event")
	}

	require.NoError(t, fm.DisableTracking(context.Background(), filePath))
	assert.False(t, fm.IsTracked(filePath))
}

func TestEnableTrackingReturnsErrorForUnknownMolePath(t *testing.T) {
	root := t.TempDir()

	fm, err := Open(context.Background(), newTestConfig(t, root), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	err = fm.EnableTracking(context.Background(), filepath.Join(t.TempDir(), "elsewhere.txt"))
	assert.Error(t, err)
}
