package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestCLIContext(t *testing.T, moleRoot string) *CLIContext {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Moles = map[string]config.MoleConfig{
		"test": {Path: moleRoot, Kind: "local"},
	}

	return &CLIContext{Cfg: cfg, Logger: discardLogger()}
}

func TestRunSearchSucceedsAgainstFreshIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "needle.txt"), []byte("x"), 0o644))

	cc := newTestCLIContext(t, root)

	// runSearch opens its own FileMole and queries the index without running
	// a scan first, so against a fresh data directory it prints nothing; this
	// checks that the Open/Search/Close path the command uses completes
	// without error.
	err := runSearch(context.Background(), cc, "needle")
	require.NoError(t, err)
}
