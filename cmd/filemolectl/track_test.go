package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole"
)

func TestWithFileMoleEnableThenDisableTracking(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "tracked.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("v1"), 0o644))

	cc := newTestCLIContext(t, root)

	err := withFileMole(context.Background(), cc, func(ctx context.Context, fm *filemole.FileMole) error {
		return fm.EnableTracking(ctx, filePath)
	})
	require.NoError(t, err)

	err = withFileMole(context.Background(), cc, func(ctx context.Context, fm *filemole.FileMole) error {
		require.True(t, fm.IsTracked(filePath))
		return fm.DisableTracking(ctx, filePath)
	})
	require.NoError(t, err)
}
