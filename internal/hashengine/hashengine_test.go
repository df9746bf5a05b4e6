package hashengine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/molerr"
)

func writeTempFile(t *testing.T, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	return path
}

func TestFullHashIsStableAndSensitiveToContent(t *testing.T) {
	pathA := writeTempFile(t, []byte("hello world"))
	pathB := writeTempFile(t, []byte("hello world"))
	pathC := writeTempFile(t, []byte("goodbye world"))

	ctx := context.Background()

	sumA, err := FullHash(ctx, pathA)
	require.NoError(t, err)

	sumB, err := FullHash(ctx, pathB)
	require.NoError(t, err)

	sumC, err := FullHash(ctx, pathC)
	require.NoError(t, err)

	assert.Equal(t, sumA, sumB)
	assert.NotEqual(t, sumA, sumC)
}

func TestFullHashMissingFile(t *testing.T) {
	_, err := FullHash(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestFullHashExhaustsRetriesWrapsErrIoExhausted(t *testing.T) {
	_, err := FullHash(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, molerr.ErrIoExhausted)
}

func TestFullHashCancelledDuringBackoffWrapsErrCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FullHash(ctx, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, molerr.ErrCancelled)
}

func TestPartialHashSmallFile(t *testing.T) {
	path := writeTempFile(t, []byte("tiny"))

	sum, err := PartialHash(path)
	require.NoError(t, err)
	assert.NotEmpty(t, sum)
}

func TestPartialHashDetectsMiddleChange(t *testing.T) {
	size := 20 * 1024
	base := bytes.Repeat([]byte("a"), size)

	changed := make([]byte, size)
	copy(changed, base)
	changed[size/2] = 'x'

	pathBase := writeTempFile(t, base)
	pathChanged := writeTempFile(t, changed)

	sumBase, err := PartialHash(pathBase)
	require.NoError(t, err)

	sumChanged, err := PartialHash(pathChanged)
	require.NoError(t, err)

	assert.NotEqual(t, sumBase, sumChanged)
}

func TestPartialHashIgnoresUntouchedFile(t *testing.T) {
	size := 20 * 1024
	contents := bytes.Repeat([]byte("b"), size)

	path1 := writeTempFile(t, contents)
	path2 := writeTempFile(t, contents)

	sum1, err := PartialHash(path1)
	require.NoError(t, err)

	sum2, err := PartialHash(path2)
	require.NoError(t, err)

	assert.Equal(t, sum1, sum2)
}
