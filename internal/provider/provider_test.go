package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/molerr"
)

func TestLocalListFilesAndDirectoriesSplitByKind(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	l := NewLocal()

	files, err := l.ListFiles(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Name)

	dirs, err := l.ListDirectories(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "sub", dirs[0].Name)
	assert.True(t, dirs[0].IsDir)
}

func TestLocalGetAndExists(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	l := NewLocal()

	entry, err := l.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Size)

	ok, err := l.Exists(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Exists(context.Background(), filepath.Join(root, "missing.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalGetMissingPathReturnsErrPathNotFound(t *testing.T) {
	l := NewLocal()

	_, err := l.Get(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, molerr.ErrPathNotFound)
}

func TestLocalOpenReadAndOpenWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")

	l := NewLocal()

	w, err := l.OpenWrite(context.Background(), path)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := l.OpenRead(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()

	data := make([]byte, 7)
	_, err = r.Read(data)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalMoveRenamesAcrossDirectory(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "a.txt")
	to := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(from, []byte("x"), 0o644))

	l := NewLocal()
	require.NoError(t, l.Move(context.Background(), from, to))

	_, err := os.Stat(from)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(to)
	assert.NoError(t, err)
}

func TestLocalCopyPreservesModTime(t *testing.T) {
	root := t.TempDir()
	from := filepath.Join(root, "a.txt")
	to := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(from, []byte("x"), 0o644))

	srcInfo, err := os.Stat(from)
	require.NoError(t, err)

	l := NewLocal()
	require.NoError(t, l.Copy(context.Background(), from, to))

	dstInfo, err := os.Stat(to)
	require.NoError(t, err)
	assert.WithinDuration(t, srcInfo.ModTime(), dstInfo.ModTime(), 0)
}

func TestLocalRenameKeepsSameDirectory(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	l := NewLocal()
	require.NoError(t, l.Rename(context.Background(), path, "b.txt"))

	_, err := os.Stat(filepath.Join(root, "b.txt"))
	assert.NoError(t, err)
}

func TestLocalDeleteRemovesFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	l := NewLocal()
	require.NoError(t, l.Delete(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistryResolveUnknownReturnsErrNoProviderForPath(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve(KindRemote, "dropbox")
	assert.ErrorIs(t, err, molerr.ErrNoProviderForPath)
}

func TestRegistryRegisterThenResolve(t *testing.T) {
	r := NewRegistry()
	l := NewLocal()

	r.Register(KindLocal, "default", l)

	resolved, err := r.Resolve(KindLocal, "default")
	require.NoError(t, err)
	assert.Same(t, Capability(l), resolved)
}

func TestCrossProviderOpReturnsErrUnsupportedCrossProvider(t *testing.T) {
	err := CrossProviderOp("move")
	assert.ErrorIs(t, err, molerr.ErrUnsupportedCrossProvider)
	assert.True(t, errors.Is(err, molerr.ErrUnsupportedCrossProvider))
}
