package ignore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, root string, cfg Config) *Engine {
	t.Helper()

	cfg.Root = root

	e, err := New(cfg)
	require.NoError(t, err)

	return e
}

func TestShouldIgnoreMatchesRootIgnoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".molemonitorignore"), []byte("*.tmp\n"), 0o644))

	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	assert.True(t, e.ShouldIgnore(filepath.Join(root, "scratch.tmp")))
	assert.False(t, e.ShouldIgnore(filepath.Join(root, "keep.txt")))
}

func TestShouldIgnoreHiddenPathAlwaysIgnoredRegardlessOfRules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".molemonitorignore"), []byte("!.git/config\n"), 0o644))

	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	assert.True(t, e.ShouldIgnore(filepath.Join(root, ".git", "config")))
}

func TestShouldIgnoreLastMatchWinsAcrossDirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, ".molemonitorignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".molemonitorignore"), []byte("!keep.log\n"), 0o644))

	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	assert.True(t, e.ShouldIgnore(filepath.Join(sub, "other.log")))
	assert.False(t, e.ShouldIgnore(filepath.Join(sub, "keep.log")))
}

func TestShouldIgnoreIncludeFileForcesNotIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tracking-ignore"), []byte("*\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tracking-include"), []byte("notes.txt\n"), 0o644))

	e := newEngine(t, root, Config{
		IgnoreFileName:  ".tracking-ignore",
		IncludeFileName: ".tracking-include",
	})

	assert.True(t, e.ShouldIgnore(filepath.Join(root, "other.txt")))
	assert.False(t, e.ShouldIgnore(filepath.Join(root, "notes.txt")))
}

func TestAddNegationRulePersistsAndAppliesImmediately(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".molemonitorignore"), []byte("*.dat\n"), 0o644))

	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	target := filepath.Join(root, "keep.dat")
	require.True(t, e.ShouldIgnore(target))

	require.NoError(t, e.AddNegationRule(root, "keep.dat"))
	assert.False(t, e.ShouldIgnore(target))

	data, err := os.ReadFile(filepath.Join(root, ".molemonitorignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "!keep.dat")
}

func TestAddNegationRuleErrorsWhenIgnoreFileDisabled(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root, Config{})

	err := e.AddNegationRule(root, "anything")
	assert.Error(t, err)
}

func TestBeginEndOwnWriteTracksReentrance(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	path := filepath.Join(root, ".molemonitorignore")
	assert.False(t, e.IsOwnWrite(path))

	e.BeginOwnWrite(path)
	assert.True(t, e.IsOwnWrite(path))

	e.EndOwnWrite(path)
	assert.False(t, e.IsOwnWrite(path))
}

func TestNotifyIgnoreFileChangedSkipsDuringOwnWrite(t *testing.T) {
	root := t.TempDir()
	ignorePath := filepath.Join(root, ".molemonitorignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.tmp\n"), 0o644))

	e := newEngine(t, root, Config{IgnoreFileName: ".molemonitorignore"})

	e.BeginOwnWrite(ignorePath)
	defer e.EndOwnWrite(ignorePath)

	// Change the file out from under the engine while flagged as its own
	// write; NotifyIgnoreFileChanged must not schedule a reload.
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.other\n"), 0o644))
	e.NotifyIgnoreFileChanged(ignorePath)

	time.Sleep(selfWatchDebounce + 50*time.Millisecond)

	// Still using the stale compiled rule (*.tmp), proving no reload happened.
	assert.True(t, e.ShouldIgnore(filepath.Join(root, "x.tmp")))
}

func TestIsIgnoreFileMatchesBothMarkerNames(t *testing.T) {
	root := t.TempDir()
	e := newEngine(t, root, Config{
		IgnoreFileName:  ".tracking-ignore",
		IncludeFileName: ".tracking-include",
	})

	assert.True(t, e.IsIgnoreFile(".tracking-ignore"))
	assert.True(t, e.IsIgnoreFile(".tracking-include"))
	assert.False(t, e.IsIgnoreFile("readme.txt"))
}
