package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.toml"), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Storage.SidecarDir, cfg.Storage.SidecarDir)
}

func TestLoadParsesMoleSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
[storage]
data_dir = "/tmp/filemole-data"

["mole:docs"]
path = "/home/user/docs"
kind = "local"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)
	require.Contains(t, cfg.Moles, "docs")
	assert.Equal(t, "/home/user/docs", cfg.Moles["docs"].Path)
	assert.Equal(t, "local", cfg.Moles["docs"].Kind)
	assert.Equal(t, "/tmp/filemole-data", cfg.Storage.DataDir)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("sidecar_directory = \".hill\"\n"), 0o644))

	_, err := Load(path, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadRejectsInvalidMoleKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	contents := `
["mole:bad"]
path = "/tmp/x"
kind = "ethereal"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind must be one of")
}

func TestResolveConfigPathPriority(t *testing.T) {
	logger := discardLogger()

	assert.NotEmpty(t, ResolveConfigPath(EnvOverrides{}, "", logger))
	assert.Equal(t, "/env/path.toml", ResolveConfigPath(EnvOverrides{ConfigPath: "/env/path.toml"}, "", logger))
	assert.Equal(t, "/cli/path.toml",
		ResolveConfigPath(EnvOverrides{ConfigPath: "/env/path.toml"}, "/cli/path.toml", logger))
}
