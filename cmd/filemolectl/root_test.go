package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemole/filemole/internal/config"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.Contains(t, names, "watch")
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "track")
}

func TestBuildLoggerVerboseOverridesConfigLevel(t *testing.T) {
	old := flagVerbose
	flagVerbose = true
	defer func() { flagVerbose = old }()

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"

	logger := buildLogger(cfg)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
}

func TestBuildLoggerNilConfigDefaultsToWarn(t *testing.T) {
	old := flagVerbose
	flagVerbose = false
	defer func() { flagVerbose = old }()

	logger := buildLogger(nil)
	assert.True(t, logger.Enabled(nil, slog.LevelWarn))
	assert.False(t, logger.Enabled(nil, slog.LevelInfo))
}

func TestMustCLIContextPanicsWithoutPriorLoad(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()

	mustCLIContext(context.Background())
}
