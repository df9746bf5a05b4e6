package config

import "time"

// Default values for configuration options. These represent the starting
// point for TOML decoding (so unset fields retain defaults) and the
// fallback when no config file exists.
const (
	defaultSidecarDir           = ".hill"
	defaultDatabaseFile         = "filemole.db"
	defaultMonitoringIgnoreFile = "filemole.ignore"
	defaultTrackingIgnoreFile   = ".tracking-ignore"
	defaultTrackingIncludeFile  = ".tracking-include"
	defaultPartialWindowSize    = 4096
	defaultFullHashRetries      = 3

	defaultWatcherWindow       = 350 * time.Millisecond
	defaultContentChangeWindow = 60 * time.Second
	defaultSafetyScanInterval  = 5 * time.Minute
	defaultRetryBackoff        = 100 * time.Millisecond

	defaultTombstoneRetentionDays = 0 // off: only the scanner's hard-delete sweep runs

	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
)

// defaultIgnorePatterns is the default for Ignore.DefaultPatterns. No code
// writes these patterns to an ignore file or passes them to the ignore engine.
var defaultIgnorePatterns = []string{
	"*.tmp", "*.temp", "*.bak", "*.swp", "*~",
	"*.log", "logs/",
	"node_modules/", "build/", "dist/", "bin/", "obj/", "packages/",
	"*.db", "*.sqlite", "*.sqlite3", "*.mdf", "*.ldf",
	defaultDatabaseFile,
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Moles:    make(map[string]MoleConfig),
		Storage:  defaultStorageConfig(),
		Ignore:   defaultIgnoreConfig(),
		Hash:     defaultHashConfig(),
		Debounce: defaultDebounceConfig(),
		Scan:     defaultScanConfig(),
		Logging:  defaultLoggingConfig(),
	}
}

func defaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:      DefaultDataDir(),
		SidecarDir:   defaultSidecarDir,
		DatabaseFile: defaultDatabaseFile,
	}
}

func defaultIgnoreConfig() IgnoreConfig {
	return IgnoreConfig{
		MonitoringIgnoreFile: defaultMonitoringIgnoreFile,
		TrackingIgnoreFile:   defaultTrackingIgnoreFile,
		TrackingIncludeFile:  defaultTrackingIncludeFile,
		DefaultPatterns:      append([]string(nil), defaultIgnorePatterns...),
	}
}

func defaultHashConfig() HashConfig {
	return HashConfig{
		PartialWindowSize: defaultPartialWindowSize,
		FullHashRetries:   defaultFullHashRetries,
		RetryBackoff:      defaultRetryBackoff.String(),
	}
}

func defaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		WatcherWindow:       defaultWatcherWindow.String(),
		ContentChangeWindow: defaultContentChangeWindow.String(),
	}
}

func defaultScanConfig() ScanConfig {
	return ScanConfig{
		SafetyScanInterval:     defaultSafetyScanInterval.String(),
		TombstoneRetentionDays: defaultTombstoneRetentionDays,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  defaultLogLevel,
		Format: defaultLogFormat,
	}
}
