// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for the FileMole runtime.
package config

import "time"

// Config is the top-level configuration structure. It contains moles and
// all global configuration sections. A mole section carries only its path,
// kind and provider; every other setting is global and applies to all
// moles.
type Config struct {
	Moles    map[string]MoleConfig `toml:"mole"`
	Storage  StorageConfig         `toml:"storage"`
	Ignore   IgnoreConfig          `toml:"ignore"`
	Hash     HashConfig            `toml:"hash"`
	Debounce DebounceConfig        `toml:"debounce"`
	Scan     ScanConfig            `toml:"scan"`
	Logging  LoggingConfig         `toml:"logging"`
}

// MoleConfig is one `[mole:<name>]` section: a watched root and the
// provider backing it.
type MoleConfig struct {
	Path     string `toml:"path"`
	Kind     string `toml:"kind"` // local | remote | cloud
	Provider string `toml:"provider"`
}

// StorageConfig controls where the index database and sidecar directories
// live.
type StorageConfig struct {
	DataDir      string `toml:"data_dir"`
	SidecarDir   string `toml:"sidecar_dir"`
	DatabaseFile string `toml:"database_file"`
}

// IgnoreConfig names the marker files the IgnoreEngine reads and holds a
// default pattern list. The pattern list is not written to any ignore file
// and is not passed to the engine.
type IgnoreConfig struct {
	MonitoringIgnoreFile string   `toml:"monitoring_ignore_file"`
	TrackingIgnoreFile   string   `toml:"tracking_ignore_file"`
	TrackingIncludeFile  string   `toml:"tracking_include_file"`
	DefaultPatterns      []string `toml:"default_patterns"`
}

// HashConfig holds HashEngine sampling and retry settings. They are decoded
// and defaulted here, but internal/hashengine does not read them: it uses
// its own fixed 4 KiB window, three attempts and 100ms backoff.
type HashConfig struct {
	PartialWindowSize int    `toml:"partial_window_size"`
	FullHashRetries   int    `toml:"full_hash_retries"`
	RetryBackoff      string `toml:"retry_backoff"`
}

// DebounceConfig holds the watcher's per-path debounce window and the
// content-change batching window. Only WatcherWindow reaches the pipeline
// (as the watcher's debounce window); ContentChangeDebounce has no caller.
type DebounceConfig struct {
	WatcherWindow       string `toml:"watcher_window"`
	ContentChangeWindow string `toml:"content_change_window"`
}

// ScanConfig controls the Scanner's startup sweep and the Watcher's
// periodic safety re-scan.
type ScanConfig struct {
	SafetyScanInterval     string `toml:"safety_scan_interval"`
	TombstoneRetentionDays int    `toml:"tombstone_retention_days"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// WatcherDebounce parses Debounce.WatcherWindow, falling back to the
// package default on a parse error.
func (c *Config) WatcherDebounce() time.Duration {
	return parseDurationOrDefault(c.Debounce.WatcherWindow, defaultWatcherWindow)
}

// ContentChangeDebounce parses Debounce.ContentChangeWindow, falling back
// to the package default on a parse error.
func (c *Config) ContentChangeDebounce() time.Duration {
	return parseDurationOrDefault(c.Debounce.ContentChangeWindow, defaultContentChangeWindow)
}

// SafetyScanInterval parses Scan.SafetyScanInterval, falling back to the
// package default on a parse error.
func (c *Config) SafetyScanInterval() time.Duration {
	return parseDurationOrDefault(c.Scan.SafetyScanInterval, defaultSafetyScanInterval)
}

// RetryBackoff parses Hash.RetryBackoff, falling back to the package
// default on a parse error.
func (c *Config) RetryBackoff() time.Duration {
	return parseDurationOrDefault(c.Hash.RetryBackoff, defaultRetryBackoff)
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}

	return d
}
