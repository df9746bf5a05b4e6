package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minWatcherWindow       = 10 * time.Millisecond
	minContentChangeWindow = time.Second
	minSafetyScanInterval  = 30 * time.Second
	minRetryBackoff        = time.Millisecond
	minFullHashRetries     = 1
	maxFullHashRetries     = 10
	minPartialWindowSize   = 512
	minTombstoneRetention  = 0
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so callers
// see a complete report and can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateMoles(cfg.Moles)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateIgnore(&cfg.Ignore)...)
	errs = append(errs, validateHash(&cfg.Hash)...)
	errs = append(errs, validateDebounce(&cfg.Debounce)...)
	errs = append(errs, validateScan(&cfg.Scan)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

var validMoleKinds = map[string]bool{
	"local":  true,
	"remote": true,
	"cloud":  true,
}

func validateMoles(moles map[string]MoleConfig) []error {
	var errs []error

	for name, m := range moles {
		if m.Path == "" {
			errs = append(errs, fmt.Errorf("mole %q: path must not be empty", name))
		}

		if m.Kind == "" {
			continue // defaults to local at construction time
		}

		if !validMoleKinds[m.Kind] {
			errs = append(errs, fmt.Errorf("mole %q: kind must be one of local, remote, cloud; got %q",
				name, m.Kind))
		}
	}

	return errs
}

func validateStorage(s *StorageConfig) []error {
	var errs []error

	if s.DataDir == "" {
		errs = append(errs, errors.New("data_dir: must not be empty"))
	}

	if s.SidecarDir == "" {
		errs = append(errs, errors.New("sidecar_dir: must not be empty"))
	}

	if s.DatabaseFile == "" {
		errs = append(errs, errors.New("database_file: must not be empty"))
	}

	return errs
}

func validateIgnore(i *IgnoreConfig) []error {
	var errs []error

	if i.MonitoringIgnoreFile == "" {
		errs = append(errs, errors.New("monitoring_ignore_file: must not be empty"))
	}

	if i.TrackingIgnoreFile == "" {
		errs = append(errs, errors.New("tracking_ignore_file: must not be empty"))
	}

	return errs
}

func validateHash(h *HashConfig) []error {
	var errs []error

	if h.PartialWindowSize < minPartialWindowSize {
		errs = append(errs, fmt.Errorf("partial_window_size: must be >= %d, got %d",
			minPartialWindowSize, h.PartialWindowSize))
	}

	if h.FullHashRetries < minFullHashRetries || h.FullHashRetries > maxFullHashRetries {
		errs = append(errs, fmt.Errorf("full_hash_retries: must be between %d and %d, got %d",
			minFullHashRetries, maxFullHashRetries, h.FullHashRetries))
	}

	errs = append(errs, validateDurationMin("retry_backoff", h.RetryBackoff, minRetryBackoff)...)

	return errs
}

func validateDebounce(d *DebounceConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("watcher_window", d.WatcherWindow, minWatcherWindow)...)
	errs = append(errs, validateDurationMin("content_change_window", d.ContentChangeWindow, minContentChangeWindow)...)

	return errs
}

func validateScan(s *ScanConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("safety_scan_interval", s.SafetyScanInterval, minSafetyScanInterval)...)

	if s.TombstoneRetentionDays < minTombstoneRetention {
		errs = append(errs, fmt.Errorf("tombstone_retention_days: must be >= %d, got %d",
			minTombstoneRetention, s.TombstoneRetentionDays))
	}

	return errs
}

// validateDuration checks that a duration string is valid and meets a
// minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if value == "" {
		return nil // empty means "use package default"; resolved lazily
	}

	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("level: must be one of debug, info, warn, error; got %q", l.Level))
	}

	if !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("format: must be one of auto, text, json; got %q", l.Format))
	}

	return errs
}
