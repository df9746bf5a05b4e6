package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the setting names of the sub-config structs, used as
// the candidates for "did you mean?" suggestions. The settings themselves
// are read from their section tables, not from the top level.
var knownGlobalKeys = map[string]bool{
	// Storage settings
	"data_dir": true, "sidecar_dir": true, "database_file": true,
	// Ignore settings
	"monitoring_ignore_file": true, "tracking_ignore_file": true,
	"tracking_include_file": true, "default_patterns": true,
	// Hash settings
	"partial_window_size": true, "full_hash_retries": true, "retry_backoff": true,
	// Debounce settings
	"watcher_window": true, "content_change_window": true,
	// Scan settings
	"safety_scan_interval": true, "tombstone_retention_days": true,
	// Logging settings
	"level": true, "format": true,
}

// knownGlobalKeysList is the sorted slice form of knownGlobalKeys for
// Levenshtein matching. Sorted for deterministic suggestions when two
// candidates have the same edit distance.
var knownGlobalKeysList = func() []string {
	keys := make([]string, 0, len(knownGlobalKeys))
	for k := range knownGlobalKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// knownMoleKeys are the valid keys inside a `[mole:<name>]` section.
var knownMoleKeys = map[string]bool{
	"path": true, "kind": true, "provider": true,
}

// knownMoleKeysList is the sorted slice form for Levenshtein matching.
var knownMoleKeysList = func() []string {
	keys := make([]string, 0, len(knownMoleKeys))
	for k := range knownMoleKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key. Mole
// sections (keys containing ":") are skipped because they are parsed
// separately in the two-pass decode.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		keyStr := key.String()

		topKey := strings.SplitN(keyStr, ".", 2)[0]
		if strings.Contains(topKey, ":") {
			continue
		}

		if err := buildGlobalKeyError(keyStr); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// buildGlobalKeyError creates a descriptive error for an unknown top-level
// key, optionally suggesting the closest known key. Returns nil if the key
// is a valid sub-field of a known key.
func buildGlobalKeyError(keyStr string) error {
	parts := strings.SplitN(keyStr, ".", 2)
	fieldName := parts[0]

	if len(parts) > 1 && knownGlobalKeys[fieldName] {
		return nil // parent is known, sub-field is expected
	}

	suggestion := closestMatch(fieldName, knownGlobalKeysList)
	if suggestion != "" {
		return fmt.Errorf("unknown config key %q — did you mean %q?", fieldName, suggestion)
	}

	return fmt.Errorf("unknown config key %q", fieldName)
}

// checkMoleUnknownKeys validates that all keys in a mole section map are
// recognized. Returns an error with suggestions for unknown keys.
func checkMoleUnknownKeys(moleMap map[string]any, name string) error {
	var errs []error

	for key := range moleMap {
		if knownMoleKeys[key] {
			continue
		}

		suggestion := closestMatch(key, knownMoleKeysList)
		if suggestion != "" {
			errs = append(errs, fmt.Errorf(
				"unknown key %q in mole [%q] — did you mean %q?", key, name, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown key %q in mole [%q]", key, name))
		}
	}

	return errors.Join(errs...)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
