package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file using a two-pass decode,
// validates it, and returns the resulting Config. Pass 1 decodes the global
// settings from their section tables ([storage], [ignore], [hash],
// [debounce], [scan], [logging]) into Config's sub-config fields. Pass 2
// extracts mole sections (keys containing ":"). Unknown keys are treated as
// fatal errors with "did you mean?" suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := decodeMoleSections(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully",
		"path", path,
		"mole_count", len(cfg.Moles),
	)

	return cfg, nil
}

// decodeMoleSections performs the second TOML decode pass to extract mole
// sections. Mole sections have keys of the form `mole:<name>`.
func decodeMoleSections(data []byte, cfg *Config) error {
	var rawMap map[string]any
	if _, err := toml.Decode(string(data), &rawMap); err != nil {
		return fmt.Errorf("mole sections: %w", err)
	}

	for key, val := range rawMap {
		name, ok := strings.CutPrefix(key, "mole:")
		if !ok {
			continue
		}

		moleMap, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("mole section [%q] must be a table", key)
		}

		if err := checkMoleUnknownKeys(moleMap, name); err != nil {
			return err
		}

		var mole MoleConfig
		if err := mapToMole(moleMap, &mole); err != nil {
			return fmt.Errorf("mole section [%q]: %w", key, err)
		}

		cfg.Moles[name] = mole
	}

	return nil
}

// mapToMole converts a raw map to a MoleConfig struct by re-encoding as
// TOML and decoding into the typed struct. This reuses the TOML library's
// type coercion rather than hand-writing map extraction per field.
func mapToMole(m map[string]any, mc *MoleConfig) error {
	var buf bytes.Buffer

	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding mole data: %w", err)
	}

	if _, err := toml.Decode(buf.String(), mc); err != nil {
		return fmt.Errorf("decoding mole data: %w", err)
	}

	return nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: consumers can start without creating a config
// file.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// ResolveConfigPath determines the config file path using the three-layer
// priority: CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cliConfigPath string, logger *slog.Logger) string {
	cfgPath := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
		source = "env"
	}

	if cliConfigPath != "" {
		cfgPath = cliConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", cfgPath, "source", source)

	return cfgPath
}
