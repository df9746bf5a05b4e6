package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "FILEMOLE_CONFIG"
	EnvMole   = "FILEMOLE_MOLE"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by ReadEnvOverrides and made available to callers.
type EnvOverrides struct {
	ConfigPath string // FILEMOLE_CONFIG: override config file path
	Mole       string // FILEMOLE_MOLE: active mole selector
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant
// fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Mole:       os.Getenv(EnvMole),
	}
}
