package app

import (
	"bento/internal/config"
)

// Config holds the application configuration
type Config struct {
	// StateDir holds the lock file, the site files and engine data.
	StateDir string

	// ConfigPath is an extra harness config layered on top of the others.
	ConfigPath string

	// Debug settings
	Debug bool

	// AcceptPorts confirms a port assignment that moved off the defaults.
	AcceptPorts bool

	// StatusAddress overrides the configured status endpoint address.
	StatusAddress string

	// Harness is the loaded configuration, filled in by NewApplication.
	Harness *config.HarnessConfig
}

// NewConfig creates a new application configuration
func NewConfig(stateDir, configPath string, debug bool) *Config {
	return &Config{
		StateDir:   stateDir,
		ConfigPath: configPath,
		Debug:      debug,
	}
}
