package config

import "time"

// HarnessConfig is the top-level configuration for bento.
type HarnessConfig struct {
	// HadoopConfDir and HBaseConfDir are resolved relative to the state
	// directory unless absolute.
	HadoopConfDir string `yaml:"hadoopConfDir,omitempty"`
	HBaseConfDir  string `yaml:"hbaseConfDir,omitempty"`

	// ReadyTimeout bounds how long each engine may take to become ready.
	ReadyTimeout time.Duration `yaml:"readyTimeout,omitempty"`
	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration `yaml:"stopTimeout,omitempty"`
	// HealthInterval is the period between health checks of running
	// engines. A negative value disables them.
	HealthInterval time.Duration `yaml:"healthInterval,omitempty"`

	// StatusAddress enables the HTTP status endpoint when non-empty.
	StatusAddress string `yaml:"statusAddress,omitempty"`

	Services map[string]ServiceDefinition `yaml:"services,omitempty"`
}

// ServiceDefinition overrides how one engine is launched.
type ServiceDefinition struct {
	// Command and its arguments. ${VAR} references are expanded against the
	// engine environment.
	Command  []string          `yaml:"command,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Disabled bool              `yaml:"disabled,omitempty"`
}
