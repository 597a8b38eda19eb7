package config

import "time"

const (
	DefaultHadoopConfDir = "hadoop-conf"
	DefaultHBaseConfDir  = "hbase-conf"
	DefaultReadyTimeout  = 2 * time.Minute
	DefaultStopTimeout   = 30 * time.Second

	DefaultHealthInterval = 30 * time.Second
)

// GetDefaultConfig returns the built-in configuration. Engine commands are
// not set here; the service descriptors supply them unless a layer overrides
// them.
func GetDefaultConfig() HarnessConfig {
	return HarnessConfig{
		HadoopConfDir: DefaultHadoopConfDir,
		HBaseConfDir:  DefaultHBaseConfDir,
		ReadyTimeout:  DefaultReadyTimeout,
		StopTimeout:   DefaultStopTimeout,

		HealthInterval: DefaultHealthInterval,
		Services:       map[string]ServiceDefinition{},
	}
}
