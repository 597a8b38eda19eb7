package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bento/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	userConfigDir   = ".config/bento"
	configFileName  = "config.yaml"
	stateConfigName = "bento.yaml"
)

// LoadConfig layers the built-in defaults, the user file, the state
// directory file and finally explicitPath (if non-empty). A missing user or
// state file is skipped; a missing explicit file is an error.
func LoadConfig(stateDir, explicitPath string) (HarnessConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		logging.Warn("Config", "Could not determine user config path: %v", err)
	} else if config, err = overlayIfExists(config, userConfigPath); err != nil {
		return HarnessConfig{}, err
	}

	if stateDir != "" {
		if config, err = overlayIfExists(config, filepath.Join(stateDir, stateConfigName)); err != nil {
			return HarnessConfig{}, err
		}
	}

	if explicitPath != "" {
		explicit, err := loadConfigFromFile(explicitPath)
		if err != nil {
			return HarnessConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
		config = mergeConfigs(config, explicit)
	}

	return config, nil
}

func overlayIfExists(base HarnessConfig, path string) (HarnessConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return HarnessConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("Config", "Loaded %s", path)
	return mergeConfigs(base, overlay), nil
}

var getUserConfigPath = func() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// loadConfigFromFile loads a HarnessConfig from a YAML file.
func loadConfigFromFile(filePath string) (HarnessConfig, error) {
	var config HarnessConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return HarnessConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return HarnessConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay HarnessConfig) HarnessConfig {
	merged := base

	if overlay.HadoopConfDir != "" {
		merged.HadoopConfDir = overlay.HadoopConfDir
	}
	if overlay.HBaseConfDir != "" {
		merged.HBaseConfDir = overlay.HBaseConfDir
	}
	if overlay.ReadyTimeout != 0 {
		merged.ReadyTimeout = overlay.ReadyTimeout
	}
	if overlay.StopTimeout != 0 {
		merged.StopTimeout = overlay.StopTimeout
	}
	if overlay.HealthInterval != 0 {
		merged.HealthInterval = overlay.HealthInterval
	}
	if overlay.StatusAddress != "" {
		merged.StatusAddress = overlay.StatusAddress
	}

	// A service entry present in the overlay is explicit, including its
	// Disabled flag; command and env fall through when left empty.
	merged.Services = make(map[string]ServiceDefinition, len(base.Services)+len(overlay.Services))
	for name, def := range base.Services {
		merged.Services[name] = def
	}
	for name, def := range overlay.Services {
		current := merged.Services[name]
		if len(def.Command) > 0 {
			current.Command = def.Command
		}
		if len(def.Env) > 0 {
			env := make(map[string]string, len(current.Env)+len(def.Env))
			for k, v := range current.Env {
				env[k] = v
			}
			for k, v := range def.Env {
				env[k] = v
			}
			current.Env = env
		}
		current.Disabled = def.Disabled
		merged.Services[name] = current
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// ResolveDir returns dir if absolute, otherwise dir joined onto stateDir.
func ResolveDir(stateDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(stateDir, dir)
}
