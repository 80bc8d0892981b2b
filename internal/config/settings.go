// Package config implements the Configuration Host: the Configurator
// capability object the user's configuration function calls back into,
// the "20-config" selector built around it, and the static, load-once
// daemon Settings that are distinct from it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds process-level knobs that must be known before the
// Configurator can run at all. Unlike the Configurator, Settings is
// loaded exactly once at bootstrap and never re-read during the process
// lifetime.
type Settings struct {
	RuntimeDir  string            `yaml:"runtime_dir"`
	LogLevel    string            `yaml:"log_level"`
	LogFormat   string            `yaml:"log_format"`
	ConfigPlugin string           `yaml:"config_plugin"`
	HelperPaths map[string]string `yaml:"helper_paths"`
}

// defaultSettings returns the settings a daemon should use when no
// settings file is present.
func defaultSettings() Settings {
	return Settings{
		LogLevel:    "info",
		LogFormat:   "console",
		HelperPaths: map[string]string{},
	}
}

// LoadSettings reads path as YAML into a Settings value, falling back to
// defaultSettings for any field the file does not set. A missing file is
// not an error: it simply yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("config: read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parse settings %s: %w", path, err)
	}
	return s, nil
}
