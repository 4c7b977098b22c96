package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a daemon configuration from the given YAML file
// path. Fields absent from the file keep the values from Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./adwd.yaml, ~/.adwd/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"adwd.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".adwd", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no config found (searched: %v)", candidates)
}

// applyEnvOverrides lets secrets come from the environment so config
// files can be committed without them.
func applyEnvOverrides(cfg *Config) {
	if secret := os.Getenv("GH_WB_SECRET"); secret != "" {
		cfg.Server.WebhookSecret = secret
	}
}
