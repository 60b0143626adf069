// Package config loads the per-user defaults file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the defaults applied when a flag is not given on the command
// line.
type Config struct {
	Language     string `yaml:"language"`
	Creator      string `yaml:"creator"`
	Publisher    string `yaml:"publisher"`
	RewriteLinks bool   `yaml:"rewrite_links"`
	RAMStaging   bool   `yaml:"ram_staging"`
}

// Default returns the built-in defaults, matching the tool's historic
// behavior: three-letter language code, link rewriting on.
func Default() Config {
	return Config{
		Language:     "eng",
		Creator:      "invaderzim",
		Publisher:    "invaderzim",
		RewriteLinks: true,
		RAMStaging:   true,
	}
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invaderzim.yaml"
	}
	return filepath.Join(home, ".invaderzim.yaml")
}

// Load reads the YAML file at path over the built-in defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
