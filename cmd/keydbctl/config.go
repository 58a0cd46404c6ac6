package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sharedcode/keydb"
)

// fileConfig is the keydbctl configuration file.
type fileConfig struct {
	Store          keydb.Options `yaml:"store"`
	HeightStamping string        `yaml:"height_stamping"`
	Listen         string        `yaml:"listen"`
	StartupRetries uint64        `yaml:"startup_retries"`
	LogLevel       string        `yaml:"log_level"`
}

func defaultConfig() fileConfig {
	return fileConfig{
		Store:          keydb.DefaultOptions(),
		HeightStamping: keydb.StampInGroup.String(),
		Listen:         "localhost:8080",
		StartupRetries: 5,
	}
}

// loadConfig reads path (if not empty) over the defaults, then applies KEYDB_URL.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if url := os.Getenv("KEYDB_URL"); url != "" {
		cfg.Store.URL = url
	}
	return cfg, nil
}

// options returns the store options with the stamping mode resolved.
func (c fileConfig) options() (keydb.Options, error) {
	opts := c.Store
	hs, err := keydb.ParseHeightStamping(c.HeightStamping)
	if err != nil {
		return opts, err
	}
	opts.HeightStamping = hs
	return opts, nil
}
