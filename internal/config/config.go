package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Index   IndexConfig   `yaml:"index"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

type AuthConfig struct {
	Tokens []string `yaml:"tokens"`
}

// IndexConfig controls how index artifacts are served and regenerated.
type IndexConfig struct {
	// CacheMaxAge is the max-age, in seconds, advertised on the text
	// index endpoints. Clients poll these aggressively, so keep it short.
	CacheMaxAge int `yaml:"cacheMaxAge"`
	// PublishOnStart rebuilds every index artifact at boot so a fresh
	// deployment serves current listings before the first upload.
	PublishOnStart bool `yaml:"publishOnStart"`
}

// Load reads and parses a YAML config file. Tokens guard the mutating
// endpoints, so at least one must be configured.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{DataDir: "./data"},
		Index:   IndexConfig{CacheMaxAge: 60},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Auth.Tokens) == 0 {
		return nil, fmt.Errorf("no auth tokens configured")
	}

	return cfg, nil
}
