// Package config loads server settings from a YAML file overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Addr           string        `yaml:"addr"`
	DB             string        `yaml:"db"`      // sqlite DSN
	Schemas        string        `yaml:"schemas"` // directory of form documents (.json, .yaml)
	Debug          bool          `yaml:"debug"`
	SessionMaxAge  time.Duration `yaml:"sessionMaxAge"`
	SessionIdle    time.Duration `yaml:"sessionIdle"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:           ":8080",
		DB:             "file:formwork.db?_pragma=busy_timeout(5000)",
		Schemas:        "forms",
		SessionMaxAge:  24 * time.Hour,
		SessionIdle:    30 * time.Minute,
		AllowedOrigins: []string{"*"},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// FORMWORK_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FORMWORK_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("FORMWORK_DB"); v != "" {
		c.DB = v
	}
	if v := getenv("FORMWORK_SCHEMAS"); v != "" {
		c.Schemas = v
	}
	if v := getenv("FORMWORK_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FORMWORK_DEBUG: %w", err)
		}
		c.Debug = debug
	}
	return nil
}
