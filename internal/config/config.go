// Package config loads the shared configuration for the marionette
// binaries: a YAML file, an optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-marionette/pkg/actuation"
	"github.com/teslashibe/go-marionette/pkg/input"
	"github.com/teslashibe/go-marionette/pkg/relay"
	"github.com/teslashibe/go-marionette/pkg/transport"
)

// Config is the root configuration.
type Config struct {
	Transport transport.Config `yaml:"transport"`
	Input     input.Config     `yaml:"input"`
	Actuation actuation.Config `yaml:"actuation"`
	Relay     relay.Config     `yaml:"relay"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport: transport.DefaultConfig(),
		Input:     input.DefaultConfig(),
		Actuation: actuation.DefaultConfig(),
		Relay:     relay.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	c.Transport.BrokerURL = Env(EnvBrokerURL, c.Transport.BrokerURL)
	c.Transport.Prefix = Env(EnvTopicPrefix, c.Transport.Prefix)
	c.Relay.Addr = Env(EnvRelayAddr, c.Relay.Addr)
	c.Logging.Level = Env(EnvLogLevel, c.Logging.Level)
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Transport.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}
	if err := c.Input.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("input: %w", err))
	}
	if err := c.Actuation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("actuation: %w", err))
	}
	if err := c.Relay.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("relay: %w", err))
	}
	return errors.Join(errs...)
}
