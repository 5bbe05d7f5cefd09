// Package transport is a websocket pub/sub client for the relay.
//
// This package handles:
//   - One connection per topic, dialled on Connect
//   - Publishing control and state payloads
//   - Delivering received payloads on a channel
//   - Reconnecting dropped topics in the background
package transport

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Config holds client configuration.
type Config struct {
	// BrokerURL is the relay's websocket base URL.
	// Examples: "ws://localhost:8090", "wss://relay.example.com"
	BrokerURL string `yaml:"broker_url" json:"broker_url"`

	// Prefix is the topic prefix.
	// Default: "mycontroller"
	Prefix string `yaml:"prefix" json:"prefix"`

	// ClientID identifies this client in logs.
	ClientID string `yaml:"client_id" json:"client_id"`

	// HandshakeTimeout bounds each dial.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`

	// WriteTimeout bounds each publish.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// ReconnectInterval is how often to attempt reconnection on failure.
	ReconnectInterval time.Duration `yaml:"reconnect_interval" json:"reconnect_interval"`

	// MaxReconnectAttempts is the maximum number of reconnection attempts.
	// 0 means unlimited.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BrokerURL:            "ws://localhost:8090",
		Prefix:               "mycontroller",
		HandshakeTimeout:     5 * time.Second,
		WriteTimeout:         2 * time.Second,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 0, // Unlimited
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return fmt.Errorf("broker_url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return fmt.Errorf("broker_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("broker_url must use ws:// or wss://, got '%s'", c.BrokerURL)
	}
	if c.Prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("reconnect_interval must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must be non-negative")
	}
	return nil
}

// NewClientID returns "<role>-<6 hex chars>".
func NewClientID(role string) string {
	id := uuid.New()
	return fmt.Sprintf("%s-%x", role, id[:3])
}
