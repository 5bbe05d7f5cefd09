package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read on top of the config file.
const (
	EnvBrokerURL   = "MARIONETTE_BROKER_URL"
	EnvTopicPrefix = "MARIONETTE_TOPIC_PREFIX"
	EnvRelayAddr   = "MARIONETTE_RELAY_ADDR"
	EnvLogLevel    = "LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files, or ./.env when
// none are given. Missing files are not an error; variables already set
// in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Env returns the value of key, or def if it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
