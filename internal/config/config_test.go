package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-marionette/pkg/actuation"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvBrokerURL, EnvTopicPrefix, EnvRelayAddr, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "partial file keeps defaults",
			content: `transport:
  broker_url: "ws://relay.local:9000"
  prefix: "room1"
actuation:
  cloak_duration: 5s
  reset_policy: defer
  scale:
    min: 0.02
    initial: 0.1
    max: 0.5
logging:
  level: debug
`,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Transport.BrokerURL != "ws://relay.local:9000" || cfg.Transport.Prefix != "room1" {
					t.Errorf("transport = %+v", cfg.Transport)
				}
				if cfg.Transport.ReconnectInterval != 2*time.Second {
					t.Errorf("ReconnectInterval = %v, want default 2s", cfg.Transport.ReconnectInterval)
				}
				if cfg.Actuation.CloakDuration != 5*time.Second {
					t.Errorf("CloakDuration = %v, want 5s", cfg.Actuation.CloakDuration)
				}
				if cfg.Actuation.ResetPolicy != actuation.ResetDefer {
					t.Errorf("ResetPolicy = %q", cfg.Actuation.ResetPolicy)
				}
				if cfg.Actuation.Scale.Max != 0.5 {
					t.Errorf("Scale = %+v", cfg.Actuation.Scale)
				}
				if cfg.Actuation.MoveSpeed != 2 {
					t.Errorf("MoveSpeed = %v, want default 2", cfg.Actuation.MoveSpeed)
				}
				if cfg.Logging.Level != "debug" {
					t.Errorf("Logging.Level = %q", cfg.Logging.Level)
				}
			},
		},
		{
			name:    "invalid yaml",
			content: "transport: [unclosed",
			wantErr: "parse config",
		},
		{
			name: "invalid values",
			content: `transport:
  broker_url: "http://nope"
actuation:
  reset_policy: sometimes
`,
			wantErr: "transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeFile(t, "marionette.yaml", tt.content)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_InvalidReportsEverySection(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "bad.yaml", `transport:
  broker_url: "http://nope"
actuation:
  reset_policy: sometimes
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "transport") || !strings.Contains(err.Error(), "actuation") {
		t.Errorf("error should name both sections: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_NoPathUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Transport.Prefix != "mycontroller" || cfg.Relay.Addr != ":8090" {
		t.Errorf("defaults = %+v / %+v", cfg.Transport, cfg.Relay)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBrokerURL, "wss://relay.example.com")
	t.Setenv(EnvTopicPrefix, "demo")
	t.Setenv(EnvRelayAddr, ":9999")
	t.Setenv(EnvLogLevel, "warn")

	path := writeFile(t, "c.yaml", "transport:\n  prefix: fromfile\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.BrokerURL != "wss://relay.example.com" || cfg.Transport.Prefix != "demo" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Relay.Addr != ":9999" || cfg.Logging.Level != "warn" {
		t.Errorf("relay = %+v logging = %+v", cfg.Relay, cfg.Logging)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "MARIONETTE_DOTENV_TEST"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := writeFile(t, ".env", key+"=dotenv\n")
	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := Env(key, "x"); got != "dotenv" {
		t.Errorf("%s = %q, want dotenv", key, got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}
