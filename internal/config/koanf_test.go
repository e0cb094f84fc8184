// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Realtime.BaseDelay != time.Second {
		t.Errorf("Realtime.BaseDelay = %v, want 1s", cfg.Realtime.BaseDelay)
	}
	if cfg.Realtime.MaxDelay != 30*time.Second {
		t.Errorf("Realtime.MaxDelay = %v, want 30s", cfg.Realtime.MaxDelay)
	}
	if cfg.Realtime.KeepAliveInterval != 30*time.Second {
		t.Errorf("Realtime.KeepAliveInterval = %v, want 30s", cfg.Realtime.KeepAliveInterval)
	}
	if cfg.Token.Lifetime != time.Hour {
		t.Errorf("Token.Lifetime = %v, want 1h", cfg.Token.Lifetime)
	}
	if cfg.Token.RefreshBuffer != 5*time.Minute {
		t.Errorf("Token.RefreshBuffer = %v, want 5m", cfg.Token.RefreshBuffer)
	}
	if cfg.Environment.SettleDelay != time.Second {
		t.Errorf("Environment.SettleDelay = %v, want 1s", cfg.Environment.SettleDelay)
	}
	if cfg.Relay.Port != 8080 {
		t.Errorf("Relay.Port = %d, want 8080", cfg.Relay.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"REALTIME_ORIGIN", "realtime.origin"},
		{"RECONNECT_MAX_ATTEMPTS", "realtime.max_attempts"},
		{"KEEPALIVE_INTERVAL", "realtime.keepalive_interval"},
		{"TOKEN_LIFETIME", "token.lifetime"},
		{"SESSION_TOKEN", "token.session_token"},
		{"ENV_SETTLE_DELAY", "environment.settle_delay"},
		{"MEDLINK_IDENTITIES", "client.identities"},
		{"JWT_SECRET", "relay.jwt_secret"},
		{"RELAY_NATS_EMBEDDED", "relay.nats.embedded"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLoadWithKoanf_EnvOverrides verifies environment variables override defaults
func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REALTIME_ORIGIN", "https://app.example.com")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "0")
	t.Setenv("RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("MEDLINK_IDENTITIES", "notifications_42, consultation_917")
	t.Setenv("RECOVERY_RATE", "2.5")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Realtime.Origin != "https://app.example.com" {
		t.Errorf("Realtime.Origin = %q", cfg.Realtime.Origin)
	}
	if cfg.Realtime.MaxAttempts != 0 {
		t.Errorf("Realtime.MaxAttempts = %d, want 0", cfg.Realtime.MaxAttempts)
	}
	if cfg.Realtime.BaseDelay != 500*time.Millisecond {
		t.Errorf("Realtime.BaseDelay = %v, want 500ms", cfg.Realtime.BaseDelay)
	}
	if cfg.Environment.RecoveryRate != 2.5 {
		t.Errorf("Environment.RecoveryRate = %v, want 2.5", cfg.Environment.RecoveryRate)
	}
	if len(cfg.Client.Identities) != 2 || cfg.Client.Identities[1] != "consultation_917" {
		t.Errorf("Client.Identities = %v", cfg.Client.Identities)
	}
	if cfg.TokenURL() != "https://app.example.com/api/realtime/token" {
		t.Errorf("TokenURL() = %q", cfg.TokenURL())
	}
}

// TestLoadWithKoanf_RelayNATS verifies the nested NATS settings
func TestLoadWithKoanf_RelayNATS(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Relay.NATS.Enabled() {
		t.Error("NATS should be disabled by default")
	}
	if cfg.Relay.NATS.Subject != "medlink.relay" || cfg.Relay.NATS.Port != 4222 {
		t.Errorf("NATS defaults = %+v", cfg.Relay.NATS)
	}

	t.Setenv("RELAY_NATS_EMBEDDED", "true")
	t.Setenv("RELAY_NATS_PORT", "-1")
	t.Setenv("RELAY_NATS_SUBJECT", "clinic.events")

	cfg, err = LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if !cfg.Relay.NATS.Enabled() || !cfg.Relay.NATS.Embedded {
		t.Errorf("NATS = %+v, want embedded", cfg.Relay.NATS)
	}
	if cfg.Relay.NATS.Port != -1 || cfg.Relay.NATS.Subject != "clinic.events" {
		t.Errorf("NATS = %+v", cfg.Relay.NATS)
	}
}

// TestLoadWithKoanf_ConfigFile verifies YAML file values and env precedence
func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
realtime:
  origin: https://clinic.example.org
  keepalive_interval: 45s
  max_attempts: 3
token:
  lifetime: 30m
client:
  identities:
    - notifications_7
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Realtime.Origin != "https://clinic.example.org" {
		t.Errorf("Realtime.Origin = %q", cfg.Realtime.Origin)
	}
	if cfg.Realtime.KeepAliveInterval != 45*time.Second {
		t.Errorf("Realtime.KeepAliveInterval = %v, want 45s", cfg.Realtime.KeepAliveInterval)
	}
	if cfg.Realtime.MaxAttempts != 3 {
		t.Errorf("Realtime.MaxAttempts = %d, want 3", cfg.Realtime.MaxAttempts)
	}
	if cfg.Token.Lifetime != 30*time.Minute {
		t.Errorf("Token.Lifetime = %v, want 30m", cfg.Token.Lifetime)
	}
	if cfg.Token.RefreshBuffer != 5*time.Minute {
		t.Errorf("Token.RefreshBuffer should keep default, got %v", cfg.Token.RefreshBuffer)
	}
	if len(cfg.Client.Identities) != 1 || cfg.Client.Identities[0] != "notifications_7" {
		t.Errorf("Client.Identities = %v", cfg.Client.Identities)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, env should override file", cfg.Logging.Level)
	}
}

// TestLoadWithKoanf_InvalidFile verifies YAML errors are reported
func TestLoadWithKoanf_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("realtime: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	if _, err := LoadWithKoanf(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
