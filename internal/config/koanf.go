// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/medlink/config.yaml",
	"/etc/medlink/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			Origin:            "http://localhost:8080",
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			Jitter:            time.Second,
			MaxAttempts:       10,
			KeepAliveInterval: 30 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ReadLimit:         1 << 20,
		},
		Token: TokenConfig{
			Path:            "/api/realtime/token",
			Lifetime:        time.Hour,
			RefreshBuffer:   5 * time.Minute,
			RequestTimeout:  10 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Environment: EnvironmentConfig{
			SettleDelay:   time.Second,
			RecoveryRate:  5,
			RecoveryBurst: 5,
			ProbeEnabled:  true,
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Client: ClientConfig{
			Identities:      []string{},
			HTTPAddr:        ":9464",
			ShutdownTimeout: 15 * time.Second,
		},
		Relay: RelayConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			TokenTTL:        time.Hour,
			Issuer:          "medlink-relay",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
			SendBuffer:      256,
			Timeout:         30 * time.Second,
			NATS: NATSConfig{
				Host:    "127.0.0.1",
				Port:    4222,
				Subject: "medlink.relay",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// REALTIME_ORIGIN -> realtime.origin, RECONNECT_MAX_ATTEMPTS -> realtime.max_attempts
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first default path found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"client.identities",
	"relay.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment cannot leak into config.
var envMappings = map[string]string{
	// Connection manager
	"realtime_origin":        "realtime.origin",
	"reconnect_base_delay":   "realtime.base_delay",
	"reconnect_max_delay":    "realtime.max_delay",
	"reconnect_jitter":       "realtime.jitter",
	"reconnect_max_attempts": "realtime.max_attempts",
	"keepalive_interval":     "realtime.keepalive_interval",
	"dial_handshake_timeout": "realtime.handshake_timeout",
	"dial_write_timeout":     "realtime.write_timeout",
	"realtime_read_limit":    "realtime.read_limit",

	// Token cache
	"token_path":             "token.path",
	"session_token":          "token.session_token",
	"token_lifetime":         "token.lifetime",
	"token_refresh_buffer":   "token.refresh_buffer",
	"token_request_timeout":  "token.request_timeout",
	"token_breaker_failures": "token.breaker_failures",
	"token_breaker_timeout":  "token.breaker_timeout",

	// Environment monitor
	"env_settle_delay":       "environment.settle_delay",
	"recovery_rate":          "environment.recovery_rate",
	"recovery_burst":         "environment.recovery_burst",
	"network_probe_enabled":  "environment.probe_enabled",
	"network_probe_interval": "environment.probe_interval",
	"network_probe_timeout":  "environment.probe_timeout",

	// Client daemon
	"medlink_identities": "client.identities",
	"calls_token":        "client.calls_token",
	"http_addr":          "client.http_addr",
	"shutdown_timeout":   "client.shutdown_timeout",

	// Relay
	"relay_host":          "relay.host",
	"relay_port":          "relay.port",
	"jwt_secret":          "relay.jwt_secret",
	"relay_token_ttl":     "relay.token_ttl",
	"relay_issuer":        "relay.issuer",
	"cors_origins":        "relay.cors_origins",
	"rate_limit_reqs":     "relay.rate_limit_reqs",
	"rate_limit_window":   "relay.rate_limit_window",
	"relay_send_buffer":   "relay.send_buffer",
	"relay_timeout":       "relay.timeout",
	"relay_nats_url":      "relay.nats.url",
	"relay_nats_embedded": "relay.nats.embedded",
	"relay_nats_host":     "relay.nats.host",
	"relay_nats_port":     "relay.nats.port",
	"relay_nats_subject":  "relay.nats.subject",

	// Metrics
	"metrics_enabled": "metrics.enabled",
	"metrics_path":    "metrics.path",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - REALTIME_ORIGIN -> realtime.origin
//   - TOKEN_LIFETIME -> token.lifetime
//   - MEDLINK_IDENTITIES -> client.identities
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
