// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "origin with websocket scheme",
			mutate:  func(c *Config) { c.Realtime.Origin = "wss://app.example.com" },
			wantErr: "Origin",
		},
		{
			name:    "negative max attempts",
			mutate:  func(c *Config) { c.Realtime.MaxAttempts = -1 },
			wantErr: "MaxAttempts",
		},
		{
			name: "max delay below base delay",
			mutate: func(c *Config) {
				c.Realtime.BaseDelay = 10 * time.Second
				c.Realtime.MaxDelay = 5 * time.Second
			},
			wantErr: "RECONNECT_MAX_DELAY",
		},
		{
			name:    "refresh buffer exceeds lifetime",
			mutate:  func(c *Config) { c.Token.RefreshBuffer = 2 * time.Hour },
			wantErr: "TOKEN_REFRESH_BUFFER",
		},
		{
			name:    "token path without slash",
			mutate:  func(c *Config) { c.Token.Path = "api/token" },
			wantErr: "token",
		},
		{
			name:    "unknown identity family",
			mutate:  func(c *Config) { c.Client.Identities = []string{"chat_5"} },
			wantErr: "MEDLINK_IDENTITIES",
		},
		{
			name:    "calls identity without token",
			mutate:  func(c *Config) { c.Client.Identities = []string{"calls_9"} },
			wantErr: "CALLS_TOKEN",
		},
		{
			name: "calls identity with token",
			mutate: func(c *Config) {
				c.Client.Identities = []string{"calls_9"}
				c.Client.CallsToken = "external"
			},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRelay(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.ValidateRelay(); err == nil {
		t.Error("expected error for missing JWT secret")
	}

	cfg.Relay.JWTSecret = "short"
	if err := cfg.ValidateRelay(); err == nil || !strings.Contains(err.Error(), "at least 32") {
		t.Errorf("expected length error, got %v", err)
	}

	cfg.Relay.JWTSecret = strings.Repeat("k", 32)
	if err := cfg.ValidateRelay(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if cfg.Relay.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Relay.Addr())
	}
}
