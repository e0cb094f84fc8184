// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/medlink/internal/validation"
)

// minJWTSecretLength is the shortest HMAC secret the relay accepts.
const minJWTSecretLength = 32

// identityPrefixes are the identity families the client daemon can open.
var identityPrefixes = []string{"notifications_", "consultation_", "calls_"}

// Validate checks that the configuration is usable by the client daemon.
// Relay-only settings are checked by ValidateRelay.
func (c *Config) Validate() error {
	if err := c.validateTags(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateToken(); err != nil {
		return err
	}
	if err := c.validateIdentities(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateRelay checks the settings the relay backend needs at startup.
func (c *Config) ValidateRelay() error {
	if c.Relay.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for the relay")
	}
	if len(c.Relay.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if len(c.Relay.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	return nil
}

func (c *Config) validateTags() error {
	sections := []struct {
		name string
		v    interface{}
	}{
		{"realtime", &c.Realtime},
		{"token", &c.Token},
		{"environment", &c.Environment},
		{"client", &c.Client},
		{"relay", &c.Relay},
		{"metrics", &c.Metrics},
	}
	for _, s := range sections {
		if err := validation.ValidateStruct(s.v); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) validateRealtime() error {
	if c.Realtime.MaxDelay < c.Realtime.BaseDelay {
		return fmt.Errorf("RECONNECT_MAX_DELAY (%s) must not be less than RECONNECT_BASE_DELAY (%s)",
			c.Realtime.MaxDelay, c.Realtime.BaseDelay)
	}
	return nil
}

func (c *Config) validateToken() error {
	if c.Token.RefreshBuffer >= c.Token.Lifetime {
		return fmt.Errorf("TOKEN_REFRESH_BUFFER (%s) must be shorter than TOKEN_LIFETIME (%s)",
			c.Token.RefreshBuffer, c.Token.Lifetime)
	}
	return nil
}

func (c *Config) validateIdentities() error {
	for _, id := range c.Client.Identities {
		if !hasIdentityPrefix(id) {
			return fmt.Errorf("MEDLINK_IDENTITIES: %q must start with one of %s",
				id, strings.Join(identityPrefixes, ", "))
		}
		if strings.HasPrefix(id, "calls_") && c.Client.CallsToken == "" {
			return fmt.Errorf("CALLS_TOKEN is required to open %q", id)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}

func hasIdentityPrefix(id string) bool {
	for _, p := range identityPrefixes {
		if strings.HasPrefix(id, p) && len(id) > len(p) {
			return true
		}
	}
	return false
}
