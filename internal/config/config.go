// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all configuration for the medlink client daemon and the relay.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: Override any mapped setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Realtime    RealtimeConfig    `koanf:"realtime"`
	Token       TokenConfig       `koanf:"token"`
	Environment EnvironmentConfig `koanf:"environment"`
	Client      ClientConfig      `koanf:"client"`
	Relay       RelayConfig       `koanf:"relay"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// RealtimeConfig controls the connection manager.
//
// Environment Variables:
//   - REALTIME_ORIGIN: application origin; https maps to wss, http to ws
//   - RECONNECT_BASE_DELAY: first backoff delay (default: 1s)
//   - RECONNECT_MAX_DELAY: backoff ceiling before jitter (default: 30s)
//   - RECONNECT_JITTER: upper bound of the random jitter term (default: 1s)
//   - RECONNECT_MAX_ATTEMPTS: attempts before giving up, 0 = unbounded (default: 10)
//   - KEEPALIVE_INTERVAL: ping interval on open connections (default: 30s)
//   - DIAL_HANDSHAKE_TIMEOUT: WebSocket handshake timeout (default: 10s)
type RealtimeConfig struct {
	Origin            string        `koanf:"origin" validate:"required,origin"`
	BaseDelay         time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `koanf:"max_delay" validate:"gt=0"`
	Jitter            time.Duration `koanf:"jitter" validate:"gte=0"`
	MaxAttempts       int           `koanf:"max_attempts" validate:"gte=0"`
	KeepAliveInterval time.Duration `koanf:"keepalive_interval" validate:"gt=0"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`

	// ReadLimit caps a single inbound message in bytes.
	ReadLimit int64 `koanf:"read_limit" validate:"gt=0"`
}

// TokenConfig controls how connection tokens are fetched and cached.
//
// Environment Variables:
//   - TOKEN_PATH: token endpoint path on the origin (default: /api/realtime/token)
//   - SESSION_TOKEN: bearer credential sent to the token endpoint
//   - TOKEN_LIFETIME: assumed validity of an issued token (default: 1h)
//   - TOKEN_REFRESH_BUFFER: refresh this long before expiry (default: 5m)
//   - TOKEN_REQUEST_TIMEOUT: HTTP timeout for one fetch (default: 10s)
//   - TOKEN_BREAKER_FAILURES: consecutive failures that open the breaker (default: 5)
//   - TOKEN_BREAKER_TIMEOUT: open-state duration of the breaker (default: 30s)
type TokenConfig struct {
	Path            string        `koanf:"path" validate:"required,startswith=/"`
	SessionToken    string        `koanf:"session_token"`
	Lifetime        time.Duration `koanf:"lifetime" validate:"gt=0"`
	RefreshBuffer   time.Duration `koanf:"refresh_buffer" validate:"gte=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// EnvironmentConfig controls visibility and network recovery.
//
// Environment Variables:
//   - ENV_SETTLE_DELAY: wait after resume before recovery (default: 1s)
//   - RECOVERY_RATE: recovery dials per second (default: 5)
//   - RECOVERY_BURST: recovery dial burst (default: 5)
//   - NETWORK_PROBE_ENABLED: dial the origin periodically to detect outages (default: true)
//   - NETWORK_PROBE_INTERVAL: probe interval (default: 15s)
//   - NETWORK_PROBE_TIMEOUT: probe dial timeout (default: 3s)
type EnvironmentConfig struct {
	SettleDelay   time.Duration `koanf:"settle_delay" validate:"gte=0"`
	RecoveryRate  float64       `koanf:"recovery_rate" validate:"gt=0"`
	RecoveryBurst int           `koanf:"recovery_burst" validate:"gt=0"`
	ProbeEnabled  bool          `koanf:"probe_enabled"`
	ProbeInterval time.Duration `koanf:"probe_interval" validate:"gt=0"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout" validate:"gt=0"`
}

// ClientConfig controls the medlink daemon.
//
// Environment Variables:
//   - MEDLINK_IDENTITIES: comma-separated identities to open (e.g. notifications_42,consultation_917)
//   - CALLS_TOKEN: externally issued token for calls_ identities
//   - HTTP_ADDR: listen address for /metrics and /healthz (default: :9464)
//   - SHUTDOWN_TIMEOUT: graceful shutdown budget (default: 15s)
type ClientConfig struct {
	Identities      []string      `koanf:"identities"`
	CallsToken      string        `koanf:"calls_token"`
	HTTPAddr        string        `koanf:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// RelayConfig controls the development relay backend.
//
// Environment Variables:
//   - RELAY_HOST / RELAY_PORT: listen address (default: 0.0.0.0:8080)
//   - JWT_SECRET: HMAC secret for connection tokens (required, 32+ characters)
//   - RELAY_TOKEN_TTL: validity of issued tokens (default: 1h)
//   - RELAY_ISSUER: JWT issuer claim (default: medlink-relay)
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: token endpoint rate limit (default: 60 per 1m)
//   - RELAY_SEND_BUFFER: per-client outbound queue length (default: 256)
//   - RELAY_NATS_URL: NATS server to ingest publications from (default: none)
//   - RELAY_NATS_EMBEDDED: run an embedded NATS server for local use (default: false)
//   - RELAY_NATS_HOST / RELAY_NATS_PORT: embedded server listen address (default: 127.0.0.1:4222)
//   - RELAY_NATS_SUBJECT: subject prefix; <prefix>.<family>.<id> maps to channel <family>/<id> (default: medlink.relay)
type RelayConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl" validate:"gt=0"`
	Issuer          string        `koanf:"issuer" validate:"required"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	SendBuffer      int           `koanf:"send_buffer" validate:"gt=0"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig controls the relay's optional NATS ingest.
type NATSConfig struct {
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"gte=-1,lte=65535"`
	Subject  string `koanf:"subject" validate:"required"`
}

// Enabled reports whether the relay should subscribe to NATS.
func (n NATSConfig) Enabled() bool {
	return n.URL != "" || n.Embedded
}

// Addr returns the relay listen address.
func (r RelayConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// MetricsConfig controls Prometheus exposition.
//
// Environment Variables:
//   - METRICS_ENABLED: serve the metrics endpoint (default: true)
//   - METRICS_PATH: metrics endpoint path (default: /metrics)
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required,startswith=/"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TokenURL joins the realtime origin and the token path.
func (c *Config) TokenURL() string {
	return trimTrailingSlash(c.Realtime.Origin) + c.Token.Path
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// String summarises the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("origin=%s identities=%d max_attempts=%d keepalive=%s",
		c.Realtime.Origin, len(c.Client.Identities), c.Realtime.MaxAttempts, c.Realtime.KeepAliveInterval)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
