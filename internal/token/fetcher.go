// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

// maxTokenResponseBytes bounds the token endpoint response body.
const maxTokenResponseBytes = 64 << 10

// Fetcher obtains a fresh connection token from an issuer.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (string, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	// URL is the absolute token endpoint URL.
	URL string

	// SessionToken, when set, is sent as "Authorization: Bearer <token>".
	SessionToken string

	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that open the breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// tokenResponse is the token endpoint body: {"token": "..."}.
type tokenResponse struct {
	Token string `json:"token"`
}

// HTTPFetcher fetches tokens with GET requests behind a circuit breaker, so an
// unavailable issuer fails fast instead of stacking up reconnect attempts.
type HTTPFetcher struct {
	client  *http.Client
	url     string
	session string
	cb      *gobreaker.CircuitBreaker[string]
	name    string
}

// NewHTTPFetcher creates a token fetcher for cfg.URL.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	name := "token-endpoint"

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= failures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening token endpoint circuit")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &HTTPFetcher{
		client:  client,
		url:     cfg.URL,
		session: cfg.SessionToken,
		cb:      cb,
		name:    name,
	}
}

// Fetch performs one token request through the circuit breaker.
func (f *HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	tok, err := f.cb.Execute(func() (string, error) {
		return f.do(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(f.name, "rejected").Inc()
			return "", &FetchError{Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(f.name, "failure").Inc()
		return "", asFetchError(err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(f.name, "success").Inc()
	return tok, nil
}

// State returns the breaker state for health reporting.
func (f *HTTPFetcher) State() gobreaker.State {
	return f.cb.State()
}

func (f *HTTPFetcher) do(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.session != "" {
		req.Header.Set("Authorization", "Bearer "+f.session)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return "", &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected response %q", truncate(string(body), 128))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	if tr.Token == "" {
		return "", &FetchError{Status: resp.StatusCode, Err: errEmptyToken}
	}
	return tr.Token, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
