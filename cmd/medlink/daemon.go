// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/middleware"
	"github.com/tomtom215/medlink/internal/realtime"
)

// target is one configured identity and how to open it.
type target struct {
	kind realtime.Kind
	cfg  realtime.ConnectionConfig
}

// parseTargets resolves MEDLINK_IDENTITIES. Identities of kinds that carry an
// external token use CALLS_TOKEN.
func parseTargets(cfg *config.Config) ([]target, error) {
	targets := make([]target, 0, len(cfg.Client.Identities))
	seen := make(map[string]bool, len(cfg.Client.Identities))

	for _, id := range cfg.Client.Identities {
		kind, err := realtime.ParseIdentity(id)
		if err != nil {
			return nil, err
		}
		if seen[kind.Identity()] {
			continue
		}
		seen[kind.Identity()] = true

		cc := connectionConfig(kind.Identity())
		if kind.ExternalToken() {
			if cfg.Client.CallsToken == "" {
				return nil, fmt.Errorf("identity %q requires CALLS_TOKEN", id)
			}
			cc.UseExistingToken = true
			cc.Token = cfg.Client.CallsToken
		}
		targets = append(targets, target{kind: kind, cfg: cc})
	}
	return targets, nil
}

// connectionConfig logs every message and status transition for identity.
func connectionConfig(identity string) realtime.ConnectionConfig {
	logger := logging.WithComponent("medlink").With().Str("identity", identity).Logger()
	return realtime.ConnectionConfig{
		OnMessage: func(msg realtime.Message) {
			logger.Info().
				Str("type", msg.Type).
				RawJSON("data", msg.Raw).
				Msg("Message received")
		},
		OnStatusChange: func(status realtime.Status, detail string) {
			ev := logger.Info()
			if status == realtime.StatusError || status == realtime.StatusFailed {
				ev = logger.Warn()
			}
			ev.Str("status", string(status)).Str("detail", detail).Msg("Connection status changed")
		},
	}
}

// connector is the subset of *realtime.Manager used to open targets.
type connector interface {
	CreateConnection(ctx context.Context, kind realtime.Kind, cfg realtime.ConnectionConfig) (*realtime.Connection, error)
}

// openTargets opens every target and joins the setup errors. Identities that
// are already open are reused.
func openTargets(ctx context.Context, m connector, targets []target) error {
	var errs []error
	for _, t := range targets {
		if _, err := m.CreateConnection(ctx, t.kind, t.cfg); err != nil {
			logging.Warn().Err(err).Str("identity", t.kind.Identity()).Msg("Failed to open connection")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// statsSource is satisfied by *realtime.Manager.
type statsSource interface {
	GetGlobalStats() realtime.GlobalStats
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status string `json:"status"`
	realtime.GlobalStats
}

// newRouter serves /healthz and, when enabled, the metrics endpoint.
func newRouter(stats statsSource, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s := stats.GetGlobalStats()
		resp := healthResponse{Status: "ok", GlobalStats: s}
		if s.ActiveConnections < len(s.Connections) {
			resp.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logging.Error().Err(err).Msg("Failed to encode health response")
		}
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	return r
}
