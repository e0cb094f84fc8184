// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

// Package main is the medlink client daemon.
//
// medlink keeps the configured real-time connections open against a
// telemedicine backend, logs every message and status transition, and serves
// /metrics and /healthz for operators.
//
// # Configuration
//
// Loaded via Koanf v2 (defaults, then config.yaml, then environment):
//
//	export REALTIME_ORIGIN=https://clinic.example.com
//	export SESSION_TOKEN=...
//	export MEDLINK_IDENTITIES=notifications_42,consultation_917,calls_42
//	export CALLS_TOKEN=...   # required for calls_ identities
//	./medlink
//
// # Signal Handling
//
// SIGINT and SIGTERM close every connection, stop pending reconnects and
// drain the HTTP server within SHUTDOWN_TIMEOUT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/realtime"
	"github.com/tomtom215/medlink/internal/supervisor"
	"github.com/tomtom215/medlink/internal/supervisor/services"
	"github.com/tomtom215/medlink/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Service: "medlink",
	})
	logging.Info().Str("config", cfg.String()).Msg("Starting medlink")

	targets, err := parseTargets(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid identities")
	}
	if len(targets) == 0 {
		logging.Warn().Msg("No identities configured; set MEDLINK_IDENTITIES")
	}

	fetcher := token.NewHTTPFetcher(token.HTTPFetcherConfig{
		URL:             cfg.TokenURL(),
		SessionToken:    cfg.Token.SessionToken,
		Timeout:         cfg.Token.RequestTimeout,
		BreakerFailures: cfg.Token.BreakerFailures,
		BreakerTimeout:  cfg.Token.BreakerTimeout,
	})
	tokens := token.NewCache(fetcher,
		token.WithLifetime(cfg.Token.Lifetime),
		token.WithRefreshBuffer(cfg.Token.RefreshBuffer),
	)

	manager, err := realtime.NewManager(&cfg.Realtime, tokens)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create connection manager")
	}
	monitor := realtime.NewMonitor(manager, &cfg.Environment)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		Name:            "medlink",
		ShutdownTimeout: cfg.Client.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddRealtimeService(services.NewConnectionManagerService(
		manager, monitor,
		func(ctx context.Context) error { return openTargets(ctx, manager, targets) },
		cfg.Client.ShutdownTimeout,
	))

	if cfg.Environment.ProbeEnabled {
		probe, err := realtime.NewNetworkProbe(monitor, cfg.Realtime.Origin,
			cfg.Environment.ProbeInterval, cfg.Environment.ProbeTimeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create network probe")
		}
		tree.AddRealtimeService(probe)
	}

	server := &http.Server{
		Addr:              cfg.Client.HTTPAddr,
		Handler:           newRouter(manager, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewNamedHTTPServerService("medlink-http", server, cfg.Client.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor shutdown error")
	}

	// The service may have been in restart backoff when the tree stopped.
	monitor.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Client.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Connection manager did not stop cleanly")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("medlink stopped")
}
