// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

// Package main is the medlink development relay.
//
// The relay issues JWT connection tokens on the token endpoint, serves the
// notifications, consultation and incoming-calls transports, answers pings
// and fans out payloads posted to /api/v1/relay/publish or, when NATS is
// enabled, published on <RELAY_NATS_SUBJECT>.<family>.<id>. It exists for local
// development and end-to-end testing of medlink clients.
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export RELAY_PORT=8080
//	./relay
//
//	export REALTIME_ORIGIN=http://localhost:8080
//	export MEDLINK_IDENTITIES=notifications_42
//	./medlink
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/medlink/internal/auth"
	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/relay"
	"github.com/tomtom215/medlink/internal/supervisor"
	"github.com/tomtom215/medlink/internal/supervisor/services"
	"github.com/tomtom215/medlink/internal/websocket"
)

const publishQueueSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.ValidateRelay(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid relay configuration")
	}

	logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Caller:  cfg.Logging.Caller,
		Service: "medlink-relay",
	})

	jwtManager, err := auth.NewJWTManager(&cfg.Relay)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	hub := websocket.NewHub(publishQueueSize)
	srv := relay.NewServer(&cfg.Relay, cfg.Token.Path, jwtManager, hub)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		Name:            "medlink-relay",
		ShutdownTimeout: cfg.Client.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	server := &http.Server{
		Addr:              cfg.Relay.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddRealtimeService(services.NewHubService(hub))

	if nc := cfg.Relay.NATS; nc.Enabled() {
		natsURL := nc.URL
		if nc.Embedded {
			embedded, err := relay.StartEmbeddedNATS(&nc)
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			defer embedded.Shutdown()
			if natsURL == "" {
				natsURL = embedded.ClientURL()
			}
		}
		tree.AddRealtimeService(relay.NewNATSBridge(natsURL, nc.Subject, hub))
	}

	tree.AddAPIService(services.NewNamedHTTPServerService("relay-http", server, cfg.Client.ShutdownTimeout))

	logging.Info().
		Str("addr", server.Addr).
		Str("token_path", cfg.Token.Path).
		Dur("token_ttl", jwtManager.TTL()).
		Msg("Starting relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor shutdown error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Relay stopped")
}
