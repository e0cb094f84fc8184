// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
	"github.com/tomtom215/medlink/internal/validation"
)

const natsBuffer = 256

// EmbeddedNATS is an in-process NATS server for local development, so
// backend services can publish to the relay without external infrastructure.
type EmbeddedNATS struct {
	server *server.Server
}

// StartEmbeddedNATS starts a NATS server on cfg.Host:cfg.Port. A port of -1
// picks a random free port.
func StartEmbeddedNATS(cfg *config.NATSConfig) (*EmbeddedNATS, error) {
	opts := &server.Options{
		ServerName: "medlink-relay",
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoSigs:     true,
		NoLog:      true,
		MaxPayload: maxPublishBody,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("Embedded NATS server started")
	return &EmbeddedNATS{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (e *EmbeddedNATS) ClientURL() string {
	return e.server.ClientURL()
}

// Shutdown stops the server and waits for it to exit.
func (e *EmbeddedNATS) Shutdown() {
	e.server.Shutdown()
	e.server.WaitForShutdown()
}

// Publisher is satisfied by *websocket.Hub.
type Publisher interface {
	Publish(channel string, data []byte) bool
}

// NATSBridge republishes NATS messages on <subject>.<family>.<id> to relay
// channel <family>/<id>. It implements suture.Service.
type NATSBridge struct {
	url     string
	subject string
	hub     Publisher
}

// NewNATSBridge creates a bridge from the NATS server at url to hub.
func NewNATSBridge(url, subject string, hub Publisher) *NATSBridge {
	return &NATSBridge{url: url, subject: subject, hub: hub}
}

// Serve subscribes and forwards until ctx is canceled.
func (b *NATSBridge) Serve(ctx context.Context) error {
	logger := logging.WithComponent("nats-bridge")

	nc, err := nats.Connect(b.url,
		nats.Name("medlink-relay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, natsBuffer)
	sub, err := nc.ChanSubscribe(b.subject+".>", msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", b.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	logger.Info().Str("url", b.url).Str("subject", b.subject+".>").Msg("NATS bridge started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("NATS bridge stopped")
			return ctx.Err()
		case m := <-msgs:
			b.handle(m)
		}
	}
}

func (b *NATSBridge) handle(m *nats.Msg) {
	channel, ok := channelForSubject(b.subject, m.Subject)
	if !ok {
		metrics.RelayNATSMessages.WithLabelValues("invalid_subject").Inc()
		logging.Warn().Str("subject", m.Subject).Msg("Ignoring NATS message with unmappable subject")
		return
	}
	if !json.Valid(m.Data) {
		metrics.RelayNATSMessages.WithLabelValues("invalid_payload").Inc()
		logging.Warn().Str("subject", m.Subject).Msg("Ignoring NATS message with non-JSON payload")
		return
	}
	if !b.hub.Publish(channel, m.Data) {
		metrics.RelayNATSMessages.WithLabelValues("queue_full").Inc()
		return
	}
	metrics.RelayNATSMessages.WithLabelValues("published").Inc()
}

func (b *NATSBridge) String() string {
	return "nats-bridge"
}

// channelForSubject maps <prefix>.<family>.<id> to <family>/<id>.
func channelForSubject(prefix, subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return "", false
	}
	family, id, ok := strings.Cut(rest, ".")
	if !ok {
		return "", false
	}
	channel := family + "/" + id
	if err := validation.GetValidator().Var(channel, "channel"); err != nil {
		return "", false
	}
	return channel, true
}
