// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/tomtom215/medlink/internal/logging"
)

// NetworkProbe reports reachability of the origin host to a Monitor by
// dialing it periodically. It implements suture.Service.
type NetworkProbe struct {
	mon      *Monitor
	addr     string
	interval time.Duration
	timeout  time.Duration
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewNetworkProbe creates a probe for origin's host. Ports default from the
// scheme when the origin has none.
func NewNetworkProbe(mon *Monitor, origin string, interval, timeout time.Duration) (*NetworkProbe, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}
	if port == "" {
		port = "80"
		if u.Scheme == "https" || u.Scheme == "wss" {
			port = "443"
		}
	}

	d := &net.Dialer{Timeout: timeout}
	return &NetworkProbe{
		mon:      mon,
		addr:     net.JoinHostPort(host, port),
		interval: interval,
		timeout:  timeout,
		dial:     d.DialContext,
	}, nil
}

// Serve probes until ctx is cancelled.
func (p *NetworkProbe) Serve(ctx context.Context) error {
	logger := logging.WithComponent("network-probe")
	logger.Info().Str("addr", p.addr).Dur("interval", p.interval).Msg("Network probe started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.check(ctx)

		select {
		case <-ctx.Done():
			logger.Info().Msg("Network probe stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *NetworkProbe) check(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", p.addr)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if p.mon.Online() {
			logging.Warn().Err(err).Str("addr", p.addr).Msg("Origin unreachable; marking offline")
		}
		p.mon.SetOnline(false)
		return
	}
	_ = conn.Close()
	p.mon.SetOnline(true)
}

// String returns the service name for supervisor logging.
func (p *NetworkProbe) String() string {
	return "network-probe"
}
