// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/medlink/internal/logging"
)

// ConnectionManager is satisfied by *realtime.Manager.
type ConnectionManager interface {
	Shutdown(ctx context.Context) error
}

// Stopper is satisfied by *realtime.Monitor.
type Stopper interface {
	Stop()
}

// ConnectionManagerService owns the connection manager's lifetime under a
// supervisor. On start it runs open; a failed open is returned so the
// supervisor retries it with backoff. On shutdown the monitor is stopped
// before the manager is drained.
type ConnectionManagerService struct {
	manager         ConnectionManager
	monitor         Stopper
	open            func(ctx context.Context) error
	shutdownTimeout time.Duration
}

// NewConnectionManagerService wraps manager. monitor and open may be nil.
func NewConnectionManagerService(manager ConnectionManager, monitor Stopper, open func(ctx context.Context) error, shutdownTimeout time.Duration) *ConnectionManagerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &ConnectionManagerService{
		manager:         manager,
		monitor:         monitor,
		open:            open,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service.
func (s *ConnectionManagerService) Serve(ctx context.Context) error {
	if s.open != nil {
		if err := s.open(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("open connections: %w", err)
		}
	}

	<-ctx.Done()

	if s.monitor != nil {
		s.monitor.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.manager.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Connection manager did not drain in time")
		return fmt.Errorf("connection manager shutdown: %w", err)
	}
	return ctx.Err()
}

func (s *ConnectionManagerService) String() string {
	return "connection-manager"
}
