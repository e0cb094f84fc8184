// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"sync"
	"time"

	"github.com/tomtom215/medlink/internal/metrics"
)

// ping is the liveness payload sent on every open connection.
type ping struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type keepAlive struct {
	conn *Connection
	stop chan struct{}
	once sync.Once
}

func (k *keepAlive) halt() {
	k.once.Do(func() { close(k.stop) })
}

// startKeepAliveLocked starts the ping loop for c, replacing any loop that
// was running for identity.
func (m *Manager) startKeepAliveLocked(identity string, c *Connection) {
	m.stopKeepAliveLocked(identity)

	ka := &keepAlive{conn: c, stop: make(chan struct{})}
	m.keepalives[identity] = ka
	m.wg.Add(1)
	go m.keepAliveLoop(identity, ka, m.cfg.KeepAliveInterval)
}

// stopKeepAliveLocked stops identity's ping loop. Safe when none runs.
func (m *Manager) stopKeepAliveLocked(identity string) {
	if ka := m.keepalives[identity]; ka != nil {
		ka.halt()
		delete(m.keepalives, identity)
	}
}

func (m *Manager) keepAliveLoop(identity string, ka *keepAlive, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ka.stop:
			return
		case t := <-ticker.C:
			if ka.conn.State() != StateOpen {
				m.dropKeepAlive(identity, ka)
				return
			}
			if err := ka.conn.writeJSON(ping{Type: "ping", Timestamp: t.UnixMilli()}); err != nil {
				metrics.RecordKeepAlive(false)
				m.logger.Warn().Err(err).Str("identity", identity).Msg("Keep-alive failed")
				m.dropKeepAlive(identity, ka)
				return
			}
			metrics.RecordKeepAlive(true)
			m.logger.Trace().Str("identity", identity).Msg("Keep-alive sent")
		}
	}
}

// dropKeepAlive removes ka from the registry if it is still the current loop.
func (m *Manager) dropKeepAlive(identity string, ka *keepAlive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepalives[identity] == ka {
		delete(m.keepalives, identity)
	}
	ka.halt()
}
