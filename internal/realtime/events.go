// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/medlink/internal/metrics"
)

// readLoop delivers inbound frames until the transport closes, then runs the
// close transition. One goroutine per connection keeps per-identity order.
func (m *Manager) readLoop(c *Connection) {
	defer m.wg.Done()

	ws := c.socket()
	if ws == nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			m.handleClose(c, err)
			return
		}
		m.handleMessage(c, data)
	}
}

func (m *Manager) handleMessage(c *Connection, data []byte) {
	now := m.now()
	c.touch(now)

	m.mu.Lock()
	m.stats.lastActivity = now
	var b *binding
	if m.conns[c.identity] == c {
		b = m.handlers[c.identity]
	}
	m.mu.Unlock()

	msg, err := decodeMessage(c.identity, data)
	if err != nil {
		metrics.RealtimeDecodeErrors.WithLabelValues(c.kind.Family()).Inc()
		m.logger.Warn().
			Err(fmt.Errorf("%w: %v", ErrMessageDecode, err)).
			Str("identity", c.identity).
			Int("bytes", len(data)).
			Msg("Dropping undecodable message")
		return
	}

	// Keep-alive replies only refresh activity.
	if msg.Type == "pong" {
		return
	}

	metrics.RealtimeMessagesReceived.WithLabelValues(c.kind.Family()).Inc()
	if b == nil || b.cfg.OnMessage == nil {
		return
	}
	defer m.recoverCallback(c.identity, "message")
	b.cfg.OnMessage(msg)
}

// handleClose runs the close transition for c. Only the currently registered
// connection for an identity reports status or schedules a reconnect.
func (m *Manager) handleClose(c *Connection, readErr error) {
	code := c.closeCode(readErr)
	identity := c.identity

	var ce *websocket.CloseError
	transportFailure := !c.intentional.Load() && !errors.As(readErr, &ce)

	m.mu.Lock()
	m.uncountLocked(c)
	if ka := m.keepalives[identity]; ka != nil && ka.conn == c {
		m.stopKeepAliveLocked(identity)
	}

	registered := m.conns[identity] == c
	if registered {
		delete(m.conns, identity)
	}
	c.state.Store(int32(StateClosed))

	b := m.handlers[identity]
	reconnect := registered && b != nil &&
		code != websocket.CloseNormalClosure &&
		!m.shuttingDown.Load() && !m.closed
	if registered && !reconnect {
		delete(m.handlers, identity)
		if rs := m.reconnects[identity]; rs != nil {
			m.clearReconnectLocked(identity, rs)
		}
	}
	m.mu.Unlock()

	// Closing the socket releases the file descriptor when the peer went away.
	_ = c.socket().Close()

	metrics.RecordDisconnect(c.kind.Family(), code)
	m.logger.Info().
		Str("identity", identity).
		Str("connection_id", c.id).
		Int("code", code).
		Bool("reconnect", reconnect).
		Msg("Connection closed")

	if code == websocket.ClosePolicyViolation {
		m.tokens.Invalidate()
	}

	if !registered || b == nil {
		return
	}

	if transportFailure {
		m.notify(identity, b.cfg, StatusError, fmt.Errorf("%w: %v", ErrTransport, readErr).Error())
	}
	m.notify(identity, b.cfg, StatusDisconnected, closeReason(code, readErr))

	if reconnect {
		m.scheduleReconnection(identity)
	}
}

func closeReason(code int, err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Text != "" {
		return fmt.Sprintf("code %d: %s", code, ce.Text)
	}
	return fmt.Sprintf("code %d", code)
}
