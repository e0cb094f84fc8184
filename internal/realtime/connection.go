// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the lifecycle state of one transport connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeWriteWait bounds the close handshake write.
const closeWriteWait = time.Second

var errNotOpen = errors.New("connection is not open")

// Connection is one transport connection for an identity. A reconnect
// produces a new Connection; an existing one is never reopened.
type Connection struct {
	id       string
	identity string
	kind     Kind

	state        atomic.Int32
	lastActivity atomic.Int64
	intentional  atomic.Bool

	// counted is set while the connection contributes to the active count.
	// Guarded by Manager.mu.
	counted bool

	mu           sync.Mutex
	ws           *websocket.Conn
	openedAt     time.Time
	cancelDial   context.CancelFunc
	writeTimeout time.Duration

	closeOnce sync.Once
}

func newConnection(kind Kind, writeTimeout time.Duration) *Connection {
	c := &Connection{
		id:           uuid.NewString(),
		identity:     kind.Identity(),
		kind:         kind,
		writeTimeout: writeTimeout,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID is unique per transport connection.
func (c *Connection) ID() string { return c.id }

// Identity returns the registry key.
func (c *Connection) Identity() string { return c.identity }

// Kind returns the connection family and parameters.
func (c *Connection) Kind() Kind { return c.kind }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// OpenedAt returns when the transport opened, or the zero time.
func (c *Connection) OpenedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openedAt
}

// LastActivity returns the time of the last inbound or outbound message.
func (c *Connection) LastActivity() time.Time {
	n := c.lastActivity.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (c *Connection) touch(t time.Time) {
	c.lastActivity.Store(t.UnixNano())
}

// attach installs the dialed socket and marks the connection open.
func (c *Connection) attach(ws *websocket.Conn, readLimit int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	c.ws = ws
	c.openedAt = now
	c.cancelDial = nil
	c.touch(now)
	c.state.Store(int32(StateOpen))
}

// setDialCancel registers the cancel func of an in-progress dial.
func (c *Connection) setDialCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancelDial = cancel
	c.mu.Unlock()
}

// socket returns the attached socket, or nil while connecting.
func (c *Connection) socket() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

// writeJSON encodes v and writes it as one text frame. []byte and
// json.RawMessage values are written verbatim.
func (c *Connection) writeJSON(v any) error {
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case json.RawMessage:
		data = t
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateOpen || c.ws == nil {
		return errNotOpen
	}
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.touch(time.Now())
	return nil
}

// close sends a close frame with code, closes the socket and cancels an
// in-progress dial. Safe to call more than once.
func (c *Connection) close(code int) {
	c.closeOnce.Do(func() {
		c.intentional.Store(true)

		c.mu.Lock()
		defer c.mu.Unlock()

		c.state.Store(int32(StateClosing))
		if c.cancelDial != nil {
			c.cancelDial()
			c.cancelDial = nil
		}
		if c.ws != nil {
			// Best effort; the peer may already be gone.
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, ""),
				time.Now().Add(closeWriteWait),
			)
			_ = c.ws.Close()
		}
		c.state.Store(int32(StateClosed))
	})
}

// closeCode extracts the close code from a read error. Connections closed
// locally report a normal closure.
func (c *Connection) closeCode(err error) int {
	if c.intentional.Load() {
		return websocket.CloseNormalClosure
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
