// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/medlink/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter gives clients monotonically increasing IDs so fan-out
// order is stable.
var clientIDCounter atomic.Uint64

// envelope is the part of an inbound frame the relay inspects.
type envelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Client is one relay WebSocket subscribed to a single channel.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	channel string
	subject string
	expires time.Time

	// send is closed by the hub when the client leaves.
	send chan []byte
	// control carries pong replies; it is never closed.
	control chan []byte
}

// NewClient creates a client for channel. The relay closes the socket with
// code 1008 once expires passes; a zero expires never expires.
func NewClient(hub *Hub, conn *websocket.Conn, channel, subject string, expires time.Time, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		channel: channel,
		subject: subject,
		expires: expires,
		send:    make(chan []byte, sendBuffer),
		control: make(chan []byte, 4),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Channel returns the channel the client is subscribed to.
func (c *Client) Channel() string {
	return c.channel
}

// readPump answers pings and republishes every other frame to the channel.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("channel", c.channel).Msg("unexpected websocket close error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Debug().Err(err).Str("channel", c.channel).Msg("ignoring malformed client frame")
			continue
		}

		if env.Type == MessageTypePing {
			pong, _ := json.Marshal(envelope{Type: MessageTypePong, Timestamp: env.Timestamp})
			select {
			case c.control <- pong:
			default:
			}
			continue
		}

		c.hub.enqueue(publication{channel: c.channel, data: data, from: c})
	}
}

// writePump writes queued payloads, pongs and transport pings, and closes
// the socket when the hub drops the client or the token expires.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	var expired <-chan time.Time
	if !c.expires.IsZero() {
		timer := time.NewTimer(time.Until(c.expires))
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug().Err(err).Str("channel", c.channel).Msg("failed to write message")
				return
			}

		case pong := <-c.control:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-expired:
			logging.Info().Str("channel", c.channel).Str("subject", c.subject).Msg("connection token expired")
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired"))
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start joins the hub and begins reading and writing.
func (c *Client) Start() {
	c.hub.Join(c)
	go c.writePump()
	go c.readPump()
}
