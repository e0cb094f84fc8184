// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package websocket

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types understood by the relay.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// publication is one payload destined for every client of a channel except from.
type publication struct {
	channel string
	data    []byte
	from    *Client
}

// Hub tracks relay clients by channel and fans published payloads out to them.
// Channels are "<family>/<id>", e.g. "consultations/917".
//
// Join and Leave are synchronous; publications are queued and delivered by
// RunWithContext in publish order.
type Hub struct {
	channels map[string]map[*Client]bool
	publish  chan publication
	mu       sync.RWMutex
}

// NewHub creates a hub whose publish queue holds queueSize payloads.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		channels: make(map[string]map[*Client]bool),
		publish:  make(chan publication, queueSize),
	}
}

// RunWithContext delivers publications until ctx is done, then closes every
// client. It is the body of the relay hub's suture service.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown wins over pending publications.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case pub := <-h.publish:
			h.deliver(pub)
		}
	}
}

// Join subscribes client to its channel.
func (h *Hub) Join(client *Client) {
	h.mu.Lock()
	set := h.channels[client.channel]
	if set == nil {
		set = make(map[*Client]bool)
		h.channels[client.channel] = set
	}
	set[client] = true
	total := len(set)
	h.mu.Unlock()

	metrics.RelayClients.WithLabelValues(channelFamily(client.channel)).Inc()
	logging.Info().
		Str("channel", client.channel).
		Str("subject", client.subject).
		Int("channel_clients", total).
		Msg("relay client connected")
}

// Leave unsubscribes client and closes its queue. Calling it twice is harmless.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client)
	h.mu.Unlock()

	if removed {
		logging.Info().Str("channel", client.channel).Msg("relay client disconnected")
	}
}

// removeLocked drops client and closes its queue. Reports whether it was present.
func (h *Hub) removeLocked(client *Client) bool {
	set := h.channels[client.channel]
	if !set[client] {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.channels, client.channel)
	}
	close(client.send)
	metrics.RelayClients.WithLabelValues(channelFamily(client.channel)).Dec()
	return true
}

// deliver queues pub on every subscriber in client ID order. Subscribers
// whose queue is full are disconnected.
func (h *Hub) deliver(pub publication) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.channels[pub.channel]
	clients := make([]*Client, 0, len(set))
	for client := range set {
		if client != pub.from {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- pub.data:
			metrics.RelayMessages.WithLabelValues("out").Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.RelayMessages.WithLabelValues("dropped").Inc()
		logging.Warn().Str("channel", client.channel).Uint64("client_id", client.id).Msg("relay client too slow, disconnecting")
		h.removeLocked(client)
	}
}

// Publish queues data for every client of channel. It returns false when the
// publish queue is full and the payload was dropped.
func (h *Hub) Publish(channel string, data []byte) bool {
	return h.enqueue(publication{channel: channel, data: data})
}

func (h *Hub) enqueue(pub publication) bool {
	select {
	case h.publish <- pub:
		metrics.RelayMessages.WithLabelValues("in").Inc()
		return true
	default:
		metrics.RelayMessages.WithLabelValues("dropped").Inc()
		logging.Warn().Str("channel", pub.channel).Msg("publish queue full, dropping message")
		return false
	}
}

// logGracefulShutdown closes every client and records why the hub stopped.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "relay-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("relay hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.channels {
		for client := range set {
			h.removeLocked(client)
		}
	}
}

// GetClientCount returns the number of connected clients across channels.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.channels {
		n += len(set)
	}
	return n
}

// ChannelClients returns the number of clients subscribed to channel.
func (h *Hub) ChannelClients(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func channelFamily(channel string) string {
	family, _, _ := strings.Cut(channel, "/")
	return family
}
