// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package websocket

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// runHub starts hub and stops it when the test ends.
func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// createTestClient creates a client without a socket.
func createTestClient(hub *Hub, channel string, buffer int) *Client {
	return NewClient(hub, nil, channel, "tester", time.Time{}, buffer)
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client queue closed")
		}
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected payload %s", data)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHub_JoinLeave(t *testing.T) {
	hub := NewHub(16)

	a := createTestClient(hub, "consultations/1", 4)
	b := createTestClient(hub, "consultations/1", 4)
	c := createTestClient(hub, "notifications/9", 4)

	hub.Join(a)
	hub.Join(b)
	hub.Join(c)

	if got := hub.GetClientCount(); got != 3 {
		t.Errorf("GetClientCount() = %d, want 3", got)
	}
	if got := hub.ChannelClients("consultations/1"); got != 2 {
		t.Errorf("ChannelClients() = %d, want 2", got)
	}

	hub.Leave(a)
	hub.Leave(a)
	if got := hub.ChannelClients("consultations/1"); got != 1 {
		t.Errorf("ChannelClients() after leave = %d, want 1", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("send queue should be closed after Leave")
	}

	hub.Leave(b)
	hub.Leave(c)
	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("GetClientCount() = %d, want 0", got)
	}
	if got := len(hub.channels); got != 0 {
		t.Errorf("channels = %d, want 0 after last client left", got)
	}
}

func TestHub_PublishFansOutPerChannel(t *testing.T) {
	hub := NewHub(16)
	runHub(t, hub)

	a := createTestClient(hub, "consultations/1", 4)
	b := createTestClient(hub, "consultations/1", 4)
	other := createTestClient(hub, "consultations/2", 4)
	hub.Join(a)
	hub.Join(b)
	hub.Join(other)

	payload := []byte(`{"type":"chat","text":"hello"}`)
	if !hub.Publish("consultations/1", payload) {
		t.Fatal("Publish() = false")
	}

	for _, c := range []*Client{a, b} {
		if got := receive(t, c); string(got) != string(payload) {
			t.Errorf("client %d got %s", c.ID(), got)
		}
	}
	expectNothing(t, other)
}

func TestHub_RepublishSkipsSender(t *testing.T) {
	hub := NewHub(16)
	runHub(t, hub)

	sender := createTestClient(hub, "calls/3", 4)
	peer := createTestClient(hub, "calls/3", 4)
	hub.Join(sender)
	hub.Join(peer)

	hub.enqueue(publication{channel: "calls/3", data: []byte(`{"type":"offer"}`), from: sender})

	receive(t, peer)
	expectNothing(t, sender)
}

func TestHub_PublishOrder(t *testing.T) {
	hub := NewHub(64)
	runHub(t, hub)

	c := createTestClient(hub, "notifications/1", 64)
	hub.Join(c)

	for i := 0; i < 20; i++ {
		hub.Publish("notifications/1", []byte{byte('a' + i)})
	}
	for i := 0; i < 20; i++ {
		if got := receive(t, c); got[0] != byte('a'+i) {
			t.Fatalf("payload %d = %q", i, got)
		}
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := NewHub(16)

	slow := createTestClient(hub, "notifications/1", 1)
	hub.Join(slow)

	before := testutil.ToFloat64(metrics.RelayMessages.WithLabelValues("dropped"))

	hub.deliver(publication{channel: "notifications/1", data: []byte("1")})
	hub.deliver(publication{channel: "notifications/1", data: []byte("2")})

	if got := hub.ChannelClients("notifications/1"); got != 0 {
		t.Errorf("ChannelClients() = %d, want 0", got)
	}
	if data := <-slow.send; string(data) != "1" {
		t.Errorf("first payload = %q", data)
	}
	if _, ok := <-slow.send; ok {
		t.Error("queue should be closed after disconnect")
	}
	if after := testutil.ToFloat64(metrics.RelayMessages.WithLabelValues("dropped")); after != before+1 {
		t.Errorf("dropped = %v, want %v", after, before+1)
	}
}

func TestHub_PublishQueueFull(t *testing.T) {
	hub := NewHub(1)

	if !hub.Publish("notifications/1", []byte("a")) {
		t.Fatal("first Publish() = false")
	}
	if hub.Publish("notifications/1", []byte("b")) {
		t.Error("Publish() on full queue = true")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	c := createTestClient(hub, "consultations/7", 4)
	hub.Join(c)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-c.send; ok {
		t.Error("client queue should be closed on shutdown")
	}
	if got := hub.GetClientCount(); got != 0 {
		t.Errorf("GetClientCount() = %d, want 0", got)
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}

	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}
