// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/metrics"
	"github.com/tomtom215/medlink/internal/websocket"
)

func TestChannelForSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    string
		ok      bool
	}{
		{"medlink.relay.notifications.42", "notifications/42", true},
		{"medlink.relay.consultations.c-917", "consultations/c-917", true},
		{"medlink.relay.notifications", "", false},
		{"medlink.relay.notifications.a.b", "", false},
		{"medlink.relay.Bad.1", "", false},
		{"other.notifications.42", "", false},
		{"medlink.relayx.notifications.42", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got, ok := channelForSubject("medlink.relay", tt.subject)
			if ok != tt.ok || got != tt.want {
				t.Errorf("channelForSubject(%q) = %q, %v; want %q, %v", tt.subject, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type publication struct {
	channel string
	data    string
}

type fakePublisher struct {
	ch chan publication
}

func (f *fakePublisher) Publish(channel string, data []byte) bool {
	f.ch <- publication{channel: channel, data: string(data)}
	return true
}

func startEmbedded(t *testing.T) *EmbeddedNATS {
	t.Helper()
	ns, err := StartEmbeddedNATS(&config.NATSConfig{Host: "127.0.0.1", Port: -1, Subject: "medlink.relay"})
	if err != nil {
		t.Fatalf("StartEmbeddedNATS: %v", err)
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func waitSubscribed(t *testing.T, ns *EmbeddedNATS) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ns.server.GlobalAccount().SubscriptionInterest("medlink.relay.probe.1") {
		if time.Now().After(deadline) {
			t.Fatal("bridge did not subscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNATSBridge_ForwardsValidMessages(t *testing.T) {
	ns := startEmbedded(t)
	pub := &fakePublisher{ch: make(chan publication, 8)}
	bridge := NewNATSBridge(ns.ClientURL(), "medlink.relay", pub)
	if bridge.String() != "nats-bridge" {
		t.Errorf("String() = %q", bridge.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- bridge.Serve(ctx) }()
	waitSubscribed(t, ns)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	invalidBefore := testutil.ToFloat64(metrics.RelayNATSMessages.WithLabelValues("invalid_payload"))

	_ = nc.Publish("medlink.relay.notifications", []byte(`{"type":"x"}`))
	_ = nc.Publish("medlink.relay.notifications.42", []byte(`not json`))
	_ = nc.Publish("medlink.relay.notifications.42", []byte(`{"type":"appointment","id":7}`))
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case p := <-pub.ch:
		if p.channel != "notifications/42" || p.data != `{"type":"appointment","id":7}` {
			t.Errorf("publication = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no publication forwarded")
	}

	select {
	case p := <-pub.ch:
		t.Errorf("unexpected publication %+v", p)
	case <-time.After(100 * time.Millisecond):
	}

	if got := testutil.ToFloat64(metrics.RelayNATSMessages.WithLabelValues("invalid_payload")) - invalidBefore; got != 1 {
		t.Errorf("invalid_payload delta = %v, want 1", got)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestNATSBridge_ConnectFailure(t *testing.T) {
	bridge := NewNATSBridge("nats://127.0.0.1:1", "medlink.relay", &fakePublisher{})
	if err := bridge.Serve(context.Background()); err == nil {
		t.Error("expected connect error")
	}
}

func TestNATSBridge_DeliversToRelayClients(t *testing.T) {
	ns := startEmbedded(t)
	tr := newTestRelay(t, testRelayConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = NewNATSBridge(ns.ClientURL(), "medlink.relay", tr.hub).Serve(ctx) }()
	waitSubscribed(t, ns)

	conn, _, err := gorillaws.DefaultDialer.Dial(tr.wsURL("/ws/consultations/917?token="+tr.token(t)), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	tr.waitClients(t, "consultations/917", 1)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	if err := nc.Publish("medlink.relay.consultations.917", []byte(`{"type":"vitals","bpm":72}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"vitals","bpm":72}` {
		t.Errorf("got %s", data)
	}
}

var _ Publisher = (*websocket.Hub)(nil)
