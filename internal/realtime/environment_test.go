// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/medlink/internal/config"
)

func testEnvironmentConfig(settle time.Duration) *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		SettleDelay:   settle,
		RecoveryRate:  100,
		RecoveryBurst: 10,
		ProbeInterval: time.Second,
		ProbeTimeout:  time.Second,
	}
}

// dropFirstServer closes the first connection abruptly and keeps the rest open.
func dropFirstServer(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	ts.setOnConn(func(n int, ws *websocket.Conn) {
		if n == 1 {
			_ = ws.UnderlyingConn().Close()
			return
		}
		ts.drain(ws)
	})
	return ts
}

func TestMonitor_HiddenThenVisibleRecoversOnce(t *testing.T) {
	ts := dropFirstServer(t)
	cfg := testRealtimeConfig(ts.URL)
	cfg.BaseDelay = time.Minute
	cfg.MaxDelay = time.Minute
	m := newTestManager(t, cfg, &stubTokens{token: "abc"})

	mon := NewMonitor(m, testEnvironmentConfig(40*time.Millisecond))
	defer mon.Stop()

	log := newStatusLog()
	if _, err := m.CreateConnection(context.Background(), Notifications{UserID: "42"}, ConnectionConfig{OnStatusChange: log.record}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	log.waitFor(t, StatusReconnecting, 2*time.Second)

	mon.SetVisible(false)
	if stats := m.GetGlobalStats(); stats.Reconnecting != 0 {
		t.Errorf("Reconnecting while hidden = %d, want 0", stats.Reconnecting)
	}
	if got := m.GetConnectionStatus("notifications_42"); got != ConnectionDisconnected {
		t.Errorf("status while hidden = %q, want disconnected", got)
	}

	// A burst of transitions inside the settle delay yields one pass.
	mon.SetVisible(true)
	mon.SetFocused(false)
	mon.SetFocused(true)
	mon.SetOnline(false)
	mon.SetOnline(true)

	eventually(t, 2*time.Second, func() bool {
		return m.GetConnectionStatus("notifications_42") == ConnectionConnected
	}, "identity should recover after becoming visible")

	time.Sleep(150 * time.Millisecond)
	if n := ts.upgrades.Load(); n != 2 {
		t.Errorf("upgrades = %d, want 2", n)
	}
	if n := ts.requests.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestMonitor_OfflineHoldsNewReconnects(t *testing.T) {
	ts := dropFirstServer(t)
	m := newTestManager(t, testRealtimeConfig(ts.URL), &stubTokens{token: "abc"})

	mon := NewMonitor(m, testEnvironmentConfig(20*time.Millisecond))
	defer mon.Stop()

	mon.SetOnline(false)
	if mon.Online() {
		t.Fatal("Online() = true after SetOnline(false)")
	}

	log := newStatusLog()
	if _, err := m.CreateConnection(context.Background(), Consultation{ID: "9"}, ConnectionConfig{OnStatusChange: log.record}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	ev := log.waitFor(t, StatusReconnecting, 2*time.Second)
	if ev.detail != "waiting for the host to become visible and online" {
		t.Errorf("detail = %q", ev.detail)
	}

	time.Sleep(100 * time.Millisecond)
	if n := ts.requests.Load(); n != 1 {
		t.Fatalf("requests while offline = %d, want 1", n)
	}

	mon.SetOnline(true)
	eventually(t, 2*time.Second, func() bool {
		return m.GetConnectionStatus("consultation_9") == ConnectionConnected
	}, "identity should recover once online")
}

func TestMonitor_OpenConnectionsUntouched(t *testing.T) {
	ts := newTestServer(t)
	m := newTestManager(t, testRealtimeConfig(ts.URL), &stubTokens{token: "abc"})

	mon := NewMonitor(m, testEnvironmentConfig(10*time.Millisecond))
	defer mon.Stop()

	if _, err := m.CreateConnection(context.Background(), Notifications{UserID: "1"}, ConnectionConfig{}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	mon.SetVisible(false)
	mon.SetVisible(true)
	time.Sleep(100 * time.Millisecond)

	if got := m.GetConnectionStatus("notifications_1"); got != ConnectionConnected {
		t.Errorf("status = %q, want connected", got)
	}
	if n := ts.upgrades.Load(); n != 1 {
		t.Errorf("upgrades = %d, want 1", n)
	}
}

func TestMonitor_StopCancelsPendingRecovery(t *testing.T) {
	ts := dropFirstServer(t)
	cfg := testRealtimeConfig(ts.URL)
	cfg.BaseDelay = time.Minute
	cfg.MaxDelay = time.Minute
	m := newTestManager(t, cfg, &stubTokens{token: "abc"})

	mon := NewMonitor(m, testEnvironmentConfig(50*time.Millisecond))
	log := newStatusLog()
	if _, err := m.CreateConnection(context.Background(), Notifications{UserID: "2"}, ConnectionConfig{OnStatusChange: log.record}); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	log.waitFor(t, StatusReconnecting, 2*time.Second)

	mon.SetVisible(false)
	mon.SetVisible(true)
	mon.Stop()
	mon.Stop()

	time.Sleep(150 * time.Millisecond)
	if n := ts.requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}
