// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/medlink/internal/config"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer is a WebSocket endpoint that counts handshakes.
type testServer struct {
	*httptest.Server

	requests atomic.Int32
	upgrades atomic.Int32

	mu       sync.Mutex
	lastReq  *http.Request
	reject   func(n int) int
	onConn   func(n int, ws *websocket.Conn)
	received chan []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{received: make(chan []byte, 64)}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) handle(w http.ResponseWriter, r *http.Request) {
	n := int(ts.requests.Add(1))

	ts.mu.Lock()
	ts.lastReq = r
	reject := ts.reject
	onConn := ts.onConn
	ts.mu.Unlock()

	if reject != nil {
		if code := reject(n); code != 0 {
			http.Error(w, "rejected", code)
			return
		}
	}

	ws, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	ts.upgrades.Add(1)

	if onConn != nil {
		onConn(n, ws)
		return
	}
	ts.drain(ws)
}

// drain reads until the client goes away, recording text frames.
func (ts *testServer) drain(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		select {
		case ts.received <- data:
		default:
		}
	}
}

func (ts *testServer) setReject(fn func(n int) int) {
	ts.mu.Lock()
	ts.reject = fn
	ts.mu.Unlock()
}

func (ts *testServer) setOnConn(fn func(n int, ws *websocket.Conn)) {
	ts.mu.Lock()
	ts.onConn = fn
	ts.mu.Unlock()
}

func (ts *testServer) request() *http.Request {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastReq
}

// stubTokens is a TokenSource returning a fixed token.
type stubTokens struct {
	token         string
	err           error
	calls         atomic.Int32
	invalidations atomic.Int32
}

func (s *stubTokens) Token(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *stubTokens) Invalidate() { s.invalidations.Add(1) }

type statusEvent struct {
	status Status
	detail string
}

// statusLog records status callbacks in order.
type statusLog struct {
	mu     sync.Mutex
	events []statusEvent
	ch     chan statusEvent
}

func newStatusLog() *statusLog {
	return &statusLog{ch: make(chan statusEvent, 128)}
}

func (l *statusLog) record(s Status, detail string) {
	l.mu.Lock()
	l.events = append(l.events, statusEvent{s, detail})
	l.mu.Unlock()
	select {
	case l.ch <- statusEvent{s, detail}:
	default:
	}
}

// waitFor blocks until status s is recorded or the timeout passes.
func (l *statusLog) waitFor(t *testing.T, s Status, timeout time.Duration) statusEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-l.ch:
			if ev.status == s {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q; got %v", s, l.snapshot())
			return statusEvent{}
		}
	}
}

func (l *statusLog) snapshot() []statusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]statusEvent(nil), l.events...)
}

func (l *statusLog) count(s Status) int {
	n := 0
	for _, ev := range l.snapshot() {
		if ev.status == s {
			n++
		}
	}
	return n
}

func testRealtimeConfig(origin string) *config.RealtimeConfig {
	return &config.RealtimeConfig{
		Origin:            origin,
		BaseDelay:         20 * time.Millisecond,
		MaxDelay:          200 * time.Millisecond,
		Jitter:            0,
		MaxAttempts:       0,
		KeepAliveInterval: time.Hour,
		HandshakeTimeout:  2 * time.Second,
		WriteTimeout:      2 * time.Second,
		ReadLimit:         1 << 20,
	}
}

func noJitter(time.Duration) time.Duration { return 0 }

func newTestManager(t *testing.T, cfg *config.RealtimeConfig, tokens TokenSource) *Manager {
	t.Helper()

	m, err := NewManager(cfg, tokens, WithJitter(noJitter))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

// eventually polls cond until it holds or the timeout passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
