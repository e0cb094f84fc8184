// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

// TokenSource supplies connection tokens. *token.Cache implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// binding is the kind and caller configuration last registered for an identity.
type binding struct {
	kind Kind
	cfg  ConnectionConfig
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithJitter replaces the jitter source. fn returns a duration in [0, max).
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(m *Manager) { m.jitter = fn }
}

// WithHeader sets extra HTTP headers sent with every handshake.
func WithHeader(h http.Header) Option {
	return func(m *Manager) { m.header = h.Clone() }
}

// Manager owns every managed connection of the process: at most one open
// transport per identity, with token resolution, reconnection, keep-alive and
// environment-driven recovery.
//
// Create one with NewManager at startup and stop it with Shutdown.
type Manager struct {
	cfg    config.RealtimeConfig
	origin *url.URL
	tokens TokenSource
	dialer *websocket.Dialer
	header http.Header
	jitter func(max time.Duration) time.Duration
	now    func() time.Time
	logger zerolog.Logger

	locks *lockSet

	// shuttingDown suppresses reconnection while CloseAllConnections runs.
	shuttingDown atomic.Bool

	mu         sync.Mutex
	conns      map[string]*Connection
	handlers   map[string]*binding
	reconnects map[string]*reconnectState
	keepalives map[string]*keepAlive
	paused     bool
	closed     bool
	stats      counters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a connection manager for cfg.Origin using tokens for
// identities that do not carry an external token.
func NewManager(cfg *config.RealtimeConfig, tokens TokenSource, opts ...Option) (*Manager, error) {
	origin, err := transportOrigin(cfg.Origin)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    *cfg,
		origin: origin,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: true,
		},
		jitter: randomJitter,
		now:    time.Now,
		logger: logging.WithComponent("realtime"),

		locks:      newLockSet(),
		conns:      make(map[string]*Connection),
		handlers:   make(map[string]*binding),
		reconnects: make(map[string]*reconnectState),
		keepalives: make(map[string]*keepAlive),

		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// CreateConnection returns the open connection for kind's identity, or
// establishes one. Concurrent calls for the same identity are serialised in
// arrival order; a call that finds the connection open only replaces the
// stored callbacks and reports StatusConnected.
//
// Failures are reported to cfg.OnStatusChange as StatusError and returned as
// a *SetupError.
func (m *Manager) CreateConnection(ctx context.Context, kind Kind, cfg ConnectionConfig) (*Connection, error) {
	if kind == nil || kind.Identity() == "" {
		return nil, &SetupError{Err: errors.New("connection kind has no identity")}
	}
	return m.establish(ctx, kind, cfg, nil)
}

// establish serialises a creation attempt on the identity lock. A non-nil
// expected is the binding a reconnect or recovery pass read before queueing;
// the attempt is abandoned with ErrClosedDuringSetup if the identity was
// closed or rebound meanwhile.
func (m *Manager) establish(ctx context.Context, kind Kind, cfg ConnectionConfig, expected *binding) (*Connection, error) {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}

	identity := kind.Identity()
	release, err := m.locks.acquire(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", identity, err)
	}

	conn, after, err := m.create(ctx, kind, cfg, expected)
	release()

	for _, fn := range after {
		fn()
	}
	return conn, err
}

// create runs the creation protocol with the identity lock held. Callbacks and
// the read loop start are returned for the caller to run after release.
func (m *Manager) create(ctx context.Context, kind Kind, cfg ConnectionConfig, expected *binding) (*Connection, []func(), error) {
	identity := kind.Identity()
	log := logging.Ctx(ctx).With().Str("identity", identity).Str("kind", kind.Family()).Logger()
	start := m.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrManagerClosed
	}
	if expected != nil && m.handlers[identity] != expected {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("%s: %w", identity, ErrClosedDuringSetup)
	}

	if existing := m.conns[identity]; existing != nil && existing.State() == StateOpen {
		m.handlers[identity] = &binding{kind: kind, cfg: cfg}
		m.mu.Unlock()
		log.Debug().Str("connection_id", existing.ID()).Msg("Reusing open connection")
		return existing, []func(){func() { m.notify(identity, cfg, StatusConnected, "") }}, nil
	}

	prev := m.handlers[identity]
	mine := &binding{kind: kind, cfg: cfg}
	m.handlers[identity] = mine
	m.stopReconnectTimerLocked(identity)
	m.mu.Unlock()

	// A failed explicit call restores the previous binding; if that binding
	// was retrying, the timer stopped above is re-armed. Reconnect passes
	// reschedule themselves.
	fail := func(c *Connection, err error) (*Connection, []func(), error) {
		retry := m.rollback(identity, c, mine, prev) && expected == nil
		metrics.RecordDial(kind.Family(), m.now().Sub(start), err)
		setupErr := &SetupError{Identity: identity, Err: err}
		log.Warn().Err(err).Bool("retry", retry).Msg("Connection setup failed")
		after := []func(){func() { m.notify(identity, cfg, StatusError, err.Error()) }}
		if retry {
			after = append(after, func() { m.scheduleReconnection(identity) })
		}
		return nil, after, setupErr
	}

	tok, err := m.resolveToken(ctx, kind, cfg)
	if err != nil {
		return fail(nil, err)
	}

	target, err := buildURL(m.origin, kind.Endpoint(), tok, cfg.ExtraParams)
	if err != nil {
		return fail(nil, err)
	}

	c := newConnection(kind, m.cfg.WriteTimeout)
	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()
	c.setDialCancel(cancelDial)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fail(nil, ErrManagerClosed)
	}
	if m.handlers[identity] != mine {
		m.mu.Unlock()
		return nil, nil, fmt.Errorf("%s: %w", identity, ErrClosedDuringSetup)
	}
	m.conns[identity] = c
	m.mu.Unlock()

	log.Debug().Str("url", logging.RedactURL(target)).Msg("Dialing")

	ws, resp, err := m.dialer.DialContext(dialCtx, target, m.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("websocket dial failed: %w", err)
		}
		m.mu.Lock()
		closedMeanwhile := m.conns[identity] != c
		m.mu.Unlock()
		if closedMeanwhile {
			return nil, nil, fmt.Errorf("%s: %w", identity, ErrClosedDuringSetup)
		}
		return fail(c, err)
	}

	m.mu.Lock()
	if m.conns[identity] != c || c.State() != StateConnecting {
		m.mu.Unlock()
		_ = ws.Close()
		log.Debug().Msg("Identity closed while dialing; discarding socket")
		return nil, nil, fmt.Errorf("%s: %w", identity, ErrClosedDuringSetup)
	}

	now := m.now()
	c.attach(ws, m.cfg.ReadLimit, now)
	c.counted = true
	m.stats.total++
	m.stats.active++
	m.stats.lastActivity = now
	if rs := m.reconnects[identity]; rs != nil {
		m.clearReconnectLocked(identity, rs)
	}
	m.startKeepAliveLocked(identity, c)
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.RealtimeConnectionsActive.Inc()
	metrics.RecordDial(kind.Family(), now.Sub(start), nil)
	log.Info().Str("connection_id", c.ID()).Msg("Connected")

	return c, []func(){
		func() { m.notify(identity, cfg, StatusConnected, "") },
		func() { go m.readLoop(c) },
	}, nil
}

// rollback undoes the registry entry and callbacks installed by a failed
// create. It reports whether prev was restored with reconnect state pending.
func (m *Manager) rollback(identity string, c *Connection, mine, prev *binding) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c != nil && m.conns[identity] == c {
		delete(m.conns, identity)
	}
	if m.handlers[identity] != mine {
		return false
	}
	if prev == nil {
		delete(m.handlers, identity)
		return false
	}
	m.handlers[identity] = prev
	return m.reconnects[identity] != nil
}

func (m *Manager) resolveToken(ctx context.Context, kind Kind, cfg ConnectionConfig) (string, error) {
	if cfg.UseExistingToken || kind.ExternalToken() {
		if cfg.Token == "" {
			return "", errMissingToken
		}
		return cfg.Token, nil
	}
	return m.tokens.Token(ctx)
}

// CloseConnection closes identity's transport with a normal closure and drops
// every piece of state kept for it, including pending reconnects. Unknown
// identities are ignored.
func (m *Manager) CloseConnection(identity string) {
	m.mu.Lock()
	c := m.conns[identity]
	delete(m.conns, identity)
	delete(m.handlers, identity)
	if rs := m.reconnects[identity]; rs != nil {
		m.clearReconnectLocked(identity, rs)
	}
	m.stopKeepAliveLocked(identity)
	if c != nil {
		c.intentional.Store(true)
		m.uncountLocked(c)
	}
	m.mu.Unlock()

	if c != nil {
		c.close(websocket.CloseNormalClosure)
		m.logger.Info().Str("identity", identity).Msg("Connection closed")
	}
}

// CloseAllConnections closes every connection, cancels every timer and resets
// the global stats. It may be called repeatedly.
func (m *Manager) CloseAllConnections() {
	m.shuttingDown.Store(true)
	defer m.shuttingDown.Store(false)

	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		c.intentional.Store(true)
		conns = append(conns, c)
	}
	for id, rs := range m.reconnects {
		m.clearReconnectLocked(id, rs)
	}
	for id := range m.keepalives {
		m.stopKeepAliveLocked(id)
	}
	uncounted := 0
	for _, c := range conns {
		if c.counted {
			c.counted = false
			uncounted++
		}
	}
	m.conns = make(map[string]*Connection)
	m.handlers = make(map[string]*binding)
	m.reconnects = make(map[string]*reconnectState)
	m.stats = counters{}
	m.mu.Unlock()

	for _, c := range conns {
		c.close(websocket.CloseNormalClosure)
	}

	// Pending reconnects were already decremented by clearReconnectLocked.
	metrics.RealtimeConnectionsActive.Sub(float64(uncounted))
	if len(conns) > 0 {
		m.logger.Info().Int("count", len(conns)).Msg("All connections closed")
	}
}

// SendMessage writes msg as JSON on identity's connection. It returns false
// when the identity has no open connection or the write fails.
func (m *Manager) SendMessage(identity string, msg any) bool {
	m.mu.Lock()
	c := m.conns[identity]
	m.mu.Unlock()

	if c == nil || c.State() != StateOpen {
		return false
	}
	if err := c.writeJSON(msg); err != nil {
		m.logger.Warn().Err(err).Str("identity", identity).Msg("Send failed")
		return false
	}

	m.mu.Lock()
	m.stats.lastActivity = m.now()
	m.mu.Unlock()
	metrics.RealtimeMessagesSent.WithLabelValues(c.kind.Family()).Inc()
	return true
}

// GetConnectionStatus reports identity's state. An identity with no transport
// but retained callbacks (waiting to reconnect) is disconnected.
func (m *Manager) GetConnectionStatus(identity string) ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.conns[identity]
	if c == nil {
		if m.handlers[identity] != nil {
			return ConnectionDisconnected
		}
		return ConnectionNotCreated
	}
	return connectionStatus(c.State())
}

func connectionStatus(s State) ConnectionStatus {
	switch s {
	case StateConnecting:
		return ConnectionConnecting
	case StateOpen:
		return ConnectionConnected
	case StateClosing:
		return ConnectionClosing
	case StateClosed:
		return ConnectionDisconnected
	default:
		return ConnectionUnknown
	}
}

// Shutdown closes every connection, stops all timers and waits for the
// manager's goroutines to exit or ctx to expire. Later CreateConnection calls
// fail with ErrManagerClosed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.CloseAllConnections()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Connection manager stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// uncountLocked removes c from the active count if it was counted.
func (m *Manager) uncountLocked(c *Connection) {
	if !c.counted {
		return
	}
	c.counted = false
	if m.stats.active > 0 {
		m.stats.active--
	}
	metrics.RealtimeConnectionsActive.Dec()
}

// notify invokes cfg.OnStatusChange outside any lock and contains panics.
func (m *Manager) notify(identity string, cfg ConnectionConfig, s Status, detail string) {
	if cfg.OnStatusChange == nil {
		return
	}
	defer m.recoverCallback(identity, "status")
	cfg.OnStatusChange(s, detail)
}

func (m *Manager) recoverCallback(identity, callback string) {
	if r := recover(); r != nil {
		m.logger.Error().
			Str("identity", identity).
			Str("callback", callback).
			Interface("panic", r).
			Msg("Callback panicked")
	}
}

// bindingFor returns the stored callbacks for identity, or nil.
func (m *Manager) bindingFor(identity string) *binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[identity]
}
