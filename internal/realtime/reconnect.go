// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

// reconnectState tracks retries for one identity. A timer fires only if its
// generation still matches, so a stopped timer that already started is inert.
type reconnectState struct {
	attempts int
	timer    *time.Timer
	gen      uint64
	delay    time.Duration
}

// backoffDelay returns min(base*2^attempt, max), without jitter.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max || d > max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// scheduleReconnection arms a retry for identity, or gives up when the
// configured number of attempts is used.
func (m *Manager) scheduleReconnection(identity string) {
	m.mu.Lock()
	if m.closed || m.shuttingDown.Load() {
		m.mu.Unlock()
		return
	}
	b := m.handlers[identity]
	if b == nil {
		m.mu.Unlock()
		return
	}

	rs := m.reconnects[identity]
	if rs == nil {
		rs = &reconnectState{}
		m.reconnects[identity] = rs
	}
	m.stopReconnectTimerLocked(identity)

	if m.cfg.MaxAttempts > 0 && rs.attempts >= m.cfg.MaxAttempts {
		attempts := rs.attempts
		delete(m.handlers, identity)
		delete(m.reconnects, identity)
		m.mu.Unlock()

		metrics.RealtimeRetriesExhausted.WithLabelValues(b.kind.Family()).Inc()
		m.logger.Warn().Str("identity", identity).Int("attempts", attempts).Msg("Giving up on reconnection")
		m.notify(identity, b.cfg, StatusFailed, ErrMaxRetriesExceeded.Error())
		return
	}

	if m.paused {
		m.mu.Unlock()
		m.notify(identity, b.cfg, StatusReconnecting, "waiting for the host to become visible and online")
		return
	}

	delay := backoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, rs.attempts) + m.jitter(m.cfg.Jitter)
	rs.attempts++
	rs.gen++
	rs.delay = delay
	gen, attempt := rs.gen, rs.attempts
	rs.timer = time.AfterFunc(delay, func() { m.fireReconnect(identity, gen) })
	m.stats.reconnecting++
	m.mu.Unlock()

	metrics.RealtimeReconnectsScheduled.WithLabelValues(b.kind.Family()).Inc()
	metrics.RealtimeReconnectsPending.Inc()
	m.logger.Info().
		Str("identity", identity).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Reconnection scheduled")
	m.notify(identity, b.cfg, StatusReconnecting,
		fmt.Sprintf("reconnecting in %s (attempt %d)", delay.Round(100*time.Millisecond), attempt))
}

// fireReconnect runs when a reconnect timer expires.
func (m *Manager) fireReconnect(identity string, gen uint64) {
	m.mu.Lock()
	rs := m.reconnects[identity]
	if m.closed || m.paused || rs == nil || rs.gen != gen || rs.timer == nil {
		m.mu.Unlock()
		return
	}
	rs.timer = nil
	m.decReconnectingLocked()
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	m.reestablish(identity)
}

// reestablish re-runs the creation protocol with the identity's stored
// binding and reschedules on failure.
func (m *Manager) reestablish(identity string) {
	b := m.bindingFor(identity)
	if b == nil {
		return
	}
	ctx := logging.ContextWithNewCorrelationID(m.ctx)
	_, err := m.establish(ctx, b.kind, b.cfg, b)
	if err == nil {
		return
	}
	if errors.Is(err, ErrManagerClosed) || errors.Is(err, ErrClosedDuringSetup) || m.ctx.Err() != nil {
		return
	}
	m.scheduleReconnection(identity)
}

// stopReconnectTimerLocked cancels a pending timer but keeps the attempt count.
func (m *Manager) stopReconnectTimerLocked(identity string) {
	rs := m.reconnects[identity]
	if rs == nil || rs.timer == nil {
		return
	}
	rs.timer.Stop()
	rs.timer = nil
	rs.gen++
	m.decReconnectingLocked()
}

// clearReconnectLocked cancels any timer and forgets the attempt count.
func (m *Manager) clearReconnectLocked(identity string, rs *reconnectState) {
	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
		m.decReconnectingLocked()
	}
	rs.gen++
	delete(m.reconnects, identity)
}

func (m *Manager) decReconnectingLocked() {
	if m.stats.reconnecting > 0 {
		m.stats.reconnecting--
	}
	metrics.RealtimeReconnectsPending.Dec()
}

// pauseReconnects cancels every pending reconnect timer and holds new ones
// until resumeReconnects. Open connections are left alone.
func (m *Manager) pauseReconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paused = true
	cancelled := 0
	for id, rs := range m.reconnects {
		if rs.timer != nil {
			m.stopReconnectTimerLocked(id)
			cancelled++
		}
	}
	return cancelled
}

// recoverAll re-establishes every known identity whose transport is not open
// or being dialed. wait paces the dials; it returns an error when recovery
// should stop.
func (m *Manager) recoverAll(ctx context.Context, wait func(context.Context) error) int {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	m.paused = false
	var targets []string
	for id := range m.handlers {
		if c := m.conns[id]; c != nil && (c.State() == StateOpen || c.State() == StateConnecting) {
			continue
		}
		targets = append(targets, id)
	}
	sort.Strings(targets)
	m.wg.Add(len(targets))
	m.mu.Unlock()

	started := 0
	for i, t := range targets {
		if err := wait(ctx); err != nil {
			m.wg.Add(-(len(targets) - i))
			break
		}
		started++
		metrics.RealtimeRecoveryChecks.Inc()
		go func(identity string) {
			defer m.wg.Done()
			m.reestablish(identity)
		}(t)
	}
	if started > 0 {
		m.logger.Info().Int("identities", started).Msg("Recovering connections")
	}
	return started
}
