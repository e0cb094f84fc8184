// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
)

// Monitor tracks host visibility, focus and network reachability and drives
// the manager accordingly: reconnect timers are cancelled while the host is
// hidden or offline, and every identity that is not open is re-established
// once the host is visible and online again.
//
// A burst of transitions within the settle delay produces one recovery pass.
type Monitor struct {
	m       *Manager
	settle  time.Duration
	limiter *rate.Limiter

	mu      sync.Mutex
	visible bool
	focused bool
	online  bool
	timer   *time.Timer
	gen     uint64
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor for m. The host starts visible, focused and online.
func NewMonitor(m *Manager, cfg *config.EnvironmentConfig) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	mon := &Monitor{
		m:       m,
		settle:  cfg.SettleDelay,
		limiter: rate.NewLimiter(rate.Limit(cfg.RecoveryRate), cfg.RecoveryBurst),
		visible: true,
		focused: true,
		online:  true,
		ctx:     ctx,
		cancel:  cancel,
	}
	metrics.SetEnvironmentSignal("visible", true)
	metrics.SetEnvironmentSignal("focused", true)
	metrics.SetEnvironmentSignal("online", true)
	return mon
}

// SetVisible records a visibility change.
func (mon *Monitor) SetVisible(visible bool) {
	mon.update(func() bool {
		if mon.visible == visible {
			return false
		}
		mon.visible = visible
		metrics.SetEnvironmentSignal("visible", visible)
		return true
	}, "visibility")
}

// SetFocused records a focus change. Regaining focus while visible and online
// triggers a recovery pass; losing it does nothing else.
func (mon *Monitor) SetFocused(focused bool) {
	mon.update(func() bool {
		if mon.focused == focused {
			return false
		}
		mon.focused = focused
		metrics.SetEnvironmentSignal("focused", focused)
		return focused
	}, "focus")
}

// SetOnline records a network reachability change.
func (mon *Monitor) SetOnline(online bool) {
	mon.update(func() bool {
		if mon.online == online {
			return false
		}
		mon.online = online
		metrics.SetEnvironmentSignal("online", online)
		return true
	}, "network")
}

// Online reports the last recorded network state.
func (mon *Monitor) Online() bool {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.online
}

// update applies change under the lock and reacts when it reports a transition.
func (mon *Monitor) update(change func() bool, signal string) {
	mon.mu.Lock()
	if mon.stopped || !change() {
		mon.mu.Unlock()
		return
	}
	active := mon.visible && mon.online
	log := logging.WithComponent("environment").With().
		Str("signal", signal).
		Bool("visible", mon.visible).
		Bool("focused", mon.focused).
		Bool("online", mon.online).
		Logger()

	if !active {
		mon.cancelSettleLocked()
		mon.mu.Unlock()

		cancelled := mon.m.pauseReconnects()
		log.Info().Int("cancelled_timers", cancelled).Msg("Host inactive; reconnection paused")
		return
	}

	mon.cancelSettleLocked()
	gen := mon.gen
	mon.timer = time.AfterFunc(mon.settle, func() { mon.settled(gen) })
	mon.mu.Unlock()

	log.Debug().Dur("settle", mon.settle).Msg("Host active; recovery pending")
}

func (mon *Monitor) cancelSettleLocked() {
	if mon.timer != nil {
		mon.timer.Stop()
		mon.timer = nil
	}
	mon.gen++
}

// settled runs the recovery pass once the settle delay passed without a
// newer transition.
func (mon *Monitor) settled(gen uint64) {
	mon.mu.Lock()
	if mon.stopped || gen != mon.gen || !(mon.visible && mon.online) {
		mon.mu.Unlock()
		return
	}
	mon.timer = nil
	mon.wg.Add(1)
	mon.mu.Unlock()
	defer mon.wg.Done()

	mon.m.recoverAll(mon.ctx, func(ctx context.Context) error {
		return mon.limiter.Wait(ctx)
	})
}

// Stop cancels a pending recovery pass and waits for a running one to finish
// dispatching.
func (mon *Monitor) Stop() {
	mon.mu.Lock()
	if mon.stopped {
		mon.mu.Unlock()
		return
	}
	mon.stopped = true
	mon.cancelSettleLocked()
	mon.mu.Unlock()

	mon.cancel()
	mon.wg.Wait()
}
