// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"sort"
	"time"
)

// counters are the aggregate figures behind GlobalStats. Guarded by Manager.mu.
type counters struct {
	total        int
	active       int
	reconnecting int
	lastActivity time.Time
}

// ConnectionInfo describes one known identity.
type ConnectionInfo struct {
	Identity     string           `json:"identity"`
	Kind         string           `json:"kind"`
	ConnectionID string           `json:"connection_id,omitempty"`
	Status       ConnectionStatus `json:"status"`
	OpenedAt     time.Time        `json:"opened_at,omitempty"`
	LastActivity time.Time        `json:"last_activity,omitempty"`
	Attempts     int              `json:"reconnect_attempts"`
}

// GlobalStats is a point-in-time view of the manager.
type GlobalStats struct {
	TotalConnections  int              `json:"total_connections"`
	ActiveConnections int              `json:"active_connections"`
	Reconnecting      int              `json:"reconnecting"`
	LastActivity      time.Time        `json:"last_activity"`
	Connections       []ConnectionInfo `json:"connections"`
}

// GetGlobalStats returns aggregate counters plus one entry per known
// identity, sorted by identity.
func (m *Manager) GetGlobalStats() GlobalStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := GlobalStats{
		TotalConnections:  m.stats.total,
		ActiveConnections: m.stats.active,
		Reconnecting:      m.stats.reconnecting,
		LastActivity:      m.stats.lastActivity,
		Connections:       make([]ConnectionInfo, 0, len(m.handlers)),
	}

	seen := make(map[string]bool, len(m.handlers))
	add := func(identity string, kind Kind) {
		if seen[identity] {
			return
		}
		seen[identity] = true

		info := ConnectionInfo{
			Identity: identity,
			Kind:     kind.Family(),
			Status:   ConnectionDisconnected,
		}
		if c := m.conns[identity]; c != nil {
			info.ConnectionID = c.ID()
			info.Status = connectionStatus(c.State())
			info.OpenedAt = c.OpenedAt()
			info.LastActivity = c.LastActivity()
		}
		if rs := m.reconnects[identity]; rs != nil {
			info.Attempts = rs.attempts
		}
		stats.Connections = append(stats.Connections, info)
	}

	for id, c := range m.conns {
		add(id, c.kind)
	}
	for id, b := range m.handlers {
		add(id, b.kind)
	}

	sort.Slice(stats.Connections, func(i, j int) bool {
		return stats.Connections[i].Identity < stats.Connections[j].Identity
	})
	return stats
}
