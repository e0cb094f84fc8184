// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package realtime manages long-lived WebSocket connections keyed by identity.

A Manager keeps at most one open transport per identity. Callers describe a
connection with a Kind (Notifications, Consultation, Calls or Custom) and a
ConnectionConfig carrying callbacks:

	mgr, err := realtime.NewManager(&cfg.Realtime, tokenCache)
	if err != nil {
	    return err
	}
	defer mgr.Shutdown(ctx)

	conn, err := mgr.CreateConnection(ctx, realtime.Notifications{UserID: "42"}, realtime.ConnectionConfig{
	    OnMessage: func(msg realtime.Message) { ... },
	    OnStatusChange: func(s realtime.Status, detail string) { ... },
	    ExtraParams: map[string]any{"lang": "en"},
	})

# Lifecycle

Each transport moves through connecting, open, closing and closed. A close
with any code other than 1000 schedules a reconnect after
min(base*2^attempt, max) plus random jitter; a normal close or
CloseConnection drops the identity's callbacks instead. When max attempts is
non-zero and reached, the identity reports StatusFailed and is forgotten.

A close with code 1008 (policy violation) also invalidates the cached token,
so the retry authenticates with a fresh one.

# Environment

Monitor pauses reconnect timers while the host is hidden or offline and, after
a settle delay, re-establishes every identity that is not open. NetworkProbe
feeds it reachability of the origin host and runs under the supervisor.

# Concurrency

Registry state is guarded by one mutex that is never held while a callback
runs. Creation for one identity is serialised with a FIFO semaphore. Messages
for one identity are delivered from that connection's read goroutine in the
order they arrived.
*/
package realtime
