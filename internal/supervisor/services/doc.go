// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package services provides suture.Service wrappers for medlink components.

Each wrapper translates a component's lifecycle (ListenAndServe/Shutdown,
RunWithContext, Shutdown) into suture's context-aware Serve and names the
service via fmt.Stringer for supervisor logs.

# Available Services

HTTPServerService:
  - Wraps *http.Server with graceful shutdown
  - Used for the daemon's /metrics and /healthz and for the relay API

HubService:
  - Runs the relay's websocket.Hub until shutdown

ConnectionManagerService:
  - Opens the configured identities on start
  - On shutdown stops the environment monitor and drains the
    connection manager within the shutdown timeout

The network probe implements suture.Service itself and is added to the
tree directly.
*/
package services
