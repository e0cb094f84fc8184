// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package relay is a development backend for the MedLink client. It speaks the
same protocol as the production platform closely enough to exercise the
client end to end:

  - a token endpoint returning {"token": "..."} (signed by internal/auth)
  - the notifications, consultation and incoming-calls WebSocket endpoints,
    each requiring a valid token in the "token" query parameter
  - {"type":"ping"} answered with {"type":"pong"}
  - POST /api/v1/relay/publish to push a payload to every client of a channel
  - close code 1008 when a connection's token expires

Routing uses go-chi/chi with go-chi/cors and go-chi/httprate; transport
fan-out is internal/websocket's Hub.

	hub := websocket.NewHub(cfg.Relay.SendBuffer)
	srv := relay.NewServer(&cfg.Relay, cfg.Token.Path, jwtManager, hub)
	http.ListenAndServe(cfg.Relay.Addr(), srv.Router())
*/
package relay
