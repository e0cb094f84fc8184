// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package middleware provides the HTTP middleware shared by MedLink's HTTP
surfaces (the relay API and the client daemon's health endpoint).

Key Components:

  - RequestID: X-Request-ID propagation plus a correlation ID for logging.Ctx
  - PrometheusMetrics: request count and latency labelled by chi route pattern
  - Chi: go-chi/cors and go-chi/httprate factories

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.With(mw.RateLimit(), middleware.PrometheusMetrics).Get("/api/realtime/token", h)

WebSocket routes skip PrometheusMetrics; the realtime metrics cover them.
*/
package middleware
