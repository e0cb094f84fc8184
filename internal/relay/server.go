// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package relay

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/medlink/internal/auth"
	"github.com/tomtom215/medlink/internal/config"
	"github.com/tomtom215/medlink/internal/middleware"
	"github.com/tomtom215/medlink/internal/websocket"
)

// Server is the development relay: it issues connection tokens and serves
// the three transport endpoints the client manager dials.
type Server struct {
	cfg       config.RelayConfig
	tokenPath string
	jwt       *auth.JWTManager
	hub       *websocket.Hub
	upgrader  gorillaws.Upgrader
	now       func() time.Time
}

// NewServer creates a relay serving tokens at tokenPath.
func NewServer(cfg *config.RelayConfig, tokenPath string, jwt *auth.JWTManager, hub *websocket.Hub) *Server {
	return &Server{
		cfg:       *cfg,
		tokenPath: tokenPath,
		jwt:       jwt,
		hub:       hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin:       originChecker(cfg.CORSOrigins),
		},
		now: time.Now,
	}
}

// Router builds the relay's chi router.
//
//	GET  <token path>                      connection token for the bearer session
//	GET  /ws/notifications/{userID}        notifications transport
//	GET  /ws/consultations/{consultationID} consultation transport
//	GET  /api/calls/ws/incoming/{userID}   incoming-calls transport
//	POST /api/v1/relay/publish             fan a payload out to a channel
//	GET  /healthz                          liveness and client count
//	GET  /metrics                          Prometheus exposition
func (s *Server) Router() http.Handler {
	mw := middleware.NewChi(&middleware.ChiConfig{
		CORSAllowedOrigins: s.cfg.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  s.cfg.RateLimitReqs,
		RateLimitWindow:    s.cfg.RateLimitWindow,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		if s.cfg.Timeout > 0 {
			r.Use(chimiddleware.Timeout(s.cfg.Timeout))
		}

		r.Get(s.tokenPath, s.handleToken)
		r.Post("/api/v1/relay/publish", s.handlePublish)
	})

	r.Get("/ws/notifications/{userID}", s.transport("notifications", "userID"))
	r.Get("/ws/consultations/{consultationID}", s.transport("consultations", "consultationID"))
	r.Get("/api/calls/ws/incoming/{userID}", s.transport("calls", "userID"))

	return r
}

// originChecker allows browser upgrades from the configured origins. Requests
// without an Origin header (native clients) are always allowed.
func originChecker(origins []string) func(r *http.Request) bool {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowAll || allowed[origin]
	}
}
