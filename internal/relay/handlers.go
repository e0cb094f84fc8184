// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package relay

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/medlink/internal/auth"
	"github.com/tomtom215/medlink/internal/logging"
	"github.com/tomtom215/medlink/internal/metrics"
	"github.com/tomtom215/medlink/internal/validation"
	"github.com/tomtom215/medlink/internal/websocket"
)

// maxPublishBody bounds POST /api/v1/relay/publish bodies.
const maxPublishBody = 1 << 20

// anonymousSubject is used when the token request carries no session.
const anonymousSubject = "anonymous"

// TokenResponse is the token endpoint body.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PublishRequest is the publish endpoint body.
type PublishRequest struct {
	Channel string          `json:"channel" validate:"required,channel"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// PublishResponse reports how many clients were subscribed when the payload was queued.
type PublishResponse struct {
	Channel     string `json:"channel"`
	Subscribers int    `json:"subscribers"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// handleToken issues a connection token to the bearer of the session
// credential. Requests without one get an anonymous token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	subject := auth.BearerToken(r)
	if subject == "" {
		subject = anonymousSubject
	}

	token, err := s.jwt.GenerateToken(subject)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err)
		return
	}
	metrics.RelayTokensIssued.Inc()

	logging.Ctx(r.Context()).Debug().Str("subject", subject).Msg("Issued connection token")
	respondJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: s.now().Add(s.jwt.TTL()).UTC(),
	})
}

// handlePublish queues a payload for every client of a channel.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody+1))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body", err)
		return
	}
	if len(body) > maxPublishBody {
		respondError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body exceeds 1 MiB", nil)
		return
	}

	var req PublishRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body must be JSON", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.Response())
		return
	}

	subscribers := s.hub.ChannelClients(req.Channel)
	if !s.hub.Publish(req.Channel, req.Payload) {
		respondError(w, r, http.StatusServiceUnavailable, "QUEUE_FULL", "Publish queue is full", nil)
		return
	}

	respondJSON(w, http.StatusAccepted, PublishResponse{Channel: req.Channel, Subscribers: subscribers})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Clients: s.hub.GetClientCount()})
}

// transport returns the upgrade handler for a channel family whose id is the
// named URL parameter. The "token" query parameter must be a valid
// connection token.
func (s *Server) transport(family, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.Ctx(r.Context())
		channel := family + "/" + chi.URLParam(r, param)

		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			metrics.RelayAuthFailures.WithLabelValues("missing").Inc()
			respondError(w, r, http.StatusUnauthorized, "TOKEN_REQUIRED", "A connection token is required", nil)
			return
		}

		claims, err := s.jwt.ValidateToken(tokenString)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, jwt.ErrTokenExpired) {
				reason = "expired"
			}
			metrics.RelayAuthFailures.WithLabelValues(reason).Inc()
			log.Warn().Err(err).Str("channel", channel).Msg("Rejected transport upgrade")
			respondError(w, r, http.StatusUnauthorized, "TOKEN_INVALID", "Connection token is invalid", nil)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Debug().Err(err).Str("channel", channel).Msg("WebSocket upgrade failed")
			return
		}

		var expires time.Time
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time
		}
		websocket.NewClient(s.hub, conn, channel, claims.Subject, expires, s.cfg.SendBuffer).Start()
	}
}
