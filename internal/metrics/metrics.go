// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

// Package metrics defines the Prometheus collectors for MedLink.
//
// Collectors are registered on the default registry through promauto and
// exposed with promhttp by both binaries. Components record through the
// Record* helpers rather than touching collectors directly.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection manager metrics
	RealtimeConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medlink_realtime_connections_active",
			Help: "Current number of open managed connections",
		},
	)

	RealtimeConnectionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_connections_created_total",
			Help: "Total number of transport connections opened",
		},
		[]string{"kind"},
	)

	RealtimeDialDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medlink_realtime_dial_duration_seconds",
			Help:    "Duration of connection setup including token resolution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind", "result"}, // result: "success", "error"
	)

	RealtimeDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_disconnects_total",
			Help: "Total number of transport closures by close code",
		},
		[]string{"kind", "code"},
	)

	RealtimeReconnectsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_reconnects_scheduled_total",
			Help: "Total number of reconnection attempts scheduled",
		},
		[]string{"kind"},
	)

	RealtimeReconnectsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medlink_realtime_reconnects_pending",
			Help: "Current number of identities waiting on a reconnect timer",
		},
	)

	RealtimeRetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_retries_exhausted_total",
			Help: "Total number of identities abandoned after max attempts",
		},
		[]string{"kind"},
	)

	RealtimeMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_messages_received_total",
			Help: "Total number of inbound messages delivered to handlers",
		},
		[]string{"kind"},
	)

	RealtimeMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_messages_sent_total",
			Help: "Total number of outbound messages written by callers",
		},
		[]string{"kind"},
	)

	RealtimeDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_decode_errors_total",
			Help: "Total number of inbound messages dropped because they failed to decode",
		},
		[]string{"kind"},
	)

	RealtimeKeepAlives = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_realtime_keepalives_total",
			Help: "Total number of keep-alive pings by outcome",
		},
		[]string{"result"}, // "sent", "failed"
	)

	RealtimeRecoveryChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medlink_realtime_recovery_checks_total",
			Help: "Total number of identities re-established by environment recovery",
		},
	)

	EnvironmentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medlink_environment_state",
			Help: "Host environment signals (1 = visible/focused/online)",
		},
		[]string{"signal"},
	)

	// Token cache metrics
	TokenFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_token_fetches_total",
			Help: "Total number of token endpoint round trips",
		},
		[]string{"result"}, // "success", "error"
	)

	TokenFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medlink_token_fetch_duration_seconds",
			Help:    "Duration of token endpoint round trips",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medlink_token_cache_hits_total",
			Help: "Total number of token requests served from cache",
		},
	)

	TokenCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medlink_token_cache_misses_total",
			Help: "Total number of token requests that required or joined a fetch",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medlink_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_circuit_breaker_requests_total",
			Help: "Total requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Relay metrics
	RelayClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medlink_relay_clients",
			Help: "Current number of relay clients per channel family",
		},
		[]string{"family"},
	)

	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_relay_messages_total",
			Help: "Total relay messages by direction",
		},
		[]string{"direction"}, // "in", "out", "dropped"
	)

	RelayTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medlink_relay_tokens_issued_total",
			Help: "Total connection tokens issued by the relay",
		},
	)

	RelayAuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_relay_auth_failures_total",
			Help: "Total rejected relay upgrades by reason",
		},
		[]string{"reason"},
	)

	RelayNATSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_relay_nats_messages_total",
			Help: "Total NATS messages seen by the relay bridge by outcome",
		},
		[]string{"outcome"}, // "published", "invalid_subject", "invalid_payload", "queue_full"
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medlink_api_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medlink_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordDial records the outcome of one connection setup.
func RecordDial(kind string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	} else {
		RealtimeConnectionsCreated.WithLabelValues(kind).Inc()
	}
	RealtimeDialDuration.WithLabelValues(kind, result).Observe(duration.Seconds())
}

// RecordDisconnect records a transport closure.
func RecordDisconnect(kind string, code int) {
	RealtimeDisconnects.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}

// RecordKeepAlive records one keep-alive ping.
func RecordKeepAlive(ok bool) {
	if ok {
		RealtimeKeepAlives.WithLabelValues("sent").Inc()
		return
	}
	RealtimeKeepAlives.WithLabelValues("failed").Inc()
}

// RecordTokenFetch records a token endpoint round trip.
func RecordTokenFetch(duration time.Duration, err error) {
	TokenFetchDuration.Observe(duration.Seconds())
	if err != nil {
		TokenFetches.WithLabelValues("error").Inc()
		return
	}
	TokenFetches.WithLabelValues("success").Inc()
}

// SetEnvironmentSignal exports one environment signal as 0 or 1.
func SetEnvironmentSignal(signal string, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	EnvironmentState.WithLabelValues(signal).Set(v)
}

// RecordAPIRequest records an HTTP request metric
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
