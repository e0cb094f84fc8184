// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

// Package logging is MedLink's zerolog setup.
//
// A single global logger is configured once by each binary:
//
//	logging.Init(logging.Config{
//	    Level:   cfg.Logging.Level,
//	    Format:  cfg.Logging.Format,
//	    Service: "medlink",
//	})
//
// Entries are JSON with "time", "level", "message" and, when set, "service".
// Format "console" switches to zerolog's human-readable writer.
//
// Connection attempts and relay requests carry a short correlation ID in
// their context; Ctx(ctx) returns a logger that includes it:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Warn().Err(err).Msg("Token fetch failed")
//
// NewSlogLogger bridges log/slog users such as the supervisor tree.
// Transport URLs carry the connection token; log them through RedactURL.
package logging
