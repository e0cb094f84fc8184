// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package auth issues and validates the short-lived connection tokens used by
the relay backend.

The relay's token endpoint hands a signed HS256 token to a caller holding a
session credential; the WebSocket endpoints then require that token in the
"token" query parameter. The client side never inspects tokens; it caches
them in internal/token and attaches them to transport URLs.

Usage Example:

	jwtManager, err := auth.NewJWTManager(&cfg.Relay)
	if err != nil {
	    return err
	}

	token, err := jwtManager.GenerateToken("user-42")

	claims, err := jwtManager.ValidateToken(token)
	if errors.Is(err, auth.ErrInvalidToken) {
	    // reject
	}

Security:

  - JWT_SECRET must be at least 32 characters
  - Only HS256 is accepted; tokens with any other alg are rejected
  - Issuer and expiry are always enforced
*/
package auth
