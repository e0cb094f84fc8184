// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package logging

import (
	"net/url"
	"strings"
)

// redactedValue replaces secret values in log output.
const redactedValue = "[REDACTED]"

// sensitiveParams lists query parameter names whose values never reach the logs.
var sensitiveParams = []string{"token", "access_token", "api_key", "apikey"}

// RedactURL returns rawURL with credential-bearing query parameters masked.
// Transport URLs carry the connection token in the query string, so every
// URL passed to a log event goes through here first.
//
//	logging.Debug().Str("url", logging.RedactURL(wsURL)).Msg("Dialing")
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return redactedValue
	}

	if u.User != nil {
		u.User = url.User(u.User.Username())
	}

	q := u.Query()
	changed := false
	for key := range q {
		if isSensitiveParam(key) {
			q.Set(key, redactedValue)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// RedactToken keeps a short prefix of a token for correlation and hides the rest.
func RedactToken(token string) string {
	if len(token) <= 8 {
		return redactedValue
	}
	return token[:4] + "..." + redactedValue
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveParams {
		if lower == p {
			return true
		}
	}
	return false
}
