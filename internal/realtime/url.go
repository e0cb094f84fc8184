// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// transportOrigin converts an application origin into the transport base URL:
// https becomes wss and http becomes ws.
func transportOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// buildURL joins base and endpoint and sets the query to the token followed by
// the extra parameters. A "token" entry in extra never overrides the token.
func buildURL(base *url.URL, endpoint, token string, extra map[string]any) (string, error) {
	u := *base
	u.Path = endpoint

	q := url.Values{}
	q.Set("token", token)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k != "token" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := formatParam(extra[k])
		if !ok {
			return "", fmt.Errorf("extra parameter %q: unsupported type %T", k, extra[k])
		}
		q.Set(k, v)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatParam(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return "", false
	}
}
