// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package config loads MedLink configuration with Koanf v2.

Sources are layered: built-in defaults, then an optional YAML file (CONFIG_PATH,
config.yaml, /etc/medlink/config.yaml), then environment variables. Only
variables listed in the mapping table are read.

Example config.yaml:

	realtime:
	  origin: https://app.example.com
	  max_attempts: 0          # retry forever
	  keepalive_interval: 30s
	token:
	  path: /api/realtime/token
	  lifetime: 1h
	  refresh_buffer: 5m
	client:
	  identities:
	    - notifications_42
	    - consultation_917

Validation runs after loading: struct tags through internal/validation, then
cross-field checks such as RECONNECT_MAX_DELAY >= RECONNECT_BASE_DELAY.
*/
package config
