// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies a family of managed connections and builds the identity
// and endpoint path for one member of that family.
type Kind interface {
	// Identity is the registry key, e.g. "notifications_42".
	Identity() string

	// Endpoint is the transport path on the origin, e.g. "/ws/notifications/42".
	Endpoint() string

	// Family is a low-cardinality label used in logs and metrics.
	Family() string

	// ExternalToken reports whether the kind authenticates with a caller
	// supplied token instead of the token cache.
	ExternalToken() bool
}

// Notifications is a user's notification stream.
type Notifications struct {
	UserID string
}

func (k Notifications) Identity() string    { return "notifications_" + k.UserID }
func (k Notifications) Endpoint() string    { return "/ws/notifications/" + url.PathEscape(k.UserID) }
func (k Notifications) Family() string      { return "notifications" }
func (k Notifications) ExternalToken() bool { return false }

// Consultation is the chat channel of one consultation.
type Consultation struct {
	ID string
}

func (k Consultation) Identity() string    { return "consultation_" + k.ID }
func (k Consultation) Endpoint() string    { return "/ws/consultations/" + url.PathEscape(k.ID) }
func (k Consultation) Family() string      { return "consultation" }
func (k Consultation) ExternalToken() bool { return false }

// Calls is a user's incoming-call signalling channel. The calls service issues
// its own tokens, so ConnectionConfig.Token must be set.
type Calls struct {
	UserID string
}

func (k Calls) Identity() string    { return "calls_" + k.UserID }
func (k Calls) Endpoint() string    { return "/api/calls/ws/incoming/" + url.PathEscape(k.UserID) }
func (k Calls) Family() string      { return "calls" }
func (k Calls) ExternalToken() bool { return true }

// Custom covers connection families not modelled above.
type Custom struct {
	Key  string
	Path string

	// UseExternalToken makes the kind require ConnectionConfig.Token.
	UseExternalToken bool
}

func (k Custom) Identity() string    { return k.Key }
func (k Custom) Endpoint() string    { return k.Path }
func (k Custom) Family() string      { return "custom" }
func (k Custom) ExternalToken() bool { return k.UseExternalToken }

// ParseIdentity converts a prefixed identity string such as "consultation_917"
// into its Kind. It is meant for configuration input; code should construct
// kinds directly.
func ParseIdentity(identity string) (Kind, error) {
	prefix, id, ok := strings.Cut(identity, "_")
	if !ok || id == "" {
		return nil, fmt.Errorf("identity %q: expected <family>_<id>", identity)
	}

	switch prefix {
	case "notifications":
		return Notifications{UserID: id}, nil
	case "consultation":
		return Consultation{ID: id}, nil
	case "calls":
		return Calls{UserID: id}, nil
	default:
		return nil, fmt.Errorf("identity %q: unknown family %q", identity, prefix)
	}
}
