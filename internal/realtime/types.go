// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"github.com/goccy/go-json"
)

// Status is a transition reported through ConnectionConfig.OnStatusChange.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"

	// StatusFailed is final: reconnection gave up and the callbacks were dropped.
	StatusFailed Status = "failed"
)

// ConnectionStatus is the externally visible state of an identity.
type ConnectionStatus string

const (
	ConnectionNotCreated   ConnectionStatus = "not-created"
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionClosing      ConnectionStatus = "closing"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionUnknown      ConnectionStatus = "unknown"
)

// Message is one decoded inbound payload.
type Message struct {
	Identity string

	// Type is the payload's "type" field when it is a JSON object carrying one.
	Type string

	// Data is the decoded JSON value (map[string]any for objects).
	Data any

	Raw json.RawMessage
}

// ConnectionConfig describes what a caller wants from a connection.
//
// Callbacks run on manager goroutines. Messages for one identity are delivered
// in transport order from that connection's read goroutine, so a slow
// OnMessage slows reads for that identity only.
type ConnectionConfig struct {
	OnMessage      func(Message)
	OnStatusChange func(status Status, detail string)

	// ExtraParams are appended to the transport URL query. Values must be
	// strings, booleans or numbers; a "token" key is ignored.
	ExtraParams map[string]any

	// UseExistingToken sends Token verbatim instead of a cached token.
	UseExistingToken bool
	Token            string
}

// decodeMessage parses a transport frame into a Message.
func decodeMessage(identity string, data []byte) (Message, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Message{}, err
	}

	msg := Message{Identity: identity, Data: v, Raw: json.RawMessage(data)}
	if obj, ok := v.(map[string]any); ok {
		if t, ok := obj["type"].(string); ok {
			msg.Type = t
		}
	}
	return msg, nil
}
