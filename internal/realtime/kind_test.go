// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		kind     Kind
		identity string
		endpoint string
		family   string
		external bool
	}{
		{Notifications{UserID: "42"}, "notifications_42", "/ws/notifications/42", "notifications", false},
		{Consultation{ID: "917"}, "consultation_917", "/ws/consultations/917", "consultation", false},
		{Calls{UserID: "7"}, "calls_7", "/api/calls/ws/incoming/7", "calls", true},
		{Consultation{ID: "a/b"}, "consultation_a/b", "/ws/consultations/a%2Fb", "consultation", false},
		{Custom{Key: "lab_1", Path: "/ws/lab/1", UseExternalToken: true}, "lab_1", "/ws/lab/1", "custom", true},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			if got := tt.kind.Identity(); got != tt.identity {
				t.Errorf("Identity() = %q, want %q", got, tt.identity)
			}
			if got := tt.kind.Endpoint(); got != tt.endpoint {
				t.Errorf("Endpoint() = %q, want %q", got, tt.endpoint)
			}
			if got := tt.kind.Family(); got != tt.family {
				t.Errorf("Family() = %q, want %q", got, tt.family)
			}
			if got := tt.kind.ExternalToken(); got != tt.external {
				t.Errorf("ExternalToken() = %v, want %v", got, tt.external)
			}
		})
	}
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"notifications_42", Notifications{UserID: "42"}, false},
		{"consultation_917", Consultation{ID: "917"}, false},
		{"calls_abc_def", Calls{UserID: "abc_def"}, false},
		{"notifications_", nil, true},
		{"notifications", nil, true},
		{"chat_1", nil, true},
		{"", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIdentity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIdentity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseIdentity(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
			if got != nil && got.Identity() != tt.input {
				t.Errorf("round trip identity = %q", got.Identity())
			}
		})
	}
}
