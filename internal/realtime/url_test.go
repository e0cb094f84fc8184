// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"testing"
	"time"
)

func TestTransportOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		want    string
		wantErr bool
	}{
		{"https://api.example.com", "wss://api.example.com", false},
		{"http://localhost:8080", "ws://localhost:8080", false},
		{"https://api.example.com/ignored/path?x=1", "wss://api.example.com", false},
		{"wss://api.example.com", "wss://api.example.com", false},
		{"ftp://api.example.com", "", true},
		{"api.example.com", "", true},
		{"://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			got, err := transportOrigin(tt.origin)
			if (err != nil) != tt.wantErr {
				t.Fatalf("transportOrigin(%q) error = %v, wantErr %v", tt.origin, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("transportOrigin(%q) = %q, want %q", tt.origin, got.String(), tt.want)
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	base, err := transportOrigin("https://api.example.com")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		extra   map[string]any
		want    string
		wantErr bool
	}{
		{
			name: "token only",
			want: "wss://api.example.com/ws/notifications/42?token=abc",
		},
		{
			name:  "sorted extras",
			extra: map[string]any{"z": "last", "a": 1, "flag": true, "ratio": 0.5},
			want:  "wss://api.example.com/ws/notifications/42?a=1&flag=true&ratio=0.5&token=abc&z=last",
		},
		{
			name:  "token override ignored",
			extra: map[string]any{"token": "evil"},
			want:  "wss://api.example.com/ws/notifications/42?token=abc",
		},
		{
			name:  "stringer",
			extra: map[string]any{"wait": 1500 * time.Millisecond},
			want:  "wss://api.example.com/ws/notifications/42?token=abc&wait=1.5s",
		},
		{
			name:    "unsupported value",
			extra:   map[string]any{"ids": []int{1, 2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(base, "/ws/notifications/42", "abc", tt.extra)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildURL_DoesNotMutateBase(t *testing.T) {
	base, err := transportOrigin("http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := buildURL(base, "/ws/consultations/1", "t", nil); err != nil {
		t.Fatal(err)
	}
	if base.Path != "" || base.RawQuery != "" {
		t.Errorf("base mutated: %s", base)
	}
}
