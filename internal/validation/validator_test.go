// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package validation

import (
	"strings"
	"testing"
)

type originHolder struct {
	Origin string `validate:"required,origin"`
}

type publishBody struct {
	Channel string `validate:"required,channel"`
	Limit   int    `validate:"min=1,max=10"`
	Mode    string `validate:"omitempty,oneof=fanout direct"`
}

func TestValidateOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		origin string
		valid  bool
	}{
		{"https://app.example.com", true},
		{"http://localhost:8080", true},
		{"http://localhost:8080/", true},
		{"wss://app.example.com", false},
		{"https://app.example.com/api", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			t.Parallel()
			err := ValidateStruct(&originHolder{Origin: tt.origin})
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.origin, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be invalid", tt.origin)
			}
		})
	}
}

func TestValidateStructMessages(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&publishBody{Channel: "Bad Channel", Limit: 20, Mode: "broadcast"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(err.Fields), err)
	}

	msg := err.Error()
	for _, want := range []string{
		"Channel must look like <family>/<id>",
		"Limit must be at most 10",
		"Mode must be one of: fanout direct",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}

	apiErr := err.Response()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 3 {
		t.Fatalf("expected three entries under details.fields, got %#v", apiErr.Details["fields"])
	}
	if fields[1].Param != "10" {
		t.Errorf("max param = %q, want 10", fields[1].Param)
	}
}

func TestValidateStructValid(t *testing.T) {
	t.Parallel()

	if err := ValidateStruct(&publishBody{Channel: "consultations/917", Limit: 5}); err != nil {
		t.Errorf("expected valid struct, got %v", err)
	}
}

func TestResponse_SingleField(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&originHolder{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	resp := err.Response()
	if resp.Message != "Origin is required" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Details["field"] != "Origin" || resp.Details["tag"] != "required" {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestChannelTag(t *testing.T) {
	t.Parallel()

	for channel, valid := range map[string]bool{
		"notifications/42":   true,
		"incoming_calls/u-7": true,
		"Notifications/42":   false,
		"notifications":      false,
		"a/b/c":              false,
	} {
		err := GetValidator().Var(channel, "channel")
		if (err == nil) != valid {
			t.Errorf("channel %q: valid = %v, want %v", channel, err == nil, valid)
		}
	}
}
