// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

// Package validation wraps go-playground/validator with MedLink's custom tags
// and error messages.
//
// Configuration sections and relay request bodies declare their rules as
// `validate` struct tags:
//
//	type PublishRequest struct {
//	    Channel string          `validate:"required,channel"`
//	    Payload json.RawMessage `validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondAPIError(w, http.StatusBadRequest, verr.Response())
//	}
//
// Custom tags:
//
//	origin   http(s) URL with a host and no path
//	channel  relay channel, "<family>/<id>"
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const errorCode = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once

	channelPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*/[A-Za-z0-9_-]+$`)
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"-"`
	Message string `json:"message"`
}

// Error lists every failed rule of one ValidateStruct call.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i := range e.Fields {
		msgs[i] = e.Fields[i].Message
	}
	return strings.Join(msgs, "; ")
}

// APIError is the relay's JSON error body.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response renders e as a relay error body. A single failure reports its
// field and tag; several are listed under details.fields.
func (e *Error) Response() *APIError {
	switch len(e.Fields) {
	case 0:
		return &APIError{Code: errorCode, Message: "Validation failed"}
	case 1:
		f := e.Fields[0]
		return &APIError{
			Code:    errorCode,
			Message: f.Message,
			Details: map[string]any{"field": f.Field, "tag": f.Tag},
		}
	default:
		return &APIError{
			Code:    errorCode,
			Message: e.Error(),
			Details: map[string]any{"fields": e.Fields},
		}
	}
}

// GetValidator returns the shared validator with MedLink's tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("origin", isOrigin)
		_ = validate.RegisterValidation("channel", isChannel)
	})
	return validate
}

// ValidateStruct validates s, returning nil when every rule passes.
func ValidateStruct(s any) *Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return out
}

func isOrigin(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && (u.Path == "" || u.Path == "/")
}

func isChannel(fl validator.FieldLevel) bool {
	return channelPattern.MatchString(fl.Field().String())
}

// messages are indexed by tag; %[1]s is the field and %[2]s the param.
var messages = map[string]string{
	"required": "%[1]s is required",
	"url":      "%[1]s must be a valid URL",
	"origin":   "%[1]s must be an http or https origin without a path",
	"channel":  "%[1]s must look like <family>/<id>",
	"oneof":    "%[1]s must be one of: %[2]s",
	"gte":      "%[1]s must be greater than or equal to %[2]s",
	"lte":      "%[1]s must be less than or equal to %[2]s",
	"gt":       "%[1]s must be greater than %[2]s",
	"lt":       "%[1]s must be less than %[2]s",
}

func message(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	if tmpl, ok := messages[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	unit := ""
	if fe.Kind().String() == "string" {
		unit = " characters"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
