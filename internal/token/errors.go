// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package token

import (
	"errors"
	"fmt"
)

// ErrTokenFetch is matched by every error returned from a failed token fetch.
var ErrTokenFetch = errors.New("token fetch failed")

// errEmptyToken is the cause when the endpoint answers without a token.
var errEmptyToken = errors.New("response contained no token")

// FetchError describes a failed token endpoint round trip.
type FetchError struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token fetch failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("token fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTokenFetch.
func (e *FetchError) Is(target error) bool { return target == ErrTokenFetch }

// asFetchError wraps err as a FetchError unless it already is one.
func asFetchError(err error) error {
	if errors.Is(err, ErrTokenFetch) {
		return err
	}
	return &FetchError{Err: err}
}
