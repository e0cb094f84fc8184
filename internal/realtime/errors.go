// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionSetup is matched by every *SetupError.
	ErrConnectionSetup = errors.New("connection setup failed")

	// ErrMessageDecode marks an inbound payload that is not valid JSON.
	ErrMessageDecode = errors.New("message decode failed")

	// ErrTransport marks a socket-level read or write failure.
	ErrTransport = errors.New("transport error")

	// ErrMaxRetriesExceeded is reported when reconnection gives up.
	ErrMaxRetriesExceeded = errors.New("max reconnection attempts exceeded")

	// ErrManagerClosed is returned after Shutdown.
	ErrManagerClosed = errors.New("connection manager closed")

	// ErrClosedDuringSetup is returned when the identity was closed while
	// its connection was being established.
	ErrClosedDuringSetup = errors.New("connection closed during setup")

	errMissingToken = errors.New("external token required but not provided")
)

// SetupError describes a failed CreateConnection. The registry entry for
// Identity has been rolled back.
type SetupError struct {
	Identity string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("connection setup for %s: %v", e.Identity, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConnectionSetup.
func (e *SetupError) Is(target error) bool { return target == ErrConnectionSetup }
