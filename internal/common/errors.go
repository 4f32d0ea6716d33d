// Package common defines shared constants and sentinel errors used across
// the sync engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote API classification: NotFound is absorbed as expected state,
	// Unavailable is left for retry, a client error carries the
	// server-provided message to the user.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Operation log decode.
	ErrUnknownOperation = errors.New("unknown operation kind")
)
