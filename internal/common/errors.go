// Package common defines shared constants and sentinel errors used across
// the buffer client, the transport and the list server. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Buffer errors.
	ErrItemNotFound  = errors.New("item not found")
	ErrFieldMissing  = errors.New("field missing")
	ErrFieldAccess   = errors.New("field not readable")
	ErrFieldsMissing = errors.New("required fields missing")
	ErrKeyNotFound   = errors.New("key not found")
	ErrNotSupported  = errors.New("not supported")

	// Schema registry errors.
	ErrUnknownType     = errors.New("unknown entity type")
	ErrDuplicateType   = errors.New("entity type already registered")
	ErrInvalidSchema   = errors.New("invalid schema")
	ErrInvalidDocument = errors.New("invalid document")

	// File errors.
	ErrFileTooLarge = errors.New("file too large")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
