// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Blob store write failures. Callers must not insert a reference whose
// backing put returned one of these.
var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrStoreWrite    = errors.New("storage write failed")
)

var (
	ErrInvalidKey = errors.New("invalid blob key")
	ErrTooLarge   = errors.New("payload too large")
)
