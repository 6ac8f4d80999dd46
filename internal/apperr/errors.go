// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrKindMismatch  = errors.New("keyword kind mismatch")
	ErrInvalidPath   = errors.New("invalid path")
)
