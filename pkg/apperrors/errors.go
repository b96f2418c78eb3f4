package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateAssignment signals that an assignment row already exists for
	// the (experiment, user) pair. It is resolved internally by re-reading the
	// winning row and is never surfaced to API callers.
	ErrDuplicateAssignment = errors.New("assignment already exists")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid experiment status transition")
)
