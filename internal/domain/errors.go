package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound = errors.New("domain: not found")
	ErrInvalid  = errors.New("domain: invalid")
	ErrConflict = errors.New("domain: conflict")
)
