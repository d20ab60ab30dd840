package services

import "errors"

// Expected failure kinds. Callers classify with errors.Is; anything that
// does not match one of these is an unknown backend failure.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
)
