package domain

import "errors"

// Error kinds shared by the store, the HTTP layer and the client.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("invalid data")
	ErrConflict    = errors.New("already exists")
	ErrStaleUpdate = errors.New("stale update")
)
