package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNoState      = errors.New("no saved state")
	ErrWriteFailed  = errors.New("state write failed")
	ErrCorruptState = errors.New("saved state is corrupt")
)
