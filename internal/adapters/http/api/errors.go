package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNoReading    = errors.New("no reading yet")
	ErrUnavailable  = errors.New("sampling stopped")
)
