package control

import "errors"

// Sentinel kinds for control errors.
var (
	ErrNotSupported = errors.New("gpio buttons are not supported on this platform")
	ErrNoButtons    = errors.New("no buttons configured")
)
