package sensor

import "errors"

// Sentinel kinds for sensor errors.
var (
	ErrReadFailed   = errors.New("sensor read failed")
	ErrNoData       = errors.New("sensor has no new data")
	ErrChipID       = errors.New("unexpected chip id")
	ErrNotSupported = errors.New("not supported")
	ErrBadState     = errors.New("invalid estimator state")
)
