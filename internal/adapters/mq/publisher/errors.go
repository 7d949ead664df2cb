package publisher

import "errors"

// Sentinel kinds for publisher errors.
var (
	ErrConnect = errors.New("broker connect failed")
	ErrPublish = errors.New("publish failed")
)
