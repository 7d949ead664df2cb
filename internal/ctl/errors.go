package ctl

import "errors"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoReading      = errors.New("service has no reading yet")
	ErrUnexpected     = errors.New("unexpected response")
	ErrInconsistent   = errors.New("snapshot is inconsistent")
)
