package model

import "time"

// CommandKind identifies an external control request.
type CommandKind int

const (
	// CommandRefresh makes the next sampling cycle due immediately.
	CommandRefresh CommandKind = iota + 1
	// CommandReinitialize re-runs sensor setup and resets the baseline.
	CommandReinitialize
)

func (k CommandKind) String() string {
	switch k {
	case CommandRefresh:
		return "refresh"
	case CommandReinitialize:
		return "reinitialize"
	default:
		return "unknown"
	}
}

// Command is a control request travelling from a control collaborator
// (HTTP, hardware button) to the sampling loop.
type Command struct {
	Kind     CommandKind
	Origin   string // "http", "button", ...
	IssuedAt time.Time
}
