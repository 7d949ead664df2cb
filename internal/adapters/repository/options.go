package repository

import (
	"os"
	"time"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithFileMode sets the permissions of the state file.
func WithFileMode(mode os.FileMode) Option {
	return func(s *FileStore) {
		if mode != 0 {
			s.mode = mode
		}
	}
}

// WithClock overrides the time source used for the saved_at field.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}
