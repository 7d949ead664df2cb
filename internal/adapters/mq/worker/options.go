// Package worker moves snapshots off the sampling loop and hands them to a
// publisher, so a slow broker never delays a cycle.
package worker

import (
	"github.com/okian/airsense/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithBuffer sets how many snapshots may wait for the publisher.
func WithBuffer(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.buffer = n
		}
	}
}
