package baseline

import "time"

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithWarmupDelay sets how long after boot the baseline is locked.
func WithWarmupDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.warmup = d
		}
	}
}

// WithWindowResetInterval sets how often the window minimum is reset.
func WithWindowResetInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.windowInterval = d
		}
	}
}
