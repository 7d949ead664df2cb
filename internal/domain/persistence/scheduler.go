// Package persistence decides when the vendor estimator state should be saved.
//
// The scheduler only gates when a save is attempted; it never sees the blob.
package persistence

import (
	"time"

	"github.com/okian/airsense/internal/domain/model"
)

// Default scheduler configuration constants.
const (
	DefaultMaxConfidence   uint8 = 3
	DefaultMinSaveInterval       = 5 * time.Minute
)

// Decision reasons.
const (
	ReasonDue                = "due"
	ReasonNoVendor           = "no_vendor_estimate"
	ReasonConfidenceBelow    = "confidence_below_max"
	ReasonIntervalNotElapsed = "interval_not_elapsed"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithMaxConfidence sets the confidence level that must be reached before saving.
func WithMaxConfidence(c uint8) Option {
	return func(s *Scheduler) {
		if c > 0 {
			s.maxConfidence = c
		}
	}
}

// WithMinSaveInterval sets the minimum time between save attempts.
func WithMinSaveInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Scheduler tracks the last save attempt.
type Scheduler struct {
	maxConfidence uint8
	interval      time.Duration
	lastSave      time.Time
}

// NewScheduler creates a scheduler whose save clock starts at start.
func NewScheduler(start time.Time, opts ...Option) *Scheduler {
	s := &Scheduler{
		maxConfidence: DefaultMaxConfidence,
		interval:      DefaultMinSaveInterval,
		lastSave:      start,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate decides whether a save is due at now. A positive decision commits
// the attempt: the save clock advances to now whatever the outcome of the
// write, so a failing store cannot cause a retry storm.
func (s *Scheduler) Evaluate(now time.Time, vendor *model.VendorEstimate) model.PersistenceDecision {
	switch {
	case vendor == nil:
		return model.PersistenceDecision{Reason: ReasonNoVendor}
	case vendor.Confidence != s.maxConfidence:
		return model.PersistenceDecision{Reason: ReasonConfidenceBelow}
	case now.Sub(s.lastSave) < s.interval:
		return model.PersistenceDecision{Reason: ReasonIntervalNotElapsed}
	}

	s.lastSave = now
	return model.PersistenceDecision{ShouldSave: true, Reason: ReasonDue}
}

// Reset restarts the save clock at now.
func (s *Scheduler) Reset(now time.Time) {
	s.lastSave = now
}

// LastSave returns the time of the last save attempt (or the start time).
func (s *Scheduler) LastSave() time.Time {
	return s.lastSave
}

// Interval returns the configured minimum save interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
