// Package selector decides per cycle whether the vendor index or the
// fallback index is authoritative.
package selector

import "github.com/okian/airsense/internal/domain/model"

// DefaultMinConfidence is the lowest vendor confidence treated as usable.
const DefaultMinConfidence uint8 = 2

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithMinConfidence sets the minimum usable vendor confidence.
func WithMinConfidence(c uint8) Option {
	return func(s *Selector) {
		s.minConfidence = c
	}
}

// Selector chooses between vendor and fallback. It keeps no history: every
// call is decided from its arguments alone.
type Selector struct {
	minConfidence uint8
}

// New creates a Selector.
func New(opts ...Option) Selector {
	s := Selector{minConfidence: DefaultMinConfidence}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// MinConfidence returns the configured threshold.
func (s Selector) MinConfidence() uint8 { return s.minConfidence }

// Select returns the vendor index when vendor is present and confident
// enough, otherwise the fallback index, otherwise Unavailable.
func (s Selector) Select(vendor *model.VendorEstimate, fb model.FallbackIndex) model.SelectedMetric {
	if vendor != nil && vendor.Confidence >= s.minConfidence {
		return model.VendorMetric(vendor.Index, vendor.Confidence)
	}
	if !fb.Available {
		return model.UnavailableMetric()
	}
	return model.FallbackMetric(fb.Value, fb.Label)
}
