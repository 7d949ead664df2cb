package ctl

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/airsense/internal/domain/fallback"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/types"
)

const maxConfidence = 3

// Verify checks that a snapshot is internally consistent and returns every
// violation found, joined into one ErrInconsistent error.
func Verify(s types.Snapshot, minVendorConfidence uint8) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch s.Metric.Source {
	case model.MetricUnavailable.String():
		if s.Metric.Value != nil {
			add("unavailable metric carries value %v", *s.Metric.Value)
		}
		if s.Fallback.Value != nil {
			add("fallback %v is available but the metric is not", *s.Fallback.Value)
		}
	case model.MetricFallback.String():
		switch {
		case s.Metric.Value == nil:
			add("fallback metric has no value")
		case s.Fallback.Value == nil || *s.Fallback.Value != *s.Metric.Value:
			add("fallback metric does not match the fallback index")
		default:
			if want := fallback.Classify(*s.Metric.Value).String(); s.Metric.Label != want {
				add("fallback label %q, want %q for %.2f", s.Metric.Label, want, *s.Metric.Value)
			}
		}
		if s.Vendor != nil && s.Vendor.Confidence >= minVendorConfidence {
			add("vendor confidence %d qualified but fallback was selected", s.Vendor.Confidence)
		}
	case model.MetricVendor.String():
		switch {
		case s.Metric.Value == nil:
			add("vendor metric has no value")
		case s.Metric.Confidence == nil:
			add("vendor metric has no confidence")
		case *s.Metric.Confidence > maxConfidence:
			add("vendor confidence %d out of range", *s.Metric.Confidence)
		case *s.Metric.Confidence < minVendorConfidence:
			add("vendor confidence %d below threshold %d", *s.Metric.Confidence, minVendorConfidence)
		case s.Vendor == nil:
			add("vendor metric without a vendor estimate")
		case s.Vendor.Index != *s.Metric.Value:
			add("vendor metric %v does not match estimate %v", *s.Metric.Value, s.Vendor.Index)
		}
	default:
		add("unknown metric source %q", s.Metric.Source)
	}

	if s.Fallback.Value != nil {
		if v := *s.Fallback.Value; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			add("fallback index %v is not a non-negative number", v)
		}
	} else if s.Fallback.Label != model.LabelBuilding.String() {
		add("fallback without value labelled %q", s.Fallback.Label)
	}

	b := s.Baseline
	if b.Established != (b.BaselineKOhm != nil) || b.Established != (b.WindowMinKOhm != nil) {
		add("baseline values present=%t/%t with established=%t",
			b.BaselineKOhm != nil, b.WindowMinKOhm != nil, b.Established)
	}
	if !b.Established && s.Fallback.Value != nil {
		add("fallback index available before the baseline is established")
	}
	if b.BaselineKOhm != nil && *b.BaselineKOhm <= 0 && s.Fallback.Value != nil {
		add("fallback index available with non-positive baseline")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(problems, "; "))
}
