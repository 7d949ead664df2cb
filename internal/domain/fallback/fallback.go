// Package fallback computes a proxy air-quality index from the drop in gas
// resistance relative to the established baseline.
package fallback

import (
	"math"

	"github.com/okian/airsense/internal/domain/baseline"
	"github.com/okian/airsense/internal/domain/model"
)

// Band upper bounds (exclusive), lowest first.
const (
	excellentBelow = 2.0
	normalBelow    = 10.0
	elevatedBelow  = 25.0
	poorBelow      = 50.0

	percent = 100.0
)

// Estimate returns the fallback index for currentKOhm against the tracker state.
// The result is unavailable until the baseline is established and positive.
// A resistance above the baseline clamps to zero.
func Estimate(currentKOhm float64, st baseline.State) model.FallbackIndex {
	base, ok := st.Baseline()
	if !ok || base <= 0 || math.IsNaN(currentKOhm) || math.IsInf(currentKOhm, 0) {
		return model.UnavailableFallback()
	}

	delta := base - currentKOhm
	index := (delta / base) * percent
	if index < 0 {
		index = 0
	}

	return model.FallbackIndex{
		Value:     index,
		Label:     Classify(index),
		Available: true,
	}
}

// Classify maps a numeric index to its band.
func Classify(index float64) model.Label {
	switch {
	case index < excellentBelow:
		return model.LabelExcellent
	case index < normalBelow:
		return model.LabelNormal
	case index < elevatedBelow:
		return model.LabelElevated
	case index < poorBelow:
		return model.LabelPoor
	default:
		return model.LabelSevere
	}
}
