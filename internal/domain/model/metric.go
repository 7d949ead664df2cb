package model

// Label classifies a fallback index value.
type Label int

// Fallback labels, ordered from cleanest to worst. LabelBuilding marks the
// period before a baseline exists and never corresponds to a numeric band.
const (
	LabelBuilding Label = iota
	LabelExcellent
	LabelNormal
	LabelElevated
	LabelPoor
	LabelSevere
)

func (l Label) String() string {
	switch l {
	case LabelExcellent:
		return "excellent"
	case LabelNormal:
		return "normal"
	case LabelElevated:
		return "elevated"
	case LabelPoor:
		return "poor"
	case LabelSevere:
		return "severe"
	default:
		return "building"
	}
}

// FallbackIndex is the locally computed proxy index. When Available is false
// Value carries no meaning and Label is LabelBuilding.
type FallbackIndex struct {
	Value     float64
	Label     Label
	Available bool
}

// UnavailableFallback is the fallback result before a baseline exists.
func UnavailableFallback() FallbackIndex {
	return FallbackIndex{Label: LabelBuilding}
}

// MetricKind tags which variant a SelectedMetric holds.
type MetricKind int

const (
	MetricUnavailable MetricKind = iota
	MetricVendor
	MetricFallback
)

func (k MetricKind) String() string {
	switch k {
	case MetricVendor:
		return "vendor"
	case MetricFallback:
		return "fallback"
	default:
		return "unavailable"
	}
}

// SelectedMetric is the single value surfaced to display and log collaborators.
//
// It is a tagged variant: Vendor(value, confidence) | Fallback(value, label) | Unavailable.
// Use the constructors; the zero value is Unavailable.
type SelectedMetric struct {
	Kind       MetricKind
	Value      float64
	Confidence uint8 // MetricVendor only
	Label      Label // MetricFallback, or LabelBuilding when unavailable
}

// VendorMetric selects the vendor index.
func VendorMetric(value float64, confidence uint8) SelectedMetric {
	return SelectedMetric{Kind: MetricVendor, Value: value, Confidence: confidence}
}

// FallbackMetric selects the fallback index.
func FallbackMetric(value float64, label Label) SelectedMetric {
	return SelectedMetric{Kind: MetricFallback, Value: value, Label: label}
}

// UnavailableMetric is selected when neither source can produce a value.
func UnavailableMetric() SelectedMetric {
	return SelectedMetric{Kind: MetricUnavailable, Label: LabelBuilding}
}

// Available reports whether the metric carries a numeric value.
func (m SelectedMetric) Available() bool {
	return m.Kind != MetricUnavailable
}
