// Package types contains the wire shapes handed to display and log collaborators
package types

import (
	"time"

	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/pipeline"
)

// Snapshot is the per-cycle CanonicalReading + SelectedMetric tuple.
type Snapshot struct {
	Session   string    `json:"session"`
	Timestamp time.Time `json:"ts"`

	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	PressureHPa  float64 `json:"pressure_hpa"`
	GasKOhm      float64 `json:"gas_kohm"`
	AltitudeM    float64 `json:"altitude_m"`
	ReadMS       int64   `json:"read_ms"`

	Metric   Metric   `json:"metric"`
	Fallback Fallback `json:"fallback"`
	Vendor   *Vendor  `json:"vendor,omitempty"`
	Baseline Baseline `json:"baseline"`

	// LastSampleError is set when the most recent read failed; the rest of
	// the snapshot then describes the last successful cycle.
	LastSampleError string `json:"last_sample_error,omitempty"`
}

// Metric is the selected display value. Value is null when unavailable.
type Metric struct {
	Source     string   `json:"source"`
	Value      *float64 `json:"value"`
	Confidence *uint8   `json:"confidence,omitempty"`
	Label      string   `json:"label,omitempty"`
}

// Fallback is the locally computed index. Value is null while building.
type Fallback struct {
	Value *float64 `json:"value"`
	Label string   `json:"label"`
}

// Vendor mirrors what the vendor estimator emitted.
type Vendor struct {
	Index               float64 `json:"index"`
	Confidence          uint8   `json:"confidence"`
	CO2Equivalent       float64 `json:"co2_eq_ppm"`
	BreathVOCEquivalent float64 `json:"breath_voc_eq_ppm"`
}

// Baseline exposes the tracker state.
type Baseline struct {
	Established   bool     `json:"established"`
	BaselineKOhm  *float64 `json:"baseline_kohm"`
	WindowMinKOhm *float64 `json:"window_min_kohm"`
}

// NewSnapshot converts a pipeline result into its wire shape.
func NewSnapshot(session string, res pipeline.Result) Snapshot {
	s := Snapshot{
		Session:      session,
		Timestamp:    res.At.UTC(),
		TemperatureC: res.Reading.Temperature,
		HumidityPct:  res.Reading.Humidity,
		PressureHPa:  res.Reading.PressureHPa,
		GasKOhm:      res.Reading.GasKOhm,
		AltitudeM:    res.Reading.AltitudeM,
		ReadMS:       res.Raw.ReadDuration.Milliseconds(),
		Fallback:     Fallback{Label: res.Fallback.Label.String()},
		Baseline:     Baseline{Established: res.Baseline.Established},
	}

	m := res.Metric
	s.Metric.Source = m.Kind.String()
	if m.Available() {
		s.Metric.Value = ptr(m.Value)
	}
	if m.Kind == model.MetricVendor {
		s.Metric.Confidence = ptr(m.Confidence)
	} else {
		s.Metric.Label = m.Label.String()
	}

	if res.Fallback.Available {
		s.Fallback.Value = ptr(res.Fallback.Value)
	}

	if v := res.Vendor; v != nil {
		s.Vendor = &Vendor{
			Index:               v.Index,
			Confidence:          v.Confidence,
			CO2Equivalent:       v.CO2Equivalent,
			BreathVOCEquivalent: v.BreathVOCEquivalent,
		}
	}

	if b, ok := res.Baseline.Baseline(); ok {
		s.Baseline.BaselineKOhm = ptr(b)
	}
	if w, ok := res.Baseline.WindowMin(); ok {
		s.Baseline.WindowMinKOhm = ptr(w)
	}

	return s
}

func ptr[T any](v T) *T { return &v }
