// Package model contains domain models passed between pipeline stages.
package model

import "time"

// VendorEstimate is what the opaque vendor estimator emitted for a cycle.
type VendorEstimate struct {
	Index      float64 // vendor air-quality index
	Confidence uint8   // ordinal, 0 (uncalibrated) up to the estimator maximum

	// Optional secondary outputs; zero when the estimator does not produce them.
	CO2Equivalent       float64 // ppm
	BreathVOCEquivalent float64 // ppm
}

// RawReading is a single capture from the sensor collaborator. Immutable once captured.
type RawReading struct {
	Temperature      float64 // °C
	Humidity         float64 // %RH
	RawPressure      float64 // Pa or hPa depending on sensor mode
	RawGasResistance float64 // ohm

	// Vendor is nil when the estimator emitted nothing this cycle.
	Vendor *VendorEstimate

	CapturedAt   time.Time
	ReadDuration time.Duration
}

// CanonicalReading is a RawReading converted to the canonical unit set.
type CanonicalReading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
	PressureHPa float64
	GasKOhm     float64
	AltitudeM   float64
}

// PersistenceDecision says whether the vendor state should be written this cycle.
type PersistenceDecision struct {
	ShouldSave bool
	Reason     string
}
