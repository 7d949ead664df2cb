// Package units converts raw sensor magnitudes into the canonical unit set
// (°C, %RH, hPa, kΩ, m) and derives altitude from pressure.
package units

import (
	"math"

	"github.com/okian/airsense/internal/domain/model"
)

// Unit conversion constants.
const (
	// PascalThreshold disambiguates the pressure unit. The sensor reports either
	// Pa or hPa depending on its mode and the reading carries no unit tag, so
	// any magnitude above this is taken to be Pa. Atmospheric pressure in hPa
	// never comes near 5000 and in Pa never drops below it.
	PascalThreshold = 5000.0

	pascalsPerHectopascal = 100.0
	ohmsPerKiloOhm        = 1000.0
)

// Barometric formula constants.
const (
	// DefaultSeaLevelHPa is the standard atmosphere reference.
	DefaultSeaLevelHPa = 1013.25

	altitudeScaleM   = 44330.0
	altitudeExponent = 0.1903
)

// PressureHPa maps a raw pressure magnitude of unknown unit to hPa.
// This is a magnitude heuristic, not a unit conversion driven by metadata.
func PressureHPa(raw float64) float64 {
	if raw > PascalThreshold {
		return raw / pascalsPerHectopascal
	}
	return raw
}

// GasKOhm converts a gas resistance from ohms to kilo-ohms.
func GasKOhm(ohms float64) float64 {
	return ohms / ohmsPerKiloOhm
}

// Altitude returns the altitude in metres for pressureHPa relative to seaLevelHPa.
func Altitude(pressureHPa, seaLevelHPa float64) float64 {
	return altitudeScaleM * (1 - math.Pow(pressureHPa/seaLevelHPa, altitudeExponent))
}

// Normalize converts a raw reading into canonical form, deriving altitude
// against seaLevelHPa. It never fails.
func Normalize(raw model.RawReading, seaLevelHPa float64) model.CanonicalReading {
	p := PressureHPa(raw.RawPressure)
	return model.CanonicalReading{
		Temperature: raw.Temperature,
		Humidity:    raw.Humidity,
		PressureHPa: p,
		GasKOhm:     GasKOhm(raw.RawGasResistance),
		AltitudeM:   Altitude(p, seaLevelHPa),
	}
}
