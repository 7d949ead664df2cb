// Package pipeline runs one sampling cycle of the derived air-quality metric:
// normalize, derive altitude, update the baseline, estimate the fallback
// index, select the metric and evaluate persistence.
//
// All mutable state lives in a single State value owned by the caller and
// passed by pointer into Process; nothing here is package-global.
package pipeline

import (
	"time"

	"github.com/okian/airsense/internal/domain/baseline"
	"github.com/okian/airsense/internal/domain/fallback"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/persistence"
	"github.com/okian/airsense/internal/domain/selector"
	"github.com/okian/airsense/internal/domain/units"
)

// Config holds the tunables of the pipeline.
type Config struct {
	SeaLevelHPa         float64
	WarmupDelay         time.Duration
	WindowResetInterval time.Duration
	MinSaveInterval     time.Duration
	MinVendorConfidence uint8
	MaxVendorConfidence uint8
}

// DefaultConfig returns the firmware defaults.
func DefaultConfig() Config {
	return Config{
		SeaLevelHPa:         units.DefaultSeaLevelHPa,
		WarmupDelay:         baseline.DefaultWarmupDelay,
		WindowResetInterval: baseline.DefaultWindowResetInterval,
		MinSaveInterval:     persistence.DefaultMinSaveInterval,
		MinVendorConfidence: selector.DefaultMinConfidence,
		MaxVendorConfidence: persistence.DefaultMaxConfidence,
	}
}

// State is everything that survives between cycles.
type State struct {
	seaLevelHPa float64

	baseline *baseline.Tracker
	saves    *persistence.Scheduler
	selector selector.Selector

	last    Result
	hasLast bool
}

// NewState creates the state for a process booted at boot.
func NewState(boot time.Time, cfg Config) *State {
	if cfg.SeaLevelHPa <= 0 {
		cfg.SeaLevelHPa = units.DefaultSeaLevelHPa
	}
	return &State{
		seaLevelHPa: cfg.SeaLevelHPa,
		baseline: baseline.NewTracker(boot,
			baseline.WithWarmupDelay(cfg.WarmupDelay),
			baseline.WithWindowResetInterval(cfg.WindowResetInterval),
		),
		saves: persistence.NewScheduler(boot,
			persistence.WithMinSaveInterval(cfg.MinSaveInterval),
			persistence.WithMaxConfidence(cfg.MaxVendorConfidence),
		),
		selector: selector.New(selector.WithMinConfidence(cfg.MinVendorConfidence)),
	}
}

// Result is the outcome of one cycle.
type Result struct {
	At       time.Time
	Raw      model.RawReading
	Reading  model.CanonicalReading
	Vendor   *model.VendorEstimate
	Fallback model.FallbackIndex
	Baseline baseline.State
	Metric   model.SelectedMetric
	Save     model.PersistenceDecision
	Changes  baseline.Update
}

// Process runs one cycle for raw observed at now and records it as the last result.
func Process(st *State, raw model.RawReading, now time.Time) Result {
	reading := units.Normalize(raw, st.seaLevelHPa)
	changes := st.baseline.Observe(now, reading.GasKOhm)
	bs := st.baseline.State()
	fb := fallback.Estimate(reading.GasKOhm, bs)

	res := Result{
		At:       now,
		Raw:      raw,
		Reading:  reading,
		Vendor:   raw.Vendor,
		Fallback: fb,
		Baseline: bs,
		Metric:   st.selector.Select(raw.Vendor, fb),
		Save:     st.saves.Evaluate(now, raw.Vendor),
		Changes:  changes,
	}

	st.last = res
	st.hasLast = true
	return res
}

// Last returns the most recent successful cycle. A failed sensor read does
// not go through Process, so the previously selected metric stays current.
func (st *State) Last() (Result, bool) {
	return st.last, st.hasLast
}

// Reinitialize resets the baseline to Unestablished with boot time now.
// The save clock is restarted only when resetSaveClock is set.
func (st *State) Reinitialize(now time.Time, resetSaveClock bool) {
	st.baseline.Reset(now)
	if resetSaveClock {
		st.saves.Reset(now)
	}
}

// Baseline returns the current tracker state.
func (st *State) Baseline() baseline.State {
	return st.baseline.State()
}

// LastSave returns the time of the last persistence attempt.
func (st *State) LastSave() time.Time {
	return st.saves.LastSave()
}

// SeaLevelHPa returns the altitude reference in use.
func (st *State) SeaLevelHPa() float64 {
	return st.seaLevelHPa
}
