// Package baseline tracks the reference gas resistance used by the fallback index.
//
// The tracker has two states. It starts Unestablished at boot and moves to
// Established on the first update at or after boot+warmup, locking the
// baseline to that update's reading. Once established it also follows the
// minimum resistance seen inside a window that is force-reset to the current
// reading every window interval.
package baseline

import "time"

// Default tracker configuration constants.
const (
	DefaultWarmupDelay         = 2 * time.Minute
	DefaultWindowResetInterval = 30 * time.Second
)

// State is a read-only view of the tracker.
type State struct {
	Established     bool
	BaselineKOhm    float64 // meaningful only when Established
	WindowMinKOhm   float64 // meaningful only when Established
	WindowStartedAt time.Time
	BootTime        time.Time
}

// Baseline returns the locked baseline, or false before establishment.
func (s State) Baseline() (float64, bool) {
	return s.BaselineKOhm, s.Established
}

// WindowMin returns the current window minimum, or false before establishment.
func (s State) WindowMin() (float64, bool) {
	return s.WindowMinKOhm, s.Established
}

// Update reports what a single Observe call changed.
type Update struct {
	Established bool // the baseline was locked on this call
	WindowReset bool // the window minimum was force-reset on this call
	WindowMoved bool // the window minimum decreased on this call
}

// Tracker is the baseline state machine. It is not safe for concurrent use;
// it is owned by the sampling loop.
type Tracker struct {
	warmup         time.Duration
	windowInterval time.Duration

	established     bool
	baseline        float64
	windowMin       float64
	windowStartedAt time.Time
	bootTime        time.Time
}

// NewTracker creates an unestablished tracker booted at bootTime.
func NewTracker(bootTime time.Time, opts ...Option) *Tracker {
	t := &Tracker{
		warmup:         DefaultWarmupDelay,
		windowInterval: DefaultWindowResetInterval,
		bootTime:       bootTime,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Observe feeds one cycle's gas resistance (kΩ) observed at now.
//
// Within one call the window reset is evaluated before the minimum update,
// so a reset and a same-cycle decrease can both apply.
func (t *Tracker) Observe(now time.Time, gasKOhm float64) Update {
	var u Update

	if !t.established {
		if now.Before(t.bootTime.Add(t.warmup)) {
			return u
		}
		t.established = true
		t.baseline = gasKOhm
		t.windowMin = gasKOhm
		t.windowStartedAt = now
		u.Established = true
		return u
	}

	if now.Sub(t.windowStartedAt) >= t.windowInterval {
		t.windowMin = gasKOhm
		t.windowStartedAt = now
		u.WindowReset = true
	}

	if gasKOhm < t.windowMin {
		t.windowMin = gasKOhm
		u.WindowMoved = true
	}

	return u
}

// Reset returns the tracker to Unestablished with a fresh boot time.
func (t *Tracker) Reset(bootTime time.Time) {
	t.established = false
	t.baseline = 0
	t.windowMin = 0
	t.windowStartedAt = time.Time{}
	t.bootTime = bootTime
}

// State returns a copy of the current tracker state.
func (t *Tracker) State() State {
	return State{
		Established:     t.established,
		BaselineKOhm:    t.baseline,
		WindowMinKOhm:   t.windowMin,
		WindowStartedAt: t.windowStartedAt,
		BootTime:        t.bootTime,
	}
}

// EstablishesAt returns the earliest time the baseline can be locked.
func (t *Tracker) EstablishesAt() time.Time {
	return t.bootTime.Add(t.warmup)
}
