package sensor

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/airsense/internal/domain/model"
)

const (
	defaultSimSeed = 42

	simBaseGasOhm   = 120000.0
	simSeaLevelPa   = 101325.0
	simPressureNoPa = 15.0

	// Samples the simulated estimator needs before each confidence step.
	simStabilizing = 6
	simLearning    = 24
	simCalibrated  = 60
)

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithSeed sets the deterministic random seed.
func WithSeed(seed int64) SimOption {
	return func(s *Sim) { s.seed = seed }
}

// WithPressureInHPa makes the simulated device report pressure in hectopascals
// instead of pascals, like some driver versions do.
func WithPressureInHPa() SimOption {
	return func(s *Sim) { s.pressureHPa = true }
}

// WithoutVendor disables the simulated vendor estimator.
func WithoutVendor() SimOption {
	return func(s *Sim) { s.vendor = false }
}

// WithFailureEvery makes every n-th sample fail. Zero disables failures.
func WithFailureEvery(n int) SimOption {
	return func(s *Sim) {
		if n >= 0 {
			s.failEvery = n
		}
	}
}

// WithReadDelay sets how long a sample blocks.
func WithReadDelay(d time.Duration) SimOption {
	return func(s *Sim) {
		if d >= 0 {
			s.readDelay = d
		}
	}
}

// WithGasProfile replaces the gas resistance generator. The function receives
// the 1-based sample number and returns ohms.
func WithGasProfile(fn func(n int) float64) SimOption {
	return func(s *Sim) {
		if fn != nil {
			s.gas = fn
		}
	}
}

// Sim is a deterministic gas sensor with a vendor estimator stand-in whose
// confidence rises as it sees more samples. It implements Source, Estimator
// and Reinitializer.
type Sim struct {
	mu sync.Mutex

	seed        int64
	rng         *rand.Rand
	pressureHPa bool
	vendor      bool
	failEvery   int
	readDelay   time.Duration
	gas         func(n int) float64

	samples int
	est     simEstimator
	reinits int
	closed  bool
}

// simEstimator is the part that survives a restart through the state blob.
type simEstimator struct {
	Version  int     `json:"version"`
	Seen     int     `json:"seen"`
	Baseline float64 `json:"baseline_ohm"`
}

const simStateVersion = 1

// NewSim creates a simulated source.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		seed:   defaultSimSeed,
		vendor: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewSource(s.seed)) //nolint:gosec // reproducible readings
	if s.gas == nil {
		s.gas = s.defaultGas
	}
	s.est = simEstimator{Version: simStateVersion}
	return s
}

func (s *Sim) defaultGas(n int) float64 {
	// Slow sinusoidal drift with occasional pollution events.
	drift := math.Sin(float64(n)/90) * 6000
	event := 0.0
	if n%200 > 150 {
		event = -float64(n%200-150) * 900
	}
	return simBaseGasOhm + drift + event + s.rng.NormFloat64()*800
}

// Sample implements Source.
func (s *Sim) Sample(ctx context.Context) (model.RawReading, error) {
	start := time.Now()
	if s.readDelay > 0 {
		t := time.NewTimer(s.readDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return model.RawReading{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.RawReading{}, errors.Wrap(ErrReadFailed, "sim: closed")
	}

	s.samples++
	if s.failEvery > 0 && s.samples%s.failEvery == 0 {
		return model.RawReading{}, errors.Wrapf(ErrReadFailed, "sim: injected failure at sample %d", s.samples)
	}

	pressure := simSeaLevelPa - 1200 + s.rng.NormFloat64()*simPressureNoPa
	if s.pressureHPa {
		pressure /= 100
	}

	r := model.RawReading{
		Temperature:      22 + s.rng.NormFloat64()*0.3,
		Humidity:         45 + s.rng.NormFloat64()*1.5,
		RawPressure:      pressure,
		RawGasResistance: math.Max(1, s.gas(s.samples)),
		CapturedAt:       time.Now(),
	}

	if s.vendor {
		r.Vendor = s.est.observe(r.RawGasResistance)
	}
	r.ReadDuration = time.Since(start)
	return r, nil
}

func (e *simEstimator) observe(gasOhm float64) *model.VendorEstimate {
	e.Seen++
	if gasOhm > e.Baseline {
		e.Baseline = gasOhm
	} else {
		// Let the reference decay towards clean air readings.
		e.Baseline -= (e.Baseline - gasOhm) * 0.01
	}

	var conf uint8
	switch {
	case e.Seen >= simCalibrated:
		conf = 3
	case e.Seen >= simLearning:
		conf = 2
	case e.Seen >= simStabilizing:
		conf = 1
	}

	ratio := 0.0
	if e.Baseline > 0 {
		ratio = (e.Baseline - gasOhm) / e.Baseline
	}
	iaq := math.Min(500, math.Max(0, 25+ratio*250))

	return &model.VendorEstimate{
		Index:               iaq,
		Confidence:          conf,
		CO2Equivalent:       500 + iaq*4,
		BreathVOCEquivalent: 0.5 + iaq/50,
	}
}

// State implements Estimator.
func (s *Sim) State() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(s.est)
	if err != nil {
		return nil, errors.Wrap(err, "sim: encode state")
	}
	return b, nil
}

// SetState implements Estimator.
func (s *Sim) SetState(blob []byte) error {
	var est simEstimator
	if err := json.Unmarshal(blob, &est); err != nil {
		return errors.Wrap(ErrBadState, err.Error())
	}
	if est.Version != simStateVersion {
		return errors.Wrapf(ErrBadState, "sim: state version %d", est.Version)
	}
	s.mu.Lock()
	s.est = est
	s.mu.Unlock()
	return nil
}

// Reinit implements Reinitializer. The estimator starts from scratch; the
// caller is expected to reload persisted state afterwards.
func (s *Sim) Reinit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.est = simEstimator{Version: simStateVersion}
	s.reinits++
	s.closed = false
	return nil
}

// Reinits reports how many times Reinit ran.
func (s *Sim) Reinits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reinits
}

// Close implements Source.
func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
