package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/airsense/internal/adapters/sensor"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/pipeline"
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
	"github.com/okian/airsense/pkg/metrics"
)

// loop is the single owner of the cycle schedule. Commands are applied
// between cycles, never concurrently with one.
func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	commands := s.commands.Dequeue(ctx)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			metrics.UpdateCommandQueueSize(s.commands.Len(ctx))
			s.apply(ctx, cmd, timer)
		case <-timer.C:
			_, _ = s.RunCycle(ctx, s.now())
			timer.Reset(s.interval)
		}
	}
}

func (s *Service) apply(ctx context.Context, cmd model.Command, timer *time.Timer) {
	s.logger.Debug(ctx, "command received",
		logger.String("command", cmd.Kind.String()),
		logger.String("origin", cmd.Origin),
	)
	switch cmd.Kind {
	case model.CommandRefresh:
		s.mu.Lock()
		s.counters.refreshes++
		s.mu.Unlock()
		metrics.RecordRefresh()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(0)
	case model.CommandReinitialize:
		s.Reinitialize(ctx, s.now())
	default:
		metrics.RecordCommandDropped(cmd.Kind.String(), "unknown")
		s.logger.Warn(ctx, "unknown command dropped", logger.Int("kind", int(cmd.Kind)))
	}
}

// Reinitialize sets the sensor up again, reloads the saved estimator state
// and resets the baseline to Unestablished as of now.
func (s *Service) Reinitialize(ctx context.Context, now time.Time) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.logger.Info(ctx, "reinitializing sensor and baseline")

	if r, ok := s.source.(sensor.Reinitializer); ok {
		if err := r.Reinit(ctx); err != nil {
			s.logger.Error(ctx, "sensor reinitialization failed", logger.Error(err))
			metrics.RecordErrorByComponent("sensor", "reinit")
		}
	}
	s.restore(ctx)
	s.state.Reinitialize(now, s.resetSaveClock)
	s.consecutive = 0
	s.warnedNoData = false

	s.mu.Lock()
	s.counters.reinits++
	s.mu.Unlock()
	metrics.RecordReinitialize()
}

// RunCycle samples the sensor once and pushes the reading through the
// pipeline. On a failed read the previous result stays current and the
// error is returned.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (pipeline.Result, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	raw, err := s.source.Sample(ctx)
	if err != nil {
		s.sampleFailed(ctx, err)
		return pipeline.Result{}, err
	}
	metrics.RecordSensorRead(float64(raw.ReadDuration.Milliseconds()))
	s.consecutive = 0

	if !s.loggedPressure {
		s.loggedPressure = true
		s.logger.Debug(ctx, "first raw pressure",
			logger.Float64("raw_pressure", raw.RawPressure),
			logger.Float64("sea_level_hpa", s.state.SeaLevelHPa()),
		)
	}

	res := pipeline.Process(s.state, raw, now)

	if res.Changes.Established {
		b, _ := res.Baseline.Baseline()
		s.logger.Info(ctx, "baseline established", logger.Float64("baseline_kohm", b))
	}
	if res.Changes.WindowReset {
		w, _ := res.Baseline.WindowMin()
		s.logger.Debug(ctx, "baseline window reset", logger.Float64("window_min_kohm", w))
		metrics.RecordWindowReset()
	}

	if res.Save.ShouldSave {
		s.persist(ctx, now, res.Save.Reason)
	}

	s.logger.Info(ctx, "cycle",
		logger.Float64("temperature_c", res.Reading.Temperature),
		logger.Float64("humidity_pct", res.Reading.Humidity),
		logger.Float64("pressure_hpa", res.Reading.PressureHPa),
		logger.Float64("gas_kohm", res.Reading.GasKOhm),
		logger.Float64("altitude_m", res.Reading.AltitudeM),
		logger.String("source", res.Metric.Kind.String()),
		logger.Float64("value", res.Metric.Value),
		logger.String("label", res.Metric.Label.String()),
	)

	s.publish(types.NewSnapshot(s.session, res))
	s.exportGauges(res)
	metrics.RecordCycle(float64(time.Since(start).Milliseconds()))
	return res, nil
}

func (s *Service) sampleFailed(ctx context.Context, err error) {
	s.consecutive++
	metrics.RecordSensorFailure()

	switch {
	case errors.Is(err, sensor.ErrNoData):
		if !s.warnedNoData {
			s.warnedNoData = true
			s.logger.Warn(ctx, "sensor returned no new data", logger.Error(err))
		}
	case s.consecutive == 1:
		s.logger.Warn(ctx, "sensor read failed", logger.Error(err))
	default:
		s.logger.Debug(ctx, "sensor read failed",
			logger.Error(err),
			logger.Int("consecutive", s.consecutive),
		)
	}

	s.mu.Lock()
	s.counters.failures++
	if s.hasSnapshot {
		s.snapshot.LastSampleError = err.Error()
	}
	s.mu.Unlock()
}

// persist writes the estimator state. A failed write is logged and the
// cycle carries on; the next eligible cycle tries again.
func (s *Service) persist(ctx context.Context, now time.Time, reason string) {
	est, ok := s.source.(sensor.Estimator)
	if !ok {
		return
	}

	blob, err := est.State()
	if err == nil {
		err = s.store.Save(ctx, blob)
	}
	metrics.RecordSave(err != nil)

	s.mu.Lock()
	if err != nil {
		s.counters.saveFailures++
	} else {
		s.counters.saves++
		s.counters.lastSave = now
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, "saving estimator state failed", logger.Error(err))
		metrics.RecordErrorByComponent("repository", "save")
		return
	}
	s.logger.Info(ctx, "estimator state saved",
		logger.String("reason", reason),
		logger.Int("bytes", len(blob)),
	)
}

func (s *Service) exportGauges(res pipeline.Result) {
	r := res.Reading
	metrics.UpdateReading(r.Temperature, r.Humidity, r.PressureHPa, r.GasKOhm, r.AltitudeM)
	metrics.UpdateBaseline(res.Baseline.Established, res.Baseline.BaselineKOhm, res.Baseline.WindowMinKOhm)
	metrics.UpdateFallbackIndex(res.Fallback.Value, res.Fallback.Available)
	if v := res.Vendor; v != nil {
		metrics.UpdateVendor(v.Index, v.Confidence, true)
	} else {
		metrics.UpdateVendor(0, 0, false)
	}
	metrics.UpdateSelected(res.Metric.Kind.String(), res.Metric.Value, res.Metric.Available())
}
