// Package sensor provides the sensor collaborators that feed the sampling loop.
package sensor

import (
	"context"

	"github.com/okian/airsense/internal/domain/model"
)

// Source yields one raw reading per call. Sample blocks for the duration of
// the measurement and either returns a complete reading or an error; callers
// never observe a partial reading.
type Source interface {
	Sample(ctx context.Context) (model.RawReading, error)
	Close() error
}

// Estimator is implemented by sources that carry a vendor estimator whose
// calibration state can be persisted as an opaque blob.
type Estimator interface {
	State() ([]byte, error)
	SetState(blob []byte) error
}

// Reinitializer is implemented by sources that can re-run their setup
// (bus probe, configuration, subscriptions) on operator request.
type Reinitializer interface {
	Reinit(ctx context.Context) error
}
