// Package service runs the sampling loop and implements the dependencies
// required by the HTTP API and the control surfaces.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/airsense/internal/adapters/mq/publisher"
	"github.com/okian/airsense/internal/adapters/mq/queue"
	"github.com/okian/airsense/internal/adapters/mq/worker"
	"github.com/okian/airsense/internal/adapters/repository"
	"github.com/okian/airsense/internal/adapters/sensor"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/pipeline"
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
	"github.com/okian/airsense/pkg/metrics"
)

const (
	defaultSampleInterval = 5 * time.Second
	defaultQueueSize      = 16
	stopTimeout           = 5 * time.Second
)

// Service owns the pipeline state. Only the loop goroutine (or a direct
// RunCycle caller) touches it; everything else reads snapshot copies.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	source    sensor.Source
	store     repository.Store
	commands  *queue.InMemoryQueue
	publisher publisher.Publisher
	outbox    *worker.InMemoryWorker

	// Configuration
	cfg            pipeline.Config
	interval       time.Duration
	queueSize      int
	resetSaveClock bool
	now            func() time.Time

	// Cycle state, guarded by cycleMu
	cycleMu        sync.Mutex
	state          *pipeline.State
	consecutive    int
	loggedPressure bool
	warnedNoData   bool

	// Published state, guarded by mu
	session     string
	boot        time.Time
	snapshot    types.Snapshot
	hasSnapshot bool
	counters    counters
	subs        map[<-chan types.Snapshot]chan types.Snapshot

	started bool
	stopCh  chan struct{}
	done    chan struct{}

	logger logger.Logger
}

type counters struct {
	cycles       int
	failures     int
	saves        int
	saveFailures int
	reinits      int
	refreshes    int
	lastSave     time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the sensor. Defaults to a simulated one.
func WithSource(src sensor.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithStore sets where the vendor estimator state is persisted.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sends every snapshot to p from a background worker.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPipelineConfig sets the pipeline tunables.
func WithPipelineConfig(cfg pipeline.Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithSampleInterval sets the sampling period.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithQueueSize sets the bound of the control command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithResetSaveClockOnReinit makes reinitialization restart the persistence interval.
func WithResetSaveClockOnReinit(reset bool) Option {
	return func(s *Service) { s.resetSaveClock = reset }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service. The pipeline boots at construction time.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:       pipeline.DefaultConfig(),
		interval:  defaultSampleInterval,
		queueSize: defaultQueueSize,
		now:       time.Now,
		session:   uuid.NewString(),
		subs:      make(map[<-chan types.Snapshot]chan types.Snapshot),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.source == nil {
		s.source = sensor.NewSim()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.publisher != nil {
		s.outbox = worker.NewInMemoryWorker(s.publisher, worker.WithName("publisher"))
	}

	s.boot = s.now()
	s.state = pipeline.NewState(s.boot, s.cfg)
	s.commands = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	return s
}

// Session returns the per-boot identifier stamped on every snapshot.
func (s *Service) Session() string { return s.session }

// Start restores persisted estimator state and launches the sampling loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	s.logger.Info(ctx, "starting sampling service",
		logger.String("session", s.session),
		logger.Duration("interval", s.interval),
		logger.Duration("warmup", s.cfg.WarmupDelay),
	)

	s.restore(ctx)

	if s.outbox != nil {
		go s.outbox.Run(ctx)
	}
	go s.loop(ctx)

	s.started = true
	return nil
}

// restore loads the saved estimator blob, if the source has an estimator.
func (s *Service) restore(ctx context.Context) {
	est, ok := s.source.(sensor.Estimator)
	if !ok {
		return
	}
	blob, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNoState):
		s.logger.Info(ctx, "no saved estimator state")
		return
	case err != nil:
		s.logger.Warn(ctx, "loading estimator state failed", logger.Error(err))
		return
	}
	if err := est.SetState(blob); err != nil {
		s.logger.Warn(ctx, "restoring estimator state failed", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "estimator state restored", logger.Int("bytes", len(blob)))
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping sampling service")

	// The loop publishes under mu, so wait for it without holding the lock.
	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		s.logger.Warn(ctx, "sampling loop did not stop in time")
	}

	if s.outbox != nil {
		sctx, cancel := context.WithTimeout(ctx, stopTimeout)
		_ = s.outbox.Shutdown(sctx)
		cancel()
	}
	_ = s.commands.Close()
	if err := s.source.Close(); err != nil {
		s.logger.Warn(ctx, "closing sensor failed", logger.Error(err))
	}

	s.mu.Lock()
	for out, in := range s.subs {
		close(in)
		delete(s.subs, out)
	}
	metrics.UpdateSubscribers(0)
	s.mu.Unlock()

	s.logger.Info(ctx, "sampling service stopped")
}

// Submit queues a control command for the sampling loop. It never blocks and
// returns queue.ErrFull or queue.ErrClosed when the command is rejected.
func (s *Service) Submit(ctx context.Context, c model.Command) error {
	if c.IssuedAt.IsZero() {
		c.IssuedAt = s.now()
	}
	return s.commands.Push(ctx, c)
}

// RequestRefresh asks for an immediate cycle.
func (s *Service) RequestRefresh(ctx context.Context) bool {
	return s.Submit(ctx, model.Command{Kind: model.CommandRefresh, Origin: "button"}) == nil
}

// RequestReinitialize asks for the sensor to be set up again and the baseline rebuilt.
func (s *Service) RequestReinitialize(ctx context.Context) bool {
	return s.Submit(ctx, model.Command{Kind: model.CommandReinitialize, Origin: "button"}) == nil
}

// Snapshot returns the latest snapshot; false before the first successful cycle.
func (s *Service) Snapshot() (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	c := s.counters
	stats := map[string]interface{}{
		"started":             s.started,
		"session":             s.session,
		"boot":                s.boot.UTC(),
		"sampleIntervalMs":    s.interval.Milliseconds(),
		"cycles":              c.cycles,
		"sensorFailures":      c.failures,
		"saves":               c.saves,
		"saveFailures":        c.saveFailures,
		"reinitializations":   c.reinits,
		"refreshes":           c.refreshes,
		"commandsPending":     s.commands.Len(ctx),
		"subscribers":         len(s.subs),
		"hasReading":          s.hasSnapshot,
		"baselineEstablished": s.hasSnapshot && s.snapshot.Baseline.Established,
	}
	if !c.lastSave.IsZero() {
		stats["lastSave"] = c.lastSave.UTC()
	}
	if s.outbox != nil {
		stats["publisher"] = s.outbox.Stats()
	}
	return stats
}
