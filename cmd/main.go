package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/airsense/internal/adapters/control"
	"github.com/okian/airsense/internal/adapters/http/api"
	"github.com/okian/airsense/internal/adapters/http/swagger"
	"github.com/okian/airsense/internal/adapters/mq/publisher"
	"github.com/okian/airsense/internal/adapters/repository"
	"github.com/okian/airsense/internal/adapters/sensor"
	app "github.com/okian/airsense/internal/app"
	"github.com/okian/airsense/internal/config"
	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/pkg/logger"
	"github.com/okian/airsense/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	dialTimeout       = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init(metrics.WithNamespace(cfg.MetricsNamespace))

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "airsense failed", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the collaborators around the sampling service and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	src, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithSource(src),
		app.WithStore(openStore(cfg)),
		app.WithPipelineConfig(cfg.Pipeline()),
		app.WithSampleInterval(cfg.SampleInterval()),
		app.WithResetSaveClockOnReinit(cfg.ResetSaveClockOnReinit),
		app.WithQueueSize(cfg.ControlQueueSize),
	}

	if pub := dialPublisher(ctx, cfg, log); pub != nil {
		defer func() { _ = pub.Close() }()
		opts = append(opts, app.WithPublisher(pub))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		_ = src.Close()
		return err
	}
	defer svc.Stop()

	if buttons := openButtons(ctx, cfg, svc, log); buttons != nil {
		defer func() { _ = buttons.Close() }()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func openSource(ctx context.Context, cfg *config.Config) (sensor.Source, error) {
	switch cfg.SensorDriver {
	case config.DriverBME68x:
		return sensor.NewI2C(ctx,
			sensor.WithBus(cfg.I2CBus),
			sensor.WithAddress(uint16(cfg.I2CAddr)), //nolint:gosec // validated 7-bit address
			sensor.WithHeater(sensor.HeaterProfile{
				TempC:    float64(cfg.HeaterTempC),
				Duration: cfg.HeaterDuration(),
			}),
		)
	default:
		return sensor.NewSim(), nil
	}
}

func openStore(cfg *config.Config) repository.Store {
	if cfg.StatePath == "" {
		return repository.NewMemoryStore()
	}
	return repository.NewFileStore(cfg.StatePath)
}

// dialPublisher connects to the broker when one is configured. A broker that
// cannot be reached disables publishing instead of failing startup.
func dialPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) *publisher.MQTT {
	if cfg.MQTTBroker == "" {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pub, err := publisher.Dial(dctx, cfg.MQTTBroker, cfg.MQTTClientID,
		publisher.WithTopic(cfg.MQTTTopic),
		publisher.WithLogger(log.Named("publisher")),
	)
	if err != nil {
		log.Warn(ctx, "mqtt publishing disabled", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		return nil
	}
	return pub
}

func openButtons(ctx context.Context, cfg *config.Config, cmdr control.Commander, log logger.Logger) *control.Buttons {
	buttons, err := control.Open(ctx, cfg.GPIOChip, []control.Button{
		{Name: "refresh", Line: cfg.RefreshButtonLine, Kind: model.CommandRefresh},
		{Name: "reinit", Line: cfg.ReinitButtonLine, Kind: model.CommandReinitialize},
	}, cmdr, control.WithLogger(log.Named("control")))
	switch {
	case errors.Is(err, control.ErrNoButtons):
		return nil
	case err != nil:
		log.Warn(ctx, "push buttons unavailable", logger.Error(err))
		return nil
	}
	return buttons
}

func newMux(ctx context.Context, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.WithLogger(log.Named("http"))).Register(ctx, mux)
	return mux
}
