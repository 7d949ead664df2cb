// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// Snapshot returns the latest reading; false before the first cycle.
	Snapshot() (types.Snapshot, bool)

	// Submit hands a command to the sampling loop without blocking.
	Submit(ctx context.Context, c model.Command) error

	// Subscribe and Unsubscribe manage live snapshot streams.
	Subscribe() <-chan types.Snapshot
	Unsubscribe(ch <-chan types.Snapshot)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	readingHandler   *ReadingHandler
	commandHandler   *CommandHandler
	streamHandler    *StreamHandler
	dashboardHandler *dashboardHandler
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger       logger.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStreamTimeouts sets the websocket write deadline and keepalive interval.
func WithStreamTimeouts(write, ping time.Duration) Option {
	return func(o *serverOptions) {
		if write > 0 {
			o.writeTimeout = write
		}
		if ping > 0 {
			o.pingInterval = ping
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		statsHandler:     NewStatsHandler(deps),
		readingHandler:   NewReadingHandler(deps),
		commandHandler:   NewCommandHandler(deps),
		streamHandler:    NewStreamHandler(deps, o.logger, o.writeTimeout, o.pingInterval),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux. Live streams end when ctx is done.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	s.streamHandler.base = ctx

	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/reading", MetricsMiddleware(s.readingHandler.HandleGetReading, "reading"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.commandHandler.HandleRefresh, "refresh"))
	mux.HandleFunc("/reinit", MetricsMiddleware(s.commandHandler.HandleReinitialize, "reinit"))
	mux.HandleFunc("/ws", MetricsMiddleware(s.streamHandler.HandleStream, "ws"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
}

type ackResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
