// Package metrics provides Prometheus metrics for the airsense sampling pipeline.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sources lists every value the selected_source gauge can take.
var Sources = []string{"vendor", "fallback", "unavailable"} //nolint:gochecknoglobals // fixed label set

// Manager manages all Prometheus metrics for the airsense service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Canonical reading
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	pressure    prometheus.Gauge
	gas         prometheus.Gauge
	altitude    prometheus.Gauge

	// Derived metric
	baselineEstablished prometheus.Gauge
	baseline            prometheus.Gauge
	windowMin           prometheus.Gauge
	fallbackIndex       prometheus.Gauge
	vendorIndex         prometheus.Gauge
	vendorConfidence    prometheus.Gauge
	selectedSource      *prometheus.GaugeVec
	selectedValue       prometheus.Gauge

	// Cycle health
	cycles         prometheus.Counter
	sensorFailures prometheus.Counter
	windowResets   prometheus.Counter
	cycleDuration  prometheus.Histogram
	readDuration   prometheus.Histogram

	// Persistence
	saves        prometheus.Counter
	saveFailures prometheus.Counter

	// Control
	reinits          prometheus.Counter
	refreshes        prometheus.Counter
	commandsDropped  *prometheus.CounterVec
	commandQueueSize prometheus.Gauge

	// Publishing
	published     prometheus.Counter
	publishErrors prometheus.Counter
	subscribers   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Latency buckets in milliseconds.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // fixed buckets

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it before anything records metrics or serves GetRegistry.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

func defaultOptions() []Option {
	return []Option{
		WithNamespace("airsense"),
		WithSubsystem("pipeline"),
		WithHistogramBuckets(latencyBuckets),
	}
}

// NewManager creates a new metrics manager. Options are applied over the
// airsense defaults; empty values keep the default.
func NewManager(opts ...Option) *Manager {
	m := &Manager{registry: prometheus.DefaultRegisterer}
	for _, opt := range append(defaultOptions(), opts...) {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.temperature = m.gauge("temperature_celsius", "Last ambient temperature")
	m.humidity = m.gauge("humidity_percent", "Last relative humidity")
	m.pressure = m.gauge("pressure_hpa", "Last pressure after unit normalization")
	m.gas = m.gauge("gas_resistance_kohm", "Last gas resistance")
	m.altitude = m.gauge("altitude_meters", "Barometric altitude")

	m.baselineEstablished = m.gauge("baseline_established", "1 once the clean-air baseline is locked")
	m.baseline = m.gauge("baseline_kohm", "Clean-air gas resistance baseline (NaN until established)")
	m.windowMin = m.gauge("window_min_kohm", "Minimum gas resistance in the current window (NaN until established)")
	m.fallbackIndex = m.gauge("fallback_index", "Locally computed air quality index (NaN while building)")
	m.vendorIndex = m.gauge("vendor_index", "Vendor estimator index (NaN when absent)")
	m.vendorConfidence = m.gauge("vendor_confidence", "Vendor estimator confidence 0..3 (-1 when absent)")
	m.selectedValue = m.gauge("selected_value", "Displayed air quality value (NaN when unavailable)")
	m.selectedSource = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "selected_source",
		Help:      "1 for the source of the displayed metric, 0 otherwise",
	}, []string{"source"})

	m.cycles = m.counter("cycles_total", "Completed sampling cycles")
	m.sensorFailures = m.counter("sensor_failures_total", "Sensor reads that failed")
	m.windowResets = m.counter("window_resets_total", "Window minimum resets")
	m.cycleDuration = m.histogram("cycle_duration_milliseconds", "Duration of a full sampling cycle")
	m.readDuration = m.histogram("sensor_read_duration_milliseconds", "Duration of the sensor read")

	m.saves = m.counter("state_saves_total", "Estimator state saves attempted")
	m.saveFailures = m.counter("state_save_failures_total", "Estimator state saves that failed")

	m.reinits = m.counter("reinitializations_total", "Operator reinitializations")
	m.refreshes = m.counter("refreshes_total", "Operator refresh requests")
	m.commandsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commands_dropped_total",
		Help:      "Control commands rejected by the queue",
	}, []string{"kind", "reason"})
	m.commandQueueSize = m.gauge("command_queue_size", "Pending control commands")

	m.published = m.counter("published_total", "Snapshots published to the broker")
	m.publishErrors = m.counter("publish_errors_total", "Snapshots that failed to publish")
	m.subscribers = m.gauge("stream_subscribers", "Connected live stream clients")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})
}

func optional(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}

// UpdateReading sets the canonical reading gauges.
func UpdateReading(tempC, humidityPct, pressureHPa, gasKOhm, altitudeM float64) {
	globalManager.temperature.Set(tempC)
	globalManager.humidity.Set(humidityPct)
	globalManager.pressure.Set(pressureHPa)
	globalManager.gas.Set(gasKOhm)
	globalManager.altitude.Set(altitudeM)
}

// UpdateBaseline sets the baseline gauges. Values are ignored until established.
func UpdateBaseline(established bool, baselineKOhm, windowMinKOhm float64) {
	if established {
		globalManager.baselineEstablished.Set(1)
	} else {
		globalManager.baselineEstablished.Set(0)
	}
	globalManager.baseline.Set(optional(baselineKOhm, established))
	globalManager.windowMin.Set(optional(windowMinKOhm, established))
}

// UpdateFallbackIndex sets the fallback index gauge.
func UpdateFallbackIndex(value float64, available bool) {
	globalManager.fallbackIndex.Set(optional(value, available))
}

// UpdateVendor sets the vendor gauges; present=false clears them.
func UpdateVendor(index float64, confidence uint8, present bool) {
	globalManager.vendorIndex.Set(optional(index, present))
	if present {
		globalManager.vendorConfidence.Set(float64(confidence))
	} else {
		globalManager.vendorConfidence.Set(-1)
	}
}

// UpdateSelected marks source as the displayed one and sets its value.
func UpdateSelected(source string, value float64, available bool) {
	for _, s := range Sources {
		if s == source {
			globalManager.selectedSource.WithLabelValues(s).Set(1)
		} else {
			globalManager.selectedSource.WithLabelValues(s).Set(0)
		}
	}
	globalManager.selectedValue.Set(optional(value, available))
}

// RecordCycle counts a completed cycle and its duration.
func RecordCycle(durationMs float64) {
	globalManager.cycles.Inc()
	globalManager.cycleDuration.Observe(durationMs)
}

// RecordSensorRead records the duration of a successful read.
func RecordSensorRead(durationMs float64) {
	globalManager.readDuration.Observe(durationMs)
}

// RecordSensorFailure increments the sensor failure counter.
func RecordSensorFailure() {
	globalManager.sensorFailures.Inc()
}

// RecordWindowReset increments the window reset counter.
func RecordWindowReset() {
	globalManager.windowResets.Inc()
}

// RecordSave increments the save counter, and the failure counter when failed.
func RecordSave(failed bool) {
	globalManager.saves.Inc()
	if failed {
		globalManager.saveFailures.Inc()
	}
}

// RecordReinitialize increments the reinitialization counter.
func RecordReinitialize() {
	globalManager.reinits.Inc()
}

// RecordRefresh increments the refresh counter.
func RecordRefresh() {
	globalManager.refreshes.Inc()
}

// RecordCommandDropped counts a command the queue did not accept.
func RecordCommandDropped(kind, reason string) {
	globalManager.commandsDropped.WithLabelValues(kind, reason).Inc()
}

// UpdateCommandQueueSize sets the number of pending commands.
func UpdateCommandQueueSize(size int) {
	globalManager.commandQueueSize.Set(float64(size))
}

// RecordPublish counts a publish attempt.
func RecordPublish(failed bool) {
	if failed {
		globalManager.publishErrors.Inc()
		return
	}
	globalManager.published.Inc()
}

// UpdateSubscribers sets the number of live stream clients.
func UpdateSubscribers(count int) {
	globalManager.subscribers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
