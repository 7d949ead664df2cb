// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are carried as integer milliseconds so env and YAML agree.
// - Provide New(ctx) to build a Config with defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"time"

	"github.com/okian/airsense/internal/domain/pipeline"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SampleIntervalMS is the period of the sampling cycle.
	SampleIntervalMS int `koanf:"sample_interval_ms"`

	// SeaLevelHPa is the reference pressure for altitude.
	SeaLevelHPa float64 `koanf:"sea_level_hpa"`

	// Baseline timing.
	WarmupDelayMS         int `koanf:"warmup_delay_ms"`
	WindowResetIntervalMS int `koanf:"window_reset_interval_ms"`

	// MinSaveIntervalMS is the minimum time between estimator state saves.
	MinSaveIntervalMS int `koanf:"min_save_interval_ms"`

	// Vendor confidence thresholds for selection and persistence.
	MinVendorConfidence int `koanf:"min_vendor_confidence"`
	MaxVendorConfidence int `koanf:"max_vendor_confidence"`

	// ResetSaveClockOnReinit restarts the save interval on reinitialization.
	ResetSaveClockOnReinit bool `koanf:"reset_save_clock_on_reinit"`

	// SensorDriver is "sim" or "bme68x".
	SensorDriver string `koanf:"sensor_driver"`

	// I2C transport for the bme68x driver. An empty bus opens the first one.
	I2CBus  string `koanf:"i2c_bus"`
	I2CAddr int    `koanf:"i2c_addr"`

	// Gas heater profile for the bme68x driver.
	HeaterTempC      int `koanf:"heater_temp_c"`
	HeaterDurationMS int `koanf:"heater_duration_ms"`

	// StatePath is where the estimator state blob is written. Empty keeps it in memory.
	StatePath string `koanf:"state_path"`

	// MQTT publishing; an empty broker disables it.
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTClientID string `koanf:"mqtt_client_id"`
	MQTTTopic    string `koanf:"mqtt_topic"`

	// GPIO push buttons; a negative line disables the button.
	GPIOChip          string `koanf:"gpio_chip"`
	RefreshButtonLine int    `koanf:"refresh_button_line"`
	ReinitButtonLine  int    `koanf:"reinit_button_line"`

	// ControlQueueSize bounds pending refresh/reinitialize commands.
	ControlQueueSize int `koanf:"control_queue_size"`

	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		SampleIntervalMS:      5000,
		SeaLevelHPa:           1013.25,
		WarmupDelayMS:         120_000,
		WindowResetIntervalMS: 30_000,
		MinSaveIntervalMS:     300_000,
		MinVendorConfidence:   2,
		MaxVendorConfidence:   3,
		SensorDriver:          DriverSim,
		I2CAddr:               0x76,
		HeaterTempC:           320,
		HeaterDurationMS:      150,
		StatePath:             "airsense-state.json",
		MQTTClientID:          "airsense",
		MQTTTopic:             "airsense/reading",
		GPIOChip:              "gpiochip0",
		RefreshButtonLine:     -1,
		ReinitButtonLine:      -1,
		ControlQueueSize:      16,
		MetricsNamespace:      "airsense",
	}
}

// Sensor drivers.
const (
	DriverSim    = "sim"
	DriverBME68x = "bme68x"
)

// SampleInterval returns the sampling period.
func (c *Config) SampleInterval() time.Duration {
	return ms(c.SampleIntervalMS)
}

// HeaterDuration returns the gas heater duration.
func (c *Config) HeaterDuration() time.Duration {
	return ms(c.HeaterDurationMS)
}

// Pipeline returns the pipeline tunables.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		SeaLevelHPa:         c.SeaLevelHPa,
		WarmupDelay:         ms(c.WarmupDelayMS),
		WindowResetInterval: ms(c.WindowResetIntervalMS),
		MinSaveInterval:     ms(c.MinSaveIntervalMS),
		MinVendorConfidence: uint8(c.MinVendorConfidence), //nolint:gosec // validated to 0..3
		MaxVendorConfidence: uint8(c.MaxVendorConfidence), //nolint:gosec // validated to 0..3
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
