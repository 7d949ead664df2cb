package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "AIRSENSE_"
	envFileVar = envPrefix + "CONFIG"

	maxConfidence = 3
)

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if AIRSENSE_CONFIG is set
//  3. env (prefix AIRSENSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// AIRSENSE_SAMPLE_INTERVAL_MS -> sample_interval_ms. Underscores are kept
	// to match the flat koanf tags on the struct.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return invalid("addr must not be empty")
	case c.SampleIntervalMS <= 0:
		return invalid("sample_interval_ms must be positive")
	case c.SeaLevelHPa <= 0:
		return invalid("sea_level_hpa must be positive")
	case c.WarmupDelayMS < 0:
		return invalid("warmup_delay_ms must not be negative")
	case c.WindowResetIntervalMS <= 0:
		return invalid("window_reset_interval_ms must be positive")
	case c.MinSaveIntervalMS <= 0:
		return invalid("min_save_interval_ms must be positive")
	case c.MinVendorConfidence < 0 || c.MinVendorConfidence > maxConfidence:
		return invalid("min_vendor_confidence must be within 0..3")
	case c.MaxVendorConfidence < 1 || c.MaxVendorConfidence > maxConfidence:
		return invalid("max_vendor_confidence must be within 1..3")
	case c.ControlQueueSize <= 0:
		return invalid("control_queue_size must be positive")
	case !metricName.MatchString(c.MetricsNamespace):
		return invalid("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format %q is not one of text, json", c.LogFormat)
	}

	switch c.SensorDriver {
	case DriverSim:
	case DriverBME68x:
		if c.I2CAddr <= 0 || c.I2CAddr > 0x7f {
			return invalid("i2c_addr %#x is not a 7-bit address", c.I2CAddr)
		}
		if c.HeaterTempC < 200 || c.HeaterTempC > 400 {
			return invalid("heater_temp_c must be within 200..400")
		}
		if c.HeaterDurationMS <= 0 || c.HeaterDurationMS > 4032 {
			return invalid("heater_duration_ms must be within 1..4032")
		}
	default:
		return invalid("sensor_driver %q is not one of %s, %s", c.SensorDriver, DriverSim, DriverBME68x)
	}

	if c.MQTTBroker != "" && strings.TrimSpace(c.MQTTTopic) == "" {
		return invalid("mqtt_topic must not be empty when mqtt_broker is set")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
