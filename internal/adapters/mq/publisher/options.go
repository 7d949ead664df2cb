package publisher

import (
	"time"

	"github.com/okian/airsense/pkg/logger"
)

// Option applies a configuration option to the MQTT publisher.
type Option func(*MQTT)

// WithTopic sets the topic snapshots are published on.
func WithTopic(topic string) Option {
	return func(p *MQTT) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithQoS sets the MQTT quality of service (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(p *MQTT) {
		if qos <= 2 {
			p.qos = qos
		}
	}
}

// WithRetained makes the broker keep the last snapshot for new subscribers.
func WithRetained(retained bool) Option {
	return func(p *MQTT) { p.retained = retained }
}

// WithTimeout bounds how long a publish waits for the broker.
func WithTimeout(d time.Duration) Option {
	return func(p *MQTT) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *MQTT) {
		if l != nil {
			p.logger = l
		}
	}
}
