// Package publisher sends per-cycle snapshots to display and log
// collaborators over MQTT.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/airsense/internal/domain/types"
	"github.com/okian/airsense/pkg/logger"
)

const (
	defaultTopic      = "airsense/reading"
	defaultTimeout    = 2 * time.Second
	disconnectQuiesce = 250
)

// Publisher delivers a snapshot to an external collaborator.
type Publisher interface {
	Publish(ctx context.Context, s types.Snapshot) error
}

// Client is the subset of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes snapshots as JSON on a single topic.
type MQTT struct {
	client   Client
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	logger   logger.Logger
}

// New wraps an already connected client.
func New(client Client, opts ...Option) *MQTT {
	p := &MQTT{
		client:  client,
		topic:   defaultTopic,
		timeout: defaultTimeout,
		logger:  logger.Get().Named("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial connects to broker and returns a publisher on top of the connection.
func Dial(ctx context.Context, broker, clientID string, opts ...Option) (*MQTT, error) {
	copts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(defaultTimeout)

	client := mqtt.NewClient(copts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConnect, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	p := New(client, opts...)
	p.logger.Info(ctx, "connected to broker", logger.String("broker", broker), logger.String("topic", p.topic))
	return p, nil
}

// Topic returns the topic snapshots go to.
func (p *MQTT) Topic() string { return p.topic }

// Publish implements Publisher.
func (p *MQTT) Publish(ctx context.Context, s types.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPublish, err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: timed out after %s", ErrPublish, p.timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPublish, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTT) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
