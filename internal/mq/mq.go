package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fastcrud/apiserver/config"
)

const (
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
	BackendMemory   = "memory"
)

// ErrChannelRequired is returned when publishing or subscribing without a channel name.
var ErrChannelRequired = errors.New("mq: channel is required")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	name    string
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend, name string) *MQ {
	return &MQ{backend: backend, name: name}
}

// Open connects to the backend selected by cfg.Backend. An empty backend
// disables messaging and returns a nil MQ with no error.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Backend)); name {
	case "":
		return nil, nil
	case BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client, name), nil
	case BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client, name), nil
	case BackendMemory:
		return New(NewMemoryBroker(), name), nil
	default:
		return nil, fmt.Errorf("unsupported MQ_BACKEND %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", ErrChannelRequired
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return ErrChannelRequired
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

// Backend returns the configured backend name.
func (m *MQ) Backend() string {
	return m.name
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
