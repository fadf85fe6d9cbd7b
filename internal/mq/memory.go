package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrBrokerClosed is returned by a MemoryBroker after Close.
var ErrBrokerClosed = errors.New("mq: broker closed")

// MemoryBroker is an in-process fan-out backend. Messages published to a
// channel with no subscribers are dropped, as are messages for a subscriber
// whose buffer is full.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[uuid.UUID]chan Message
	closed bool
	buffer int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[string]map[uuid.UUID]chan Message),
		buffer: 64,
	}
}

// Publish never blocks on a subscriber.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", ErrBrokerClosed
	}
	targets := make([]chan Message, 0, len(b.subs[channel]))
	for _, ch := range b.subs[channel] {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: copyAttributes(attrs),
	}
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg.ID, nil
}

// Subscribe delivers messages until ctx is done. A handler error redelivers
// the message once to the same subscriber.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	id := uuid.New()
	ch := make(chan Message, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[uuid.UUID]chan Message)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs[channel], id)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				_ = handler(ctx, msg)
			}
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func copyAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func (b *MemoryBroker) subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
