// Package eventbus publishes outbox messages to the message broker.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher sends an encoded event to the broker under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher drops messages. It is used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that only logs.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }

// Published is a message captured by MemoryPublisher.
type Published struct {
	RoutingKey string
	Payload    []byte
}

// MemoryPublisher keeps published messages in memory. Err, when set, is
// returned from every Publish call instead.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Published
	Err      error
}

func (p *MemoryPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages = append(p.messages, Published{RoutingKey: routingKey, Payload: append([]byte(nil), payload...)})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MemoryPublisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.messages...)
}

// SetErr changes the error returned by Publish.
func (p *MemoryPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

func (p *MemoryPublisher) Close() error { return nil }
