// Package outbox stores domain events in the same transaction as the state
// change that raised them and relays them to the event bus afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amora-chat/amora/internal/shared/domain"
	"github.com/google/uuid"
)

// Message is an outbox row.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// envelope is the published body: the event payload plus its identity and metadata.
type envelope struct {
	EventID       uuid.UUID            `json:"event_id"`
	EventType     string               `json:"event_type"`
	AggregateType string               `json:"aggregate_type"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Metadata      domain.EventMetadata `json:"metadata"`
	Data          json.RawMessage      `json:"data"`
}

// NewMessage serialises a domain event into an outbox message.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.RoutingKey(), err)
	}

	payload, err := json.Marshal(envelope{
		EventID:       event.EventID(),
		EventType:     event.RoutingKey(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Metadata:      event.Metadata(),
		Data:          data,
	})
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages converts a batch of events, failing on the first that cannot be encoded.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// IsPublished reports whether the message has been relayed.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}
