package application

import (
	"testing"

	"github.com/amora-chat/amora/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type settableEvent struct {
	domain.BaseEvent
}

type fixedEvent struct {
	domain.BaseEvent
}

func (fixedEvent) Metadata() domain.EventMetadata { return domain.EventMetadata{} }

func TestNewEventMetadata(t *testing.T) {
	userID := uuid.New()

	t.Run("reuses a uuid correlation id", func(t *testing.T) {
		corr := uuid.New()
		meta := NewEventMetadata(userID, corr.String(), "evt_1")

		assert.Equal(t, corr, meta.CorrelationID)
		assert.Equal(t, userID, meta.UserID)
		assert.Equal(t, "evt_1", meta.DeliveryID)
		assert.NotEqual(t, uuid.Nil, meta.CausationID)
	})

	t.Run("generates a correlation id otherwise", func(t *testing.T) {
		meta := NewEventMetadata(userID, "not-a-uuid", "")
		assert.NotEqual(t, uuid.Nil, meta.CorrelationID)
	})
}

func TestApplyEventMetadata(t *testing.T) {
	first := &settableEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Profile", "a")}
	second := &settableEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Profile", "b")}
	meta := NewEventMetadata(uuid.New(), "", "evt_2")

	ApplyEventMetadata([]domain.DomainEvent{first, second, fixedEvent{}}, meta)

	assert.Equal(t, meta, first.Metadata())
	assert.Equal(t, meta, second.Metadata())
}
