package application

import (
	"github.com/amora-chat/amora/internal/shared/domain"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates metadata for events raised while handling one delivery.
// A parseable correlationID is reused so events can be joined with request logs.
func NewEventMetadata(userID uuid.UUID, correlationID, deliveryID string) domain.EventMetadata {
	corr, err := uuid.Parse(correlationID)
	if err != nil {
		corr = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: corr,
		CausationID:   uuid.New(),
		UserID:        userID,
		DeliveryID:    deliveryID,
	}
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
