package application

import (
	"context"

	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
)

// writeEvents stamps events with the request's correlation and delivery ids
// and stores them in the outbox inside the transaction carried by ctx.
func writeEvents(ctx context.Context, outboxRepo outbox.Repository, events []sharedDomain.DomainEvent, userID uuid.UUID) error {
	if outboxRepo == nil || len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(
		userID,
		observability.CorrelationIDFromContext(ctx),
		observability.DeliveryIDFromContext(ctx),
	))
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	return outboxRepo.SaveBatch(ctx, msgs)
}
