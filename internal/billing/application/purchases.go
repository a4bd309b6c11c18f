package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

const opRecordOrder = "record_order"

// PurchaseHandler credits one-time purchases exactly once per order id.
type PurchaseHandler struct {
	orders     domain.OrderRepository
	credits    *CreditEngine
	catalog    domain.ProductCatalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	logger     *slog.Logger
	now        func() time.Time
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(
	orders domain.OrderRepository,
	credits *CreditEngine,
	catalog domain.ProductCatalog,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *PurchaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseHandler{
		orders:     orders,
		credits:    credits,
		catalog:    catalog,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
		now:        time.Now,
	}
}

// Handle records a paid order and grants its credits in one transaction.
func (h *PurchaseHandler) Handle(ctx context.Context, ev *domain.OrderEvent) (*Result, error) {
	logger := h.logger.With(
		"platform", string(ev.Platform),
		"order_id", ev.PlatformOrderID,
		"delivery_id", ev.DeliveryID,
	)
	fail := func(err error) error {
		return classify(ctx, logger, opRecordOrder, ev.Platform, ev.PlatformOrderID, err)
	}

	if ev.PlatformOrderID == "" {
		return nil, fail(fmt.Errorf("%w: missing order id", domain.ErrMalformedEvent))
	}
	if ev.UserID == uuid.Nil {
		return nil, fail(fmt.Errorf("%w: order has no user reference", domain.ErrUnresolvableCorrelation))
	}

	existing, err := h.orders.FindByPlatformID(ctx, ev.Platform, ev.PlatformOrderID)
	if err != nil {
		return nil, fail(err)
	}
	if existing != nil {
		logger.InfoContext(ctx, "order already recorded", "user_id", existing.UserID)
		return &Result{Outcome: OutcomeDuplicate, Kind: ev.Kind, UserID: existing.UserID}, nil
	}

	if h.catalog == nil {
		return nil, fail(fmt.Errorf("%w: no product catalog configured", domain.ErrDataIntegrity))
	}
	product, err := h.catalog.Lookup(ctx, ev.Platform, ev.PlatformProductID)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return nil, fail(fmt.Errorf("%w: %v", domain.ErrDataIntegrity, err))
	case err != nil:
		return nil, fail(err)
	}
	if product.Recurring {
		logger.InfoContext(ctx, "recurring product on purchase path, ignoring", "product_id", product.ID)
		return &Result{Outcome: OutcomeIgnored, Kind: ev.Kind, UserID: ev.UserID}, nil
	}

	order, err := domain.NewPaidOrder(ev.UserID, ev.Platform, ev.PlatformOrderID, product.ID, product.CreditAmount, h.now())
	if err != nil {
		return nil, fail(err)
	}

	result, err := sharedApplication.WithUnitOfWorkResult(ctx, h.uow, func(txCtx context.Context) (*Result, error) {
		stored, inserted, err := h.orders.InsertIfAbsent(txCtx, order)
		if err != nil {
			return nil, err
		}
		if !inserted {
			return &Result{Outcome: OutcomeDuplicate, Kind: ev.Kind, UserID: stored.UserID}, nil
		}

		balance, granted, err := h.credits.grant(txCtx, order.UserID, order.Amount, domain.PurchaseReason(order.Platform, order.PlatformOrderID))
		if err != nil {
			return nil, err
		}
		events := append([]sharedDomain.DomainEvent{domain.NewOrderRecorded(stored)}, granted...)
		if err := writeEvents(txCtx, h.outboxRepo, events, order.UserID); err != nil {
			return nil, fmt.Errorf("write outbox: %w", err)
		}
		return &Result{
			Outcome:        OutcomeProcessed,
			Kind:           ev.Kind,
			UserID:         order.UserID,
			CreditsGranted: order.Amount,
			Balance:        balance,
		}, nil
	})
	if err != nil {
		return nil, fail(err)
	}

	logger.InfoContext(ctx, "order reconciled",
		"user_id", result.UserID,
		"outcome", string(result.Outcome),
		"credits_granted", result.CreditsGranted,
	)
	return result, nil
}
