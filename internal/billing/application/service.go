package application

import (
	"context"
	"fmt"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// Outcome summarises how a delivery was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result describes a handled event.
type Result struct {
	Outcome        Outcome
	Kind           domain.EventKind
	UserID         uuid.UUID
	Status         domain.SubscriptionStatus
	IsNew          bool
	IsRenewal      bool
	IsStale        bool
	IsPremium      bool
	CreditsGranted int64
	Balance        int64
}

// Service is the billing entry point used by the HTTP ingress and the CLI.
type Service struct {
	reconciler    *SubscriptionReconciler
	purchases     *PurchaseHandler
	credits       *CreditEngine
	entitlements  *EntitlementSync
	subscriptions domain.SubscriptionRepository
	profiles      domain.ProfileRepository
	outboxRepo    outbox.Repository
	uow           sharedApplication.UnitOfWork
}

// ServiceDeps wires a Service.
type ServiceDeps struct {
	Subscriptions domain.SubscriptionRepository
	Orders        domain.OrderRepository
	Profiles      domain.ProfileRepository
	Catalog       domain.ProductCatalog
	Outbox        outbox.Repository
	UnitOfWork    sharedApplication.UnitOfWork
	Bonus         BonusPolicy
}

// NewService builds the reconciler, purchase handler and credit engine
// around one set of repositories.
func NewService(deps ServiceDeps, opts ...Option) *Service {
	o := applyOptions(opts)
	credits := NewCreditEngine(deps.Profiles, deps.Outbox, deps.UnitOfWork, o.logger, o.metrics)
	entitlements := NewEntitlementSync(deps.Profiles, o.logger, o.metrics)
	return &Service{
		reconciler: NewSubscriptionReconciler(
			deps.Subscriptions, entitlements, credits, deps.Catalog, deps.Bonus,
			deps.Outbox, deps.UnitOfWork, o.logger, o.metrics,
		),
		purchases:     NewPurchaseHandler(deps.Orders, credits, deps.Catalog, deps.Outbox, deps.UnitOfWork, o.logger),
		credits:       credits,
		entitlements:  entitlements,
		subscriptions: deps.Subscriptions,
		profiles:      deps.Profiles,
		outboxRepo:    deps.Outbox,
		uow:           deps.UnitOfWork,
	}
}

// Process routes a normalized event to its handler.
func (s *Service) Process(ctx context.Context, ev domain.NormalizedEvent) (*Result, error) {
	switch e := ev.(type) {
	case *domain.SubscriptionEvent:
		return s.reconciler.Reconcile(ctx, e)
	case *domain.OrderEvent:
		return s.purchases.Handle(ctx, e)
	default:
		return nil, fmt.Errorf("%w: unsupported event %T", domain.ErrMalformedEvent, ev)
	}
}

// Credits exposes the credit primitives to other components.
func (s *Service) Credits() *CreditEngine {
	return s.credits
}

// GetEntitlement reports whether the user currently has premium access.
func (s *Service) GetEntitlement(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.profiles.IsPremium(ctx, userID)
}

// GetSubscriptions lists the user's subscriptions on every platform.
func (s *Service) GetSubscriptions(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return s.subscriptions.ListByUserID(ctx, userID)
}

// SetEntitlement overrides the premium flag. The next reconciliation for
// the user recomputes it from subscription state.
func (s *Service) SetEntitlement(ctx context.Context, userID uuid.UUID, isPremium bool) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id required", domain.ErrMalformedEvent)
	}
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		events, err := s.entitlements.Override(txCtx, userID, isPremium)
		if err != nil {
			return err
		}
		return writeEvents(txCtx, s.outboxRepo, events, userID)
	})
}

// RecomputeEntitlement re-derives the premium flag from stored subscriptions.
func (s *Service) RecomputeEntitlement(ctx context.Context, userID uuid.UUID) (bool, error) {
	return sharedApplication.WithUnitOfWorkResult(ctx, s.uow, func(txCtx context.Context) (bool, error) {
		premium, events, err := s.entitlements.Sync(txCtx, userID)
		if err != nil {
			return false, err
		}
		return premium, writeEvents(txCtx, s.outboxRepo, events, userID)
	})
}
