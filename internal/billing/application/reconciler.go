package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
)

const opReconcileSubscription = "reconcile_subscription"

// SubscriptionReconciler applies subscription events to the ledger. The
// upsert, the entitlement update, the bonus grant and the outbox events
// commit together or not at all.
type SubscriptionReconciler struct {
	subscriptions domain.SubscriptionRepository
	entitlements  *EntitlementSync
	credits       *CreditEngine
	catalog       domain.ProductCatalog
	bonus         BonusPolicy
	outboxRepo    outbox.Repository
	uow           sharedApplication.UnitOfWork
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewSubscriptionReconciler creates a new SubscriptionReconciler. catalog may
// be nil, in which case events without a plan keep the stored plan.
func NewSubscriptionReconciler(
	subscriptions domain.SubscriptionRepository,
	entitlements *EntitlementSync,
	credits *CreditEngine,
	catalog domain.ProductCatalog,
	bonus BonusPolicy,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	metrics observability.Metrics,
) *SubscriptionReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SubscriptionReconciler{
		subscriptions: subscriptions,
		entitlements:  entitlements,
		credits:       credits,
		catalog:       catalog,
		bonus:         bonus.WithLogger(logger),
		outboxRepo:    outboxRepo,
		uow:           uow,
		logger:        logger,
		metrics:       metrics,
	}
}

// Reconcile upserts the subscription described by ev, recomputes the owner's
// entitlement and grants the period bonus for new or renewed active plans.
func (r *SubscriptionReconciler) Reconcile(ctx context.Context, ev *domain.SubscriptionEvent) (*Result, error) {
	logger := r.logger.With(
		"platform", string(ev.Platform),
		"subscription_id", ev.PlatformSubscriptionID,
		"delivery_id", ev.DeliveryID,
		"kind", string(ev.Kind),
	)

	status, recognized := domain.MapStatus(ev.RawStatus, ev.CancelAtPeriodEnd, ev.CanceledAt)
	if !recognized {
		r.metrics.Counter(observability.MetricStatusUnrecognized, 1,
			observability.T("platform", string(ev.Platform)),
			observability.T("raw_status", ev.RawStatus),
		)
		logger.WarnContext(ctx, "unrecognized subscription status, treating as active",
			"raw_status", ev.RawStatus,
		)
	}

	upsert := domain.SubscriptionUpsert{
		UserID:                 ev.UserID,
		Platform:               ev.Platform,
		PlatformSubscriptionID: ev.PlatformSubscriptionID,
		PlatformCustomerID:     ev.PlatformCustomerID,
		PlatformProductID:      ev.PlatformProductID,
		CustomerEmail:          ev.CustomerEmail,
		CustomerName:           ev.CustomerName,
		Status:                 status,
		ProductType:            r.resolveProductType(ctx, logger, ev),
		CurrentPeriodStart:     ev.PeriodStart,
		CurrentPeriodEnd:       ev.PeriodEnd,
		CanceledAt:             ev.CanceledAt,
		ClearCanceledAt:        !ev.CancelAtPeriodEnd && ev.CanceledAt == nil && (status == domain.StatusActive || status == domain.StatusTrialing),
	}
	if err := upsert.Validate(); err != nil {
		return nil, r.fail(ctx, logger, ev, err)
	}

	if ev.UserID == uuid.Nil {
		stored, err := r.subscriptions.FindByPlatformID(ctx, ev.Platform, ev.PlatformSubscriptionID)
		if err != nil {
			return nil, r.fail(ctx, logger, ev, err)
		}
		if stored == nil {
			return nil, r.fail(ctx, logger, ev, domain.ErrUnresolvableCorrelation)
		}
	}

	result, err := sharedApplication.WithUnitOfWorkResult(ctx, r.uow, func(txCtx context.Context) (*Result, error) {
		res, err := r.subscriptions.Upsert(txCtx, upsert)
		if err != nil {
			return nil, err
		}
		sub := res.Subscription
		if ev.UserID != uuid.Nil && ev.UserID != sub.UserID {
			logger.WarnContext(ctx, "event user differs from subscription owner, keeping owner",
				"event_user_id", ev.UserID,
				"owner_user_id", sub.UserID,
			)
		}

		events := []sharedDomain.DomainEvent{domain.NewSubscriptionReconciled(res)}
		premium, changed, err := r.entitlements.Sync(txCtx, sub.UserID)
		if err != nil {
			return nil, err
		}
		events = append(events, changed...)

		out := &Result{
			Outcome:   OutcomeProcessed,
			Kind:      ev.Kind,
			UserID:    sub.UserID,
			Status:    sub.Status,
			IsNew:     res.IsNew,
			IsRenewal: res.IsRenewal,
			IsStale:   res.IsStale,
			IsPremium: premium,
		}
		if res.IsStale {
			logger.InfoContext(ctx, "event describes an older period, keeping stored state",
				"event_period_start", ev.PeriodStart,
				"stored_period_start", sub.CurrentPeriodStart,
			)
		}

		if (res.IsNew || res.IsRenewal) && sub.Status == domain.StatusActive {
			amount := r.bonus.For(sub.ProductType)
			if amount > 0 {
				balance, granted, err := r.credits.grant(txCtx, sub.UserID, amount, domain.BonusReason(sub.Platform, sub.PlatformSubscriptionID))
				if err != nil {
					return nil, err
				}
				out.CreditsGranted = amount
				out.Balance = balance
				events = append(events, granted...)
			}
		}

		if err := writeEvents(txCtx, r.outboxRepo, events, sub.UserID); err != nil {
			return nil, fmt.Errorf("write outbox: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, r.fail(ctx, logger, ev, err)
	}

	logger.InfoContext(ctx, "subscription reconciled",
		"user_id", result.UserID,
		"status", string(result.Status),
		"is_new", result.IsNew,
		"is_renewal", result.IsRenewal,
		"is_stale", result.IsStale,
		"is_premium", result.IsPremium,
		"credits_granted", result.CreditsGranted,
	)
	return result, nil
}

// resolveProductType falls back to the catalog when the event has no plan.
// Catalog failures only cost the plan, never the reconciliation.
func (r *SubscriptionReconciler) resolveProductType(ctx context.Context, logger *slog.Logger, ev *domain.SubscriptionEvent) domain.ProductType {
	if ev.ProductType != "" || ev.PlatformProductID == "" || r.catalog == nil {
		return ev.ProductType
	}
	product, err := r.catalog.Lookup(ctx, ev.Platform, ev.PlatformProductID)
	if err != nil {
		logger.WarnContext(ctx, "plan lookup failed",
			"product_id", ev.PlatformProductID,
			"error", err,
		)
		return ""
	}
	if !product.ProductType.IsValid() {
		return ""
	}
	return product.ProductType
}

func (r *SubscriptionReconciler) fail(ctx context.Context, logger *slog.Logger, ev *domain.SubscriptionEvent, err error) error {
	return classify(ctx, logger, opReconcileSubscription, ev.Platform, ev.PlatformSubscriptionID, err)
}

// classify wraps err in a ReconcileError carrying its taxonomy kind and logs
// it. Fatal errors log at ERROR; retryable ones at WARN.
func classify(ctx context.Context, logger *slog.Logger, op string, platform domain.Platform, externalID string, err error) error {
	var existing *domain.ReconcileError
	if errors.As(err, &existing) {
		return err
	}

	var kind error
	switch {
	case errors.Is(err, domain.ErrUnresolvableCorrelation):
		kind = domain.ErrUnresolvableCorrelation
	case errors.Is(err, domain.ErrMalformedEvent):
		kind = domain.ErrMalformedEvent
	case errors.Is(err, domain.ErrDataIntegrity):
		kind = domain.ErrDataIntegrity
	case errors.Is(err, context.DeadlineExceeded):
		kind = context.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		kind = context.Canceled
	default:
		kind = domain.ErrTransientStore
	}
	rerr := domain.NewReconcileError(op, platform, externalID, kind, err)

	if domain.IsRetryable(rerr) {
		logger.WarnContext(ctx, "reconciliation failed, provider will retry", "error", err)
	} else {
		logger.ErrorContext(ctx, "reconciliation rejected", "error", err, "reason", kind.Error())
	}
	return rerr
}
