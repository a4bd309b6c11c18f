package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
)

// CreditEngine applies credit mutations to user profiles. Grants raise a
// CreditsGranted event in the same transaction as the balance change.
type CreditEngine struct {
	profiles   domain.ProfileRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	logger     *slog.Logger
	metrics    observability.Metrics
}

// NewCreditEngine creates a new CreditEngine.
func NewCreditEngine(
	profiles domain.ProfileRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	metrics observability.Metrics,
) *CreditEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CreditEngine{
		profiles:   profiles,
		outboxRepo: outboxRepo,
		uow:        uow,
		logger:     logger,
		metrics:    metrics,
	}
}

// GrantCredits adds amount credits and returns the new balance.
func (e *CreditEngine) GrantCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if err := checkCreditArgs(userID, amount); err != nil {
		return 0, err
	}
	if reason == "" {
		reason = domain.ReasonManual
	}
	return sharedApplication.WithUnitOfWorkResult(ctx, e.uow, func(txCtx context.Context) (int64, error) {
		balance, events, err := e.grant(txCtx, userID, amount, reason)
		if err != nil {
			return 0, err
		}
		return balance, writeEvents(txCtx, e.outboxRepo, events, userID)
	})
}

// RefundCredits returns credits to a user after a failed spend.
func (e *CreditEngine) RefundCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if reason == "" {
		reason = domain.ReasonRefund
	}
	return e.GrantCredits(ctx, userID, amount, reason)
}

// DebitCredits removes amount credits, failing with ErrInsufficientCredits
// rather than letting the balance go negative.
func (e *CreditEngine) DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error) {
	if err := checkCreditArgs(userID, amount); err != nil {
		return 0, err
	}
	balance, err := e.profiles.DebitCredits(ctx, userID, amount, reason)
	if err != nil {
		return 0, err
	}
	e.metrics.Counter(observability.MetricCreditsDebited, amount)
	return balance, nil
}

// Balance returns the user's credit balance.
func (e *CreditEngine) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return e.profiles.Balance(ctx, userID)
}

// History returns the most recent credit mutations, newest first.
func (e *CreditEngine) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.profiles.CreditHistory(ctx, userID, limit)
}

// grant runs inside the caller's unit of work.
func (e *CreditEngine) grant(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, []sharedDomain.DomainEvent, error) {
	balance, err := e.profiles.AddCredits(ctx, userID, amount, reason)
	if err != nil {
		return 0, nil, fmt.Errorf("add credits: %w", err)
	}
	e.metrics.Counter(observability.MetricCreditsGranted, amount, observability.T("reason", reasonKind(reason)))
	e.logger.InfoContext(ctx, "credits granted",
		"user_id", userID,
		"amount", amount,
		"balance", balance,
		"reason", reason,
	)
	return balance, []sharedDomain.DomainEvent{domain.NewCreditsGranted(userID, amount, balance, reason)}, nil
}

func checkCreditArgs(userID uuid.UUID, amount int64) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id required", domain.ErrMalformedEvent)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, amount)
	}
	return nil
}

// reasonKind strips identifiers so reasons make low-cardinality metric tags.
func reasonKind(reason string) string {
	kind, _, _ := strings.Cut(reason, ":")
	return kind
}
