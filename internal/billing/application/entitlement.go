package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amora-chat/amora/internal/billing/domain"
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/google/uuid"
)

// EntitlementSync keeps profiles.is_premium in line with the user's
// subscriptions. Both methods run inside the caller's unit of work.
type EntitlementSync struct {
	profiles domain.ProfileRepository
	logger   *slog.Logger
	metrics  observability.Metrics
}

// NewEntitlementSync creates a new EntitlementSync.
func NewEntitlementSync(profiles domain.ProfileRepository, logger *slog.Logger, metrics observability.Metrics) *EntitlementSync {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &EntitlementSync{profiles: profiles, logger: logger, metrics: metrics}
}

// Sync derives the premium flag from the user's subscriptions. An
// EntitlementChanged event is returned when the flag flipped.
func (s *EntitlementSync) Sync(ctx context.Context, userID uuid.UUID) (bool, []sharedDomain.DomainEvent, error) {
	before, err := s.profiles.IsPremium(ctx, userID)
	if err != nil {
		return false, nil, fmt.Errorf("read entitlement: %w", err)
	}
	after, err := s.profiles.RecomputeEntitlement(ctx, userID)
	if err != nil {
		return false, nil, fmt.Errorf("recompute entitlement: %w", err)
	}
	return after, s.changed(ctx, userID, before, after, "subscription"), nil
}

// Override sets the premium flag directly, bypassing subscription state.
func (s *EntitlementSync) Override(ctx context.Context, userID uuid.UUID, isPremium bool) ([]sharedDomain.DomainEvent, error) {
	before, err := s.profiles.IsPremium(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read entitlement: %w", err)
	}
	if err := s.profiles.SetEntitlement(ctx, userID, isPremium); err != nil {
		return nil, fmt.Errorf("set entitlement: %w", err)
	}
	return s.changed(ctx, userID, before, isPremium, "manual"), nil
}

func (s *EntitlementSync) changed(ctx context.Context, userID uuid.UUID, before, after bool, source string) []sharedDomain.DomainEvent {
	if before == after {
		return nil
	}
	s.metrics.Counter(observability.MetricEntitlementChanged, 1,
		observability.T("premium", fmt.Sprint(after)),
		observability.T("source", source),
	)
	s.logger.InfoContext(ctx, "entitlement changed",
		"user_id", userID,
		"is_premium", after,
		"source", source,
	)
	return []sharedDomain.DomainEvent{domain.NewEntitlementChanged(userID, after)}
}
