package domain

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	// FindByPlatformID returns nil, nil when no subscription matches.
	FindByPlatformID(ctx context.Context, platform Platform, platformSubscriptionID string) (*Subscription, error)
	// Upsert inserts or merges a subscription atomically. It joins the
	// transaction in ctx when there is one.
	Upsert(ctx context.Context, u SubscriptionUpsert) (*UpsertResult, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
}

// OrderRepository persists one-time purchases.
type OrderRepository interface {
	// FindByPlatformID returns nil, nil when no order matches.
	FindByPlatformID(ctx context.Context, platform Platform, platformOrderID string) (*Order, error)
	// InsertIfAbsent stores the order unless one with the same platform id
	// exists, in which case the stored order is returned with inserted=false.
	InsertIfAbsent(ctx context.Context, order *Order) (stored *Order, inserted bool, err error)
}

// ProfileRepository mutates the billing fields of user profiles.
type ProfileRepository interface {
	AddCredits(ctx context.Context, userID uuid.UUID, delta int64, reason string) (int64, error)
	// DebitCredits fails with ErrInsufficientCredits when the balance is too low.
	DebitCredits(ctx context.Context, userID uuid.UUID, amount int64, reason string) (int64, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	SetEntitlement(ctx context.Context, userID uuid.UUID, isPremium bool) error
	// RecomputeEntitlement derives is_premium from the user's subscriptions and
	// returns the new value.
	RecomputeEntitlement(ctx context.Context, userID uuid.UUID) (bool, error)
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
	CreditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]CreditEntry, error)
}
