package domain

import (
	sharedDomain "github.com/amora-chat/amora/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	subscriptionAggregate = "Subscription"
	profileAggregate      = "Profile"
	orderAggregate        = "Order"
)

// Routing keys published through the outbox.
const (
	RoutingSubscriptionReconciled = "billing.subscription.reconciled"
	RoutingEntitlementChanged     = "billing.entitlement.changed"
	RoutingCreditsGranted         = "billing.credits.granted"
	RoutingOrderRecorded          = "billing.order.recorded"
)

// SubscriptionReconciled is emitted after every subscription upsert.
type SubscriptionReconciled struct {
	sharedDomain.BaseEvent
	SubscriptionID         uuid.UUID          `json:"subscription_id"`
	UserID                 uuid.UUID          `json:"user_id"`
	Platform               Platform           `json:"platform"`
	PlatformSubscriptionID string             `json:"platform_subscription_id"`
	Status                 SubscriptionStatus `json:"status"`
	ProductType            ProductType        `json:"product_type,omitempty"`
	IsNew                  bool               `json:"is_new"`
	IsRenewal              bool               `json:"is_renewal"`
}

// NewSubscriptionReconciled creates a SubscriptionReconciled event.
func NewSubscriptionReconciled(res *UpsertResult) *SubscriptionReconciled {
	s := res.Subscription
	return &SubscriptionReconciled{
		BaseEvent:              sharedDomain.NewBaseEvent(s.ID, subscriptionAggregate, RoutingSubscriptionReconciled),
		SubscriptionID:         s.ID,
		UserID:                 s.UserID,
		Platform:               s.Platform,
		PlatformSubscriptionID: s.PlatformSubscriptionID,
		Status:                 s.Status,
		ProductType:            s.ProductType,
		IsNew:                  res.IsNew,
		IsRenewal:              res.IsRenewal,
	}
}

// EntitlementChanged is emitted when a user's premium flag flips.
type EntitlementChanged struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID `json:"user_id"`
	IsPremium bool      `json:"is_premium"`
}

// NewEntitlementChanged creates an EntitlementChanged event.
func NewEntitlementChanged(userID uuid.UUID, isPremium bool) *EntitlementChanged {
	return &EntitlementChanged{
		BaseEvent: sharedDomain.NewBaseEvent(userID, profileAggregate, RoutingEntitlementChanged),
		UserID:    userID,
		IsPremium: isPremium,
	}
}

// CreditsGranted is emitted for every credit grant.
type CreditsGranted struct {
	sharedDomain.BaseEvent
	UserID  uuid.UUID `json:"user_id"`
	Amount  int64     `json:"amount"`
	Balance int64     `json:"balance"`
	Reason  string    `json:"reason"`
}

// NewCreditsGranted creates a CreditsGranted event.
func NewCreditsGranted(userID uuid.UUID, amount, balance int64, reason string) *CreditsGranted {
	return &CreditsGranted{
		BaseEvent: sharedDomain.NewBaseEvent(userID, profileAggregate, RoutingCreditsGranted),
		UserID:    userID,
		Amount:    amount,
		Balance:   balance,
		Reason:    reason,
	}
}

// OrderRecorded is emitted when a purchase is first stored.
type OrderRecorded struct {
	sharedDomain.BaseEvent
	OrderID         uuid.UUID `json:"order_id"`
	UserID          uuid.UUID `json:"user_id"`
	Platform        Platform  `json:"platform"`
	PlatformOrderID string    `json:"platform_order_id"`
	Amount          int64     `json:"amount"`
}

// NewOrderRecorded creates an OrderRecorded event.
func NewOrderRecorded(o *Order) *OrderRecorded {
	return &OrderRecorded{
		BaseEvent:       sharedDomain.NewBaseEvent(o.ID, orderAggregate, RoutingOrderRecorded),
		OrderID:         o.ID,
		UserID:          o.UserID,
		Platform:        o.Platform,
		PlatformOrderID: o.PlatformOrderID,
		Amount:          o.Amount,
	}
}
