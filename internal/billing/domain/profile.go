package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds the billing fields of a user profile.
type Profile struct {
	UserID    uuid.UUID
	Credits   int64
	IsPremium bool
	UpdatedAt time.Time
}

// CreditEntry is an audit row written alongside every credit mutation.
type CreditEntry struct {
	ID           int64
	UserID       uuid.UUID
	Delta        int64
	BalanceAfter int64
	Reason       string
	CreatedAt    time.Time
}

// Credit mutation reasons.
const (
	ReasonSubscriptionBonus = "subscription_bonus"
	ReasonPurchase          = "purchase"
	ReasonRefund            = "refund"
	ReasonManual            = "manual"
)

// BonusReason labels a subscription bonus grant.
func BonusReason(platform Platform, subscriptionID string) string {
	return ReasonSubscriptionBonus + ":" + string(platform) + ":" + subscriptionID
}

// PurchaseReason labels a one-time purchase grant.
func PurchaseReason(platform Platform, orderID string) string {
	return ReasonPurchase + ":" + string(platform) + ":" + orderID
}
