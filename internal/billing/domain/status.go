package domain

import "time"

// SubscriptionStatus is the canonical subscription state.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusExpired  SubscriptionStatus = "expired"
)

// IsValid reports whether s is one of the canonical statuses.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusCanceled, StatusPastDue, StatusExpired:
		return true
	}
	return false
}

// GrantsPremium reports whether a subscription in this state entitles its owner.
// A pending cancellation (canceled) revokes immediately on every platform.
func (s SubscriptionStatus) GrantsPremium() bool {
	return s == StatusActive
}

// MapStatus converts a provider status string into the canonical status.
// Unknown values map to active with recognized=false so callers can flag them.
func MapStatus(raw string, cancelAtPeriodEnd bool, canceledAt *time.Time) (status SubscriptionStatus, recognized bool) {
	switch raw {
	case "active":
		if cancelAtPeriodEnd || canceledAt != nil {
			return StatusCanceled, true
		}
		return StatusActive, true
	case "canceled", "incomplete_expired", "expired":
		return StatusExpired, true
	case "past_due", "unpaid":
		return StatusPastDue, true
	case "trialing":
		return StatusTrialing, true
	default:
		return StatusActive, false
	}
}

// ProductType is the logical plan a recurring product belongs to.
type ProductType string

const (
	ProductWeekly  ProductType = "weekly"
	ProductMonthly ProductType = "monthly"
	ProductYearly  ProductType = "yearly"
)

// IsValid reports whether t is a known plan.
func (t ProductType) IsValid() bool {
	return t == ProductWeekly || t == ProductMonthly || t == ProductYearly
}

// ProductTypeFromInterval maps a billing interval ("week", "month", "year") to a plan.
// It returns "" for anything else.
func ProductTypeFromInterval(interval string) ProductType {
	switch interval {
	case "week", "weekly", "P1W":
		return ProductWeekly
	case "month", "monthly", "P1M":
		return ProductMonthly
	case "year", "yearly", "annual", "P1Y":
		return ProductYearly
	}
	return ""
}
