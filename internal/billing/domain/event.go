package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the canonical kind of a provider notification.
type EventKind string

const (
	KindSubscriptionUpserted EventKind = "subscription_upserted"
	KindSubscriptionCanceled EventKind = "subscription_canceled"
	KindSubscriptionRenewed  EventKind = "subscription_renewed"
	KindSubscriptionExpired  EventKind = "subscription_expired"
	KindBillingIssue         EventKind = "billing_issue"
	KindOrderPaid            EventKind = "order_paid"
)

// EventMeta is common to every normalized event.
type EventMeta struct {
	Kind     EventKind
	Platform Platform
	// DeliveryID is the provider's event id, used for delivery receipts.
	DeliveryID string
	OccurredAt time.Time
}

// Meta returns the event header.
func (m EventMeta) Meta() EventMeta { return m }

// NormalizedEvent is a provider notification translated into the canonical
// model. Only SubscriptionEvent and OrderEvent implement it.
type NormalizedEvent interface {
	Meta() EventMeta
	ExternalID() string
	normalized()
}

// SubscriptionEvent reports a change to a recurring subscription.
type SubscriptionEvent struct {
	EventMeta
	// UserID is uuid.Nil when the payload carries no usable user reference.
	UserID                 uuid.UUID
	PlatformSubscriptionID string
	PlatformCustomerID     string
	PlatformProductID      string
	CustomerEmail          string
	CustomerName           string
	RawStatus              string
	CancelAtPeriodEnd      bool
	CanceledAt             *time.Time
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
	ProductType            ProductType
}

func (e *SubscriptionEvent) ExternalID() string { return e.PlatformSubscriptionID }
func (*SubscriptionEvent) normalized()          {}

// OrderEvent reports a settled one-time purchase.
type OrderEvent struct {
	EventMeta
	UserID            uuid.UUID
	PlatformOrderID   string
	PlatformProductID string
	CustomerEmail     string
}

func (e *OrderEvent) ExternalID() string { return e.PlatformOrderID }
func (*OrderEvent) normalized()          {}
