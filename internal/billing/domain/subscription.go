package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription is the canonical record of a recurring plan, unique per
// (Platform, PlatformSubscriptionID).
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	Platform               Platform
	PlatformCustomerID     string
	PlatformSubscriptionID string
	PlatformProductID      string
	CustomerEmail          string
	CustomerName           string
	Status                 SubscriptionStatus
	ProductType            ProductType
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CanceledAt             *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SubscriptionUpsert carries the fields a reconciliation wants to write.
// Empty strings and nil pointers mean "not provided" and never erase stored values.
type SubscriptionUpsert struct {
	UserID                 uuid.UUID
	Platform               Platform
	PlatformSubscriptionID string
	PlatformCustomerID     string
	PlatformProductID      string
	CustomerEmail          string
	CustomerName           string
	Status                 SubscriptionStatus
	ProductType            ProductType
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CanceledAt             *time.Time

	// ClearCanceledAt erases a stored cancellation. Ignored when CanceledAt is set.
	ClearCanceledAt bool
}

// Validate checks the fields required to locate or create a subscription.
func (u SubscriptionUpsert) Validate() error {
	if !u.Platform.IsValid() {
		return fmt.Errorf("%w: platform %q", ErrMalformedEvent, u.Platform)
	}
	if u.PlatformSubscriptionID == "" {
		return fmt.Errorf("%w: missing subscription id", ErrMalformedEvent)
	}
	if !u.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrMalformedEvent, u.Status)
	}
	if u.ProductType != "" && !u.ProductType.IsValid() {
		return fmt.Errorf("%w: product type %q", ErrMalformedEvent, u.ProductType)
	}
	return nil
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Subscription *Subscription
	IsNew        bool
	IsRenewal    bool

	// IsStale is set when the upsert described an older period than the
	// stored one and left the subscription state untouched.
	IsStale bool
}

// NewSubscription creates a subscription from its first upsert.
func NewSubscription(u SubscriptionUpsert, now time.Time) (*Subscription, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: subscription %s has no owner", ErrUnresolvableCorrelation, u.PlatformSubscriptionID)
	}
	now = now.UTC()
	return &Subscription{
		ID:                     uuid.New(),
		UserID:                 u.UserID,
		Platform:               u.Platform,
		PlatformCustomerID:     u.PlatformCustomerID,
		PlatformSubscriptionID: u.PlatformSubscriptionID,
		PlatformProductID:      u.PlatformProductID,
		CustomerEmail:          u.CustomerEmail,
		CustomerName:           u.CustomerName,
		Status:                 u.Status,
		ProductType:            u.ProductType,
		CurrentPeriodStart:     utcPtr(u.CurrentPeriodStart),
		CurrentPeriodEnd:       utcPtr(u.CurrentPeriodEnd),
		CanceledAt:             utcPtr(u.CanceledAt),
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// IsStale reports whether u describes a period older than the stored one.
func (s *Subscription) IsStale(u SubscriptionUpsert) bool {
	return u.CurrentPeriodStart != nil && s.CurrentPeriodStart != nil &&
		u.CurrentPeriodStart.Before(*s.CurrentPeriodStart)
}

// Apply merges an upsert into an existing subscription and reports whether it
// starts a new paid period. The stored owner is never changed. A stale upsert
// only fills descriptive fields that are still empty.
func (s *Subscription) Apply(u SubscriptionUpsert, now time.Time) (isRenewal bool) {
	s.UpdatedAt = now.UTC()
	if s.IsStale(u) {
		fillString(&s.PlatformCustomerID, u.PlatformCustomerID)
		fillString(&s.CustomerEmail, u.CustomerEmail)
		fillString(&s.CustomerName, u.CustomerName)
		return false
	}

	isRenewal = u.CurrentPeriodStart != nil && u.Status == StatusActive &&
		(s.CurrentPeriodStart == nil || u.CurrentPeriodStart.After(*s.CurrentPeriodStart))

	setString(&s.PlatformCustomerID, u.PlatformCustomerID)
	setString(&s.PlatformProductID, u.PlatformProductID)
	setString(&s.CustomerEmail, u.CustomerEmail)
	setString(&s.CustomerName, u.CustomerName)
	if u.Status != "" {
		s.Status = u.Status
	}
	if u.ProductType != "" {
		s.ProductType = u.ProductType
	}
	if u.CurrentPeriodStart != nil {
		s.CurrentPeriodStart = utcPtr(u.CurrentPeriodStart)
	}
	if u.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = utcPtr(u.CurrentPeriodEnd)
	}
	switch {
	case u.CanceledAt != nil:
		s.CanceledAt = utcPtr(u.CanceledAt)
	case u.ClearCanceledAt:
		s.CanceledAt = nil
	}
	return isRenewal
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
