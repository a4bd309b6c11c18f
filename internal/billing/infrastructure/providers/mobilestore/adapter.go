// Package mobilestore adapts the mobile app-store aggregator's webhooks.
package mobilestore

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers"
)

// Config configures the adapter.
type Config struct {
	// Secret is the shared authorization value configured on the aggregator dashboard.
	Secret string
}

// Adapter implements domain.ProviderAdapter for mobile store purchases.
type Adapter struct {
	secret []byte
}

// New creates a mobile store adapter.
func New(cfg Config) *Adapter {
	return &Adapter{secret: []byte(cfg.Secret)}
}

func (a *Adapter) Platform() domain.Platform { return domain.PlatformMobile }
func (a *Adapter) Name() string              { return string(domain.PlatformMobile) }

// Verify compares the Authorization header with the shared secret.
// Both "Bearer <secret>" and the bare secret are accepted.
func (a *Adapter) Verify(headers http.Header, _ []byte) error {
	if len(a.secret) == 0 {
		return fmt.Errorf("%w: mobile store secret not configured", domain.ErrAuth)
	}
	value := strings.TrimSpace(headers.Get("Authorization"))
	if value == "" {
		return fmt.Errorf("%w: missing Authorization header", domain.ErrAuth)
	}
	if token, ok := strings.CutPrefix(value, "Bearer "); ok {
		value = strings.TrimSpace(token)
	}
	if subtle.ConstantTimeCompare([]byte(value), a.secret) != 1 {
		return fmt.Errorf("%w: authorization mismatch", domain.ErrAuth)
	}
	return nil
}

// Parse translates a store notification into a NormalizedEvent.
func (a *Adapter) Parse(body []byte) (domain.NormalizedEvent, error) {
	var p payload
	if err := providers.Decode(body, &p); err != nil {
		return nil, err
	}
	ev := p.Event

	meta := domain.EventMeta{
		Platform:   domain.PlatformMobile,
		DeliveryID: ev.ID,
	}
	if t := providers.UnixMillis(ev.EventTimestampMs); t != nil {
		meta.OccurredAt = *t
	}
	userID := providers.FirstUserID(ev.userIDCandidates()...)

	switch ev.Type {
	case "NON_RENEWING_PURCHASE":
		orderID := ev.TransactionID
		if orderID == "" {
			return nil, providers.Malformed("non-renewing purchase %s has no transaction_id", ev.ID)
		}
		meta.Kind = domain.KindOrderPaid
		return &domain.OrderEvent{
			EventMeta:         meta,
			UserID:            userID,
			PlatformOrderID:   orderID,
			PlatformProductID: ev.ProductID,
			CustomerEmail:     ev.SubscriberAttributes.value("$email"),
		}, nil
	case "INITIAL_PURCHASE", "UNCANCELLATION", "PRODUCT_CHANGE",
		"RENEWAL", "CANCELLATION", "EXPIRATION", "BILLING_ISSUE":
	default:
		return nil, providers.Ignored(ev.Type)
	}

	if ev.OriginalTransactionID == "" {
		return nil, providers.Malformed("%s event %s has no original_transaction_id", ev.Type, ev.ID)
	}
	sub := &domain.SubscriptionEvent{
		EventMeta:              meta,
		UserID:                 userID,
		PlatformSubscriptionID: ev.OriginalTransactionID,
		PlatformCustomerID:     ev.AppUserID,
		PlatformProductID:      ev.ProductID,
		CustomerEmail:          ev.SubscriberAttributes.value("$email"),
		CustomerName:           ev.SubscriberAttributes.value("$displayName"),
		PeriodStart:            providers.UnixMillis(ev.PurchasedAtMs),
		PeriodEnd:              providers.UnixMillis(ev.ExpirationAtMs),
		RawStatus:              ev.activeStatus(),
	}

	switch ev.Type {
	case "RENEWAL":
		sub.Kind = domain.KindSubscriptionRenewed
	case "CANCELLATION":
		sub.Kind = domain.KindSubscriptionCanceled
		sub.CancelAtPeriodEnd = true
		sub.CanceledAt = providers.UnixMillis(ev.EventTimestampMs)
	case "EXPIRATION":
		sub.Kind = domain.KindSubscriptionExpired
		sub.RawStatus = "expired"
	case "BILLING_ISSUE":
		sub.Kind = domain.KindBillingIssue
		sub.RawStatus = "past_due"
		sub.PeriodStart, sub.PeriodEnd = nil, nil
	default:
		sub.Kind = domain.KindSubscriptionUpserted
	}
	return sub, nil
}

var _ domain.ProviderAdapter = (*Adapter)(nil)
