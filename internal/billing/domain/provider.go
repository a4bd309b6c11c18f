package domain

import (
	"context"
	"net/http"
)

// ProviderAdapter translates one provider's webhooks into NormalizedEvents.
type ProviderAdapter interface {
	Platform() Platform
	// Name is the route segment under /webhooks/.
	Name() string
	// Verify authenticates a delivery and fails with ErrAuth.
	Verify(headers http.Header, body []byte) error
	// Parse fails with ErrMalformedEvent or ErrEventIgnored.
	Parse(body []byte) (NormalizedEvent, error)
}

// DeliveryLog remembers processed provider event ids. It is an optimization
// only; the store stays idempotent without it.
type DeliveryLog interface {
	Seen(ctx context.Context, platform Platform, deliveryID string) (bool, error)
	Record(ctx context.Context, platform Platform, deliveryID string) error
}
