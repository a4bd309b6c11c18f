package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	requestIDCtxKey     contextKey = "request_id"
	deliveryIDCtxKey    contextKey = "delivery_id"
)

// Attribute keys used in logs.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	DeliveryIDKey    = "delivery_id"
)

// WithCorrelationID adds a correlation ID to the context, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithRequestID adds a request ID to the context, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDCtxKey)
}

// WithDeliveryID records the provider's webhook delivery id.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, deliveryIDCtxKey, id)
}

// DeliveryIDFromContext extracts the delivery ID from context.
func DeliveryIDFromContext(ctx context.Context) string {
	return stringValue(ctx, deliveryIDCtxKey)
}

// NewRequestContext assigns a fresh request ID and reuses correlationID when given.
func NewRequestContext(ctx context.Context, correlationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), correlationID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
