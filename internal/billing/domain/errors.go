package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for webhook processing.
var (
	ErrAuth                    = errors.New("webhook authentication failed")
	ErrMalformedEvent          = errors.New("malformed event")
	ErrUnresolvableCorrelation = errors.New("event cannot be correlated to a user")
	ErrDuplicateEvent          = errors.New("duplicate event")
	ErrTransientStore          = errors.New("transient store failure")
	ErrDataIntegrity           = errors.New("data integrity violation")
	ErrEventIgnored            = errors.New("event ignored")
)

// Credit and lookup errors.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrProductNotFound     = errors.New("product not found")
	ErrUnknownProvider     = errors.New("unknown provider")
)

// ReconcileError describes a failed reconciliation step. It unwraps to both
// the taxonomy sentinel and the underlying cause.
type ReconcileError struct {
	Op         string
	Platform   Platform
	ExternalID string
	Kind       error
	Err        error
}

// NewReconcileError builds a ReconcileError of the given kind.
func NewReconcileError(op string, platform Platform, externalID string, kind, err error) *ReconcileError {
	return &ReconcileError{Op: op, Platform: platform, ExternalID: externalID, Kind: kind, Err: err}
}

func (e *ReconcileError) Error() string {
	msg := fmt.Sprintf("%s %s/%s: %v", e.Op, e.Platform, e.ExternalID, e.Kind)
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReconcileError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsRetryable reports whether the provider should redeliver the event.
// Fatal taxonomy errors are never retried; transient store errors and
// unclassified failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrAuth),
		errors.Is(err, ErrMalformedEvent),
		errors.Is(err, ErrUnresolvableCorrelation),
		errors.Is(err, ErrDataIntegrity),
		errors.Is(err, ErrDuplicateEvent),
		errors.Is(err, ErrEventIgnored),
		errors.Is(err, ErrUnknownProvider):
		return false
	case errors.Is(err, ErrTransientStore),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return true
}
