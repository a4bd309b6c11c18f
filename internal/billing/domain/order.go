package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the state of a one-time purchase.
type OrderStatus string

const (
	OrderPaid     OrderStatus = "paid"
	OrderPending  OrderStatus = "pending"
	OrderFailed   OrderStatus = "failed"
	OrderRefunded OrderStatus = "refunded"
)

// Order is a one-time credit purchase, unique per (Platform, PlatformOrderID).
type Order struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Platform          Platform
	PlatformOrderID   string
	PlatformProductID string
	Amount            int64
	Status            OrderStatus
	CreatedAt         time.Time
}

// NewPaidOrder records a settled purchase worth amount credits.
func NewPaidOrder(userID uuid.UUID, platform Platform, orderID, productID string, amount int64, now time.Time) (*Order, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: order %s has no user", ErrUnresolvableCorrelation, orderID)
	}
	if !platform.IsValid() || orderID == "" {
		return nil, fmt.Errorf("%w: order requires platform and id", ErrMalformedEvent)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: order %s has credit amount %d", ErrDataIntegrity, orderID, amount)
	}
	return &Order{
		ID:                uuid.New(),
		UserID:            userID,
		Platform:          platform,
		PlatformOrderID:   orderID,
		PlatformProductID: productID,
		Amount:            amount,
		Status:            OrderPaid,
		CreatedAt:         now.UTC(),
	}, nil
}
