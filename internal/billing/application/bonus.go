package application

import (
	"log/slog"

	"github.com/amora-chat/amora/internal/billing/domain"
)

// BonusPolicy decides how many credits a subscription period is worth.
type BonusPolicy struct {
	Weekly  int64
	Monthly int64
	Yearly  int64

	logger *slog.Logger
}

// DefaultBonusPolicy returns the stock amounts.
func DefaultBonusPolicy() BonusPolicy {
	return BonusPolicy{Weekly: 10, Monthly: 30, Yearly: 400}
}

// WithLogger returns a copy of the policy that logs fallbacks to logger.
func (p BonusPolicy) WithLogger(logger *slog.Logger) BonusPolicy {
	p.logger = logger
	return p
}

// For returns the bonus for a plan. Unknown or missing plans get the
// monthly amount.
func (p BonusPolicy) For(productType domain.ProductType) int64 {
	switch productType {
	case domain.ProductWeekly:
		return p.Weekly
	case domain.ProductMonthly:
		return p.Monthly
	case domain.ProductYearly:
		return p.Yearly
	}
	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("unknown plan, using monthly bonus",
		"product_type", string(productType),
		"amount", p.Monthly,
	)
	return p.Monthly
}
