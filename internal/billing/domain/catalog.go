package domain

import "context"

// Product describes a sellable item.
type Product struct {
	ID           string      `json:"id" yaml:"id"`
	Platform     Platform    `json:"platform" yaml:"platform"`
	Recurring    bool        `json:"recurring" yaml:"recurring"`
	ProductType  ProductType `json:"product_type,omitempty" yaml:"product_type,omitempty"`
	CreditAmount int64       `json:"credit_amount" yaml:"credit_amount"`
}

// ProductCatalog resolves provider product ids.
type ProductCatalog interface {
	// Lookup fails with ErrProductNotFound for unknown products.
	Lookup(ctx context.Context, platform Platform, productID string) (*Product, error)
}
