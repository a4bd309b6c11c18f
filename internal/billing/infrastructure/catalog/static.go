// Package catalog resolves provider product ids to credit amounts and plans.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/amora-chat/amora/internal/billing/domain"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Products []domain.Product `yaml:"products"`
}

type productKey struct {
	platform domain.Platform
	id       string
}

// StaticCatalog serves products from memory, usually loaded from a YAML file.
type StaticCatalog struct {
	products map[productKey]domain.Product
}

// NewStaticCatalog builds a catalog from a product list.
func NewStaticCatalog(products []domain.Product) (*StaticCatalog, error) {
	c := &StaticCatalog{products: make(map[productKey]domain.Product, len(products))}
	for _, p := range products {
		if err := validateProduct(p); err != nil {
			return nil, err
		}
		key := productKey{platform: p.Platform, id: p.ID}
		if _, dup := c.products[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate product %s/%s", p.Platform, p.ID)
		}
		c.products[key] = p
	}
	return c, nil
}

// ParseYAML decodes a catalog document.
func ParseYAML(data []byte) (*StaticCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return NewStaticCatalog(f.Products)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseYAML(data)
}

func (c *StaticCatalog) Lookup(_ context.Context, platform domain.Platform, productID string) (*domain.Product, error) {
	p, ok := c.products[productKey{platform: platform, id: productID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrProductNotFound, platform, productID)
	}
	return &p, nil
}

// Len returns the number of products.
func (c *StaticCatalog) Len() int {
	return len(c.products)
}

func validateProduct(p domain.Product) error {
	if p.ID == "" || !p.Platform.IsValid() {
		return fmt.Errorf("catalog: product needs id and valid platform, got %q/%q", p.Platform, p.ID)
	}
	if p.Recurring && p.ProductType != "" && !p.ProductType.IsValid() {
		return fmt.Errorf("catalog: product %s has unknown product type %q", p.ID, p.ProductType)
	}
	return nil
}

var _ domain.ProductCatalog = (*StaticCatalog)(nil)
