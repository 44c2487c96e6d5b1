package product

import (
	"context"

	"pharmaflow/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	domain.CatalogRepository[*Product]

	// GetByCodes returns the products found for the given codes, keyed by code.
	GetByCodes(ctx context.Context, codes []string) (map[string]*Product, error)
}
