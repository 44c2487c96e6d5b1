// Package product provides the Product catalog: the medicines and supplies
// that can be received, inspected and stocked.
package product

import (
	"context"
	"strings"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/entity"
)

// Product is a stock-keeping item.
type Product struct {
	entity.BaseEntity

	Code string `db:"code" json:"code" yaml:"code"`
	Name string `db:"name" json:"name" yaml:"name"`

	// Unit of measure, e.g. "box", "vial"
	Unit string `db:"unit" json:"unit" yaml:"unit"`

	// MinStockLevel drives low-stock alerts
	MinStockLevel int64 `db:"min_stock_level" json:"minStockLevel" yaml:"minStockLevel"`

	RequiresColdChain bool `db:"requires_cold_chain" json:"requiresColdChain" yaml:"requiresColdChain"`
	IsActive          bool `db:"is_active" json:"isActive" yaml:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt" yaml:"-"`
}

// NewProduct creates a new active Product.
func NewProduct(code, name, unit string) *Product {
	return &Product{
		BaseEntity: entity.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Unit:       unit,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.Code) == "" {
		return apperror.NewFieldError("code", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewFieldError("name", "is required")
	}
	if p.MinStockLevel < 0 {
		return apperror.NewFieldError("minStockLevel", "must not be negative")
	}
	return nil
}
