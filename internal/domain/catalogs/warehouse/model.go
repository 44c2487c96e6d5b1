// Package warehouse provides the Warehouse catalog.
// Warehouses are the physical locations inventory is stored in.
package warehouse

import (
	"context"
	"strings"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/entity"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain         WarehouseType = "main"
	TypeDistribution WarehouseType = "distribution"
	TypeColdChain    WarehouseType = "cold_chain"
	TypeQuarantine   WarehouseType = "quarantine"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.BaseEntity

	Code string        `db:"code" json:"code" yaml:"code"`
	Name string        `db:"name" json:"name" yaml:"name"`
	Type WarehouseType `db:"type" json:"type" yaml:"type"`

	// Address is the physical address
	Address string `db:"address" json:"address,omitempty" yaml:"address"`

	// IsActive indicates if warehouse is operational
	IsActive bool `db:"is_active" json:"isActive" yaml:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt" yaml:"-"`
}

// NewWarehouse creates a new active Warehouse.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		BaseEntity: entity.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Type:       whType,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	if strings.TrimSpace(w.Code) == "" {
		return apperror.NewFieldError("code", "is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return apperror.NewFieldError("name", "is required")
	}
	if !isValidWarehouseType(w.Type) {
		return apperror.NewFieldError("type", "must be one of main, distribution, cold_chain, quarantine").
			WithDetail("value", string(w.Type))
	}
	return nil
}

// CanAcceptStock returns true if warehouse can accept stock.
func (w *Warehouse) CanAcceptStock() bool {
	return w.IsActive
}

func isValidWarehouseType(t WarehouseType) bool {
	switch t {
	case TypeMain, TypeDistribution, TypeColdChain, TypeQuarantine:
		return true
	}
	return false
}
