package inventory

import (
	"fmt"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

// UpdateInput is a partial update. Nil fields are left untouched.
// Identity fields are accepted only so that a change to them can be
// reported as IMMUTABLE_FIELD instead of an unknown field.
type UpdateInput struct {
	ProductID   *id.ID  `json:"productId,omitempty"`
	WarehouseID *id.ID  `json:"warehouseId,omitempty"`
	BatchNumber *string `json:"batchNumber,omitempty"`

	Quantity        *int64       `json:"quantity,omitempty"`
	UnitCost        *types.Money `json:"unitCost,omitempty"`
	ManufactureDate *time.Time   `json:"manufactureDate,omitempty"`
	ExpiryDate      *time.Time   `json:"expiryDate,omitempty"`
	StorageLocation *string      `json:"storageLocation,omitempty"`
	Status          *Status      `json:"status,omitempty"`
	MinStockLevel   *int64       `json:"minStockLevel,omitempty"`
	Notes           *string      `json:"notes,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateInput) IsEmpty() bool {
	return u.ProductID == nil && u.WarehouseID == nil && u.BatchNumber == nil &&
		u.Quantity == nil && u.UnitCost == nil && u.ManufactureDate == nil &&
		u.ExpiryDate == nil && u.StorageLocation == nil && u.Status == nil &&
		u.MinStockLevel == nil && u.Notes == nil
}

func immutable(field string) error {
	return apperror.NewBusinessRule(apperror.CodeImmutableField,
		fmt.Sprintf("%s cannot be changed after creation", field)).
		WithField(field, "is immutable")
}

// ApplyUpdate applies u. A quantity change is logged as a correction
// adjustment, returned so the caller can persist it.
func (r *Record) ApplyUpdate(u UpdateInput, actor string, now time.Time) (*Adjustment, error) {
	if u.ProductID != nil && *u.ProductID != r.ProductID {
		return nil, immutable("productId")
	}
	if u.WarehouseID != nil && *u.WarehouseID != r.WarehouseID {
		return nil, immutable("warehouseId")
	}
	if u.BatchNumber != nil && *u.BatchNumber != r.BatchNumber {
		return nil, immutable("batchNumber")
	}

	if u.UnitCost != nil && u.UnitCost.IsNegative() {
		return nil, apperror.NewFieldError("unitCost", "must not be negative")
	}
	if u.MinStockLevel != nil && *u.MinStockLevel < 0 {
		return nil, apperror.NewFieldError("minStockLevel", "must not be negative")
	}
	if u.Status != nil && !u.Status.IsValid() {
		return nil, apperror.NewFieldError("status", "must be one of active, quarantine, expired")
	}

	var adj *Adjustment
	if u.Quantity != nil && *u.Quantity != r.Quantity {
		if *u.Quantity < 0 {
			return nil, apperror.NewBusinessRule(apperror.CodeNegativeQuantity, "quantity must not be negative").
				WithField("quantity", "must not be negative")
		}
		a, err := r.applyDelta(*u.Quantity-r.Quantity, ReasonCorrection, "quantity edited", actor, now)
		if err != nil {
			return nil, err
		}
		adj = &a
	}

	if u.Status != nil {
		if err := r.transition(*u.Status); err != nil {
			return nil, err
		}
	}
	if u.UnitCost != nil {
		r.UnitCost = *u.UnitCost
	}
	if u.ManufactureDate != nil {
		r.ManufactureDate = u.ManufactureDate
	}
	if u.ExpiryDate != nil {
		r.ExpiryDate = u.ExpiryDate
	}
	if r.ManufactureDate != nil && r.ExpiryDate != nil && r.ExpiryDate.Before(*r.ManufactureDate) {
		return nil, apperror.NewFieldError("expiryDate", "must not be before manufactureDate")
	}
	if u.StorageLocation != nil {
		r.StorageLocation = *u.StorageLocation
	}
	if u.MinStockLevel != nil {
		r.MinStockLevel = *u.MinStockLevel
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}

	return adj, nil
}
