package dto

import (
	"time"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain/inventory"
)

// InventoryListQuery filters GET /inventory.
type InventoryListQuery struct {
	ListQuery
	WarehouseID string `form:"warehouseId" binding:"omitempty,uuid"`
	ProductID   string `form:"productId" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=active quarantine expired"`
	BatchNumber string `form:"batchNumber"`
}

// Filter builds the repository filter. Ids were validated by binding.
func (q InventoryListQuery) Filter() inventory.ListFilter {
	f := inventory.ListFilter{ListFilter: q.ListQuery.Filter()}
	f.WarehouseID, _ = id.ParseOptional(q.WarehouseID)
	f.ProductID, _ = id.ParseOptional(q.ProductID)
	f.BatchNumber = q.BatchNumber
	if q.Status != "" {
		f.Statuses = []inventory.Status{inventory.Status(q.Status)}
	}
	return f
}

// WarehouseQuery scopes the report endpoints.
type WarehouseQuery struct {
	WarehouseID string `form:"warehouseId" binding:"omitempty,uuid"`
}

func (q WarehouseQuery) ID() *id.ID {
	v, _ := id.ParseOptional(q.WarehouseID)
	return v
}

// ValuationQuery adds the export format to WarehouseQuery.
type ValuationQuery struct {
	WarehouseQuery
	Format string `form:"format" binding:"omitempty,oneof=json xlsx"`
}

// CreateInventoryRequest is the body of POST /inventory.
type CreateInventoryRequest struct {
	ProductID       string      `json:"productId" binding:"required,uuid"`
	WarehouseID     string      `json:"warehouseId" binding:"required,uuid"`
	BatchNumber     string      `json:"batchNumber" binding:"required"`
	Quantity        int64       `json:"quantity" binding:"min=0"`
	UnitCost        types.Money `json:"unitCost"`
	ManufactureDate *time.Time  `json:"manufactureDate"`
	ExpiryDate      *time.Time  `json:"expiryDate"`
	StorageLocation string      `json:"storageLocation"`
	Status          string      `json:"status" binding:"omitempty,oneof=active quarantine"`
	MinStockLevel   *int64      `json:"minStockLevel" binding:"omitempty,min=0"`
	Notes           string      `json:"notes"`
}

func (r CreateInventoryRequest) ToInput() inventory.CreateInput {
	return inventory.CreateInput{
		ProductID:       id.MustParse(r.ProductID),
		WarehouseID:     id.MustParse(r.WarehouseID),
		BatchNumber:     r.BatchNumber,
		Quantity:        r.Quantity,
		UnitCost:        r.UnitCost,
		ManufactureDate: r.ManufactureDate,
		ExpiryDate:      r.ExpiryDate,
		StorageLocation: r.StorageLocation,
		Status:          inventory.Status(r.Status),
		MinStockLevel:   r.MinStockLevel,
		Notes:           r.Notes,
	}
}

// AdjustRequest is the body of POST /inventory/:id/adjust.
type AdjustRequest struct {
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

func (r AdjustRequest) ToInput() inventory.AdjustInput {
	return inventory.AdjustInput{Delta: r.Delta, Reason: inventory.AdjustmentReason(r.Reason), Notes: r.Notes}
}

// ReserveRequest is the body of POST /inventory/:id/reserve.
type ReserveRequest struct {
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
	Reason      string `json:"reason"`
	ReservedFor string `json:"reservedFor"`
}

func (r ReserveRequest) ToInput() inventory.ReserveInput {
	return inventory.ReserveInput{Quantity: r.Quantity, Reason: r.Reason, ReservedFor: r.ReservedFor}
}

// ReleaseRequest is the body of POST /inventory/:id/release.
type ReleaseRequest struct {
	Quantity      int64  `json:"quantity" binding:"required,min=1"`
	Reason        string `json:"reason"`
	ReservationID string `json:"reservationId" binding:"omitempty,uuid"`
}

func (r ReleaseRequest) ToInput() inventory.ReleaseInput {
	in := inventory.ReleaseInput{Quantity: r.Quantity, Reason: r.Reason}
	in.ReservationID, _ = id.ParseOptional(r.ReservationID)
	return in
}

// TransferRequest is the body of POST /inventory/:id/transfer.
type TransferRequest struct {
	TargetWarehouseID string `json:"targetWarehouseId" binding:"required,uuid"`
	Quantity          int64  `json:"quantity" binding:"required,min=1"`
	Reason            string `json:"reason"`
	StorageLocation   string `json:"storageLocation"`
}

func (r TransferRequest) ToInput() inventory.TransferInput {
	return inventory.TransferInput{
		TargetWarehouseID: id.MustParse(r.TargetWarehouseID),
		Quantity:          r.Quantity,
		Reason:            r.Reason,
		StorageLocation:   r.StorageLocation,
	}
}

// InventoryBulkUpdateRequest is the body of POST /inventory/bulk-update.
type InventoryBulkUpdateRequest struct {
	BulkRequest
	Updates inventory.UpdateInput `json:"updates"`
}
