package inventory

import (
	"context"
	"time"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
)

// Repository defines persistence for inventory records and their logs.
type Repository interface {
	// Create inserts a record; a taken (product, warehouse, batch) yields DUPLICATE_BATCH.
	Create(ctx context.Context, rec *Record) error

	// GetByID loads a record with its adjustment and reservation history.
	GetByID(ctx context.Context, recordID id.ID) (*Record, error)

	// GetForUpdate is GetByID holding a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, recordID id.ID) (*Record, error)

	// FindByBatch returns the locked record for the natural key, or NOT_FOUND.
	FindByBatch(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*Record, error)

	// Update writes the row when rec.Version matches, then bumps the version.
	Update(ctx context.Context, rec *Record) error

	AppendAdjustment(ctx context.Context, adj Adjustment) error
	AppendReservation(ctx context.Context, entry ReservationEntry) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error)

	// FindAll returns every record matching criteria, without history.
	FindAll(ctx context.Context, criteria Criteria) ([]*Record, error)
}

// Criteria narrows FindAll and List.
type Criteria struct {
	WarehouseID    *id.ID
	ProductID      *id.ID
	Statuses       []Status
	BatchNumber    string
	ExpiringBefore *time.Time
}

// ListFilter for listing inventory records.
type ListFilter struct {
	domain.ListFilter
	Criteria
}
