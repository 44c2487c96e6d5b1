package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct{ store *Store }

// Inventory returns the inventory ledger.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{store: s} }

func bare(rec *inventory.Record) *inventory.Record {
	c := rec.Clone()
	c.Adjustments = nil
	c.Reservations = nil
	return c
}

func (r *InventoryRepo) Create(_ context.Context, rec *inventory.Record) error {
	return r.store.write(func(t *tables) error {
		for _, existing := range t.inventory {
			if existing.ProductID == rec.ProductID && existing.WarehouseID == rec.WarehouseID &&
				existing.BatchNumber == rec.BatchNumber {
				return apperror.NewBusinessRule(apperror.CodeDuplicateBatch,
					fmt.Sprintf("batch %s already exists for this product in this warehouse", rec.BatchNumber))
			}
		}
		t.inventory[rec.ID] = bare(rec)
		return nil
	})
}

func (r *InventoryRepo) GetByID(_ context.Context, recordID id.ID) (*inventory.Record, error) {
	var out *inventory.Record
	r.store.read(func(t *tables) {
		rec, ok := t.inventory[recordID]
		if !ok {
			return
		}
		out = rec.Clone()
		out.Adjustments = slices.Clone(t.adjustments[recordID])
		out.Reservations = slices.Clone(t.reservations[recordID])
	})
	if out == nil {
		return nil, apperror.NewNotFound("inventory record", recordID)
	}
	if out.Adjustments == nil {
		out.Adjustments = []inventory.Adjustment{}
	}
	if out.Reservations == nil {
		out.Reservations = []inventory.ReservationEntry{}
	}
	return out, nil
}

func (r *InventoryRepo) GetForUpdate(ctx context.Context, recordID id.ID) (*inventory.Record, error) {
	return r.GetByID(ctx, recordID)
}

func (r *InventoryRepo) FindByBatch(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*inventory.Record, error) {
	var found id.ID
	r.store.read(func(t *tables) {
		for _, rec := range t.inventory {
			if rec.ProductID == productID && rec.WarehouseID == warehouseID && rec.BatchNumber == batchNumber {
				found = rec.ID
				return
			}
		}
	})
	if id.IsNil(found) {
		return nil, apperror.NewNotFound("inventory record", batchNumber)
	}
	return r.GetByID(ctx, found)
}

func (r *InventoryRepo) Update(_ context.Context, rec *inventory.Record) error {
	return r.store.write(func(t *tables) error {
		stored, ok := t.inventory[rec.ID]
		if !ok {
			return apperror.NewNotFound("inventory record", rec.ID)
		}
		if stored.Version != rec.Version {
			return apperror.NewConcurrentModification("inventory record", rec.ID)
		}
		rec.Version++
		t.inventory[rec.ID] = bare(rec)
		return nil
	})
}

func (r *InventoryRepo) AppendAdjustment(_ context.Context, adj inventory.Adjustment) error {
	return r.store.write(func(t *tables) error {
		t.adjustments[adj.RecordID] = append(t.adjustments[adj.RecordID], adj)
		return nil
	})
}

func (r *InventoryRepo) AppendReservation(_ context.Context, entry inventory.ReservationEntry) error {
	return r.store.write(func(t *tables) error {
		t.reservations[entry.RecordID] = append(t.reservations[entry.RecordID], entry)
		return nil
	})
}

func (r *InventoryRepo) List(_ context.Context, f inventory.ListFilter) (domain.ListResult[*inventory.Record], error) {
	items := r.find(f.Criteria, f.Search)
	return paginate(items, f.ListFilter, sortKeys[*inventory.Record]{
		"created_at":   func(a, b *inventory.Record) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"batch_number": func(a, b *inventory.Record) int { return cmp.Compare(a.BatchNumber, b.BatchNumber) },
		"product_code": func(a, b *inventory.Record) int { return cmp.Compare(a.ProductCode, b.ProductCode) },
		"quantity":     func(a, b *inventory.Record) int { return cmp.Compare(a.Quantity, b.Quantity) },
		"expiry_date":  func(a, b *inventory.Record) int { return compareDates(a, b) },
	}, "created_at"), nil
}

func (r *InventoryRepo) FindAll(_ context.Context, c inventory.Criteria) ([]*inventory.Record, error) {
	items := r.find(c, "")
	slices.SortFunc(items, func(a, b *inventory.Record) int { return compareIDs(a.ID, b.ID) })
	return items, nil
}

func (r *InventoryRepo) find(c inventory.Criteria, search string) []*inventory.Record {
	var out []*inventory.Record
	r.store.read(func(t *tables) {
		for _, rec := range t.inventory {
			if c.WarehouseID != nil && rec.WarehouseID != *c.WarehouseID {
				continue
			}
			if c.ProductID != nil && rec.ProductID != *c.ProductID {
				continue
			}
			if len(c.Statuses) > 0 && !slices.Contains(c.Statuses, rec.Status) {
				continue
			}
			if c.BatchNumber != "" && rec.BatchNumber != c.BatchNumber {
				continue
			}
			if c.ExpiringBefore != nil && (rec.ExpiryDate == nil || !rec.ExpiryDate.Before(*c.ExpiringBefore)) {
				continue
			}
			if !matches(search, rec.BatchNumber, rec.ProductCode, rec.ProductName) {
				continue
			}
			out = append(out, rec.Clone())
		}
	})
	return out
}

// compareDates orders records without an expiry date last.
func compareDates(a, b *inventory.Record) int {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return 0
	case a.ExpiryDate == nil:
		return 1
	case b.ExpiryDate == nil:
		return -1
	}
	return a.ExpiryDate.Compare(*b.ExpiryDate)
}

var _ inventory.Repository = (*InventoryRepo)(nil)
