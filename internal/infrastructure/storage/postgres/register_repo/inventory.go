// Package register_repo provides the PostgreSQL inventory ledger: one row
// per (product, warehouse, batch) plus append-only adjustment and
// reservation logs.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

const (
	recordsTable      = "inv_records"
	adjustmentsTable  = "inv_adjustments"
	reservationsTable = "inv_reservations"
)

var (
	recordCols      = postgres.ExtractDBColumns[inventory.Record]()
	adjustmentCols  = postgres.ExtractDBColumns[inventory.Adjustment]()
	reservationCols = postgres.ExtractDBColumns[inventory.ReservationEntry]()
)

var inventorySort = postgres.SortColumns{
	"created_at":   "created_at",
	"batch_number": "batch_number",
	"product_code": "product_code",
	"quantity":     "quantity",
	"expiry_date":  "expiry_date",
}

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txManager *postgres.TxManager
}

var _ inventory.Repository = (*InventoryRepo)(nil)

// NewInventoryRepo creates the inventory ledger repository.
func NewInventoryRepo(txManager *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{txManager: txManager}
}

func (r *InventoryRepo) db(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func columnValues(cols []string, v any, skip map[string]bool) map[string]any {
	data := postgres.StructToMap(v)
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if skip[c] {
			continue
		}
		if val, ok := data[c]; ok {
			out[c] = val
		}
	}
	return out
}

func (r *InventoryRepo) insert(ctx context.Context, table string, values map[string]any, entityID id.ID) error {
	sql, args, err := postgres.Builder().Insert(table).SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", table, err), "inventory record", entityID)
	}
	return nil
}

// Create inserts rec. History entries are appended separately.
func (r *InventoryRepo) Create(ctx context.Context, rec *inventory.Record) error {
	return r.insert(ctx, recordsTable, columnValues(recordCols, rec, nil), rec.ID)
}

var immutableOnUpdate = map[string]bool{
	"id": true, "version": true, "created_at": true, "created_by": true,
	"product_id": true, "warehouse_id": true, "batch_number": true,
}

// Update writes rec when its version is current.
func (r *InventoryRepo) Update(ctx context.Context, rec *inventory.Record) error {
	sql, args, err := postgres.Builder().Update(recordsTable).
		SetMap(columnValues(recordCols, rec, immutableOnUpdate)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": rec.ID, "version": rec.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.db(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update inventory record: %w", err), "inventory record", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("inventory record", rec.ID)
	}
	rec.Version++
	return nil
}

// AppendAdjustment inserts one adjustment log entry.
func (r *InventoryRepo) AppendAdjustment(ctx context.Context, adj inventory.Adjustment) error {
	return r.insert(ctx, adjustmentsTable, columnValues(adjustmentCols, adj, nil), adj.RecordID)
}

// AppendReservation inserts one reservation log entry.
func (r *InventoryRepo) AppendReservation(ctx context.Context, entry inventory.ReservationEntry) error {
	return r.insert(ctx, reservationsTable, columnValues(reservationCols, entry, nil), entry.RecordID)
}

func (r *InventoryRepo) selectRecords() squirrel.SelectBuilder {
	return postgres.Builder().Select(recordCols...).From(recordsTable)
}

func (r *InventoryRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*inventory.Record, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rec := &inventory.Record{}
	if err := pgxscan.Get(ctx, r.db(ctx), rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory record", key)
		}
		return nil, postgres.MapError(fmt.Errorf("get inventory record: %w", err), "inventory record", key)
	}
	if err := r.loadHistory(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *InventoryRepo) loadHistory(ctx context.Context, rec *inventory.Record) error {
	adjSQL, adjArgs, err := postgres.Builder().Select(adjustmentCols...).From(adjustmentsTable).
		Where(squirrel.Eq{"record_id": rec.ID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return fmt.Errorf("build adjustments query: %w", err)
	}
	rec.Adjustments = []inventory.Adjustment{}
	if err := pgxscan.Select(ctx, r.db(ctx), &rec.Adjustments, adjSQL, adjArgs...); err != nil {
		return fmt.Errorf("load adjustments: %w", err)
	}

	resSQL, resArgs, err := postgres.Builder().Select(reservationCols...).From(reservationsTable).
		Where(squirrel.Eq{"record_id": rec.ID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return fmt.Errorf("build reservations query: %w", err)
	}
	rec.Reservations = []inventory.ReservationEntry{}
	if err := pgxscan.Select(ctx, r.db(ctx), &rec.Reservations, resSQL, resArgs...); err != nil {
		return fmt.Errorf("load reservations: %w", err)
	}
	return nil
}

// GetByID loads a record with its history.
func (r *InventoryRepo) GetByID(ctx context.Context, recordID id.ID) (*inventory.Record, error) {
	return r.getOne(ctx, r.selectRecords().Where(squirrel.Eq{"id": recordID}), recordID)
}

// GetForUpdate loads a record and row-locks it.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, recordID id.ID) (*inventory.Record, error) {
	return r.getOne(ctx, r.selectRecords().Where(squirrel.Eq{"id": recordID}).Suffix("FOR UPDATE"), recordID)
}

// FindByBatch loads and row-locks the record for the natural key.
func (r *InventoryRepo) FindByBatch(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*inventory.Record, error) {
	q := r.selectRecords().Where(squirrel.Eq{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"batch_number": batchNumber,
	}).Suffix("FOR UPDATE")
	return r.getOne(ctx, q, batchNumber)
}

func applyCriteria(q squirrel.SelectBuilder, c inventory.Criteria) squirrel.SelectBuilder {
	if c.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *c.WarehouseID})
	}
	if c.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *c.ProductID})
	}
	if len(c.Statuses) > 0 {
		q = q.Where(squirrel.Eq{"status": c.Statuses})
	}
	if c.BatchNumber != "" {
		q = q.Where(squirrel.Eq{"batch_number": c.BatchNumber})
	}
	if c.ExpiringBefore != nil {
		q = q.Where(squirrel.Lt{"expiry_date": *c.ExpiringBefore})
	}
	return q
}

// List pages through records without loading history.
func (r *InventoryRepo) List(ctx context.Context, f inventory.ListFilter) (domain.ListResult[*inventory.Record], error) {
	q := applyCriteria(r.selectRecords(), f.Criteria)
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "batch_number", "product_code", "product_name"))
	}
	return postgres.SelectPage[*inventory.Record](ctx, r.db(ctx), q, f.ListFilter, inventorySort, "created_at")
}

// FindAll returns every matching record, ordered by id.
func (r *InventoryRepo) FindAll(ctx context.Context, c inventory.Criteria) ([]*inventory.Record, error) {
	sql, args, err := applyCriteria(r.selectRecords(), c).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*inventory.Record
	if err := pgxscan.Select(ctx, r.db(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("find inventory records: %w", err)
	}
	return out, nil
}
