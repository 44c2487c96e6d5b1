package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/lock"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/core/tx"
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/audit"
	"pharmaflow/internal/domain/bulk"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/events"
	"pharmaflow/pkg/logger"
)

const lockKind = "inventory"

// ProductCatalog resolves product references.
type ProductCatalog interface {
	GetByID(ctx context.Context, productID id.ID) (*product.Product, error)
}

// WarehouseCatalog resolves warehouse references.
type WarehouseCatalog interface {
	GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
}

// Config wires the service.
type Config struct {
	Repo       Repository
	Products   ProductCatalog
	Warehouses WarehouseCatalog
	TxManager  tx.Manager
	Locker     lock.Locker
	Authorizer security.Authorizer
	Events     events.Publisher
	Audit      audit.Recorder

	// ConflictRetries bounds retries on version conflicts (default 3)
	ConflictRetries int
	// ExpiryAlertDays is the expiring-soon window (default 30)
	ExpiryAlertDays int
	// Clock is overridable for tests
	Clock func() time.Time
}

// Service implements the inventory ledger operations.
type Service struct {
	repo       Repository
	products   ProductCatalog
	warehouses WarehouseCatalog
	txManager  tx.Manager
	locker     lock.Locker
	authz      security.Authorizer
	events     events.Publisher
	audit      audit.Recorder
	hooks      *domain.HookRegistry[*Record]

	retries   int
	alertDays int
	now       func() time.Time
}

// NewService creates the inventory service.
func NewService(cfg Config) *Service {
	s := &Service{
		repo:       cfg.Repo,
		products:   cfg.Products,
		warehouses: cfg.Warehouses,
		txManager:  cfg.TxManager,
		locker:     cfg.Locker,
		authz:      cfg.Authorizer,
		events:     cfg.Events,
		audit:      cfg.Audit,
		hooks:      domain.NewHookRegistry[*Record](),
		retries:    cfg.ConflictRetries,
		alertDays:  cfg.ExpiryAlertDays,
		now:        cfg.Clock,
	}
	if s.locker == nil {
		s.locker = lock.Noop{}
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.alertDays <= 0 {
		s.alertDays = DefaultExpiryAlertDays
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	s.hooks.On(domain.BeforeCreate, func(ctx context.Context, r *Record) error {
		return audit.EnrichCreatedBy(ctx, r)
	})
	return s
}

// Hooks returns the hook registry.
func (s *Service) Hooks() *domain.HookRegistry[*Record] {
	return s.hooks
}

// CreateInput is a manual stock entry.
type CreateInput struct {
	ProductID       id.ID
	WarehouseID     id.ID
	BatchNumber     string
	Quantity        int64
	UnitCost        types.Money
	ManufactureDate *time.Time
	ExpiryDate      *time.Time
	StorageLocation string
	Status          Status
	MinStockLevel   *int64
	Notes           string
}

// Create adds a new batch. The (product, warehouse, batch) key must be free.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	actor, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionCreate)
	if err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, apperror.NewBusinessRule(apperror.CodeNegativeQuantity, "quantity must not be negative").
			WithField("quantity", "must not be negative")
	}

	prod, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWarehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}

	now := s.now()
	rec := NewRecord(in.ProductID, in.WarehouseID, in.BatchNumber, 0, in.UnitCost, now)
	rec.ProductCode = prod.Code
	rec.ProductName = prod.Name
	rec.MinStockLevel = prod.MinStockLevel
	if in.MinStockLevel != nil {
		rec.MinStockLevel = *in.MinStockLevel
	}
	rec.ManufactureDate = in.ManufactureDate
	rec.ExpiryDate = in.ExpiryDate
	rec.StorageLocation = in.StorageLocation
	rec.Notes = in.Notes
	if in.Status != "" {
		rec.Status = in.Status
	}

	var initial *Adjustment
	if in.Quantity > 0 {
		adj, err := rec.Receive(in.Quantity, ReasonReceipt, "initial stock", actor.ID, now)
		if err != nil {
			return nil, err
		}
		initial = &adj
	}
	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, rec); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, BatchLockKey(rec.ProductID, rec.WarehouseID, rec.BatchNumber))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := s.repo.FindByBatch(ctx, rec.ProductID, rec.WarehouseID, rec.BatchNumber)
		switch {
		case err == nil:
			return duplicateBatch(rec)
		case !apperror.IsNotFound(err):
			return err
		}
		return s.insert(ctx, rec, initial)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory record created",
		"id", rec.ID, "product", rec.ProductCode, "batch", rec.BatchNumber, "quantity", rec.Quantity)
	return rec, nil
}

func duplicateBatch(rec *Record) error {
	return apperror.NewBusinessRule(apperror.CodeDuplicateBatch,
		fmt.Sprintf("batch %s already exists for this product in this warehouse", rec.BatchNumber)).
		WithDetail("batchNumber", rec.BatchNumber)
}

// insert writes a new record, its opening adjustment, event and audit entry.
func (s *Service) insert(ctx context.Context, rec *Record, initial *Adjustment) error {
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	if initial != nil {
		if err := s.repo.AppendAdjustment(ctx, *initial); err != nil {
			return err
		}
	}
	if err := s.events.Publish(ctx, events.Event{
		AggregateType: lockKind,
		AggregateID:   rec.ID,
		Type:          events.InventoryCreated,
		Payload: map[string]any{
			"productId":   rec.ProductID,
			"warehouseId": rec.WarehouseID,
			"batchNumber": rec.BatchNumber,
			"quantity":    rec.Quantity,
		},
	}); err != nil {
		return fmt.Errorf("publish inventory.created: %w", err)
	}
	snap, err := audit.Snapshot(rec)
	if err != nil {
		return err
	}
	return s.audit.Record(ctx, audit.Entry{
		EntityType: lockKind,
		EntityID:   rec.ID,
		Action:     audit.ActionCreate,
		UserID:     rec.CreatedBy,
		Changes:    snap,
	})
}

func (s *Service) requireWarehouse(ctx context.Context, warehouseID id.ID) error {
	wh, err := s.warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if !wh.CanAcceptStock() {
		return apperror.NewBusinessRule(apperror.CodeInactiveWarehouse,
			fmt.Sprintf("warehouse %s is not active", wh.Code)).
			WithDetail("warehouseId", warehouseID)
	}
	return nil
}

// Get returns a record with its history.
func (s *Service) Get(ctx context.Context, recordID id.ID) (*Record, error) {
	return s.repo.GetByID(ctx, recordID)
}

// List returns a page of records.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error) {
	return s.repo.List(ctx, filter)
}

// mutate runs fn on the record under its lock and checks the quantity
// invariant before saving.
func (s *Service) mutate(ctx context.Context, recordID id.ID, fn domain.MutateFunc[*Record]) (*Record, error) {
	m := domain.Mutator[*Record]{
		Kind:      lockKind,
		Store:     s.repo,
		TxManager: s.txManager,
		Locker:    s.locker,
		Retries:   s.retries,
		Clock:     s.now,
	}
	return m.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		if err := fn(ctx, rec, actor, now); err != nil {
			return err
		}
		return rec.CheckInvariant()
	})
}

// AdjustInput changes on-hand quantity.
type AdjustInput struct {
	Delta  int64
	Reason AdjustmentReason
	Notes  string
}

// Adjust applies a signed delta for a manual reason.
func (s *Service) Adjust(ctx context.Context, recordID id.ID, in AdjustInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionAdjust); err != nil {
		return nil, err
	}

	rec, err := s.mutate(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		adj, err := rec.Adjust(in.Delta, in.Reason, in.Notes, actor, now)
		if err != nil {
			return err
		}
		if err := s.repo.AppendAdjustment(ctx, adj); err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			AggregateType: lockKind,
			AggregateID:   rec.ID,
			Type:          events.InventoryAdjusted,
			Payload: map[string]any{
				"delta":    adj.Delta,
				"reason":   adj.Reason,
				"quantity": adj.QuantityAfter,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory adjusted",
		"id", recordID, "delta", in.Delta, "reason", in.Reason, "quantity", rec.Quantity)
	return rec, nil
}

// ReserveInput earmarks stock.
type ReserveInput struct {
	Quantity    int64
	Reason      string
	ReservedFor string
}

// Reserve moves quantity from available to reserved.
func (s *Service) Reserve(ctx context.Context, recordID id.ID, in ReserveInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionReserve); err != nil {
		return nil, err
	}

	rec, err := s.mutate(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		entry, err := rec.Reserve(in.Quantity, in.Reason, in.ReservedFor, actor, now)
		if err != nil {
			return err
		}
		return s.repo.AppendReservation(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory reserved",
		"id", recordID, "quantity", in.Quantity, "available", rec.AvailableQuantity)
	return rec, nil
}

// ReleaseInput returns reserved stock.
type ReleaseInput struct {
	Quantity      int64
	Reason        string
	ReservationID *id.ID
}

// Release moves quantity from reserved back to available.
func (s *Service) Release(ctx context.Context, recordID id.ID, in ReleaseInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionRelease); err != nil {
		return nil, err
	}

	rec, err := s.mutate(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		entry, err := rec.Release(in.Quantity, in.Reason, in.ReservationID, actor, now)
		if err != nil {
			return err
		}
		return s.repo.AppendReservation(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory released",
		"id", recordID, "quantity", in.Quantity, "available", rec.AvailableQuantity)
	return rec, nil
}

// TransferInput moves stock to another warehouse.
type TransferInput struct {
	TargetWarehouseID id.ID
	Quantity          int64
	Reason            string
	StorageLocation   string
}

// TransferResult holds both sides after a transfer.
type TransferResult struct {
	Source *Record `json:"source"`
	Target *Record `json:"target"`
}

// Transfer decrements the source and creates or increments the same
// product batch in the target warehouse, in one transaction.
func (s *Service) Transfer(ctx context.Context, recordID id.ID, in TransferInput) (*TransferResult, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionTransfer); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, apperror.NewFieldError("quantity", "must be positive")
	}

	// identity fields are immutable, so an unlocked read is enough to find the target key
	src, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if src.WarehouseID == in.TargetWarehouseID {
		return nil, apperror.NewBusinessRule(apperror.CodeSameWarehouse,
			"target warehouse must differ from the source warehouse").
			WithField("targetWarehouseId", "must differ from the source warehouse")
	}
	if err := s.requireWarehouse(ctx, in.TargetWarehouseID); err != nil {
		return nil, err
	}

	release, err := s.LockReceipts(ctx, []string{lock.RecordKey(lockKind, recordID)},
		BatchRef{ProductID: src.ProductID, WarehouseID: in.TargetWarehouseID, BatchNumber: src.BatchNumber})
	if err != nil {
		return nil, err
	}
	defer release()

	actor := security.ActorFromContext(ctx).ID
	var result TransferResult
	err = domain.RetryOnConflict(ctx, s.retries, func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			now := s.now()
			source, err := s.repo.GetForUpdate(ctx, recordID)
			if err != nil {
				return err
			}
			out, err := source.TransferOut(in.Quantity, in.Reason, actor, now)
			if err != nil {
				return err
			}
			source.Touch(now, actor)
			if err := s.repo.Update(ctx, source); err != nil {
				return err
			}
			if err := s.repo.AppendAdjustment(ctx, out); err != nil {
				return err
			}

			target, err := s.receive(ctx, ReceiveInput{
				ProductID:       source.ProductID,
				ProductCode:     source.ProductCode,
				ProductName:     source.ProductName,
				MinStockLevel:   source.MinStockLevel,
				WarehouseID:     in.TargetWarehouseID,
				BatchNumber:     source.BatchNumber,
				Quantity:        in.Quantity,
				UnitCost:        source.UnitCost,
				ManufactureDate: source.ManufactureDate,
				ExpiryDate:      source.ExpiryDate,
				StorageLocation: in.StorageLocation,
				Notes:           in.Reason,
			}, ReasonTransferIn, actor, now)
			if err != nil {
				return err
			}

			result = TransferResult{Source: source, Target: target}
			return s.events.Publish(ctx, events.Event{
				AggregateType: lockKind,
				AggregateID:   source.ID,
				Type:          events.InventoryTransferred,
				Payload: map[string]any{
					"targetRecordId":    target.ID,
					"targetWarehouseId": in.TargetWarehouseID,
					"quantity":          in.Quantity,
				},
			})
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory transferred",
		"source", recordID, "target", result.Target.ID, "quantity", in.Quantity)
	return &result, nil
}

// ReceiveInput is incoming stock for a (product, warehouse, batch).
type ReceiveInput struct {
	ProductID        id.ID
	ProductCode      string
	ProductName      string
	MinStockLevel    int64
	WarehouseID      id.ID
	BatchNumber      string
	Quantity         int64
	UnitCost         types.Money
	ManufactureDate  *time.Time
	ExpiryDate       *time.Time
	StorageLocation  string
	SourceApprovalID *id.ID
	Notes            string
}

// ReceiveStock creates the batch or increments it if it already exists.
// It joins the caller's transaction when there is one. The caller must hold
// the LockReceipts locks for the batch and has already been authorized.
func (s *Service) ReceiveStock(ctx context.Context, in ReceiveInput) (*Record, error) {
	actor := security.ActorFromContext(ctx).ID
	var out *Record
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.receive(ctx, in, ReasonReceipt, actor, s.now())
		out = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// receive must run inside a transaction under LockReceipts.
func (s *Service) receive(ctx context.Context, in ReceiveInput, reason AdjustmentReason, actor string, now time.Time) (*Record, error) {
	rec, err := s.repo.FindByBatch(ctx, in.ProductID, in.WarehouseID, in.BatchNumber)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	if err == nil {
		prevQty := rec.Quantity
		adj, err := rec.Receive(in.Quantity, reason, in.Notes, actor, now)
		if err != nil {
			return nil, err
		}
		rec.UnitCost = movingAverage(rec.UnitCost, prevQty, in.UnitCost, in.Quantity)
		if rec.StorageLocation == "" {
			rec.StorageLocation = in.StorageLocation
		}
		rec.Touch(now, actor)
		if err := s.repo.Update(ctx, rec); err != nil {
			return nil, err
		}
		if err := s.repo.AppendAdjustment(ctx, adj); err != nil {
			return nil, err
		}
		return rec, nil
	}

	rec = NewRecord(in.ProductID, in.WarehouseID, in.BatchNumber, 0, in.UnitCost, now)
	rec.ProductCode = in.ProductCode
	rec.ProductName = in.ProductName
	rec.MinStockLevel = in.MinStockLevel
	rec.ManufactureDate = in.ManufactureDate
	rec.ExpiryDate = in.ExpiryDate
	rec.StorageLocation = in.StorageLocation
	rec.SourceApprovalID = in.SourceApprovalID
	adj, err := rec.Receive(in.Quantity, reason, in.Notes, actor, now)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, rec); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, rec, &adj); err != nil {
		return nil, err
	}
	return rec, nil
}

// movingAverage blends unit costs weighted by quantity.
func movingAverage(oldCost types.Money, oldQty int64, newCost types.Money, newQty int64) types.Money {
	if newCost.IsZero() {
		return oldCost
	}
	if oldQty == 0 {
		return newCost
	}
	total := types.LineValue(oldCost, oldQty).Add(types.LineValue(newCost, newQty))
	return total.Div(decimal.NewFromInt(oldQty + newQty)).Round(4)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, recordID id.ID, u UpdateInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionUpdate); err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}

	rec, err := s.mutate(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		before, err := audit.Snapshot(rec)
		if err != nil {
			return err
		}
		adj, err := rec.ApplyUpdate(u, actor, now)
		if err != nil {
			return err
		}
		if adj != nil {
			if err := s.repo.AppendAdjustment(ctx, *adj); err != nil {
				return err
			}
		}
		after, err := audit.Snapshot(rec)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			EntityType: lockKind,
			EntityID:   rec.ID,
			Action:     audit.ActionUpdate,
			UserID:     actor,
			Changes:    audit.Diff(before, after),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory record updated", "id", recordID)
	return rec, nil
}

// BulkUpdate applies the same partial update to each id independently.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, u UpdateInput) (bulk.Result, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionUpdate); err != nil {
		return bulk.Result{}, err
	}
	return bulk.Run(ctx, s.BulkTarget(), ids, u)
}

// BulkTarget exposes the ledger to the bulk coordinator.
func (s *Service) BulkTarget() bulk.Target[*Record, UpdateInput] {
	return bulkTarget{s: s}
}

type bulkTarget struct{ s *Service }

func (t bulkTarget) FindByID(ctx context.Context, recordID id.ID) (*Record, error) {
	return t.s.repo.GetByID(ctx, recordID)
}

func (t bulkTarget) ApplyUpdate(ctx context.Context, rec *Record, u UpdateInput) (*Record, error) {
	return t.s.Update(ctx, rec.ID, u)
}

// Statistics summarizes stock, optionally for one warehouse.
func (s *Service) Statistics(ctx context.Context, warehouseID *id.ID) (Statistics, error) {
	records, err := s.repo.FindAll(ctx, Criteria{WarehouseID: warehouseID})
	if err != nil {
		return Statistics{}, err
	}
	return ComputeStatistics(records, s.now(), s.alertDays), nil
}

// Alerts lists low-stock, out-of-stock, expiry and quarantine conditions.
func (s *Service) Alerts(ctx context.Context, warehouseID *id.ID) ([]Alert, error) {
	records, err := s.repo.FindAll(ctx, Criteria{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	return ComputeAlerts(records, s.now(), s.alertDays), nil
}

// Valuation values non-expired stock, optionally for one warehouse.
func (s *Service) Valuation(ctx context.Context, warehouseID *id.ID) (Valuation, error) {
	records, err := s.repo.FindAll(ctx, Criteria{WarehouseID: warehouseID})
	if err != nil {
		return Valuation{}, err
	}
	return ComputeValuation(records, s.now()), nil
}

// MarkExpired moves active and quarantined records past their expiry date
// to expired. Failures are logged and skipped; the count of expired
// records is returned.
func (s *Service) MarkExpired(ctx context.Context) (int, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceInventory, security.ActionUpdate); err != nil {
		return 0, err
	}

	now := s.now()
	due, err := s.repo.FindAll(ctx, Criteria{
		Statuses:       []Status{StatusActive, StatusQuarantine},
		ExpiringBefore: &now,
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range due {
		changed := false
		_, err := s.mutate(ctx, candidate.ID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
			if !rec.IsExpiredAt(now) || rec.Status == StatusExpired {
				return nil
			}
			from := rec.Status
			if err := rec.Expire(); err != nil {
				return err
			}
			changed = true
			if err := s.audit.Record(ctx, audit.Entry{
				EntityType: lockKind,
				EntityID:   rec.ID,
				Action:     audit.ActionTransition,
				UserID:     actor,
				Changes:    map[string]any{"status": map[string]any{"old": from, "new": rec.Status}},
			}); err != nil {
				return err
			}
			return s.events.Publish(ctx, events.Event{
				AggregateType: lockKind,
				AggregateID:   rec.ID,
				Type:          events.InventoryExpired,
				Payload:       map[string]any{"batchNumber": rec.BatchNumber, "quantity": rec.Quantity},
			})
		})
		if err != nil {
			logger.Warn(ctx, "expire inventory record failed", "id", candidate.ID, "error", err)
			continue
		}
		if changed {
			expired++
		}
	}

	if expired > 0 {
		logger.Info(ctx, "inventory expiry sweep", "expired", expired)
	}
	return expired, nil
}

// BatchRef names a batch by its natural key.
type BatchRef struct {
	ProductID   id.ID
	WarehouseID id.ID
	BatchNumber string
}

// LockReceipts locks extra keys plus everything a receipt into refs needs:
// the batch key, and the record key of each batch that already exists.
// Records are never deleted, so a batch seen before locking stays valid; one
// created between the lookup and the acquisition forces a second round.
func (s *Service) LockReceipts(ctx context.Context, extra []string, refs ...BatchRef) (func(), error) {
	for range 2 {
		before, err := s.existingBatches(ctx, refs)
		if err != nil {
			return nil, err
		}
		keys := append([]string{}, extra...)
		for _, ref := range refs {
			keys = append(keys, BatchLockKey(ref.ProductID, ref.WarehouseID, ref.BatchNumber))
		}
		for _, recordID := range before {
			keys = append(keys, lock.RecordKey(lockKind, recordID))
		}

		release, err := lock.AcquireAll(ctx, s.locker, keys...)
		if err != nil {
			return nil, err
		}
		after, err := s.existingBatches(ctx, refs)
		if err != nil {
			release()
			return nil, err
		}
		if len(after) == len(before) {
			return release, nil
		}
		release()
	}
	return nil, apperror.NewConflict("inventory batches changed while locking, retry the request")
}

func (s *Service) existingBatches(ctx context.Context, refs []BatchRef) (map[BatchRef]id.ID, error) {
	found := make(map[BatchRef]id.ID, len(refs))
	for _, ref := range refs {
		recs, err := s.repo.FindAll(ctx, Criteria{
			ProductID:   &ref.ProductID,
			WarehouseID: &ref.WarehouseID,
			BatchNumber: ref.BatchNumber,
		})
		if err != nil {
			return nil, fmt.Errorf("look up batch %s: %w", ref.BatchNumber, err)
		}
		if len(recs) > 0 {
			found[ref] = recs[0].ID
		}
	}
	return found, nil
}

// BatchLockKey is the lock guarding creation of a (product, warehouse, batch).
func BatchLockKey(productID, warehouseID id.ID, batch string) string {
	return lock.NaturalKey(lockKind+"-batch", productID.String(), warehouseID.String(), batch)
}
