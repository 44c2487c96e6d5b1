package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/lock"
	"pharmaflow/internal/core/numerator"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/core/tx"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/audit"
	"pharmaflow/internal/domain/bulk"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/events"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/pkg/logger"
)

const (
	lockKind     = "warehouse_approval"
	numberPrefix = "WA"
)

// QCSource reads QC records.
type QCSource interface {
	Get(ctx context.Context, recordID id.ID) (*qc.Record, error)
}

// WarehouseCatalog resolves warehouses.
type WarehouseCatalog interface {
	GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
}

// ProductCatalog resolves products.
type ProductCatalog interface {
	GetByID(ctx context.Context, productID id.ID) (*product.Product, error)
}

// StockReceiver materializes approved stock. ReceiveStock must join the
// caller's transaction and run under LockReceipts.
type StockReceiver interface {
	LockReceipts(ctx context.Context, extra []string, refs ...inventory.BatchRef) (func(), error)
	ReceiveStock(ctx context.Context, in inventory.ReceiveInput) (*inventory.Record, error)
}

// Config wires the service.
type Config struct {
	Repo       Repository
	QC         QCSource
	Warehouses WarehouseCatalog
	Products   ProductCatalog
	Stock      StockReceiver
	Numerator  numerator.Generator
	TxManager  tx.Manager
	Locker     lock.Locker
	Authorizer security.Authorizer
	Events     events.Publisher
	Audit      audit.Recorder

	ConflictRetries int
	Clock           func() time.Time
}

// Service provides warehouse approval operations.
type Service struct {
	repo       Repository
	qc         QCSource
	warehouses WarehouseCatalog
	products   ProductCatalog
	stock      StockReceiver
	numerator  numerator.Generator
	txManager  tx.Manager
	locker     lock.Locker
	authz      security.Authorizer
	events     events.Publisher
	audit      audit.Recorder
	hooks      *domain.HookRegistry[*Record]
	mutator    domain.Mutator[*Record]
	now        func() time.Time
}

// NewService creates the warehouse approval service.
func NewService(cfg Config) *Service {
	s := &Service{
		repo:       cfg.Repo,
		qc:         cfg.QC,
		warehouses: cfg.Warehouses,
		products:   cfg.Products,
		stock:      cfg.Stock,
		numerator:  cfg.Numerator,
		txManager:  cfg.TxManager,
		locker:     cfg.Locker,
		authz:      cfg.Authorizer,
		events:     cfg.Events,
		audit:      cfg.Audit,
		hooks:      domain.NewHookRegistry[*Record](),
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
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	s.mutator = domain.Mutator[*Record]{
		Kind:      lockKind,
		Store:     cfg.Repo,
		TxManager: cfg.TxManager,
		Locker:    s.locker,
		Retries:   cfg.ConflictRetries,
		Clock:     s.now,
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

// CreateInput opens an approval for a completed QC record.
type CreateInput struct {
	QCRecordID  id.ID
	WarehouseID id.ID
	AssignedTo  string
	Remarks     string
}

// Create opens a warehouse approval. The QC record must be completed with
// a passing result and must not have a live approval already.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionCreate); err != nil {
		return nil, err
	}
	if id.IsNil(in.QCRecordID) {
		return nil, apperror.NewFieldError("qcRecordId", "is required")
	}
	if id.IsNil(in.WarehouseID) {
		return nil, apperror.NewFieldError("warehouseId", "is required")
	}

	src, err := s.qc.Get(ctx, in.QCRecordID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWarehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}

	now := s.now()
	rec, err := NewFromQC(src, in.WarehouseID, now)
	if err != nil {
		return nil, err
	}
	rec.AssignedTo = in.AssignedTo
	rec.Remarks = in.Remarks

	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, rec); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.NaturalKey(lockKind+"-qc", in.QCRecordID.String()))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindActiveByQCRecord(ctx, in.QCRecordID)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing != nil {
			return duplicateApproval(in.QCRecordID, existing.ApprovalNumber)
		}

		number, err := s.numerator.Next(ctx, numerator.DefaultConfig(numberPrefix), now)
		if err != nil {
			return fmt.Errorf("generate approval number: %w", err)
		}
		rec.ApprovalNumber = number

		if err := s.repo.Create(ctx, rec); err != nil {
			return err
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
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse approval created",
		"id", rec.ID, "number", rec.ApprovalNumber, "qc_number", rec.QCNumber)
	return rec, nil
}

func duplicateApproval(qcRecordID id.ID, existing string) error {
	return apperror.NewBusinessRule(apperror.CodeDuplicateApproval,
		fmt.Sprintf("qc record already has warehouse approval %s", existing)).
		WithDetail("qcRecordId", qcRecordID)
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

// Get returns a record.
func (s *Service) Get(ctx context.Context, recordID id.ID) (*Record, error) {
	return s.repo.GetByID(ctx, recordID)
}

// List returns a page of records.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error) {
	return s.repo.List(ctx, filter)
}

// Statistics counts records by status.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.repo.CountBy(ctx)
}

// AssignStorage places items of one product.
func (s *Service) AssignStorage(ctx context.Context, recordID id.ID, in StorageInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionUpdate); err != nil {
		return nil, err
	}
	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		return rec.AssignStorage(in, actor, now)
	})
}

// Update applies a partial header update.
func (s *Service) Update(ctx context.Context, recordID id.ID, u UpdateInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionUpdate); err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}

	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		before, err := audit.Snapshot(rec)
		if err != nil {
			return err
		}
		if err := rec.ApplyUpdate(u); err != nil {
			return err
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
}

// Submit sends the record for approval.
func (s *Service) Submit(ctx context.Context, recordID id.ID) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionSubmit); err != nil {
		return nil, err
	}

	rec, err := s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		from := rec.Status
		if err := rec.Submit(actor, now); err != nil {
			return err
		}
		return s.recordTransition(ctx, rec, from, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse approval submitted", "id", recordID, "number", rec.ApprovalNumber)
	return rec, nil
}

// Approve closes a submitted record and receives every stored batch into
// inventory. Both happen in one transaction: a failed receipt leaves the
// record submitted.
func (s *Service) Approve(ctx context.Context, recordID id.ID, remarks string) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionApprove); err != nil {
		return nil, err
	}

	// products are frozen once submitted; the unlocked read only picks lock keys
	current, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := current.requireSubmitted(); err != nil {
		return nil, err
	}
	if err := s.requireWarehouse(ctx, current.WarehouseID); err != nil {
		return nil, err
	}

	lines := current.StockLines()
	refs := make([]inventory.BatchRef, 0, len(lines))
	for _, p := range lines {
		refs = append(refs, inventory.BatchRef{ProductID: p.ProductID, WarehouseID: current.WarehouseID, BatchNumber: p.BatchNumber})
	}
	release, err := s.stock.LockReceipts(ctx, nil, refs...)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		from := rec.Status
		if err := rec.Approve(remarks, actor, now); err != nil {
			return err
		}

		created := make([]id.ID, 0, len(lines))
		for _, p := range rec.StockLines() {
			in, err := s.receiveInput(ctx, rec, p)
			if err != nil {
				return err
			}
			inv, err := s.stock.ReceiveStock(ctx, in)
			if err != nil {
				return fmt.Errorf("receive %s batch %s: %w", p.ProductCode, p.BatchNumber, err)
			}
			created = append(created, inv.ID)
		}
		rec.MarkInventoryCreated(created)

		if err := s.recordTransition(ctx, rec, from, actor); err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			AggregateType: lockKind,
			AggregateID:   rec.ID,
			Type:          events.WarehouseApprovalApproved,
			Payload: map[string]any{
				"approvalNumber":     rec.ApprovalNumber,
				"qcRecordId":         rec.QCRecordID,
				"warehouseId":        rec.WarehouseID,
				"inventoryRecordIds": created,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse approval approved",
		"id", recordID, "number", rec.ApprovalNumber, "inventory_records", len(rec.InventoryRecordIDs))
	return rec, nil
}

func (s *Service) receiveInput(ctx context.Context, rec *Record, p Product) (inventory.ReceiveInput, error) {
	var minStock int64
	if s.products != nil {
		prod, err := s.products.GetByID(ctx, p.ProductID)
		if err != nil {
			return inventory.ReceiveInput{}, err
		}
		minStock = prod.MinStockLevel
	}
	approvalID := rec.ID
	return inventory.ReceiveInput{
		ProductID:        p.ProductID,
		ProductCode:      p.ProductCode,
		ProductName:      p.ProductName,
		MinStockLevel:    minStock,
		WarehouseID:      rec.WarehouseID,
		BatchNumber:      p.BatchNumber,
		Quantity:         p.StoredQty,
		UnitCost:         p.UnitCost,
		ManufactureDate:  p.ManufactureDate,
		ExpiryDate:       p.ExpiryDate,
		StorageLocation:  p.Location(),
		SourceApprovalID: &approvalID,
		Notes:            "warehouse approval " + rec.ApprovalNumber,
	}, nil
}

// Reject closes a submitted record with a reason.
func (s *Service) Reject(ctx context.Context, recordID id.ID, reason string) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionReject); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.NewFieldError("reason", "is required")
	}

	rec, err := s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		from := rec.Status
		if err := rec.Reject(reason, actor, now); err != nil {
			return err
		}
		if err := s.recordTransition(ctx, rec, from, actor); err != nil {
			return err
		}
		return s.events.Publish(ctx, events.Event{
			AggregateType: lockKind,
			AggregateID:   rec.ID,
			Type:          events.WarehouseApprovalRejected,
			Payload: map[string]any{
				"approvalNumber": rec.ApprovalNumber,
				"qcRecordId":     rec.QCRecordID,
				"reason":         reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse approval rejected", "id", recordID, "number", rec.ApprovalNumber)
	return rec, nil
}

func (s *Service) recordTransition(ctx context.Context, rec *Record, from Status, actor string) error {
	return s.audit.Record(ctx, audit.Entry{
		EntityType: lockKind,
		EntityID:   rec.ID,
		Action:     audit.ActionTransition,
		UserID:     actor,
		Changes:    map[string]any{"status": map[string]any{"old": from, "new": rec.Status}},
	})
}

// AssignInput is the bulk-assign payload.
type AssignInput struct {
	AssignedTo string
}

// Assign sets the storekeeper of one record.
func (s *Service) Assign(ctx context.Context, recordID id.ID, in AssignInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionAssign); err != nil {
		return nil, err
	}
	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, _ string, _ time.Time) error {
		return rec.Assign(in.AssignedTo)
	})
}

// BulkAssign assigns every id independently.
func (s *Service) BulkAssign(ctx context.Context, ids []string, in AssignInput) (bulk.Result, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionAssign); err != nil {
		return bulk.Result{}, err
	}
	if strings.TrimSpace(in.AssignedTo) == "" {
		return bulk.Result{}, apperror.NewFieldError("assignedTo", "is required")
	}
	return bulk.Run(ctx, assignTarget{s: s}, ids, in)
}

// BulkUpdate applies the same partial update to every id independently.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, u UpdateInput) (bulk.Result, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceWarehouseApproval, security.ActionUpdate); err != nil {
		return bulk.Result{}, err
	}
	if u.IsEmpty() {
		return bulk.Result{}, apperror.NewValidation("no fields to update")
	}
	return bulk.Run(ctx, updateTarget{s: s}, ids, u)
}

type assignTarget struct{ s *Service }

func (t assignTarget) FindByID(ctx context.Context, recordID id.ID) (*Record, error) {
	return t.s.repo.GetByID(ctx, recordID)
}

func (t assignTarget) ApplyUpdate(ctx context.Context, rec *Record, in AssignInput) (*Record, error) {
	return t.s.Assign(ctx, rec.ID, in)
}

type updateTarget struct{ s *Service }

func (t updateTarget) FindByID(ctx context.Context, recordID id.ID) (*Record, error) {
	return t.s.repo.GetByID(ctx, recordID)
}

func (t updateTarget) ApplyUpdate(ctx context.Context, rec *Record, u UpdateInput) (*Record, error) {
	return t.s.Update(ctx, rec.ID, u)
}
