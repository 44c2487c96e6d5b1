package qc

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
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/audit"
	"pharmaflow/internal/domain/bulk"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/events"
	"pharmaflow/pkg/logger"
)

const (
	lockKind     = "qc"
	numberPrefix = "QC"
)

// ProductCatalog resolves product codes.
type ProductCatalog interface {
	GetByCodes(ctx context.Context, codes []string) (map[string]*product.Product, error)
}

// Config wires the service.
type Config struct {
	Repo       Repository
	Products   ProductCatalog
	Numerator  numerator.Generator
	TxManager  tx.Manager
	Locker     lock.Locker
	Authorizer security.Authorizer
	Events     events.Publisher
	Audit      audit.Recorder

	ConflictRetries int
	Clock           func() time.Time
}

// Service provides QC inspection operations.
type Service struct {
	repo      Repository
	products  ProductCatalog
	numerator numerator.Generator
	txManager tx.Manager
	authz     security.Authorizer
	events    events.Publisher
	audit     audit.Recorder
	hooks     *domain.HookRegistry[*Record]
	mutator   domain.Mutator[*Record]
	now       func() time.Time
}

// NewService creates the QC service.
func NewService(cfg Config) *Service {
	s := &Service{
		repo:      cfg.Repo,
		products:  cfg.Products,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		authz:     cfg.Authorizer,
		events:    cfg.Events,
		audit:     cfg.Audit,
		hooks:     domain.NewHookRegistry[*Record](),
		now:       cfg.Clock,
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
		Locker:    cfg.Locker,
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

// ItemInput is an item supplied at creation.
type ItemInput struct {
	ItemNumber int
	Status     ItemStatus
	QCReasons  []string
	Remarks    string
}

// ProductInput is a received product batch supplied at creation.
type ProductInput struct {
	ProductCode     string
	BatchNumber     string
	ManufactureDate *time.Time
	ExpiryDate      *time.Time
	ReceivedQty     int64
	UnitCost        types.Money
	ItemDetails     []ItemInput
}

// CreateInput creates a QC record for a received shipment.
type CreateInput struct {
	QCType           Type
	Priority         Priority
	ReceivingRef     string
	PurchaseOrderRef string
	SupplierName     string
	AssignedTo       string
	Remarks          string
	Products         []ProductInput
}

// Create registers a shipment for inspection. Products without item
// details get one pending item per received unit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionCreate); err != nil {
		return nil, err
	}
	if len(in.Products) == 0 {
		return nil, apperror.NewFieldError("products", "must contain at least one product")
	}

	products, err := s.buildProducts(ctx, in.Products)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := NewRecord(in.QCType, products, now)
	if in.Priority != "" {
		rec.Priority = in.Priority
	}
	rec.ReceivingRef = in.ReceivingRef
	rec.PurchaseOrderRef = in.PurchaseOrderRef
	rec.SupplierName = in.SupplierName
	rec.AssignedTo = in.AssignedTo
	rec.Remarks = in.Remarks

	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.hooks.Run(ctx, domain.BeforeCreate, rec); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.Next(ctx, numerator.DefaultConfig(numberPrefix), now)
		if err != nil {
			return fmt.Errorf("generate qc number: %w", err)
		}
		rec.QCNumber = number

		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("create qc record: %w", err)
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

	logger.Info(ctx, "qc record created", "id", rec.ID, "number", rec.QCNumber, "products", len(rec.Products))
	return rec, nil
}

func (s *Service) buildProducts(ctx context.Context, inputs []ProductInput) ([]Product, error) {
	codes := make([]string, 0, len(inputs))
	for i, p := range inputs {
		code := strings.TrimSpace(p.ProductCode)
		if code == "" {
			return nil, apperror.NewFieldError(fmt.Sprintf("products[%d].productCode", i), "is required")
		}
		if p.ReceivedQty < 1 || p.ReceivedQty > MaxReceivedQty {
			return nil, apperror.NewFieldError(fmt.Sprintf("products[%d].receivedQty", i), "must be between 1 and 10000")
		}
		codes = append(codes, code)
	}

	known, err := s.products.GetByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	out := make([]Product, len(inputs))
	for i, p := range inputs {
		prod, ok := known[codes[i]]
		if !ok {
			field := fmt.Sprintf("products[%d].productCode", i)
			return nil, apperror.NewBusinessRule(apperror.CodeUnknownProduct,
				fmt.Sprintf("product %s does not exist", codes[i])).
				WithField(field, "does not exist")
		}

		items := GenerateItems(p.ReceivedQty)
		if len(p.ItemDetails) > 0 {
			items = make([]ItemDetail, len(p.ItemDetails))
			for j, it := range p.ItemDetails {
				number := it.ItemNumber
				if number == 0 {
					number = j + 1
				}
				status := it.Status
				if status == "" {
					status = ItemPending
				}
				reasons := it.QCReasons
				if reasons == nil {
					reasons = []string{}
				}
				items[j] = ItemDetail{ItemNumber: number, Status: status, QCReasons: reasons, Remarks: it.Remarks}
			}
		}

		out[i] = Product{
			ProductID:       prod.ID,
			ProductCode:     prod.Code,
			ProductName:     prod.Name,
			BatchNumber:     strings.TrimSpace(p.BatchNumber),
			ManufactureDate: p.ManufactureDate,
			ExpiryDate:      p.ExpiryDate,
			ReceivedQty:     p.ReceivedQty,
			UnitCost:        p.UnitCost,
			ItemDetails:     items,
		}
	}
	return out, nil
}

// Get returns a record.
func (s *Service) Get(ctx context.Context, recordID id.ID) (*Record, error) {
	return s.repo.GetByID(ctx, recordID)
}

// List returns a page of records.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error) {
	return s.repo.List(ctx, filter)
}

// Statistics counts records by status, result and priority.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	return s.repo.CountBy(ctx)
}

// Update applies a partial header update; an illegal status edit fails
// with INVALID_STATUS_TRANSITION.
func (s *Service) Update(ctx context.Context, recordID id.ID, u UpdateInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionUpdate); err != nil {
		return nil, err
	}
	if u.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}

	rec, err := s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
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
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "qc record updated", "id", recordID)
	return rec, nil
}

// RecordItemResult stores the inspection result of one item.
func (s *Service) RecordItemResult(ctx context.Context, recordID id.ID, in ItemResult) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionInspect); err != nil {
		return nil, err
	}

	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		return rec.RecordItemResult(in, actor, now)
	})
}

// Submit sends the record for approval.
func (s *Service) Submit(ctx context.Context, recordID id.ID) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionSubmit); err != nil {
		return nil, err
	}

	rec, err := s.transition(ctx, recordID, events.QCSubmitted, func(rec *Record, actor string, now time.Time) error {
		return rec.Submit(actor, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "qc submitted", "id", recordID, "number", rec.QCNumber)
	return rec, nil
}

// Approve completes a submitted record.
func (s *Service) Approve(ctx context.Context, recordID id.ID, remarks string) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionApprove); err != nil {
		return nil, err
	}

	rec, err := s.transition(ctx, recordID, events.QCApproved, func(rec *Record, actor string, now time.Time) error {
		return rec.Approve(remarks, actor, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "qc approved", "id", recordID, "number", rec.QCNumber, "result", rec.OverallResult)
	return rec, nil
}

// Reject returns a submitted record with a reason.
func (s *Service) Reject(ctx context.Context, recordID id.ID, reason string) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionReject); err != nil {
		return nil, err
	}
	// validated before locking so a missing reason is always a field error
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.NewFieldError("reason", "is required")
	}

	rec, err := s.transition(ctx, recordID, events.QCRejected, func(rec *Record, actor string, now time.Time) error {
		return rec.Reject(reason, actor, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "qc rejected", "id", recordID, "number", rec.QCNumber)
	return rec, nil
}

// Reopen moves a rejected record back to inspection.
func (s *Service) Reopen(ctx context.Context, recordID id.ID) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionInspect); err != nil {
		return nil, err
	}

	rec, err := s.transition(ctx, recordID, "", func(rec *Record, _ string, _ time.Time) error {
		return rec.Reopen()
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "qc reopened", "id", recordID, "number", rec.QCNumber)
	return rec, nil
}

// transition applies a workflow step, audits the status change and
// publishes eventType when it is not empty.
func (s *Service) transition(ctx context.Context, recordID id.ID, eventType string, step func(rec *Record, actor string, now time.Time) error) (*Record, error) {
	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, actor string, now time.Time) error {
		from := rec.Status
		if err := step(rec, actor, now); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, audit.Entry{
			EntityType: lockKind,
			EntityID:   rec.ID,
			Action:     audit.ActionTransition,
			UserID:     actor,
			Changes:    map[string]any{"status": map[string]any{"old": from, "new": rec.Status}},
		}); err != nil {
			return err
		}
		if eventType == "" {
			return nil
		}
		return s.events.Publish(ctx, events.Event{
			AggregateType: lockKind,
			AggregateID:   rec.ID,
			Type:          eventType,
			Payload: map[string]any{
				"qcNumber":      rec.QCNumber,
				"status":        rec.Status,
				"overallResult": rec.OverallResult,
			},
		})
	})
}

// AssignInput is the bulk-assign payload.
type AssignInput struct {
	AssignedTo string
	Priority   *Priority
}

// Assign sets the inspector of one record.
func (s *Service) Assign(ctx context.Context, recordID id.ID, in AssignInput) (*Record, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionAssign); err != nil {
		return nil, err
	}
	return s.mutator.Run(ctx, recordID, func(ctx context.Context, rec *Record, _ string, _ time.Time) error {
		return rec.Assign(in.AssignedTo, in.Priority)
	})
}

// BulkAssign assigns every id independently.
func (s *Service) BulkAssign(ctx context.Context, ids []string, in AssignInput) (bulk.Result, error) {
	if _, err := security.Require(ctx, s.authz, security.ResourceQC, security.ActionAssign); err != nil {
		return bulk.Result{}, err
	}
	if strings.TrimSpace(in.AssignedTo) == "" {
		return bulk.Result{}, apperror.NewFieldError("assignedTo", "is required")
	}
	return bulk.Run(ctx, s.BulkTarget(), ids, in)
}

// BulkTarget exposes QC records to the bulk coordinator.
func (s *Service) BulkTarget() bulk.Target[*Record, AssignInput] {
	return bulkTarget{s: s}
}

type bulkTarget struct{ s *Service }

func (t bulkTarget) FindByID(ctx context.Context, recordID id.ID) (*Record, error) {
	return t.s.repo.GetByID(ctx, recordID)
}

func (t bulkTarget) ApplyUpdate(ctx context.Context, rec *Record, in AssignInput) (*Record, error) {
	return t.s.Assign(ctx, rec.ID, in)
}
