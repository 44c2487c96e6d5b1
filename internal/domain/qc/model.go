// Package qc provides the quality-control inspection record and its
// pending -> in_progress -> pending_approval -> completed|rejected workflow.
package qc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/entity"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

// Status of a QC record.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInProgress      Status = "in_progress"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
	StatusRejected        Status = "rejected"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPendingApproval, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no inspection work remains.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Type is the kind of inspection.
type Type string

const (
	TypeIncoming      Type = "incoming"
	TypeInProcess     Type = "in_process"
	TypeFinishedGoods Type = "finished_goods"
	TypeStability     Type = "stability"
	TypeComplaint     Type = "complaint"
)

// Types lists valid inspection kinds.
var Types = []Type{TypeIncoming, TypeInProcess, TypeFinishedGoods, TypeStability, TypeComplaint}

// Priority of the inspection.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists valid priorities.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ItemStatus is the inspection result of one unit.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPassed  ItemStatus = "passed"
	ItemFailed  ItemStatus = "failed"
)

// ProductStatus is the roll-up of a product's items.
type ProductStatus string

const (
	ProductPending     ProductStatus = "pending"
	ProductInProgress  ProductStatus = "in_progress"
	ProductPassed      ProductStatus = "passed"
	ProductFailed      ProductStatus = "failed"
	ProductPartialPass ProductStatus = "partial_pass"
)

// Result is the record-level outcome set on approval.
type Result string

const (
	ResultPassed      Result = "passed"
	ResultFailed      Result = "failed"
	ResultPartialPass Result = "partial_pass"
)

// MaxReceivedQty bounds auto-generated items per product.
const MaxReceivedQty = 10000

// ItemDetail is the inspection of one received unit.
type ItemDetail struct {
	ItemNumber  int        `json:"itemNumber"`
	Status      ItemStatus `json:"status"`
	QCReasons   []string   `json:"qcReasons"`
	Remarks     string     `json:"remarks,omitempty"`
	InspectedBy string     `json:"inspectedBy,omitempty"`
	InspectedAt *time.Time `json:"inspectedAt,omitempty"`
}

// Product is one received product batch under inspection.
type Product struct {
	ProductID       id.ID       `json:"productId"`
	ProductCode     string      `json:"productCode"`
	ProductName     string      `json:"productName"`
	BatchNumber     string      `json:"batchNumber"`
	ManufactureDate *time.Time  `json:"manufactureDate,omitempty"`
	ExpiryDate      *time.Time  `json:"expiryDate,omitempty"`
	ReceivedQty     int64       `json:"receivedQty"`
	UnitCost        types.Money `json:"unitCost"`

	// Derived from ItemDetails on every change
	PassedQty     int64         `json:"passedQty"`
	FailedQty     int64         `json:"failedQty"`
	OverallStatus ProductStatus `json:"overallStatus"`

	ItemDetails []ItemDetail `json:"itemDetails"`
}

// Record is a QC inspection of a received shipment.
type Record struct {
	entity.BaseDocument

	QCNumber string   `db:"qc_number" json:"qcNumber"`
	QCType   Type     `db:"qc_type" json:"qcType"`
	Priority Priority `db:"priority" json:"priority"`
	Status   Status   `db:"status" json:"status"`

	// ReceivingRef is the invoice or goods-receiving reference
	ReceivingRef     string `db:"receiving_ref" json:"receivingRef,omitempty"`
	PurchaseOrderRef string `db:"purchase_order_ref" json:"purchaseOrderRef,omitempty"`
	SupplierName     string `db:"supplier_name" json:"supplierName,omitempty"`

	Products []Product `db:"products" json:"products"`

	AssignedTo string     `db:"assigned_to" json:"assignedTo,omitempty"`
	QCBy       string     `db:"qc_by" json:"qcBy,omitempty"`
	QCDate     *time.Time `db:"qc_date" json:"qcDate,omitempty"`

	ApprovedBy      string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate    *time.Time `db:"approval_date" json:"approvalDate,omitempty"`
	ApprovalRemarks string     `db:"approval_remarks" json:"approvalRemarks,omitempty"`

	RejectedBy      string     `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectionDate   *time.Time `db:"rejection_date" json:"rejectionDate,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejectionReason,omitempty"`

	OverallResult Result `db:"overall_result" json:"overallResult,omitempty"`
	Remarks       string `db:"remarks" json:"remarks,omitempty"`
}

// NewRecord creates a pending record with medium priority.
func NewRecord(qcType Type, products []Product, now time.Time) *Record {
	r := &Record{
		BaseDocument: entity.NewBaseDocument(now),
		QCType:       qcType,
		Priority:     PriorityMedium,
		Status:       StatusPending,
		Products:     products,
	}
	r.refresh()
	if r.anyDecided() {
		r.Status = StatusInProgress
	}
	return r
}

// GenerateItems returns one pending item per received unit.
func GenerateItems(receivedQty int64) []ItemDetail {
	items := make([]ItemDetail, receivedQty)
	for i := range items {
		items[i] = ItemDetail{ItemNumber: i + 1, Status: ItemPending, QCReasons: []string{}}
	}
	return items
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if !slices.Contains(Types, r.QCType) {
		return apperror.NewFieldError("qcType", "must be one of incoming, in_process, finished_goods, stability, complaint")
	}
	if !slices.Contains(Priorities, r.Priority) {
		return apperror.NewFieldError("priority", "must be one of low, medium, high, urgent")
	}
	if len(r.Products) == 0 {
		return apperror.NewFieldError("products", "must contain at least one product")
	}

	for i, p := range r.Products {
		field := fmt.Sprintf("products[%d]", i)
		if strings.TrimSpace(p.BatchNumber) == "" {
			return apperror.NewFieldError(field+".batchNumber", "is required")
		}
		if p.ReceivedQty < 1 || p.ReceivedQty > MaxReceivedQty {
			return apperror.NewFieldError(field+".receivedQty", "must be between 1 and 10000")
		}
		if len(p.ItemDetails) == 0 {
			return apperror.NewFieldError(field+".itemDetails", "must contain at least one item")
		}
		if int64(len(p.ItemDetails)) > p.ReceivedQty {
			return apperror.NewFieldError(field+".itemDetails", "must not exceed receivedQty")
		}
		if p.UnitCost.IsNegative() {
			return apperror.NewFieldError(field+".unitCost", "must not be negative")
		}
		if p.ManufactureDate != nil && p.ExpiryDate != nil && p.ExpiryDate.Before(*p.ManufactureDate) {
			return apperror.NewFieldError(field+".expiryDate", "must not be before manufactureDate")
		}
		seen := make(map[int]bool, len(p.ItemDetails))
		for _, it := range p.ItemDetails {
			if seen[it.ItemNumber] {
				return apperror.NewFieldError(field+".itemDetails", fmt.Sprintf("duplicate itemNumber %d", it.ItemNumber))
			}
			seen[it.ItemNumber] = true
			if !isItemStatus(it.Status) {
				return apperror.NewFieldError(field+".itemDetails", "status must be one of pending, passed, failed")
			}
		}
	}
	return nil
}

func isItemStatus(s ItemStatus) bool {
	return s == ItemPending || s == ItemPassed || s == ItemFailed
}

// refresh recomputes every derived field.
func (r *Record) refresh() {
	for i := range r.Products {
		r.Products[i].recompute()
	}
}

func (r *Record) anyDecided() bool {
	for _, p := range r.Products {
		if p.PassedQty+p.FailedQty > 0 {
			return true
		}
	}
	return false
}

func (r *Record) closed(op string) error {
	return apperror.NewBusinessRule(apperror.CodeRecordClosed,
		fmt.Sprintf("cannot %s: qc record is %s", op, r.Status)).
		WithDetail("status", string(r.Status))
}

// ItemResult is one item-level inspection entry.
type ItemResult struct {
	ProductIndex int
	ItemNumber   int
	Status       ItemStatus
	QCReasons    []string
	Remarks      string
}

// RecordItemResult sets an item's result and refreshes the roll-ups.
// The first entry moves a pending record to in_progress.
func (r *Record) RecordItemResult(in ItemResult, actor string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusInProgress {
		return r.closed("record item results")
	}
	if in.ProductIndex < 0 || in.ProductIndex >= len(r.Products) {
		return apperror.NewFieldError("productIndex", "is out of range")
	}
	if !isItemStatus(in.Status) {
		return apperror.NewFieldError("status", "must be one of pending, passed, failed")
	}
	if in.Status == ItemFailed && len(in.QCReasons) == 0 {
		return apperror.NewFieldError("qcReasons", "is required when status is failed")
	}

	p := &r.Products[in.ProductIndex]
	idx := slices.IndexFunc(p.ItemDetails, func(it ItemDetail) bool { return it.ItemNumber == in.ItemNumber })
	if idx < 0 {
		return apperror.NewFieldError("itemNumber", "does not exist on this product")
	}

	item := &p.ItemDetails[idx]
	item.Status = in.Status
	item.QCReasons = in.QCReasons
	if item.QCReasons == nil {
		item.QCReasons = []string{}
	}
	item.Remarks = in.Remarks
	item.InspectedBy = actor
	item.InspectedAt = &now

	p.recompute()
	if r.Status == StatusPending {
		r.Status = StatusInProgress
	}
	return nil
}

// Submit sends a fully inspected record for approval.
func (r *Record) Submit(actor string, now time.Time) error {
	switch r.Status {
	case StatusPendingApproval:
		return apperror.NewBusinessRule(apperror.CodeAlreadySubmitted, "qc record is already submitted")
	case StatusCompleted, StatusRejected:
		return apperror.NewInvalidTransition("qc record", string(r.Status), string(StatusPendingApproval))
	}

	var undecided []string
	for i, p := range r.Products {
		if !p.OverallStatus.IsDecided() {
			undecided = append(undecided, fmt.Sprintf("products[%d]", i))
		}
	}
	if len(undecided) > 0 {
		return apperror.NewBusinessRule(apperror.CodeIncompleteInspection,
			"every item must be inspected before submission").
			WithDetail("products", undecided)
	}
	if r.Status != StatusInProgress {
		return apperror.NewInvalidTransition("qc record", string(r.Status), string(StatusPendingApproval))
	}

	r.Status = StatusPendingApproval
	r.QCBy = actor
	r.QCDate = &now
	return nil
}

func (r *Record) requireSubmitted() error {
	if r.Status == StatusPendingApproval {
		return nil
	}
	msg := "qc record has not been submitted for approval"
	switch r.Status {
	case StatusCompleted:
		msg = "qc record is already approved"
	case StatusRejected:
		msg = "qc record is already rejected"
	}
	return apperror.NewBusinessRule(apperror.CodeNotSubmitted, msg).
		WithDetail("status", string(r.Status))
}

// Approve completes the record and fixes its overall result.
func (r *Record) Approve(remarks, actor string, now time.Time) error {
	if err := r.requireSubmitted(); err != nil {
		return err
	}
	r.Status = StatusCompleted
	r.OverallResult = DeriveOverallResult(r.Products)
	r.ApprovedBy = actor
	r.ApprovalDate = &now
	r.ApprovalRemarks = remarks
	return nil
}

// Reject returns the record with a mandatory reason.
func (r *Record) Reject(reason, actor string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return apperror.NewFieldError("reason", "is required")
	}
	if err := r.requireSubmitted(); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.RejectedBy = actor
	r.RejectionDate = &now
	r.RejectionReason = reason
	return nil
}

// Reopen moves a rejected record back to in_progress for re-inspection.
func (r *Record) Reopen() error {
	if r.Status != StatusRejected {
		return apperror.NewInvalidTransition("qc record", string(r.Status), string(StatusInProgress))
	}
	r.Status = StatusInProgress
	r.QCBy = ""
	r.QCDate = nil
	return nil
}

// Assign sets the inspector and optionally the priority.
func (r *Record) Assign(assignee string, priority *Priority) error {
	if r.Status.IsTerminal() {
		return r.closed("assign")
	}
	if strings.TrimSpace(assignee) == "" {
		return apperror.NewFieldError("assignedTo", "is required")
	}
	if priority != nil {
		if !slices.Contains(Priorities, *priority) {
			return apperror.NewFieldError("priority", "must be one of low, medium, high, urgent")
		}
		r.Priority = *priority
	}
	r.AssignedTo = assignee
	return nil
}

// PassedProducts returns products with at least one passed item.
func (r *Record) PassedProducts() []Product {
	out := make([]Product, 0, len(r.Products))
	for _, p := range r.Products {
		if p.PassedQty > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Products = make([]Product, len(r.Products))
	for i, p := range r.Products {
		p.ItemDetails = slices.Clone(p.ItemDetails)
		for j := range p.ItemDetails {
			p.ItemDetails[j].QCReasons = slices.Clone(p.ItemDetails[j].QCReasons)
		}
		c.Products[i] = p
	}
	return &c
}
