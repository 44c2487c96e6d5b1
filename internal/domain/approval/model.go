// Package approval provides the warehouse approval record: storage
// placement of QC-passed goods ahead of their entry into inventory.
package approval

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
	"pharmaflow/internal/domain/qc"
)

// Status of a warehouse approval.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status.
var Statuses = []Status{StatusPending, StatusInProgress, StatusSubmitted, StatusApproved, StatusRejected}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses, s)
}

// IsTerminal reports whether the record is closed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ItemStatus tracks placement of one unit.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemStored  ItemStatus = "stored"
)

// Item is one QC-passed unit awaiting a storage location.
type Item struct {
	ItemNumber      int        `json:"itemNumber"`
	Status          ItemStatus `json:"status"`
	StorageLocation string     `json:"storageLocation,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	StoredBy        string     `json:"storedBy,omitempty"`
	StoredAt        *time.Time `json:"storedAt,omitempty"`
}

// Product is a QC-passed batch with its placement.
type Product struct {
	ProductID       id.ID       `json:"productId"`
	ProductCode     string      `json:"productCode"`
	ProductName     string      `json:"productName"`
	BatchNumber     string      `json:"batchNumber"`
	ManufactureDate *time.Time  `json:"manufactureDate,omitempty"`
	ExpiryDate      *time.Time  `json:"expiryDate,omitempty"`
	UnitCost        types.Money `json:"unitCost"`

	ApprovedQty int64 `json:"approvedQty"`
	StoredQty   int64 `json:"storedQty"`

	// StorageLocation is set by a product-level assignment
	StorageLocation string `json:"storageLocation,omitempty"`

	Items []Item `json:"items"`
}

func (p *Product) recount() {
	p.StoredQty = 0
	for _, it := range p.Items {
		if it.Status == ItemStored {
			p.StoredQty++
		}
	}
}

// Location is where the batch goes in inventory: the product-level
// location, else the first stored item's.
func (p Product) Location() string {
	if p.StorageLocation != "" {
		return p.StorageLocation
	}
	for _, it := range p.Items {
		if it.Status == ItemStored && it.StorageLocation != "" {
			return it.StorageLocation
		}
	}
	return ""
}

// Record is a warehouse approval for one completed QC record.
type Record struct {
	entity.BaseDocument

	ApprovalNumber string `db:"approval_number" json:"approvalNumber"`
	QCRecordID     id.ID  `db:"qc_record_id" json:"qcRecordId"`
	QCNumber       string `db:"qc_number" json:"qcNumber"`
	WarehouseID    id.ID  `db:"warehouse_id" json:"warehouseId"`
	Status         Status `db:"status" json:"status"`

	Products []Product `db:"products" json:"products"`

	AssignedTo string `db:"assigned_to" json:"assignedTo,omitempty"`

	SubmittedBy   string     `db:"submitted_by" json:"submittedBy,omitempty"`
	SubmittedDate *time.Time `db:"submitted_date" json:"submittedDate,omitempty"`

	ApprovedBy      string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate    *time.Time `db:"approval_date" json:"approvalDate,omitempty"`
	ApprovalRemarks string     `db:"approval_remarks" json:"approvalRemarks,omitempty"`

	RejectedBy      string     `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectionDate   *time.Time `db:"rejection_date" json:"rejectionDate,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejectionReason,omitempty"`

	InventoryCreated   bool    `db:"inventory_created" json:"inventoryCreated"`
	InventoryRecordIDs []id.ID `db:"inventory_record_ids" json:"inventoryRecordIds"`

	Remarks string `db:"remarks" json:"remarks,omitempty"`
}

// NewFromQC builds a pending approval from the passed items of a
// completed QC record.
func NewFromQC(src *qc.Record, warehouseID id.ID, now time.Time) (*Record, error) {
	if src.Status != qc.StatusCompleted ||
		(src.OverallResult != qc.ResultPassed && src.OverallResult != qc.ResultPartialPass) {
		return nil, apperror.NewBusinessRule(apperror.CodeQCNotApproved,
			fmt.Sprintf("qc record %s is not approved with a passing result", src.QCNumber)).
			WithDetail("status", string(src.Status)).
			WithDetail("overallResult", string(src.OverallResult))
	}

	passed := src.PassedProducts()
	products := make([]Product, 0, len(passed))
	for _, p := range passed {
		items := make([]Item, 0, p.PassedQty)
		for _, it := range p.ItemDetails {
			if it.Status == qc.ItemPassed {
				items = append(items, Item{ItemNumber: it.ItemNumber, Status: ItemPending})
			}
		}
		products = append(products, Product{
			ProductID:       p.ProductID,
			ProductCode:     p.ProductCode,
			ProductName:     p.ProductName,
			BatchNumber:     p.BatchNumber,
			ManufactureDate: p.ManufactureDate,
			ExpiryDate:      p.ExpiryDate,
			UnitCost:        p.UnitCost,
			ApprovedQty:     p.PassedQty,
			Items:           items,
		})
	}

	return &Record{
		BaseDocument:       entity.NewBaseDocument(now),
		QCRecordID:         src.ID,
		QCNumber:           src.QCNumber,
		WarehouseID:        warehouseID,
		Status:             StatusPending,
		Products:           products,
		InventoryRecordIDs: []id.ID{},
	}, nil
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if id.IsNil(r.QCRecordID) {
		return apperror.NewFieldError("qcRecordId", "is required")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewFieldError("warehouseId", "is required")
	}
	if !r.Status.IsValid() {
		return apperror.NewFieldError("status", "is not a valid status")
	}
	if len(r.Products) == 0 {
		return apperror.NewFieldError("products", "must contain at least one product")
	}
	return nil
}

func (r *Record) closed(op string) error {
	return apperror.NewBusinessRule(apperror.CodeRecordClosed,
		fmt.Sprintf("cannot %s: warehouse approval is %s", op, r.Status)).
		WithDetail("status", string(r.Status))
}

// StorageInput assigns a location to every pending item of a product, or
// to one item when ItemNumber is set.
type StorageInput struct {
	ProductIndex    int
	ItemNumber      *int
	StorageLocation string
	Remarks         string
}

// AssignStorage places items and moves a pending record to in_progress.
func (r *Record) AssignStorage(in StorageInput, actor string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusInProgress {
		return r.closed("assign storage")
	}
	location := strings.TrimSpace(in.StorageLocation)
	if location == "" {
		return apperror.NewFieldError("storageLocation", "is required")
	}
	if in.ProductIndex < 0 || in.ProductIndex >= len(r.Products) {
		return apperror.NewFieldError("productIndex", "is out of range")
	}

	p := &r.Products[in.ProductIndex]
	store := func(it *Item) {
		it.Status = ItemStored
		it.StorageLocation = location
		it.Remarks = in.Remarks
		it.StoredBy = actor
		it.StoredAt = &now
	}

	if in.ItemNumber != nil {
		idx := slices.IndexFunc(p.Items, func(it Item) bool { return it.ItemNumber == *in.ItemNumber })
		if idx < 0 {
			return apperror.NewFieldError("itemNumber", "does not exist on this product")
		}
		store(&p.Items[idx])
	} else {
		p.StorageLocation = location
		for i := range p.Items {
			if p.Items[i].Status == ItemPending {
				store(&p.Items[i])
			}
		}
	}

	p.recount()
	if r.Status == StatusPending {
		r.Status = StatusInProgress
	}
	return nil
}

// Submit sends a fully placed record for approval.
func (r *Record) Submit(actor string, now time.Time) error {
	switch r.Status {
	case StatusSubmitted:
		return apperror.NewBusinessRule(apperror.CodeAlreadySubmitted, "warehouse approval is already submitted")
	case StatusApproved, StatusRejected:
		return apperror.NewInvalidTransition("warehouse approval", string(r.Status), string(StatusSubmitted))
	}

	var missing []string
	for i, p := range r.Products {
		for _, it := range p.Items {
			if it.Status != ItemStored || it.StorageLocation == "" {
				missing = append(missing, fmt.Sprintf("products[%d]", i))
				break
			}
		}
	}
	if len(missing) > 0 {
		return apperror.NewBusinessRule(apperror.CodeIncompleteStorageInfo,
			"every item needs a storage location before submission").
			WithDetail("products", missing)
	}

	r.Status = StatusSubmitted
	r.SubmittedBy = actor
	r.SubmittedDate = &now
	return nil
}

func (r *Record) requireSubmitted() error {
	if r.Status == StatusSubmitted {
		return nil
	}
	msg := "warehouse approval has not been submitted"
	switch r.Status {
	case StatusApproved:
		msg = "warehouse approval is already approved"
	case StatusRejected:
		msg = "warehouse approval is already rejected"
	}
	return apperror.NewBusinessRule(apperror.CodeNotSubmitted, msg).
		WithDetail("status", string(r.Status))
}

// Approve closes the record. Inventory ids are attached afterwards
// with MarkInventoryCreated, in the same transaction.
func (r *Record) Approve(remarks, actor string, now time.Time) error {
	if err := r.requireSubmitted(); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.ApprovedBy = actor
	r.ApprovalDate = &now
	r.ApprovalRemarks = remarks
	return nil
}

// MarkInventoryCreated records the inventory produced by approval.
func (r *Record) MarkInventoryCreated(recordIDs []id.ID) {
	r.InventoryCreated = true
	r.InventoryRecordIDs = recordIDs
}

// Reject closes the record with a mandatory reason.
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

// Assign sets the storekeeper responsible for placement.
func (r *Record) Assign(assignee string) error {
	if r.Status.IsTerminal() {
		return r.closed("assign")
	}
	if strings.TrimSpace(assignee) == "" {
		return apperror.NewFieldError("assignedTo", "is required")
	}
	r.AssignedTo = assignee
	return nil
}

// StockLines returns the products that carry stored units.
func (r *Record) StockLines() []Product {
	out := make([]Product, 0, len(r.Products))
	for _, p := range r.Products {
		if p.StoredQty > 0 {
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
		p.Items = slices.Clone(p.Items)
		c.Products[i] = p
	}
	c.InventoryRecordIDs = slices.Clone(r.InventoryRecordIDs)
	return &c
}
