// Package inventory provides the inventory ledger: on-hand, reserved and
// available quantities per product, warehouse and batch.
package inventory

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

// Status of an inventory record. Records are never deleted; they expire.
type Status string

const (
	StatusActive     Status = "active"
	StatusQuarantine Status = "quarantine"
	StatusExpired    Status = "expired"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusQuarantine, StatusExpired:
		return true
	}
	return false
}

// AdjustmentReason is the closed set of reasons a quantity may change.
type AdjustmentReason string

const (
	ReasonStockCount AdjustmentReason = "stock_count"
	ReasonDamage     AdjustmentReason = "damage"
	ReasonExpiry     AdjustmentReason = "expiry"
	ReasonLoss       AdjustmentReason = "loss"
	ReasonReturn     AdjustmentReason = "return"
	ReasonCorrection AdjustmentReason = "correction"

	// Written by the ledger itself, not accepted from callers.
	ReasonReceipt     AdjustmentReason = "receipt"
	ReasonTransferOut AdjustmentReason = "transfer_out"
	ReasonTransferIn  AdjustmentReason = "transfer_in"
)

// ManualReasons lists the reasons accepted by Adjust.
var ManualReasons = []AdjustmentReason{
	ReasonStockCount, ReasonDamage, ReasonExpiry, ReasonLoss, ReasonReturn, ReasonCorrection,
}

// IsManual reports whether r may be supplied by a caller.
func (r AdjustmentReason) IsManual() bool {
	return slices.Contains(ManualReasons, r)
}

// Adjustment is one entry of the append-only quantity history.
type Adjustment struct {
	ID             id.ID            `db:"id" json:"id"`
	RecordID       id.ID            `db:"record_id" json:"recordId"`
	Delta          int64            `db:"delta" json:"delta"`
	Reason         AdjustmentReason `db:"reason" json:"reason"`
	QuantityBefore int64            `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  int64            `db:"quantity_after" json:"quantityAfter"`
	Notes          string           `db:"notes" json:"notes,omitempty"`
	Actor          string           `db:"actor" json:"actor"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
}

// ReservationType distinguishes reserve and release entries.
type ReservationType string

const (
	ReservationReserve ReservationType = "reserve"
	ReservationRelease ReservationType = "release"
)

// ReservationEntry is one entry of the append-only reservation log.
type ReservationEntry struct {
	ID          id.ID           `db:"id" json:"id"`
	RecordID    id.ID           `db:"record_id" json:"recordId"`
	Type        ReservationType `db:"type" json:"type"`
	Quantity    int64           `db:"quantity" json:"quantity"`
	Reason      string          `db:"reason" json:"reason"`
	ReservedFor string          `db:"reserved_for" json:"reservedFor,omitempty"`

	// ReservationID points a release at the reserve entry it undoes.
	ReservationID *id.ID    `db:"reservation_id" json:"reservationId,omitempty"`
	Actor         string    `db:"actor" json:"actor"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Record is the stock of one product batch in one warehouse.
type Record struct {
	entity.BaseDocument

	// Identity, immutable after creation
	ProductID   id.ID  `db:"product_id" json:"productId"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	BatchNumber string `db:"batch_number" json:"batchNumber"`

	// Denormalized from the product catalog for listing and alerts
	ProductCode   string `db:"product_code" json:"productCode"`
	ProductName   string `db:"product_name" json:"productName"`
	MinStockLevel int64  `db:"min_stock_level" json:"minStockLevel"`

	// Quantities in whole units. AvailableQuantity = Quantity - ReservedQuantity.
	Quantity          int64 `db:"quantity" json:"quantity"`
	ReservedQuantity  int64 `db:"reserved_quantity" json:"reservedQuantity"`
	AvailableQuantity int64 `db:"available_quantity" json:"availableQuantity"`

	UnitCost        types.Money `db:"unit_cost" json:"unitCost"`
	ManufactureDate *time.Time  `db:"manufacture_date" json:"manufactureDate,omitempty"`
	ExpiryDate      *time.Time  `db:"expiry_date" json:"expiryDate,omitempty"`
	StorageLocation string      `db:"storage_location" json:"storageLocation,omitempty"`
	Status          Status      `db:"status" json:"status"`

	// SourceApprovalID is the warehouse approval that first materialized this stock.
	SourceApprovalID *id.ID `db:"source_approval_id" json:"sourceApprovalId,omitempty"`
	Notes            string `db:"notes" json:"notes,omitempty"`

	Adjustments  []Adjustment       `db:"-" json:"adjustments"`
	Reservations []ReservationEntry `db:"-" json:"reservations"`
}

// NewRecord creates an active record with nothing reserved.
func NewRecord(productID, warehouseID id.ID, batchNumber string, quantity int64, unitCost types.Money, now time.Time) *Record {
	r := &Record{
		BaseDocument: entity.NewBaseDocument(now),
		ProductID:    productID,
		WarehouseID:  warehouseID,
		BatchNumber:  strings.TrimSpace(batchNumber),
		Quantity:     quantity,
		UnitCost:     unitCost,
		Status:       StatusActive,
		Adjustments:  []Adjustment{},
		Reservations: []ReservationEntry{},
	}
	r.recompute()
	return r
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if id.IsNil(r.ProductID) {
		return apperror.NewFieldError("productId", "is required")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewFieldError("warehouseId", "is required")
	}
	if r.BatchNumber == "" {
		return apperror.NewFieldError("batchNumber", "is required")
	}
	if r.Quantity < 0 {
		return apperror.NewBusinessRule(apperror.CodeNegativeQuantity, "quantity must not be negative").
			WithField("quantity", "must not be negative")
	}
	if r.UnitCost.IsNegative() {
		return apperror.NewFieldError("unitCost", "must not be negative")
	}
	if !r.Status.IsValid() {
		return apperror.NewFieldError("status", "must be one of active, quarantine, expired")
	}
	if r.ManufactureDate != nil && r.ExpiryDate != nil && r.ExpiryDate.Before(*r.ManufactureDate) {
		return apperror.NewFieldError("expiryDate", "must not be before manufactureDate")
	}
	return r.CheckInvariant()
}

// CheckInvariant verifies 0 <= reserved <= quantity and available = quantity - reserved.
func (r *Record) CheckInvariant() error {
	if r.ReservedQuantity < 0 || r.ReservedQuantity > r.Quantity || r.AvailableQuantity != r.Quantity-r.ReservedQuantity {
		return apperror.NewInternal(fmt.Errorf(
			"inventory %s quantity invariant broken: quantity=%d reserved=%d available=%d",
			r.ID, r.Quantity, r.ReservedQuantity, r.AvailableQuantity))
	}
	return nil
}

func (r *Record) recompute() {
	r.AvailableQuantity = r.Quantity - r.ReservedQuantity
}

// Value is quantity times unit cost.
func (r *Record) Value() types.Money {
	return types.LineValue(r.UnitCost, r.Quantity)
}

// IsExpiredAt reports whether the expiry date has passed at now.
func (r *Record) IsExpiredAt(now time.Time) bool {
	return r.ExpiryDate != nil && !r.ExpiryDate.After(now)
}

// Adjust changes the on-hand quantity by delta for a manual reason.
func (r *Record) Adjust(delta int64, reason AdjustmentReason, notes, actor string, now time.Time) (Adjustment, error) {
	if !reason.IsManual() {
		return Adjustment{}, apperror.NewFieldError("reason",
			"must be one of stock_count, damage, expiry, loss, return, correction")
	}
	if delta == 0 {
		return Adjustment{}, apperror.NewFieldError("quantity", "must not be zero")
	}
	return r.applyDelta(delta, reason, notes, actor, now)
}

func (r *Record) applyDelta(delta int64, reason AdjustmentReason, notes, actor string, now time.Time) (Adjustment, error) {
	next := r.Quantity + delta
	if next < 0 {
		return Adjustment{}, apperror.NewBusinessRule(apperror.CodeNegativeQuantity,
			fmt.Sprintf("adjustment would make quantity negative: current %d, delta %d", r.Quantity, delta)).
			WithDetail("quantity", r.Quantity).
			WithDetail("delta", delta)
	}
	if next < r.ReservedQuantity {
		return Adjustment{}, apperror.NewBusinessRule(apperror.CodeBelowReserved,
			fmt.Sprintf("quantity %d would fall below reserved quantity %d", next, r.ReservedQuantity)).
			WithDetail("reserved", r.ReservedQuantity)
	}

	adj := Adjustment{
		ID:             id.New(),
		RecordID:       r.ID,
		Delta:          delta,
		Reason:         reason,
		QuantityBefore: r.Quantity,
		QuantityAfter:  next,
		Notes:          notes,
		Actor:          actor,
		CreatedAt:      now,
	}
	r.Quantity = next
	r.recompute()
	r.Adjustments = append(r.Adjustments, adj)
	return adj, nil
}

func (r *Record) requireActive() error {
	if r.Status != StatusActive {
		return apperror.NewBusinessRule(apperror.CodeInventoryNotActive,
			fmt.Sprintf("inventory record is %s", r.Status)).
			WithDetail("status", string(r.Status))
	}
	return nil
}

// Reserve earmarks qty of the available stock.
func (r *Record) Reserve(qty int64, reason, reservedFor, actor string, now time.Time) (ReservationEntry, error) {
	if qty <= 0 {
		return ReservationEntry{}, apperror.NewFieldError("quantity", "must be positive")
	}
	if err := r.requireActive(); err != nil {
		return ReservationEntry{}, err
	}
	if qty > r.AvailableQuantity {
		return ReservationEntry{}, apperror.NewInsufficientAvailable(qty, r.AvailableQuantity)
	}

	entry := ReservationEntry{
		ID:          id.New(),
		RecordID:    r.ID,
		Type:        ReservationReserve,
		Quantity:    qty,
		Reason:      reason,
		ReservedFor: reservedFor,
		Actor:       actor,
		CreatedAt:   now,
	}
	r.ReservedQuantity += qty
	r.recompute()
	r.Reservations = append(r.Reservations, entry)
	return entry, nil
}

// Release returns qty of the reserved stock to available.
func (r *Record) Release(qty int64, reason string, reservationID *id.ID, actor string, now time.Time) (ReservationEntry, error) {
	if qty <= 0 {
		return ReservationEntry{}, apperror.NewFieldError("quantity", "must be positive")
	}
	if qty > r.ReservedQuantity {
		return ReservationEntry{}, apperror.NewBusinessRule(apperror.CodeExceedsReserved,
			fmt.Sprintf("cannot release %d: only %d reserved", qty, r.ReservedQuantity)).
			WithDetail("requested", qty).
			WithDetail("reserved", r.ReservedQuantity)
	}

	entry := ReservationEntry{
		ID:            id.New(),
		RecordID:      r.ID,
		Type:          ReservationRelease,
		Quantity:      qty,
		Reason:        reason,
		ReservationID: reservationID,
		Actor:         actor,
		CreatedAt:     now,
	}
	r.ReservedQuantity -= qty
	r.recompute()
	r.Reservations = append(r.Reservations, entry)
	return entry, nil
}

// TransferOut removes qty of available stock bound for another warehouse.
func (r *Record) TransferOut(qty int64, notes, actor string, now time.Time) (Adjustment, error) {
	if qty <= 0 {
		return Adjustment{}, apperror.NewFieldError("quantity", "must be positive")
	}
	if err := r.requireActive(); err != nil {
		return Adjustment{}, err
	}
	if qty > r.AvailableQuantity {
		return Adjustment{}, apperror.NewInsufficientAvailable(qty, r.AvailableQuantity)
	}
	return r.applyDelta(-qty, ReasonTransferOut, notes, actor, now)
}

// Receive adds qty of incoming stock (approval receipt or transfer-in).
func (r *Record) Receive(qty int64, reason AdjustmentReason, notes, actor string, now time.Time) (Adjustment, error) {
	if qty <= 0 {
		return Adjustment{}, apperror.NewFieldError("quantity", "must be positive")
	}
	return r.applyDelta(qty, reason, notes, actor, now)
}

// Expire moves the record to expired. Quantities are kept.
func (r *Record) Expire() error {
	return r.transition(StatusExpired)
}

func (r *Record) transition(to Status) error {
	if r.Status == to {
		return nil
	}
	switch {
	case r.Status == StatusActive && (to == StatusQuarantine || to == StatusExpired),
		r.Status == StatusQuarantine && (to == StatusActive || to == StatusExpired):
		r.Status = to
		return nil
	}
	return apperror.NewInvalidTransition("inventory record", string(r.Status), string(to))
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.ManufactureDate = cloneTime(r.ManufactureDate)
	c.ExpiryDate = cloneTime(r.ExpiryDate)
	if r.SourceApprovalID != nil {
		v := *r.SourceApprovalID
		c.SourceApprovalID = &v
	}
	c.Adjustments = slices.Clone(r.Adjustments)
	c.Reservations = slices.Clone(r.Reservations)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
