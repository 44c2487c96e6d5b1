package qc

import (
	"slices"

	"pharmaflow/internal/core/apperror"
)

// UpdateInput is a partial update of header fields. Inspection results,
// submission and approval have their own operations.
type UpdateInput struct {
	Status           *Status   `json:"status,omitempty"`
	Priority         *Priority `json:"priority,omitempty"`
	AssignedTo       *string   `json:"assignedTo,omitempty"`
	ReceivingRef     *string   `json:"receivingRef,omitempty"`
	PurchaseOrderRef *string   `json:"purchaseOrderRef,omitempty"`
	SupplierName     *string   `json:"supplierName,omitempty"`
	Remarks          *string   `json:"remarks,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateInput) IsEmpty() bool {
	return u.Status == nil && u.Priority == nil && u.AssignedTo == nil &&
		u.ReceivingRef == nil && u.PurchaseOrderRef == nil && u.SupplierName == nil &&
		u.Remarks == nil
}

// ApplyUpdate applies u. The only status edit allowed here is
// pending -> in_progress; everything else goes through the workflow.
// Closed records accept remarks only.
func (r *Record) ApplyUpdate(u UpdateInput) error {
	if u.Status != nil && *u.Status != r.Status {
		if !u.Status.IsValid() {
			return apperror.NewFieldError("status", "is not a valid status")
		}
		if !(r.Status == StatusPending && *u.Status == StatusInProgress) {
			return apperror.NewInvalidTransition("qc record", string(r.Status), string(*u.Status))
		}
	}

	if r.Status.IsTerminal() && (u.Priority != nil || u.AssignedTo != nil || u.ReceivingRef != nil ||
		u.PurchaseOrderRef != nil || u.SupplierName != nil) {
		return r.closed("update")
	}

	if u.Priority != nil {
		if !slices.Contains(Priorities, *u.Priority) {
			return apperror.NewFieldError("priority", "must be one of low, medium, high, urgent")
		}
		r.Priority = *u.Priority
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.AssignedTo != nil {
		r.AssignedTo = *u.AssignedTo
	}
	if u.ReceivingRef != nil {
		r.ReceivingRef = *u.ReceivingRef
	}
	if u.PurchaseOrderRef != nil {
		r.PurchaseOrderRef = *u.PurchaseOrderRef
	}
	if u.SupplierName != nil {
		r.SupplierName = *u.SupplierName
	}
	if u.Remarks != nil {
		r.Remarks = *u.Remarks
	}
	return nil
}
