package approval

import (
	"fmt"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
)

// UpdateInput is a partial header update. The QC reference and the target
// warehouse are fixed at creation.
type UpdateInput struct {
	QCRecordID  *id.ID  `json:"qcRecordId,omitempty"`
	WarehouseID *id.ID  `json:"warehouseId,omitempty"`
	Status      *Status `json:"status,omitempty"`
	AssignedTo  *string `json:"assignedTo,omitempty"`
	Remarks     *string `json:"remarks,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateInput) IsEmpty() bool {
	return u.QCRecordID == nil && u.WarehouseID == nil && u.Status == nil &&
		u.AssignedTo == nil && u.Remarks == nil
}

func immutable(field string) error {
	return apperror.NewBusinessRule(apperror.CodeImmutableField,
		fmt.Sprintf("%s cannot be changed after creation", field)).
		WithField(field, "is immutable")
}

// ApplyUpdate applies u. Status edits are limited to pending -> in_progress.
func (r *Record) ApplyUpdate(u UpdateInput) error {
	if u.QCRecordID != nil && *u.QCRecordID != r.QCRecordID {
		return immutable("qcRecordId")
	}
	if u.WarehouseID != nil && *u.WarehouseID != r.WarehouseID {
		return immutable("warehouseId")
	}
	if u.Status != nil && *u.Status != r.Status {
		if !u.Status.IsValid() {
			return apperror.NewFieldError("status", "is not a valid status")
		}
		if !(r.Status == StatusPending && *u.Status == StatusInProgress) {
			return apperror.NewInvalidTransition("warehouse approval", string(r.Status), string(*u.Status))
		}
	}
	if r.Status.IsTerminal() && u.AssignedTo != nil {
		return r.closed("update")
	}

	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.AssignedTo != nil {
		r.AssignedTo = *u.AssignedTo
	}
	if u.Remarks != nil {
		r.Remarks = *u.Remarks
	}
	return nil
}
