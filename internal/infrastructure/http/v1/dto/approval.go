package dto

import (
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/approval"
)

// ApprovalListQuery filters GET /warehouse-approvals.
type ApprovalListQuery struct {
	ListQuery
	Status      string `form:"status"`
	WarehouseID string `form:"warehouseId" binding:"omitempty,uuid"`
	QCRecordID  string `form:"qcRecordId" binding:"omitempty,uuid"`
	AssignedTo  string `form:"assignedTo"`
}

// Filter builds the repository filter. Ids were validated by binding.
func (q ApprovalListQuery) Filter() approval.ListFilter {
	f := approval.ListFilter{ListFilter: q.ListQuery.Filter(), AssignedTo: q.AssignedTo}
	if q.Status != "" {
		s := approval.Status(q.Status)
		f.Status = &s
	}
	f.WarehouseID, _ = id.ParseOptional(q.WarehouseID)
	f.QCRecordID, _ = id.ParseOptional(q.QCRecordID)
	return f
}

// CreateApprovalRequest is the body of POST /warehouse-approvals.
type CreateApprovalRequest struct {
	QCRecordID  string `json:"qcRecordId" binding:"required,uuid"`
	WarehouseID string `json:"warehouseId" binding:"required,uuid"`
	AssignedTo  string `json:"assignedTo"`
	Remarks     string `json:"remarks"`
}

func (r CreateApprovalRequest) ToInput() approval.CreateInput {
	return approval.CreateInput{
		QCRecordID:  id.MustParse(r.QCRecordID),
		WarehouseID: id.MustParse(r.WarehouseID),
		AssignedTo:  r.AssignedTo,
		Remarks:     r.Remarks,
	}
}

// StorageRequest is the body of POST /warehouse-approvals/:id/storage.
// Without itemNumber every pending item of the product is placed.
type StorageRequest struct {
	ProductIndex    *int   `json:"productIndex" binding:"required,min=0"`
	ItemNumber      *int   `json:"itemNumber" binding:"omitempty,min=1"`
	StorageLocation string `json:"storageLocation" binding:"required"`
	Remarks         string `json:"remarks"`
}

func (r StorageRequest) ToInput() approval.StorageInput {
	return approval.StorageInput{
		ProductIndex:    *r.ProductIndex,
		ItemNumber:      r.ItemNumber,
		StorageLocation: r.StorageLocation,
		Remarks:         r.Remarks,
	}
}

// ApprovalBulkAssignRequest is the body of POST /warehouse-approvals/bulk-assign.
type ApprovalBulkAssignRequest struct {
	BulkRequest
	AssignedTo string `json:"assignedTo" binding:"required"`
}

// ApprovalBulkUpdateRequest is the body of POST /warehouse-approvals/bulk-update.
type ApprovalBulkUpdateRequest struct {
	BulkRequest
	Updates approval.UpdateInput `json:"updates"`
}
