package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/infrastructure/http/v1/dto"
)

// ApprovalHandler serves /warehouse-approvals.
type ApprovalHandler struct {
	*BaseHandler
	service *approval.Service
}

// NewApprovalHandler creates a new warehouse approval handler.
func NewApprovalHandler(base *BaseHandler, service *approval.Service) *ApprovalHandler {
	return &ApprovalHandler{BaseHandler: base, service: service}
}

// List handles GET /warehouse-approvals.
func (h *ApprovalHandler) List(c *gin.Context) {
	var q dto.ApprovalListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.List(c.Request.Context(), q.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, res)
}

// Get handles GET /warehouse-approvals/:id.
func (h *ApprovalHandler) Get(c *gin.Context) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	rec, err := h.service.Get(c.Request.Context(), recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, rec)
}

// Statistics handles GET /warehouse-approvals/statistics.
func (h *ApprovalHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, stats)
}

// Create handles POST /warehouse-approvals.
func (h *ApprovalHandler) Create(c *gin.Context) {
	var req dto.CreateApprovalRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rec)
}

// Update handles PUT /warehouse-approvals/:id.
func (h *ApprovalHandler) Update(c *gin.Context) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req approval.UpdateInput
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.service.Update(c.Request.Context(), recordID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, rec)
}

// AssignStorage handles POST /warehouse-approvals/:id/storage.
func (h *ApprovalHandler) AssignStorage(c *gin.Context) {
	var req dto.StorageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, recordID id.ID) (*approval.Record, error) {
		return h.service.AssignStorage(ctx, recordID, req.ToInput())
	})
}

// Submit handles POST /warehouse-approvals/:id/submit.
func (h *ApprovalHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /warehouse-approvals/:id/approve. On success the
// record carries inventoryCreated and the created inventory ids.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req dto.RemarksRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, recordID id.ID) (*approval.Record, error) {
		return h.service.Approve(ctx, recordID, req.Remarks)
	})
}

// Reject handles POST /warehouse-approvals/:id/reject.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, recordID id.ID) (*approval.Record, error) {
		return h.service.Reject(ctx, recordID, req.Reason)
	})
}

// BulkAssign handles POST /warehouse-approvals/bulk-assign.
func (h *ApprovalHandler) BulkAssign(c *gin.Context) {
	var req dto.ApprovalBulkAssignRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.BulkAssign(c.Request.Context(), req.IDs, approval.AssignInput{AssignedTo: req.AssignedTo})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Bulk(c, res)
}

// BulkUpdate handles POST /warehouse-approvals/bulk-update.
func (h *ApprovalHandler) BulkUpdate(c *gin.Context) {
	var req dto.ApprovalBulkUpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.BulkUpdate(c.Request.Context(), req.IDs, req.Updates)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Bulk(c, res)
}

func (h *ApprovalHandler) transition(c *gin.Context, step func(ctx context.Context, recordID id.ID) (*approval.Record, error)) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	rec, err := step(c.Request.Context(), recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, rec)
}
