package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/http/v1/dto"
)

// QCHandler serves /qc.
type QCHandler struct {
	*BaseHandler
	service *qc.Service
}

// NewQCHandler creates a new QC handler.
func NewQCHandler(base *BaseHandler, service *qc.Service) *QCHandler {
	return &QCHandler{BaseHandler: base, service: service}
}

// List handles GET /qc.
func (h *QCHandler) List(c *gin.Context) {
	var q dto.QCListQuery
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

// Get handles GET /qc/:id.
func (h *QCHandler) Get(c *gin.Context) {
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

// Statistics handles GET /qc/statistics.
func (h *QCHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, stats)
}

// Create handles POST /qc.
func (h *QCHandler) Create(c *gin.Context) {
	var req dto.CreateQCRequest
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

// Update handles PUT /qc/:id.
func (h *QCHandler) Update(c *gin.Context) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req qc.UpdateInput
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

// RecordItem handles POST /qc/:id/items.
func (h *QCHandler) RecordItem(c *gin.Context) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ItemResultRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := h.service.RecordItemResult(c.Request.Context(), recordID, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, rec)
}

// Submit handles POST /qc/:id/submit.
func (h *QCHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /qc/:id/approve.
func (h *QCHandler) Approve(c *gin.Context) {
	var req dto.RemarksRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, recordID id.ID) (*qc.Record, error) {
		return h.service.Approve(ctx, recordID, req.Remarks)
	})
}

// Reject handles POST /qc/:id/reject.
func (h *QCHandler) Reject(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, recordID id.ID) (*qc.Record, error) {
		return h.service.Reject(ctx, recordID, req.Reason)
	})
}

// Reopen handles POST /qc/:id/reopen.
func (h *QCHandler) Reopen(c *gin.Context) {
	h.transition(c, h.service.Reopen)
}

// BulkAssign handles POST /qc/bulk-assign.
func (h *QCHandler) BulkAssign(c *gin.Context) {
	var req dto.QCBulkAssignRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.BulkAssign(c.Request.Context(), req.IDs, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Bulk(c, res)
}

func (h *QCHandler) transition(c *gin.Context, step func(ctx context.Context, recordID id.ID) (*qc.Record, error)) {
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
