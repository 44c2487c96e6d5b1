package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/infrastructure/export"
	"pharmaflow/internal/infrastructure/http/v1/dto"
	"pharmaflow/pkg/logger"
)

// WarehouseLookup resolves warehouse labels for exports.
type WarehouseLookup interface {
	GetByID(ctx context.Context, warehouseID id.ID) (*warehouse.Warehouse, error)
}

// InventoryHandler serves /inventory.
type InventoryHandler struct {
	*BaseHandler
	service    *inventory.Service
	warehouses WarehouseLookup
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service, warehouses WarehouseLookup) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, service: service, warehouses: warehouses}
}

// List handles GET /inventory.
func (h *InventoryHandler) List(c *gin.Context) {
	var q dto.InventoryListQuery
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

// Get handles GET /inventory/:id, including adjustment and reservation history.
func (h *InventoryHandler) Get(c *gin.Context) {
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

// Create handles POST /inventory.
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryRequest
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

// Update handles PUT /inventory/:id.
func (h *InventoryHandler) Update(c *gin.Context) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req inventory.UpdateInput
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

// Adjust handles POST /inventory/:id/adjust.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(ctx context.Context, recordID id.ID) (any, error) {
		return h.service.Adjust(ctx, recordID, req.ToInput())
	})
}

// Reserve handles POST /inventory/:id/reserve.
func (h *InventoryHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(ctx context.Context, recordID id.ID) (any, error) {
		return h.service.Reserve(ctx, recordID, req.ToInput())
	})
}

// Release handles POST /inventory/:id/release.
func (h *InventoryHandler) Release(c *gin.Context) {
	var req dto.ReleaseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(ctx context.Context, recordID id.ID) (any, error) {
		return h.service.Release(ctx, recordID, req.ToInput())
	})
}

// Transfer handles POST /inventory/:id/transfer.
func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.mutate(c, func(ctx context.Context, recordID id.ID) (any, error) {
		return h.service.Transfer(ctx, recordID, req.ToInput())
	})
}

// BulkUpdate handles POST /inventory/bulk-update.
func (h *InventoryHandler) BulkUpdate(c *gin.Context) {
	var req dto.InventoryBulkUpdateRequest
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

// Statistics handles GET /inventory/statistics.
func (h *InventoryHandler) Statistics(c *gin.Context) {
	var q dto.WarehouseQuery
	if !h.BindQuery(c, &q) {
		return
	}
	stats, err := h.service.Statistics(c.Request.Context(), q.ID())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, stats)
}

// Alerts handles GET /inventory/alerts.
func (h *InventoryHandler) Alerts(c *gin.Context) {
	var q dto.WarehouseQuery
	if !h.BindQuery(c, &q) {
		return
	}
	alerts, err := h.service.Alerts(c.Request.Context(), q.ID())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, gin.H{"alerts": alerts, "count": len(alerts)})
}

// Valuation handles GET /inventory/valuation?format=json|xlsx.
func (h *InventoryHandler) Valuation(c *gin.Context) {
	var q dto.ValuationQuery
	if !h.BindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()
	v, err := h.service.Valuation(ctx, q.ID())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if q.Format != "xlsx" {
		h.OK(c, v)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteValuationXLSX(&buf, v, h.warehouseLabel(ctx)); err != nil {
		h.HandleError(c, fmt.Errorf("export valuation: %w", err))
		return
	}
	filename := fmt.Sprintf("inventory-valuation-%s.xlsx", v.GeneratedAt.Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

func (h *InventoryHandler) warehouseLabel(ctx context.Context) export.WarehouseNames {
	return func(wv inventory.WarehouseValuation) string {
		if h.warehouses == nil {
			return wv.WarehouseID.String()
		}
		wh, err := h.warehouses.GetByID(ctx, wv.WarehouseID)
		if err != nil {
			logger.Warn(ctx, "warehouse lookup failed", "warehouse_id", wv.WarehouseID, "error", err)
			return wv.WarehouseID.String()
		}
		return wh.Code
	}
}

func (h *InventoryHandler) mutate(c *gin.Context, op func(ctx context.Context, recordID id.ID) (any, error)) {
	recordID, ok := h.ParseID(c)
	if !ok {
		return
	}
	out, err := op(c.Request.Context(), recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, out)
}
