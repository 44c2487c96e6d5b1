// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/idempotency"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/http/v1/dto"
	"pharmaflow/internal/infrastructure/http/v1/handlers"
	"pharmaflow/internal/infrastructure/http/v1/middleware"
	"pharmaflow/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator verifies bearer tokens
	JWTValidator middleware.JWTValidator
	Authorizer   security.Authorizer

	// Idempotency enables X-Idempotency-Key replay when set
	Idempotency idempotency.Store

	// Health pings storage for /health/ready
	Health        handlers.Pinger
	StorageDriver string

	QC         *qc.Service
	Approvals  *approval.Service
	Inventory  *inventory.Service
	Products   *domain.CatalogService[*product.Product]
	Warehouses *domain.CatalogService[*warehouse.Warehouse]

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Order matters: errors are rendered inside the access log and trace scope.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Health, cfg.StorageDriver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerQCRoutes(api, base, cfg)
	registerApprovalRoutes(api, base, cfg)
	registerInventoryRoutes(api, base, cfg)
	registerCatalogRoutes(api, base, cfg)

	return router
}

func registerQCRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewQCHandler(base, cfg.QC)
	group := rg.Group("/qc")

	RegisterRecordRoutes(group, h, cfg.Authorizer, security.ResourceQC)
	group.POST("/bulk-assign", h.BulkAssign)
	group.POST("/:id/items", h.RecordItem)
	group.POST("/:id/submit", h.Submit)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/reject", h.Reject)
	group.POST("/:id/reopen", h.Reopen)
}

func registerApprovalRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewApprovalHandler(base, cfg.Approvals)
	group := rg.Group("/warehouse-approvals")

	RegisterRecordRoutes(group, h, cfg.Authorizer, security.ResourceWarehouseApproval)
	group.POST("/bulk-assign", h.BulkAssign)
	group.POST("/bulk-update", h.BulkUpdate)
	group.POST("/:id/storage", h.AssignStorage)
	group.POST("/:id/submit", h.Submit)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/reject", h.Reject)
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewInventoryHandler(base, cfg.Inventory, cfg.Warehouses)
	group := rg.Group("/inventory")
	read := middleware.Authorize(cfg.Authorizer, security.ResourceInventory, security.ActionRead)

	RegisterRecordRoutes(group, h, cfg.Authorizer, security.ResourceInventory)
	group.GET("/alerts", read, h.Alerts)
	group.GET("/valuation", read, h.Valuation)
	group.POST("/bulk-update", h.BulkUpdate)
	group.POST("/:id/adjust", h.Adjust)
	group.POST("/:id/reserve", h.Reserve)
	group.POST("/:id/release", h.Release)
	group.POST("/:id/transfer", h.Transfer)
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")

	RegisterCatalogRoutes(catalogs.Group("/products"),
		handlers.NewCatalogHandler[*product.Product, dto.CreateProductRequest](base, cfg.Products), cfg.Authorizer)
	RegisterCatalogRoutes(catalogs.Group("/warehouses"),
		handlers.NewCatalogHandler[*warehouse.Warehouse, dto.CreateWarehouseRequest](base, cfg.Warehouses), cfg.Authorizer)
}
