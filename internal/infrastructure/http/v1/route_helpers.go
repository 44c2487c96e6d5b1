package v1

import (
	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/security"
	"pharmaflow/internal/infrastructure/http/v1/middleware"
)

// RecordRouteHandler is the CRUD surface shared by QC records, warehouse
// approvals and inventory records. Records are never deleted.
type RecordRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Statistics(c *gin.Context)
}

// RegisterRecordRoutes registers list/get/create/update/statistics.
// Reads are authorized here; writes are authorized by the services.
//
// Static segments are registered before /:id, e.g.
//
//	RegisterRecordRoutes(api.Group("/qc"), qcHandler, authz, security.ResourceQC)
//	// GET /qc/statistics, GET /qc/:id, ...
func RegisterRecordRoutes(group *gin.RouterGroup, handler RecordRouteHandler, authz security.Authorizer, resource security.Resource) {
	read := middleware.Authorize(authz, resource, security.ActionRead)

	group.GET("", read, handler.List)
	group.GET("/statistics", read, handler.Statistics)
	group.GET("/:id", read, handler.Get)
	group.POST("", handler.Create)
	group.PUT("/:id", handler.Update)
}

// CatalogRouteHandler is the read/create surface of master data.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
}

// RegisterCatalogRoutes registers list/get/create for a catalog.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler, authz security.Authorizer) {
	read := middleware.Authorize(authz, security.ResourceCatalog, security.ActionRead)

	group.GET("", read, handler.List)
	group.GET("/:id", read, handler.Get)
	group.POST("", handler.Create)
}
