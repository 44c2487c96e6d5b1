package handlers

import (
	"github.com/gin-gonic/gin"

	"pharmaflow/internal/core/entity"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/infrastructure/http/v1/dto"
)

// CatalogRequest is a create body that builds its entity.
type CatalogRequest[T entity.Validatable] interface {
	ToEntity() T
}

// CatalogHandler serves read and create routes of one master-data catalog.
type CatalogHandler[T entity.Validatable, R CatalogRequest[T]] struct {
	*BaseHandler
	service *domain.CatalogService[T]
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler[T entity.Validatable, R CatalogRequest[T]](base *BaseHandler, service *domain.CatalogService[T]) *CatalogHandler[T, R] {
	return &CatalogHandler[T, R]{BaseHandler: base, service: service}
}

// List handles GET /catalog/{kind}.
func (h *CatalogHandler[T, R]) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f := q.Filter()
	if q.Sort == "" {
		f.Sort = "code"
		f.Order = domain.SortAsc
	}
	res, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, res)
}

// Get handles GET /catalog/{kind}/:id.
func (h *CatalogHandler[T, R]) Get(c *gin.Context) {
	entityID, ok := h.ParseID(c)
	if !ok {
		return
	}
	item, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, item)
}

// Create handles POST /catalog/{kind}.
func (h *CatalogHandler[T, R]) Create(c *gin.Context) {
	var req R
	if !h.BindJSON(c, &req) {
		return
	}
	item := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), item); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}
