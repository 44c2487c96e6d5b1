package dto

import (
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
)

// CreateProductRequest is the body of POST /catalog/products.
type CreateProductRequest struct {
	Code              string `json:"code" binding:"required"`
	Name              string `json:"name" binding:"required"`
	Unit              string `json:"unit"`
	MinStockLevel     int64  `json:"minStockLevel" binding:"min=0"`
	RequiresColdChain bool   `json:"requiresColdChain"`
}

func (r CreateProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Unit)
	p.MinStockLevel = r.MinStockLevel
	p.RequiresColdChain = r.RequiresColdChain
	return p
}

// CreateWarehouseRequest is the body of POST /catalog/warehouses.
type CreateWarehouseRequest struct {
	Code    string `json:"code" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Type    string `json:"type" binding:"required,oneof=main distribution cold_chain quarantine"`
	Address string `json:"address"`
}

func (r CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	w := warehouse.NewWarehouse(r.Code, r.Name, warehouse.WarehouseType(r.Type))
	w.Address = r.Address
	return w
}
