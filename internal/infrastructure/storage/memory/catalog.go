package memory

import (
	"cmp"
	"context"
	"fmt"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
)

// ProductRepo implements product.Repository.
type ProductRepo struct{ store *Store }

// Products returns the product catalog.
func (s *Store) Products() *ProductRepo { return &ProductRepo{store: s} }

func (r *ProductRepo) Create(_ context.Context, p *product.Product) error {
	return r.store.write(func(t *tables) error {
		for _, existing := range t.products {
			if existing.Code == p.Code {
				return apperror.NewConflict(fmt.Sprintf("product code %s already exists", p.Code))
			}
		}
		c := *p
		t.products[p.ID] = &c
		return nil
	})
}

func (r *ProductRepo) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	r.store.read(func(t *tables) {
		if p, ok := t.products[productID]; ok {
			c := *p
			out = &c
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("product", productID)
	}
	return out, nil
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	found, _ := r.GetByCodes(ctx, []string{code})
	if p, ok := found[code]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", code)
}

func (r *ProductRepo) GetByCodes(_ context.Context, codes []string) (map[string]*product.Product, error) {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	out := make(map[string]*product.Product, len(codes))
	r.store.read(func(t *tables) {
		for _, p := range t.products {
			if want[p.Code] {
				c := *p
				out[p.Code] = &c
			}
		}
	})
	return out, nil
}

func (r *ProductRepo) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*product.Product], error) {
	var items []*product.Product
	r.store.read(func(t *tables) {
		for _, p := range t.products {
			if matches(f.Search, p.Code, p.Name) {
				c := *p
				items = append(items, &c)
			}
		}
	})
	return paginate(items, f, sortKeys[*product.Product]{
		"code":       func(a, b *product.Product) int { return cmp.Compare(a.Code, b.Code) },
		"name":       func(a, b *product.Product) int { return cmp.Compare(a.Name, b.Name) },
		"created_at": func(a, b *product.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, "code"), nil
}

var _ product.Repository = (*ProductRepo)(nil)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct{ store *Store }

// Warehouses returns the warehouse catalog.
func (s *Store) Warehouses() *WarehouseRepo { return &WarehouseRepo{store: s} }

func (r *WarehouseRepo) Create(_ context.Context, w *warehouse.Warehouse) error {
	return r.store.write(func(t *tables) error {
		for _, existing := range t.warehouses {
			if existing.Code == w.Code {
				return apperror.NewConflict(fmt.Sprintf("warehouse code %s already exists", w.Code))
			}
		}
		c := *w
		t.warehouses[w.ID] = &c
		return nil
	})
}

func (r *WarehouseRepo) GetByID(_ context.Context, warehouseID id.ID) (*warehouse.Warehouse, error) {
	var out *warehouse.Warehouse
	r.store.read(func(t *tables) {
		if w, ok := t.warehouses[warehouseID]; ok {
			c := *w
			out = &c
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("warehouse", warehouseID)
	}
	return out, nil
}

func (r *WarehouseRepo) GetByCode(_ context.Context, code string) (*warehouse.Warehouse, error) {
	var out *warehouse.Warehouse
	r.store.read(func(t *tables) {
		for _, w := range t.warehouses {
			if w.Code == code {
				c := *w
				out = &c
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("warehouse", code)
	}
	return out, nil
}

func (r *WarehouseRepo) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	var items []*warehouse.Warehouse
	r.store.read(func(t *tables) {
		for _, w := range t.warehouses {
			if matches(f.Search, w.Code, w.Name) {
				c := *w
				items = append(items, &c)
			}
		}
	})
	return paginate(items, f, sortKeys[*warehouse.Warehouse]{
		"code":       func(a, b *warehouse.Warehouse) int { return cmp.Compare(a.Code, b.Code) },
		"name":       func(a, b *warehouse.Warehouse) int { return cmp.Compare(a.Name, b.Name) },
		"created_at": func(a, b *warehouse.Warehouse) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}, "code"), nil
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)
