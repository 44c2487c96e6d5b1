package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

// Seed is the master data loaded by cmd/seed and by a memory-backed server.
type Seed struct {
	Products   []*product.Product
	Warehouses []*warehouse.Warehouse
}

type seedFile struct {
	Products   []yaml.Node `yaml:"products"`
	Warehouses []yaml.Node `yaml:"warehouses"`
}

// LoadSeed reads a YAML file of products and warehouses. Omitted fields
// keep the constructor defaults, so entries are active unless they say
// otherwise.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	seed := &Seed{}
	for i := range f.Products {
		p := product.NewProduct("", "", "")
		if err := f.Products[i].Decode(p); err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		if err := p.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("products[%d]: %w", i, err)
		}
		seed.Products = append(seed.Products, p)
	}
	for i := range f.Warehouses {
		w := warehouse.NewWarehouse("", "", warehouse.TypeMain)
		if err := f.Warehouses[i].Decode(w); err != nil {
			return nil, fmt.Errorf("warehouses[%d]: %w", i, err)
		}
		if err := w.Validate(context.Background()); err != nil {
			return nil, fmt.Errorf("warehouses[%d]: %w", i, err)
		}
		seed.Warehouses = append(seed.Warehouses, w)
	}
	return seed, nil
}

// SeedResult counts inserted and already present entries.
type SeedResult struct {
	Products   int
	Warehouses int
	Skipped    int
}

// Apply inserts entries whose code is not taken yet. Postgres loads them
// with COPY inside one transaction; other drivers go through the repositories.
func (s *Seed) Apply(ctx context.Context, st *Storage) (SeedResult, error) {
	var res SeedResult

	products, skipped, err := missing(ctx, s.Products, st.Products.GetByCode, func(p *product.Product) string { return p.Code })
	if err != nil {
		return res, err
	}
	res.Skipped += skipped
	warehouses, skipped, err := missing(ctx, s.Warehouses, st.Warehouses.GetByCode, func(w *warehouse.Warehouse) string { return w.Code })
	if err != nil {
		return res, err
	}
	res.Skipped += skipped

	err = st.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if st.PgTx != nil {
			inserter := postgres.NewBatchInserter(st.PgTx)
			n, err := postgres.CopyStructs(ctx, inserter, "cat_products", products)
			if err != nil {
				return err
			}
			res.Products = int(n)
			n, err = postgres.CopyStructs(ctx, inserter, "cat_warehouses", warehouses)
			if err != nil {
				return err
			}
			res.Warehouses = int(n)
			return nil
		}

		for _, p := range products {
			if err := st.Products.Create(ctx, p); err != nil {
				return fmt.Errorf("create product %s: %w", p.Code, err)
			}
			res.Products++
		}
		for _, w := range warehouses {
			if err := st.Warehouses.Create(ctx, w); err != nil {
				return fmt.Errorf("create warehouse %s: %w", w.Code, err)
			}
			res.Warehouses++
		}
		return nil
	})
	return res, err
}

func missing[T any](ctx context.Context, items []T, lookup func(context.Context, string) (T, error), code func(T) string) ([]T, int, error) {
	out := make([]T, 0, len(items))
	skipped := 0
	for _, item := range items {
		_, err := lookup(ctx, code(item))
		switch {
		case err == nil:
			skipped++
		case apperror.IsNotFound(err):
			out = append(out, item)
		default:
			return nil, 0, fmt.Errorf("look up %s: %w", code(item), err)
		}
	}
	return out, skipped, nil
}
