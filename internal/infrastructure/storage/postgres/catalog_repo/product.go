package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a product repository.
func NewProductRepo(txManager *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txManager, productTable, "product",
			postgres.ExtractDBColumns[product.Product](),
			func() *product.Product { return &product.Product{} }),
	}
}

// GetByCodes loads the products whose code is in codes.
func (r *ProductRepo) GetByCodes(ctx context.Context, codes []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	sql, args, err := postgres.Builder().Select(r.selectCols...).From(productTable).
		Where(squirrel.Eq{"code": codes}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var found []*product.Product
	if err := pgxscan.Select(ctx, r.db(ctx), &found, sql, args...); err != nil {
		return nil, fmt.Errorf("get products by code: %w", err)
	}
	for _, p := range found {
		out[p.Code] = p
	}
	return out, nil
}
