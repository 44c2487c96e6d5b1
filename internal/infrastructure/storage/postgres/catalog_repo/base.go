// Package catalog_repo provides PostgreSQL repositories for master data.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/entity"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

var catalogSort = postgres.SortColumns{
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

// BaseCatalogRepo implements domain.CatalogRepository for a table whose
// columns are the db tags of T.
type BaseCatalogRepo[T entity.Validatable] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a base catalog repository.
func NewBaseCatalogRepo[T entity.Validatable](txManager *postgres.TxManager, tableName, entityName string, selectCols []string, newFn func() T) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

func (r *BaseCatalogRepo[T]) db(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts e.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, e T) error {
	data := postgres.StructToMap(e)
	values := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if v, ok := data[col]; ok {
			values[col] = v
		}
	}

	sql, args, err := postgres.Builder().Insert(r.tableName).SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName, data["id"])
	}
	return nil
}

func (r *BaseCatalogRepo[T]) getBy(ctx context.Context, where squirrel.Eq, key any) (T, error) {
	e := r.newFn()
	sql, args, err := postgres.Builder().Select(r.selectCols...).From(r.tableName).Where(where).Limit(1).ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.db(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(r.entityName, key)
		}
		return e, fmt.Errorf("get %s: %w", r.entityName, err)
	}
	return e, nil
}

// GetByID loads one entity.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getBy(ctx, squirrel.Eq{"id": entityID}, entityID)
}

// GetByCode loads one entity by its unique code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	return r.getBy(ctx, squirrel.Eq{"code": code}, code)
}

// List pages through the table, searching code and name.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	q := postgres.Builder().Select(r.selectCols...).From(r.tableName)
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "code", "name"))
	}
	return postgres.SelectPage[T](ctx, r.db(ctx), q, f, catalogSort, "code")
}
