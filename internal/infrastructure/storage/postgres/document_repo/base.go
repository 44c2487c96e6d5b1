// Package document_repo provides PostgreSQL repositories for QC records
// and warehouse approvals. Their product and item trees live in JSONB
// columns; the header fields are plain columns for filtering.
package document_repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/entity"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

// document is a versioned record.
type document interface {
	Base() *entity.BaseEntity
}

// BaseDocumentRepo stores documents whose columns are the db tags of T.
type BaseDocumentRepo[T document] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	jsonCols   map[string]bool
	newFn      func() T
}

// NewBaseDocumentRepo creates a base document repository. jsonCols are
// marshalled before writing.
func NewBaseDocumentRepo[T document](txManager *postgres.TxManager, tableName, entityName string, selectCols []string, jsonCols []string, newFn func() T) *BaseDocumentRepo[T] {
	js := make(map[string]bool, len(jsonCols))
	for _, c := range jsonCols {
		js[c] = true
	}
	return &BaseDocumentRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		jsonCols:   js,
		newFn:      newFn,
	}
}

func (r *BaseDocumentRepo[T]) db(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// values returns the column map of doc, skipping cols in skip.
func (r *BaseDocumentRepo[T]) values(doc T, skip ...string) (map[string]any, error) {
	data := postgres.StructToMap(doc)
	out := make(map[string]any, len(r.selectCols))
outer:
	for _, col := range r.selectCols {
		for _, s := range skip {
			if col == s {
				continue outer
			}
		}
		v, ok := data[col]
		if !ok {
			continue
		}
		if r.jsonCols[col] {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal %s.%s: %w", r.tableName, col, err)
			}
			v = raw
		}
		out[col] = v
	}
	return out, nil
}

// Create inserts doc.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, doc T) error {
	values, err := r.values(doc)
	if err != nil {
		return err
	}
	sql, args, err := postgres.Builder().Insert(r.tableName).SetMap(values).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName, doc.Base().ID)
	}
	return nil
}

// Update writes doc if its version is current and bumps the version.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, doc T) error {
	base := doc.Base()
	values, err := r.values(doc, "id", "version", "created_at", "created_by")
	if err != nil {
		return err
	}

	sql, args, err := postgres.Builder().Update(r.tableName).
		SetMap(values).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": base.ID, "version": base.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update %s: %w", r.tableName, err), r.entityName, base.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entityName, base.ID)
	}
	base.Version++
	return nil
}

func (r *BaseDocumentRepo[T]) get(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	doc := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.db(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(r.entityName, key)
		}
		return doc, postgres.MapError(fmt.Errorf("get %s: %w", r.entityName, err), r.entityName, key)
	}
	return doc, nil
}

func (r *BaseDocumentRepo[T]) selectAll() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.selectCols...).From(r.tableName)
}

// GetByID loads one document.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	return r.get(ctx, r.selectAll().Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate loads one document and row-locks it until the transaction ends.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	return r.get(ctx, r.selectAll().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *BaseDocumentRepo[T]) list(ctx context.Context, q squirrel.SelectBuilder, f domain.ListFilter, sort postgres.SortColumns) (domain.ListResult[T], error) {
	return postgres.SelectPage[T](ctx, r.db(ctx), q, f, sort, "created_at")
}
