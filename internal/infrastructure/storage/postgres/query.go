package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaflow/internal/domain"
)

// Builder returns a squirrel builder with $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// SortColumns whitelists the sort keys a list endpoint accepts, mapped to
// their SQL expressions.
type SortColumns map[string]string

func (s SortColumns) orderBy(f domain.ListFilter, fallback string) string {
	col, ok := s[f.Sort]
	if !ok {
		col = s[fallback]
	}
	dir := "DESC"
	if f.Order == domain.SortAsc {
		dir = "ASC"
	}
	return col + " " + dir + ", id " + dir
}

// SelectPage counts the rows of q, then scans one page of them into dst.
func SelectPage[T any](ctx context.Context, db Querier, q squirrel.SelectBuilder, f domain.ListFilter, sort SortColumns, fallback string) (domain.ListResult[T], error) {
	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy(sort.orderBy(f, fallback))
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit)).Offset(uint64(f.Offset()))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("build list query: %w", err)
	}

	var items []T
	if err := pgxscan.Select(ctx, db, &items, sql, args...); err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("list: %w", err)
	}
	return domain.NewListResult(items, total, f), nil
}

// Search matches pattern case-insensitively against any of columns.
func Search(term string, columns ...string) squirrel.Sqlizer {
	pattern := "%" + term + "%"
	or := make(squirrel.Or, 0, len(columns))
	for _, c := range columns {
		or = append(or, squirrel.ILike{c: pattern})
	}
	return or
}
