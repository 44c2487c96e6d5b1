package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

const qcTable = "qc_records"

var qcSort = postgres.SortColumns{
	"created_at": "created_at",
	"qc_number":  "qc_number",
	"priority":   "priority",
	"status":     "status",
}

// QCRepo implements qc.Repository.
type QCRepo struct {
	*BaseDocumentRepo[*qc.Record]
}

var _ qc.Repository = (*QCRepo)(nil)

// NewQCRepo creates a QC repository.
func NewQCRepo(txManager *postgres.TxManager) *QCRepo {
	return &QCRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txManager, qcTable, "qc record",
			postgres.ExtractDBColumns[qc.Record](),
			[]string{"products"},
			func() *qc.Record { return &qc.Record{} }),
	}
}

// List filters by status, type, priority and assignee.
func (r *QCRepo) List(ctx context.Context, f qc.ListFilter) (domain.ListResult[*qc.Record], error) {
	q := r.selectAll()
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.QCType != nil {
		q = q.Where(squirrel.Eq{"qc_type": *f.QCType})
	}
	if f.Priority != nil {
		q = q.Where(squirrel.Eq{"priority": *f.Priority})
	}
	if f.AssignedTo != "" {
		q = q.Where(squirrel.Eq{"assigned_to": f.AssignedTo})
	}
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "qc_number", "supplier_name", "receiving_ref", "purchase_order_ref"))
	}
	return r.list(ctx, q, f.ListFilter, qcSort)
}

// CountBy groups records by status, result and priority.
func (r *QCRepo) CountBy(ctx context.Context) (qc.Statistics, error) {
	stats := qc.NewStatistics()
	rows, err := r.db(ctx).Query(ctx,
		`SELECT status, overall_result, priority, COUNT(*) FROM `+qcTable+` GROUP BY 1, 2, 3`)
	if err != nil {
		return stats, fmt.Errorf("count qc records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   qc.Status
			result   qc.Result
			priority qc.Priority
			n        int
		)
		if err := rows.Scan(&status, &result, &priority, &n); err != nil {
			return stats, fmt.Errorf("scan qc counts: %w", err)
		}
		for range n {
			stats.Add(status, result, priority)
		}
	}
	return stats, rows.Err()
}
