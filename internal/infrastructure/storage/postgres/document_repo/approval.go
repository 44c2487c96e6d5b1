package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/infrastructure/storage/postgres"
)

const approvalTable = "warehouse_approvals"

var approvalSort = postgres.SortColumns{
	"created_at":      "created_at",
	"approval_number": "approval_number",
	"status":          "status",
}

// ApprovalRepo implements approval.Repository. The partial unique index on
// qc_record_id (status <> 'rejected') backs DUPLICATE_APPROVAL.
type ApprovalRepo struct {
	*BaseDocumentRepo[*approval.Record]
}

var _ approval.Repository = (*ApprovalRepo)(nil)

// NewApprovalRepo creates a warehouse approval repository.
func NewApprovalRepo(txManager *postgres.TxManager) *ApprovalRepo {
	return &ApprovalRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(txManager, approvalTable, "warehouse approval",
			postgres.ExtractDBColumns[approval.Record](),
			[]string{"products", "inventory_record_ids"},
			func() *approval.Record { return &approval.Record{} }),
	}
}

// FindActiveByQCRecord returns the live approval of a QC record.
func (r *ApprovalRepo) FindActiveByQCRecord(ctx context.Context, qcRecordID id.ID) (*approval.Record, error) {
	q := r.selectAll().
		Where(squirrel.Eq{"qc_record_id": qcRecordID}).
		Where(squirrel.NotEq{"status": approval.StatusRejected}).
		Limit(1)
	return r.get(ctx, q, qcRecordID)
}

// List filters by status, warehouse, QC record and assignee.
func (r *ApprovalRepo) List(ctx context.Context, f approval.ListFilter) (domain.ListResult[*approval.Record], error) {
	q := r.selectAll()
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.QCRecordID != nil {
		q = q.Where(squirrel.Eq{"qc_record_id": *f.QCRecordID})
	}
	if f.AssignedTo != "" {
		q = q.Where(squirrel.Eq{"assigned_to": f.AssignedTo})
	}
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "approval_number", "qc_number"))
	}
	return r.list(ctx, q, f.ListFilter, approvalSort)
}

// CountBy groups approvals by status.
func (r *ApprovalRepo) CountBy(ctx context.Context) (approval.Statistics, error) {
	stats := approval.NewStatistics()
	rows, err := r.db(ctx).Query(ctx,
		`SELECT status, inventory_created, COUNT(*) FROM `+approvalTable+` GROUP BY 1, 2`)
	if err != nil {
		return stats, fmt.Errorf("count warehouse approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status  approval.Status
			created bool
			n       int
		)
		if err := rows.Scan(&status, &created, &n); err != nil {
			return stats, fmt.Errorf("scan approval counts: %w", err)
		}
		for range n {
			stats.Add(status, created)
		}
	}
	return stats, rows.Err()
}
