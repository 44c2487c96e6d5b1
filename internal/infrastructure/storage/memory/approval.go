package memory

import (
	"cmp"
	"context"
	"fmt"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/approval"
)

// ApprovalRepo implements approval.Repository.
type ApprovalRepo struct{ store *Store }

// Approvals returns the warehouse approval table.
func (s *Store) Approvals() *ApprovalRepo { return &ApprovalRepo{store: s} }

func (r *ApprovalRepo) Create(_ context.Context, rec *approval.Record) error {
	return r.store.write(func(t *tables) error {
		for _, existing := range t.approvals {
			if existing.QCRecordID == rec.QCRecordID && existing.Status != approval.StatusRejected {
				return apperror.NewBusinessRule(apperror.CodeDuplicateApproval,
					fmt.Sprintf("qc record already has warehouse approval %s", existing.ApprovalNumber))
			}
		}
		t.approvals[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *ApprovalRepo) GetByID(_ context.Context, recordID id.ID) (*approval.Record, error) {
	var out *approval.Record
	r.store.read(func(t *tables) {
		if rec, ok := t.approvals[recordID]; ok {
			out = rec.Clone()
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("warehouse approval", recordID)
	}
	return out, nil
}

func (r *ApprovalRepo) GetForUpdate(ctx context.Context, recordID id.ID) (*approval.Record, error) {
	return r.GetByID(ctx, recordID)
}

func (r *ApprovalRepo) Update(_ context.Context, rec *approval.Record) error {
	return r.store.write(func(t *tables) error {
		stored, ok := t.approvals[rec.ID]
		if !ok {
			return apperror.NewNotFound("warehouse approval", rec.ID)
		}
		if stored.Version != rec.Version {
			return apperror.NewConcurrentModification("warehouse approval", rec.ID)
		}
		rec.Version++
		t.approvals[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *ApprovalRepo) FindActiveByQCRecord(_ context.Context, qcRecordID id.ID) (*approval.Record, error) {
	var out *approval.Record
	r.store.read(func(t *tables) {
		for _, rec := range t.approvals {
			if rec.QCRecordID == qcRecordID && rec.Status != approval.StatusRejected {
				out = rec.Clone()
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("warehouse approval", qcRecordID)
	}
	return out, nil
}

func (r *ApprovalRepo) List(_ context.Context, f approval.ListFilter) (domain.ListResult[*approval.Record], error) {
	var items []*approval.Record
	r.store.read(func(t *tables) {
		for _, rec := range t.approvals {
			if f.Status != nil && rec.Status != *f.Status {
				continue
			}
			if f.WarehouseID != nil && rec.WarehouseID != *f.WarehouseID {
				continue
			}
			if f.QCRecordID != nil && rec.QCRecordID != *f.QCRecordID {
				continue
			}
			if f.AssignedTo != "" && rec.AssignedTo != f.AssignedTo {
				continue
			}
			if !matches(f.Search, rec.ApprovalNumber, rec.QCNumber) {
				continue
			}
			items = append(items, rec.Clone())
		}
	})
	return paginate(items, f.ListFilter, sortKeys[*approval.Record]{
		"created_at":      func(a, b *approval.Record) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"approval_number": func(a, b *approval.Record) int { return cmp.Compare(a.ApprovalNumber, b.ApprovalNumber) },
		"status":          func(a, b *approval.Record) int { return cmp.Compare(a.Status, b.Status) },
	}, "created_at"), nil
}

func (r *ApprovalRepo) CountBy(context.Context) (approval.Statistics, error) {
	stats := approval.NewStatistics()
	r.store.read(func(t *tables) {
		for _, rec := range t.approvals {
			stats.Add(rec.Status, rec.InventoryCreated)
		}
	})
	return stats, nil
}

var _ approval.Repository = (*ApprovalRepo)(nil)
