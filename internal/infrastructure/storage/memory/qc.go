package memory

import (
	"cmp"
	"context"
	"slices"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/qc"
)

// QCRepo implements qc.Repository.
type QCRepo struct{ store *Store }

// QC returns the QC record table.
func (s *Store) QC() *QCRepo { return &QCRepo{store: s} }

func (r *QCRepo) Create(_ context.Context, rec *qc.Record) error {
	return r.store.write(func(t *tables) error {
		t.qc[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *QCRepo) GetByID(_ context.Context, recordID id.ID) (*qc.Record, error) {
	var out *qc.Record
	r.store.read(func(t *tables) {
		if rec, ok := t.qc[recordID]; ok {
			out = rec.Clone()
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("qc record", recordID)
	}
	return out, nil
}

func (r *QCRepo) GetForUpdate(ctx context.Context, recordID id.ID) (*qc.Record, error) {
	return r.GetByID(ctx, recordID)
}

func (r *QCRepo) Update(_ context.Context, rec *qc.Record) error {
	return r.store.write(func(t *tables) error {
		stored, ok := t.qc[rec.ID]
		if !ok {
			return apperror.NewNotFound("qc record", rec.ID)
		}
		if stored.Version != rec.Version {
			return apperror.NewConcurrentModification("qc record", rec.ID)
		}
		rec.Version++
		t.qc[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *QCRepo) List(_ context.Context, f qc.ListFilter) (domain.ListResult[*qc.Record], error) {
	var items []*qc.Record
	r.store.read(func(t *tables) {
		for _, rec := range t.qc {
			if f.Status != nil && rec.Status != *f.Status {
				continue
			}
			if f.QCType != nil && rec.QCType != *f.QCType {
				continue
			}
			if f.Priority != nil && rec.Priority != *f.Priority {
				continue
			}
			if f.AssignedTo != "" && rec.AssignedTo != f.AssignedTo {
				continue
			}
			if !matches(f.Search, rec.QCNumber, rec.SupplierName, rec.ReceivingRef, rec.PurchaseOrderRef) {
				continue
			}
			items = append(items, rec.Clone())
		}
	})
	return paginate(items, f.ListFilter, sortKeys[*qc.Record]{
		"created_at": func(a, b *qc.Record) int { return a.CreatedAt.Compare(b.CreatedAt) },
		"qc_number":  func(a, b *qc.Record) int { return cmp.Compare(a.QCNumber, b.QCNumber) },
		"priority": func(a, b *qc.Record) int {
			return cmp.Compare(slices.Index(qc.Priorities, a.Priority), slices.Index(qc.Priorities, b.Priority))
		},
		"status": func(a, b *qc.Record) int { return cmp.Compare(a.Status, b.Status) },
	}, "created_at"), nil
}

func (r *QCRepo) CountBy(context.Context) (qc.Statistics, error) {
	stats := qc.NewStatistics()
	r.store.read(func(t *tables) {
		for _, rec := range t.qc {
			stats.Add(rec.Status, rec.OverallResult, rec.Priority)
		}
	})
	return stats, nil
}

var _ qc.Repository = (*QCRepo)(nil)
