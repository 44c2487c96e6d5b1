package approval

import (
	"context"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
)

// Repository defines persistence for warehouse approvals.
type Repository interface {
	// Create inserts the record; a second live approval for the same QC
	// record yields DUPLICATE_APPROVAL.
	Create(ctx context.Context, rec *Record) error

	GetByID(ctx context.Context, recordID id.ID) (*Record, error)
	GetForUpdate(ctx context.Context, recordID id.ID) (*Record, error)
	Update(ctx context.Context, rec *Record) error

	// FindActiveByQCRecord returns the non-rejected approval of a QC record, or NOT_FOUND.
	FindActiveByQCRecord(ctx context.Context, qcRecordID id.ID) (*Record, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error)
	CountBy(ctx context.Context) (Statistics, error)
}

// ListFilter for listing approvals.
type ListFilter struct {
	domain.ListFilter

	Status      *Status
	WarehouseID *id.ID
	QCRecordID  *id.ID
	AssignedTo  string
}

// Statistics counts approvals by status.
type Statistics struct {
	Total            int            `json:"total"`
	ByStatus         map[Status]int `json:"byStatus"`
	InventoryCreated int            `json:"inventoryCreated"`
}

// NewStatistics returns zeroed counters.
func NewStatistics() Statistics {
	s := Statistics{ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	return s
}

// Add counts one record.
func (s *Statistics) Add(status Status, inventoryCreated bool) {
	s.Total++
	s.ByStatus[status]++
	if inventoryCreated {
		s.InventoryCreated++
	}
}
