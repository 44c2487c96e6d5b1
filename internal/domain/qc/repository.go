package qc

import (
	"context"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain"
)

// Repository defines persistence for QC records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, recordID id.ID) (*Record, error)

	// GetForUpdate holds a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, recordID id.ID) (*Record, error)

	// Update writes the record when rec.Version matches, then bumps the version.
	Update(ctx context.Context, rec *Record) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error)

	// CountBy returns record counts for the statistics endpoint.
	CountBy(ctx context.Context) (Statistics, error)
}

// ListFilter for listing QC records.
type ListFilter struct {
	domain.ListFilter

	Status     *Status
	QCType     *Type
	Priority   *Priority
	AssignedTo string
}

// Statistics counts records by status, result and priority.
type Statistics struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"byStatus"`
	ByResult   map[Result]int   `json:"byResult"`
	ByPriority map[Priority]int `json:"byPriority"`
}

// NewStatistics returns zeroed counters for every known key.
func NewStatistics() Statistics {
	s := Statistics{
		ByStatus:   map[Status]int{},
		ByResult:   map[Result]int{},
		ByPriority: map[Priority]int{},
	}
	for _, st := range []Status{StatusPending, StatusInProgress, StatusPendingApproval, StatusCompleted, StatusRejected} {
		s.ByStatus[st] = 0
	}
	for _, r := range []Result{ResultPassed, ResultFailed, ResultPartialPass} {
		s.ByResult[r] = 0
	}
	for _, p := range Priorities {
		s.ByPriority[p] = 0
	}
	return s
}

// Add counts one record.
func (s *Statistics) Add(status Status, result Result, priority Priority) {
	s.Total++
	s.ByStatus[status]++
	if result != "" {
		s.ByResult[result]++
	}
	s.ByPriority[priority]++
}
