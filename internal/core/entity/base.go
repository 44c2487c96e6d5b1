// Package entity holds the fields shared by every persisted record.
package entity

import (
	"context"
	"time"

	"pharmaflow/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains identity and the optimistic-locking version.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version is compared on every update and incremented by the repository
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// Base exposes the identity fields to generic repositories.
func (b *BaseEntity) Base() *BaseEntity { return b }

// BaseDocument extends BaseEntity with audit fields.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a new BaseDocument with generated ID and timestamps.
func NewBaseDocument(now time.Time) BaseDocument {
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch stamps the modification time and author.
func (b *BaseDocument) Touch(now time.Time, actor string) {
	b.UpdatedAt = now
	if actor != "" {
		b.UpdatedBy = actor
	}
}

// SetCreatedBy implements audit enrichment.
func (b *BaseDocument) SetCreatedBy(userID string) { b.CreatedBy = userID }

// SetUpdatedBy implements audit enrichment.
func (b *BaseDocument) SetUpdatedBy(userID string) { b.UpdatedBy = userID }
