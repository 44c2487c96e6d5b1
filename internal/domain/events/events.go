// Package events defines domain events written alongside state changes.
package events

import (
	"context"

	"pharmaflow/internal/core/id"
)

// Event types.
const (
	QCSubmitted               = "qc.submitted"
	QCApproved                = "qc.approved"
	QCRejected                = "qc.rejected"
	WarehouseApprovalApproved = "warehouse_approval.approved"
	WarehouseApprovalRejected = "warehouse_approval.rejected"
	InventoryCreated          = "inventory.created"
	InventoryAdjusted         = "inventory.adjusted"
	InventoryTransferred      = "inventory.transferred"
	InventoryExpired          = "inventory.expired"
)

// Event is a fact about an aggregate.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher stores events in the same transaction as the change they describe.
// Publish must be called inside tx.Manager.RunInTransaction.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
