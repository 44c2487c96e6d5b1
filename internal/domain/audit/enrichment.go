// Package audit provides audit field enrichment and the change-trail contract.
package audit

import (
	"context"

	"pharmaflow/internal/core/security"
)

// EnrichCreatedBy sets CreatedBy and UpdatedBy from the actor in ctx.
// Register it as a BeforeCreate hook. No-op without an authenticated actor.
func EnrichCreatedBy(ctx context.Context, entity any) error {
	actor := security.ActorFromContext(ctx)
	if actor.ID == "" {
		return nil
	}

	if e, ok := entity.(interface {
		SetCreatedBy(string)
		SetUpdatedBy(string)
	}); ok {
		e.SetCreatedBy(actor.ID)
		e.SetUpdatedBy(actor.ID)
	}
	return nil
}

// EnrichUpdatedBy sets only UpdatedBy. Register it as a BeforeUpdate hook.
func EnrichUpdatedBy(ctx context.Context, entity any) error {
	actor := security.ActorFromContext(ctx)
	if actor.ID == "" {
		return nil
	}

	if e, ok := entity.(interface{ SetUpdatedBy(string) }); ok {
		e.SetUpdatedBy(actor.ID)
	}
	return nil
}
