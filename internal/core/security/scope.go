// Package security provides authorization and access control.
package security

import (
	"context"
	"fmt"

	"pharmaflow/internal/core/apperror"
	appctx "pharmaflow/internal/core/context"
)

// Resource names a guarded record kind.
type Resource string

const (
	ResourceQC                Resource = "qc"
	ResourceWarehouseApproval Resource = "warehouse_approval"
	ResourceInventory         Resource = "inventory"
	ResourceCatalog           Resource = "catalog"
)

// Action names an operation on a resource.
type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionInspect  Action = "inspect"
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionAssign   Action = "assign"
	ActionAdjust   Action = "adjust"
	ActionReserve  Action = "reserve"
	ActionRelease  Action = "release"
	ActionTransfer Action = "transfer"
)

// Permission returns the "resource:action" string carried in tokens.
func Permission(resource Resource, action Action) string {
	return fmt.Sprintf("%s:%s", resource, action)
}

// Actor is whoever performs an operation.
type Actor struct {
	ID          string
	Roles       []string
	Permissions []string
	Admin       bool
}

// SystemActorID identifies scheduled jobs in audit fields.
const SystemActorID = "system"

// SystemActor is used by the worker; it passes every default rule.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Admin: true}
}

// ActorFromContext builds the actor from the authenticated user in ctx.
// An unauthenticated context yields an empty actor, which default rules deny.
func ActorFromContext(ctx context.Context) Actor {
	u := appctx.GetUser(ctx)
	if u == nil {
		return Actor{}
	}
	return Actor{
		ID:          u.UserID,
		Roles:       u.Roles,
		Permissions: u.Permissions,
		Admin:       u.IsAdmin,
	}
}

// WithSystemActor marks ctx as running on behalf of the system.
func WithSystemActor(ctx context.Context) context.Context {
	return appctx.WithUser(ctx, &appctx.UserContext{UserID: SystemActorID, IsAdmin: true})
}

// Authorizer answers authorize(actor, resource, action).
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, resource Resource, action Action) bool
}

// Require checks the actor from ctx and returns an AppError when denied.
func Require(ctx context.Context, authz Authorizer, resource Resource, action Action) (Actor, error) {
	actor := ActorFromContext(ctx)
	if authz.Authorize(ctx, actor, resource, action) {
		return actor, nil
	}
	if actor.ID == "" {
		return actor, apperror.NewUnauthorized("authentication required")
	}
	return actor, apperror.NewForbidden("insufficient permissions").
		WithDetail("required_permission", Permission(resource, action))
}

// AllowAll grants everything. Development and tests only.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, Actor, Resource, Action) bool { return true }
