package shared

import (
	"context"
	"strings"
)

// Actor is the authenticated API client behind a request.
type Actor struct {
	ID          int64
	Name        string
	Scope       Scope
	Permissions []string
}

// CanAccess reports whether the actor may touch records in scope. ADMIN
// actors see every scope, VENDOR actors only their own.
func (a *Actor) CanAccess(scope Scope) bool {
	if a == nil {
		return false
	}
	if a.Scope.EntityType == EntityAdmin {
		return true
	}
	return a.Scope.Equal(scope)
}

// HasPermission reports whether the actor was granted perm.
func (a *Actor) HasPermission(perm string) bool {
	if a == nil {
		return false
	}
	perm = strings.ToLower(perm)
	for _, p := range a.Permissions {
		if strings.ToLower(p) == perm {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}

// AuthorizeScope fails with ErrForbidden when the context actor cannot see scope.
func AuthorizeScope(ctx context.Context, scope Scope) error {
	actor := ActorFromContext(ctx)
	if actor == nil {
		return ErrUnauthorized
	}
	if !actor.CanAccess(scope) {
		return ErrForbidden
	}
	return nil
}
