package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. Permissions
// are read from the actor the auth middleware stored on the request context.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current actor has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if hasAnyPermission(actor, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, actor, normalized)
		})
	}
}

// RequireAll ensures the current actor has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if hasAllPermissions(actor, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, actor, normalized)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, actor *shared.Actor, required []string) {
	if m.Logger != nil {
		m.Logger.Warn("rbac denied",
			slog.Int64("actor_id", actor.ID),
			slog.String("path", r.URL.Path),
			slog.Any("required", required))
	}
	httpx.RespondError(w, shared.ErrForbidden)
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(actor *shared.Actor, required []string) bool {
	for _, r := range required {
		if actor.HasPermission(r) {
			return true
		}
	}
	return len(required) == 0
}

func hasAllPermissions(actor *shared.Actor, required []string) bool {
	for _, r := range required {
		if !actor.HasPermission(r) {
			return false
		}
	}
	return true
}
