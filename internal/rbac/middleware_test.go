package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr
}

func TestRequireAnyWithoutActorIsUnauthorized(t *testing.T) {
	m := Middleware{}
	rr := serve(t, m.RequireAny(shared.PermLedgerRead), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAnyMatchesCaseInsensitively(t *testing.T) {
	m := Middleware{}
	actor := &shared.Actor{ID: 1, Scope: shared.AdminScope(), Permissions: []string{"LEDGER.READ"}}
	rr := serve(t, m.RequireAny(shared.PermLedgerRead, shared.PermLedgerVoucherPost), actor)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireAllDeniesPartialGrant(t *testing.T) {
	m := Middleware{}
	actor := &shared.Actor{ID: 1, Scope: shared.AdminScope(), Permissions: []string{shared.PermLedgerRead}}
	rr := serve(t, m.RequireAll(shared.PermLedgerRead, shared.PermLedgerVoucherPost), actor)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "FORBIDDEN")
}

func TestRequireAllEmptyPermissionsPassThrough(t *testing.T) {
	m := Middleware{}
	rr := serve(t, m.RequireAll(" "), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
