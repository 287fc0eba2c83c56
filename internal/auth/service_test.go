package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	clients map[string]*Client
	touched map[int64]time.Time
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clients: map[string]*Client{}, touched: map[int64]time.Time{}}
}

func (m *memoryRepo) FindByKeyID(ctx context.Context, keyID string) (*Client, error) {
	c, ok := m.clients[keyID]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	cp := *c
	return &cp, nil
}

func (m *memoryRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	m.touched[id] = at
	return nil
}

func (m *memoryRepo) CreateClient(ctx context.Context, c Client) (Client, error) {
	m.nextID++
	c.ID = m.nextID
	c.IsActive = true
	m.clients[c.KeyID] = &c
	return c, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo).WithCost(bcrypt.MinCost), repo
}

func TestCreateClientAndAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	client, token, err := svc.CreateClient(ctx, CreateClientInput{
		Name:        "  Vendor dashboard ",
		Scope:       shared.VendorScope(12),
		Permissions: []string{shared.PermLedgerRead},
	})
	require.NoError(t, err)
	assert.Equal(t, "Vendor dashboard", client.Name)
	assert.NotContains(t, client.SecretHash, strings.SplitN(token, ".", 2)[1])

	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)
	actor := got.Actor()
	assert.True(t, actor.CanAccess(shared.VendorScope(12)))
	assert.False(t, actor.CanAccess(shared.VendorScope(13)))
	assert.True(t, actor.HasPermission(shared.PermLedgerRead))
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, token, err := svc.CreateClient(ctx, CreateClientInput{Name: "ops", Scope: shared.AdminScope()})
	require.NoError(t, err)
	keyID := strings.SplitN(token, ".", 2)[0]

	for _, bad := range []string{"", "nodot", keyID + ".", "." + "abc", keyID + ".wrong", "unknown.secret"} {
		_, err := svc.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidCredentials, bad)
		assert.ErrorIs(t, err, shared.ErrUnauthorized, bad)
	}

	repo.clients[keyID].IsActive = false
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateClientValidates(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.CreateClient(context.Background(), CreateClientInput{
		Scope:       shared.Scope{EntityType: shared.EntityVendor},
		Permissions: []string{"ledger.delete"},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "entityId")
	assert.Contains(t, verr.Fields, "permissions")
}

func TestMiddlewareSetsActor(t *testing.T) {
	svc, repo := newTestService()
	client, token, err := svc.CreateClient(context.Background(), CreateClientInput{
		Name:        "admin",
		Scope:       shared.AdminScope(),
		Permissions: shared.LedgerScopes(),
	})
	require.NoError(t, err)

	var seen *shared.Actor
	h := Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vouchers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, client.ID, seen.ID)
	assert.Contains(t, repo.touched, client.ID)

	seen = nil
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Nil(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/vouchers", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/vouchers", nil)
	req.Header.Set("Authorization", "Bearer nope.nope")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
