package ledger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubRepo struct {
	calls int32
	snap  Snapshot
	args  struct {
		accountID     int64
		start, end    time.Time
		limit, offset int
	}
}

func (r *stubRepo) Snapshot(ctx context.Context, accountID int64, start, end time.Time, limit, offset int) (Snapshot, error) {
	atomic.AddInt32(&r.calls, 1)
	r.args.accountID, r.args.start, r.args.end, r.args.limit, r.args.offset = accountID, start, end, limit, offset
	return r.snap, nil
}

type stubAccounts map[int64]accounts.Account

func (s stubAccounts) Get(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := s[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return a, nil
}

func adminCtx() context.Context {
	return shared.ContextWithActor(context.Background(), &shared.Actor{ID: 1, Scope: shared.AdminScope(), Permissions: shared.LedgerScopes()})
}

func vendorCtx(id int64) context.Context {
	return shared.ContextWithActor(context.Background(), &shared.Actor{ID: 2, Scope: shared.VendorScope(id), Permissions: shared.LedgerScopes()})
}

func fixtureAccounts() stubAccounts {
	return stubAccounts{
		1: {ID: 1, Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Scope: shared.AdminScope(), IsActive: true},
		2: {ID: 2, Code: "2100", Name: "Vendor payable", Type: accounts.AccountTypeLiability, Scope: shared.VendorScope(7), IsActive: true},
	}
}

func threeLineSnapshot() Snapshot {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Window:      Totals{Debit: d("120"), Credit: d("30")},
		WindowCount: 3,
		Lines: []Line{
			{EntryID: 1, Debit: d("100"), EntryDate: day},
			{EntryID: 2, Credit: d("30"), EntryDate: day},
			{EntryID: 3, Debit: d("20"), EntryDate: day.AddDate(0, 0, 1)},
		},
	}
}

func TestQueryWithoutAccountIsEmpty(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, fixtureAccounts(), nil, 500)

	res, err := svc.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Nil(t, res.Account)
	assert.True(t, res.OpeningBalance.IsZero())
	assert.True(t, res.ClosingBalance.IsZero())
	assert.Equal(t, shared.Pagination{Page: 1, Limit: shared.DefaultPageLimit, Total: 0, Pages: 0}, res.Pagination)
	assert.Equal(t, int32(0), repo.calls)
}

func TestQueryComputesRunningBalances(t *testing.T) {
	repo := &stubRepo{snap: threeLineSnapshot()}
	svc := NewService(repo, fixtureAccounts(), nil, 500)

	res, err := svc.Query(adminCtx(), Filter{AccountID: 1, Scope: shared.AdminScope()})
	require.NoError(t, err)
	assert.Equal(t, []string{"100.00", "70.00", "90.00"}, balances(res.Lines))
	assert.Equal(t, "90.00", res.ClosingBalance.StringFixed(2))
	assert.Equal(t, accounts.SideDebit, res.NormalSide)
	assert.Equal(t, shared.Pagination{Page: 1, Limit: 50, Total: 3, Pages: 1}, res.Pagination)
	assert.Equal(t, 50, repo.args.limit)
	assert.Equal(t, 0, repo.args.offset)
}

func TestQueryPassesPageOffsetAndClampsLimit(t *testing.T) {
	repo := &stubRepo{snap: Snapshot{WindowCount: 1200}}
	svc := NewService(repo, fixtureAccounts(), nil, 500)

	res, err := svc.Query(adminCtx(), Filter{AccountID: 1, Scope: shared.AdminScope(), Page: shared.PageRequest{Page: 3, Limit: 1000}})
	require.NoError(t, err)
	assert.Equal(t, 500, repo.args.limit)
	assert.Equal(t, 1000, repo.args.offset)
	assert.Equal(t, 3, res.Pagination.Pages)
}

func TestQueryRejectsAccountOutsideScope(t *testing.T) {
	svc := NewService(&stubRepo{}, fixtureAccounts(), nil, 500)

	_, err := svc.Query(adminCtx(), Filter{AccountID: 2, Scope: shared.AdminScope()})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Query(adminCtx(), Filter{AccountID: 99, Scope: shared.AdminScope()})
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestQueryForbidsOtherVendor(t *testing.T) {
	svc := NewService(&stubRepo{}, fixtureAccounts(), nil, 500)

	_, err := svc.Query(vendorCtx(8), Filter{AccountID: 2, Scope: shared.VendorScope(7)})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Query(context.Background(), Filter{AccountID: 2, Scope: shared.VendorScope(7)})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestQueryRejectsInvertedRange(t *testing.T) {
	svc := NewService(&stubRepo{}, fixtureAccounts(), nil, 500)
	_, err := svc.Query(adminCtx(), Filter{
		AccountID: 1,
		Scope:     shared.AdminScope(),
		StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestQueryServedFromCacheUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "ledger", time.Minute)

	repo := &stubRepo{snap: threeLineSnapshot()}
	svc := NewService(repo, fixtureAccounts(), versioned, 500)
	filter := Filter{AccountID: 1, Scope: shared.AdminScope()}

	first, err := svc.Query(adminCtx(), filter)
	require.NoError(t, err)
	second, err := svc.Query(adminCtx(), filter)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.calls))
	assert.Equal(t, balances(first.Lines), balances(second.Lines))
	assert.True(t, first.ClosingBalance.Equal(second.ClosingBalance))
	require.NotNil(t, second.Account)
	assert.Equal(t, "1100", second.Account.Code)

	require.NoError(t, versioned.Bump(context.Background()))
	_, err = svc.Query(adminCtx(), filter)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&repo.calls))
}
