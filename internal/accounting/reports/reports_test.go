package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fixtureBalances() []AccountBalance {
	return []AccountBalance{
		{AccountID: 2, Code: "1001", Name: "Bank", Type: accounts.AccountTypeAsset, BeforeDebit: d("500"), Debit: d("100"), Credit: d("50")},
		{AccountID: 1, Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, BeforeDebit: d("1000"), Debit: d("200"), Credit: d("150")},
		{AccountID: 3, Code: "2000", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, BeforeCredit: d("1500"), Debit: d("10"), Credit: d("110")},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance(fixtureBalances())

	require.Len(t, tb.Groups, 2)
	assert.Equal(t, "10", tb.Groups[0].Key)
	assert.Equal(t, "1000", tb.Groups[0].Accounts[0].Code)
	assert.Equal(t, "310.00", tb.TotalDebit.StringFixed(2))
	assert.Equal(t, "310.00", tb.TotalCredit.StringFixed(2))
	assert.True(t, tb.Balanced())

	cash := tb.Groups[0].Accounts[0]
	assert.Equal(t, accounts.SideDebit, cash.NormalSide)
	assert.Equal(t, "1000.00", cash.Opening.StringFixed(2))
	assert.Equal(t, "1050.00", cash.Closing.StringFixed(2))

	payable := tb.Groups[1].Accounts[0]
	assert.Equal(t, accounts.SideCredit, payable.NormalSide)
	assert.Equal(t, "1500.00", payable.Opening.StringFixed(2))
	assert.Equal(t, "1600.00", payable.Closing.StringFixed(2))
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "4", AccountBalance{Code: "4.100"}.GroupKey())
	assert.Equal(t, "51", AccountBalance{Code: "5100"}.GroupKey())
	assert.Equal(t, "9", AccountBalance{Code: "9"}.GroupKey())
}

type stubRepo struct {
	balances []AccountBalance
	err      error
	scope    shared.Scope
}

func (r *stubRepo) AccountBalances(ctx context.Context, scope shared.Scope, start, end time.Time) ([]AccountBalance, error) {
	r.scope = scope
	return r.balances, r.err
}

func TestTrialBalanceService(t *testing.T) {
	repo := &stubRepo{balances: fixtureBalances()}
	svc := NewService(repo)
	ctx := shared.ContextWithActor(context.Background(), &shared.Actor{ID: 1, Scope: shared.VendorScope(4)})

	tb, err := svc.TrialBalance(ctx, Filter{Scope: shared.VendorScope(4)})
	require.NoError(t, err)
	assert.Equal(t, shared.VendorScope(4), repo.scope)
	assert.Equal(t, shared.VendorScope(4), tb.Filter.Scope)

	_, err = svc.TrialBalance(ctx, Filter{Scope: shared.VendorScope(5)})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.TrialBalance(ctx, Filter{
		Scope:     shared.VendorScope(4),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	repo.err = errors.New("db down")
	_, err = svc.TrialBalance(ctx, Filter{Scope: shared.VendorScope(4)})
	assert.EqualError(t, err, "db down")
}
