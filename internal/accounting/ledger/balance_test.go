package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func balances(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.RunningBalance.StringFixed(2))
	}
	return out
}

func TestRunningBalancesDebitNormal(t *testing.T) {
	lines := []Line{
		{EntryID: 1, Debit: d("100")},
		{EntryID: 2, Credit: d("30")},
		{EntryID: 3, Debit: d("20")},
	}
	out, final := RunningBalances(accounts.SideDebit, decimal.Zero, lines)
	assert.Equal(t, []string{"100.00", "70.00", "90.00"}, balances(out))
	assert.Equal(t, "90.00", final.StringFixed(2))
	assert.True(t, lines[0].RunningBalance.IsZero(), "input lines must not be mutated")
}

func TestRunningBalancesCreditNormal(t *testing.T) {
	lines := []Line{
		{EntryID: 1, Credit: d("500")},
		{EntryID: 2, Debit: d("125.50")},
	}
	out, final := RunningBalances(accounts.SideCredit, d("10"), lines)
	assert.Equal(t, []string{"510.00", "384.50"}, balances(out))
	assert.Equal(t, "384.50", final.StringFixed(2))
}

func TestBuildWithoutHistory(t *testing.T) {
	snap := Snapshot{
		Window:      Totals{Debit: d("120"), Credit: d("30")},
		WindowCount: 3,
		Lines: []Line{
			{EntryID: 1, Debit: d("100")},
			{EntryID: 2, Credit: d("30")},
			{EntryID: 3, Debit: d("20")},
		},
	}
	opening, closing, lines, page := Build(accounts.SideDebit, snap)
	assert.True(t, opening.IsZero())
	assert.Equal(t, "90.00", closing.StringFixed(2))
	assert.Equal(t, []string{"100.00", "70.00", "90.00"}, balances(lines))
	assert.Equal(t, "120.00", page.Debit.StringFixed(2))
	assert.Equal(t, "30.00", page.Credit.StringFixed(2))
}

func TestBuildSeedsFromOpeningAndPagePrefix(t *testing.T) {
	// Second page of a window: 40 of debits sit before the window and a net
	// 50 of debits precede the page inside the window.
	snap := Snapshot{
		Before:      Totals{Debit: d("40")},
		PagePrefix:  Totals{Debit: d("60"), Credit: d("10")},
		Window:      Totals{Debit: d("80"), Credit: d("15")},
		WindowCount: 4,
		Lines: []Line{
			{EntryID: 3, Debit: d("20")},
			{EntryID: 4, Credit: d("5")},
		},
	}
	opening, closing, lines, page := Build(accounts.SideDebit, snap)
	assert.Equal(t, "40.00", opening.StringFixed(2))
	assert.Equal(t, []string{"110.00", "105.00"}, balances(lines))
	assert.Equal(t, "105.00", closing.StringFixed(2))
	assert.Equal(t, "20.00", page.Debit.StringFixed(2))
	assert.Equal(t, "5.00", page.Credit.StringFixed(2))
}

func TestBuildClosingMatchesLastLineOnFinalPage(t *testing.T) {
	snap := Snapshot{
		Before:     Totals{Credit: d("1000")},
		PagePrefix: Totals{Credit: d("250")},
		Window:     Totals{Debit: d("75"), Credit: d("250")},
		Lines:      []Line{{EntryID: 9, Debit: d("75")}},
	}
	_, closing, lines, _ := Build(accounts.SideCredit, snap)
	require.Len(t, lines, 1)
	assert.True(t, closing.Equal(lines[0].RunningBalance))
	assert.Equal(t, "1175.00", closing.StringFixed(2))
}
