package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// RunningBalances annotates lines, already in (entryDate, id) order, with the
// cumulative signed balance starting from seed. It returns the final balance.
func RunningBalances(side accounts.Side, seed decimal.Decimal, lines []Line) ([]Line, decimal.Decimal) {
	out := make([]Line, len(lines))
	balance := seed
	for i, line := range lines {
		balance = balance.Add(accounts.Signed(side, line.Debit, line.Credit))
		line.RunningBalance = balance
		out[i] = line
	}
	return out, balance
}

// Build derives balances from a snapshot.
//
// Opening is the signed sum strictly before the window. The first line of
// the page is seeded with opening plus the window rows preceding the page,
// and closing is opening plus the whole window, independent of paging.
func Build(side accounts.Side, snap Snapshot) (opening, closing decimal.Decimal, lines []Line, page Totals) {
	opening = accounts.Signed(side, snap.Before.Debit, snap.Before.Credit)
	seed := opening.Add(accounts.Signed(side, snap.PagePrefix.Debit, snap.PagePrefix.Credit))
	lines, _ = RunningBalances(side, seed, snap.Lines)
	page = Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, l := range lines {
		page = page.Add(l.Debit, l.Credit)
	}
	closing = opening.Add(accounts.Signed(side, snap.Window.Debit, snap.Window.Credit))
	return opening, closing, lines, page
}
