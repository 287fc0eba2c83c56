// Package ledger answers account ledger queries with running balances.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Filter selects the ledger of one account. A zero date leaves that side
// of the window open.
type Filter struct {
	AccountID int64
	Scope     shared.Scope
	StartDate time.Time
	EndDate   time.Time
	Page      shared.PageRequest
}

// Validate checks scope and date ordering.
func (f Filter) Validate() error {
	verr := &shared.ValidationError{}
	verr.Merge("entityType", f.Scope.Validate())
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		verr.Add("endDate", "must not be before startDate")
	}
	return verr.Err()
}

// Line is a ledger entry annotated with the balance after it.
type Line struct {
	EntryID        int64           `json:"entryId"`
	VoucherID      int64           `json:"voucherId"`
	VoucherNumber  string          `json:"voucherNumber"`
	VoucherType    string          `json:"voucherType"`
	VoucherStatus  string          `json:"voucherStatus"`
	LineNo         int             `json:"lineNo"`
	Description    string          `json:"description"`
	Narration      string          `json:"narration"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	EntryDate      time.Time       `json:"entryDate"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// Totals holds debit and credit sums.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Add accumulates a debit/credit pair.
func (t Totals) Add(debit, credit decimal.Decimal) Totals {
	return Totals{Debit: t.Debit.Add(debit), Credit: t.Credit.Add(credit)}
}

// Snapshot is the raw material read from storage in one transaction.
type Snapshot struct {
	Before      Totals `json:"before"`
	PagePrefix  Totals `json:"pagePrefix"`
	Window      Totals `json:"window"`
	WindowCount int    `json:"windowCount"`
	Lines       []Line `json:"lines"`
}

// Result is the answer to a ledger query.
type Result struct {
	Account        *accounts.Account `json:"account,omitempty"`
	NormalSide     accounts.Side     `json:"normalSide,omitempty"`
	StartDate      time.Time         `json:"startDate"`
	EndDate        time.Time         `json:"endDate"`
	OpeningBalance decimal.Decimal   `json:"openingBalance"`
	ClosingBalance decimal.Decimal   `json:"closingBalance"`
	Totals         Totals            `json:"totals"`
	PageTotals     Totals            `json:"pageTotals"`
	Lines          []Line            `json:"lines"`
	Pagination     shared.Pagination `json:"pagination"`
}
