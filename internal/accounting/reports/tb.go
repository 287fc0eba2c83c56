// Package reports builds period reports over posted ledger entries.
package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Filter selects the trial balance window. Zero dates leave that side open.
type Filter struct {
	Scope     shared.Scope
	StartDate time.Time
	EndDate   time.Time
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

// AccountBalance models a general ledger account with aggregated movements.
// BeforeDebit and BeforeCredit sum the entries preceding the window.
type AccountBalance struct {
	AccountID    int64
	Code         string
	Name         string
	Type         accounts.AccountType
	BeforeDebit  decimal.Decimal
	BeforeCredit decimal.Decimal
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

// Opening is the balance carried into the window on the account's normal side.
func (a AccountBalance) Opening() decimal.Decimal {
	return accounts.Signed(accounts.NormalSide(a.Type), a.BeforeDebit, a.BeforeCredit)
}

// Closing computes the closing balance for the account.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening().Add(accounts.Signed(accounts.NormalSide(a.Type), a.Debit, a.Credit))
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	AccountID  int64
	Code       string
	Name       string
	Type       accounts.AccountType
	NormalSide accounts.Side
	Opening    decimal.Decimal
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	Closing    decimal.Decimal
}

// TrialBalanceGroup aggregates accounts sharing a code prefix.
type TrialBalanceGroup struct {
	Key      string
	Accounts []TrialBalanceAccount
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// TrialBalance is the grouped report.
type TrialBalance struct {
	Filter      Filter
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether window debits equal window credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// BuildTrialBalance converts account balances into grouped trial balance data.
// Openings and closings are signed per account so they are not summed across
// groups; debit and credit movements are.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range balances {
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			AccountID:  acc.AccountID,
			Code:       acc.Code,
			Name:       acc.Name,
			Type:       acc.Type,
			NormalSide: accounts.NormalSide(acc.Type),
			Opening:    acc.Opening(),
			Debit:      acc.Debit,
			Credit:     acc.Credit,
			Closing:    acc.Closing(),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}
