package accounts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Side is the balance side an account grows on.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// ErrAccountNotFound indicates the account does not exist or is outside the caller's scope.
var ErrAccountNotFound = fmt.Errorf("%w: account", shared.ErrNotFound)

// ErrAccountInactive indicates postings against a deactivated account.
var ErrAccountInactive = fmt.Errorf("%w: account inactive", shared.ErrValidation)

// Account models a chart of accounts node.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Scope     shared.Scope
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalSide returns the side on which accounts of type t carry their balance.
// ASSET and EXPENSE are debit-normal, the rest credit-normal.
func NormalSide(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// NormalSide returns the account's balance side.
func (a Account) NormalSide() Side {
	return NormalSide(a.Type)
}

// Signed returns the movement of a debit/credit pair on an account with the given side.
func Signed(side Side, debit, credit decimal.Decimal) decimal.Decimal {
	if side == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
