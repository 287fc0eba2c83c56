package vouchers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// VoucherType classifies the business event behind a voucher.
type VoucherType string

const (
	TypeJournal    VoucherType = "JOURNAL"
	TypeReceipt    VoucherType = "RECEIPT"
	TypePayment    VoucherType = "PAYMENT"
	TypeSales      VoucherType = "SALES"
	TypePurchase   VoucherType = "PURCHASE"
	TypeExpense    VoucherType = "EXPENSE"
	TypeDelivery   VoucherType = "DELIVERY"
	TypeCommission VoucherType = "COMMISSION"
	TypeSettlement VoucherType = "SETTLEMENT"
	TypeRefund     VoucherType = "REFUND"
	TypePayout     VoucherType = "PAYOUT"
	TypeOpening    VoucherType = "OPENING"
	TypeClosing    VoucherType = "CLOSING"
)

var typePrefixes = map[VoucherType]string{
	TypeJournal:    "JV",
	TypeReceipt:    "RV",
	TypePayment:    "PV",
	TypeSales:      "SV",
	TypePurchase:   "PU",
	TypeExpense:    "EX",
	TypeDelivery:   "DV",
	TypeCommission: "CM",
	TypeSettlement: "ST",
	TypeRefund:     "RF",
	TypePayout:     "PO",
	TypeOpening:    "OB",
	TypeClosing:    "CB",
}

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	_, ok := typePrefixes[t]
	return ok
}

// Prefix returns the voucher number prefix for t.
func (t VoucherType) Prefix() string {
	return typePrefixes[t]
}

// FormatNumber renders a voucher number such as JV-2024-000042.
func FormatNumber(t VoucherType, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", t.Prefix(), year, seq)
}

// Status enumerates voucher lifecycle values.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPosted || s == StatusReversed
}

var (
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = fmt.Errorf("%w: voucher", shared.ErrNotFound)
	// ErrNotDraft indicates posting a voucher that is not a draft.
	ErrNotDraft = fmt.Errorf("%w: only DRAFT vouchers can be posted", shared.ErrInvalidState)
	// ErrNotPosted indicates reversing a voucher that was never posted.
	ErrNotPosted = fmt.Errorf("%w: only POSTED vouchers can be reversed", shared.ErrInvalidState)
	// ErrAlreadyReversed indicates a second reversal.
	ErrAlreadyReversed = fmt.Errorf("%w: voucher already reversed", shared.ErrInvalidState)
	// ErrReversalNotReversible indicates an attempt to reverse a reversal record.
	ErrReversalNotReversible = fmt.Errorf("%w: reversal vouchers cannot be reversed", shared.ErrInvalidState)
	// ErrSourceAlreadyLinked indicates another voucher already references the source document.
	ErrSourceAlreadyLinked = fmt.Errorf("%w: source document already has a voucher", shared.ErrConflict)
	// ErrNoEntries indicates a voucher without ledger entries.
	ErrNoEntries = shared.NewValidationError("entries", "at least one entry required")
	// ErrReasonRequired indicates a blank reversal reason.
	ErrReasonRequired = shared.NewValidationError("reason", "required")
)

// UnbalancedError reports the totals that blocked a post.
type UnbalancedError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s: total debit %s does not equal total credit %s",
		shared.ErrUnbalanced, money.Format(e.TotalDebit), money.Format(e.TotalCredit))
}

// Unwrap lets errors.Is match shared.ErrUnbalanced.
func (e *UnbalancedError) Unwrap() error {
	return shared.ErrUnbalanced
}

// Entry is one debit or credit line of a voucher.
type Entry struct {
	ID          int64
	VoucherID   int64
	LineNo      int
	AccountID   int64
	AccountCode string
	AccountName string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	EntryDate   time.Time
	CreatedAt   time.Time
}

// Voucher is a double-entry document owning its entries.
type Voucher struct {
	ID                int64
	Number            string
	Type              VoucherType
	Date              time.Time
	PeriodID          int64
	Narration         string
	InternalNotes     string
	Scope             shared.Scope
	Status            Status
	IsReversed        bool
	TotalDebit        decimal.Decimal
	TotalCredit       decimal.Decimal
	ReversalOfID      *int64
	ReversalVoucherID *int64
	ReversalReason    *string
	ReversedAt        *time.Time
	ReversedBy        *int64
	SourceModule      *string
	SourceID          *uuid.UUID
	CreatedBy         int64
	PostingDate       *time.Time
	LockedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Entries           []Entry
}

// ComputeTotals sums the entry amounts.
func ComputeTotals(entries []Entry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// CheckPostable verifies the DRAFT to POSTED preconditions against the
// entries, not the stored totals.
func (v Voucher) CheckPostable() error {
	if v.Status != StatusDraft {
		return ErrNotDraft
	}
	if len(v.Entries) == 0 {
		return ErrNoEntries
	}
	debit, credit := ComputeTotals(v.Entries)
	if !debit.Equal(credit) {
		return &UnbalancedError{TotalDebit: debit, TotalCredit: credit}
	}
	return nil
}

// CheckReversible verifies the POSTED to REVERSED preconditions.
func (v Voucher) CheckReversible() error {
	if v.ReversalOfID != nil {
		return ErrReversalNotReversible
	}
	if v.IsReversed || v.Status == StatusReversed {
		return ErrAlreadyReversed
	}
	if v.Status != StatusPosted {
		return ErrNotPosted
	}
	return nil
}

// EntryInput describes a ledger line for a new voucher.
type EntryInput struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// CreateInput groups fields required to create a draft voucher.
type CreateInput struct {
	Type          VoucherType
	Date          time.Time
	PeriodID      int64
	Narration     string
	InternalNotes string
	Scope         shared.Scope
	SourceModule  string
	SourceID      uuid.UUID
	Entries       []EntryInput
}

// Validate ensures the input meets minimum criteria.
func (in CreateInput) Validate() error {
	verr := &shared.ValidationError{}
	if !in.Type.Valid() {
		verr.Add("voucherType", "unknown voucher type")
	}
	if in.Date.IsZero() {
		verr.Add("voucherDate", "required")
	}
	if in.PeriodID <= 0 {
		verr.Add("periodId", "required")
	}
	verr.Merge("entityType", in.Scope.Validate())
	if (in.SourceModule == "") != (in.SourceID == uuid.Nil) {
		verr.Add("sourceId", "sourceModule and sourceId must be given together")
	}
	if len(in.Entries) == 0 {
		verr.Add("entries", "at least one entry required")
	}
	for idx, e := range in.Entries {
		field := fmt.Sprintf("entries[%d]", idx)
		if e.AccountID <= 0 {
			verr.Add(field+".accountId", "required")
		}
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			verr.Add(field, "amounts cannot be negative")
			continue
		}
		if e.Debit.IsZero() == e.Credit.IsZero() {
			verr.Add(field, "exactly one of debitAmount or creditAmount must be non-zero")
		}
		if !e.Debit.Equal(e.Debit.Round(money.Scale)) || !e.Credit.Equal(e.Credit.Round(money.Scale)) {
			verr.Add(field, "amounts carry at most two decimal places")
		}
	}
	return verr.Err()
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	Scope  shared.Scope
	Status Status
	Page   shared.PageRequest
}
