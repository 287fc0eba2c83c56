package vouchers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountRef is the nested account of an entry.
type AccountRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// EntryDTO is the wire shape of a ledger entry.
type EntryDTO struct {
	ID                int64      `json:"id"`
	VoucherID         int64      `json:"voucherId"`
	LineNo            int        `json:"lineNo"`
	AccountID         int64      `json:"accountId"`
	Account           AccountRef `json:"account"`
	Description       string     `json:"description"`
	DebitAmount       string     `json:"debitAmount"`
	DebitAmountMinor  int64      `json:"debitAmountMinor"`
	CreditAmount      string     `json:"creditAmount"`
	CreditAmountMinor int64      `json:"creditAmountMinor"`
	EntryDate         string     `json:"entryDate"`
}

// VoucherDTO is the wire shape of a voucher.
type VoucherDTO struct {
	ID                int64             `json:"id"`
	VoucherNumber     string            `json:"voucherNumber"`
	VoucherType       VoucherType       `json:"voucherType"`
	VoucherDate       string            `json:"voucherDate"`
	PeriodID          int64             `json:"periodId"`
	Narration         string            `json:"narration"`
	InternalNotes     string            `json:"internalNotes,omitempty"`
	EntityType        shared.EntityType `json:"entityType"`
	EntityID          *int64            `json:"entityId,omitempty"`
	Status            Status            `json:"status"`
	IsReversed        bool              `json:"isReversed"`
	TotalDebit        string            `json:"totalDebit"`
	TotalDebitMinor   int64             `json:"totalDebitMinor"`
	TotalCredit       string            `json:"totalCredit"`
	TotalCreditMinor  int64             `json:"totalCreditMinor"`
	ReversalOfID      *int64            `json:"reversalOfId,omitempty"`
	ReversalVoucherID *int64            `json:"reversalVoucherId,omitempty"`
	ReversalReason    *string           `json:"reversalReason,omitempty"`
	ReversedAt        *time.Time        `json:"reversedAt,omitempty"`
	ReversedBy        *int64            `json:"reversedBy,omitempty"`
	SourceModule      *string           `json:"sourceModule,omitempty"`
	SourceID          *uuid.UUID        `json:"sourceId,omitempty"`
	CreatedBy         int64             `json:"createdBy"`
	PostingDate       *time.Time        `json:"postingDate,omitempty"`
	LockedAt          *time.Time        `json:"lockedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	LedgerEntries     []EntryDTO        `json:"ledgerEntries,omitempty"`
}

// ToDTO converts a voucher to its wire shape.
func ToDTO(v Voucher) VoucherDTO {
	out := VoucherDTO{
		ID:                v.ID,
		VoucherNumber:     v.Number,
		VoucherType:       v.Type,
		VoucherDate:       shared.FormatDate(v.Date),
		PeriodID:          v.PeriodID,
		Narration:         v.Narration,
		InternalNotes:     v.InternalNotes,
		EntityType:        v.Scope.EntityType,
		EntityID:          v.Scope.EntityID,
		Status:            v.Status,
		IsReversed:        v.IsReversed,
		TotalDebit:        money.Format(v.TotalDebit),
		TotalDebitMinor:   money.Minor(v.TotalDebit),
		TotalCredit:       money.Format(v.TotalCredit),
		TotalCreditMinor:  money.Minor(v.TotalCredit),
		ReversalOfID:      v.ReversalOfID,
		ReversalVoucherID: v.ReversalVoucherID,
		ReversalReason:    v.ReversalReason,
		ReversedAt:        v.ReversedAt,
		ReversedBy:        v.ReversedBy,
		SourceModule:      v.SourceModule,
		SourceID:          v.SourceID,
		CreatedBy:         v.CreatedBy,
		PostingDate:       v.PostingDate,
		LockedAt:          v.LockedAt,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
	for _, e := range v.Entries {
		out.LedgerEntries = append(out.LedgerEntries, EntryDTO{
			ID:                e.ID,
			VoucherID:         e.VoucherID,
			LineNo:            e.LineNo,
			AccountID:         e.AccountID,
			Account:           AccountRef{ID: e.AccountID, Code: e.AccountCode, Name: e.AccountName},
			Description:       e.Description,
			DebitAmount:       money.Format(e.Debit),
			DebitAmountMinor:  money.Minor(e.Debit),
			CreditAmount:      money.Format(e.Credit),
			CreditAmountMinor: money.Minor(e.Credit),
			EntryDate:         shared.FormatDate(e.EntryDate),
		})
	}
	return out
}

type entryRequest struct {
	AccountID         int64  `json:"accountId" validate:"required,gt=0"`
	Description       string `json:"description" validate:"max=500"`
	DebitAmount       string `json:"debitAmount"`
	DebitAmountMinor  *int64 `json:"debitAmountMinor"`
	CreditAmount      string `json:"creditAmount"`
	CreditAmountMinor *int64 `json:"creditAmountMinor"`
}

type createVoucherRequest struct {
	VoucherType   string         `json:"voucherType" validate:"required"`
	VoucherDate   string         `json:"voucherDate" validate:"required"`
	PeriodID      int64          `json:"periodId" validate:"required,gt=0"`
	Narration     string         `json:"narration" validate:"max=1000"`
	InternalNotes string         `json:"internalNotes" validate:"max=2000"`
	EntityType    string         `json:"entityType" validate:"required,oneof=ADMIN VENDOR"`
	EntityID      *int64         `json:"entityId"`
	SourceModule  string         `json:"sourceModule" validate:"max=64"`
	SourceID      string         `json:"sourceId"`
	Entries       []entryRequest `json:"entries" validate:"required,min=1,dive"`
}

type reverseVoucherRequest struct {
	Reason string `json:"reason"`
}

func (req createVoucherRequest) toInput() (CreateInput, error) {
	verr := &shared.ValidationError{}
	date, err := shared.ParseDate("voucherDate", req.VoucherDate)
	verr.Merge("voucherDate", err)
	in := CreateInput{
		Type:          VoucherType(strings.ToUpper(strings.TrimSpace(req.VoucherType))),
		Date:          date,
		PeriodID:      req.PeriodID,
		Narration:     req.Narration,
		InternalNotes: req.InternalNotes,
		Scope:         shared.Scope{EntityType: shared.EntityType(req.EntityType), EntityID: req.EntityID},
		SourceModule:  req.SourceModule,
	}
	if raw := strings.TrimSpace(req.SourceID); raw != "" {
		ref, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("sourceId", "must be a UUID")
		}
		in.SourceID = ref
	}
	for idx, e := range req.Entries {
		field := fmt.Sprintf("entries[%d]", idx)
		debit, err := parseAmount(e.DebitAmount, e.DebitAmountMinor)
		if err != nil {
			verr.Add(field+".debitAmount", err.Error())
		}
		credit, err := parseAmount(e.CreditAmount, e.CreditAmountMinor)
		if err != nil {
			verr.Add(field+".creditAmount", err.Error())
		}
		in.Entries = append(in.Entries, EntryInput{
			AccountID:   e.AccountID,
			Description: e.Description,
			Debit:       debit,
			Credit:      credit,
		})
	}
	if err := verr.Err(); err != nil {
		return CreateInput{}, err
	}
	return in, nil
}

// parseAmount prefers the minor-unit field when present.
func parseAmount(raw string, minor *int64) (decimal.Decimal, error) {
	if minor != nil {
		if strings.TrimSpace(raw) != "" {
			fromString, err := money.Parse(raw)
			if err != nil || money.Minor(fromString) != *minor {
				return decimal.Zero, fmt.Errorf("amount and minor units disagree")
			}
		}
		return money.FromMinor(*minor), nil
	}
	d, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a decimal with at most two fractional digits")
	}
	return d, nil
}
