package ledger

import (
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineDTO is the wire shape of a ledger entry.
type LineDTO struct {
	ID                  int64  `json:"id"`
	VoucherID           int64  `json:"voucherId"`
	AccountID           int64  `json:"accountId"`
	VoucherNumber       string `json:"voucherNumber"`
	VoucherType         string `json:"voucherType"`
	VoucherStatus       string `json:"voucherStatus"`
	LineNo              int    `json:"lineNo"`
	Description         string `json:"description"`
	Narration           string `json:"narration"`
	EntryDate           string `json:"entryDate"`
	DebitAmount         string `json:"debitAmount"`
	DebitAmountMinor    int64  `json:"debitAmountMinor"`
	CreditAmount        string `json:"creditAmount"`
	CreditAmountMinor   int64  `json:"creditAmountMinor"`
	RunningBalance      string `json:"runningBalance"`
	RunningBalanceMinor int64  `json:"runningBalanceMinor"`
}

// TotalsDTO is the wire shape of debit/credit sums.
type TotalsDTO struct {
	DebitAmount       string `json:"debitAmount"`
	DebitAmountMinor  int64  `json:"debitAmountMinor"`
	CreditAmount      string `json:"creditAmount"`
	CreditAmountMinor int64  `json:"creditAmountMinor"`
}

// SummaryDTO carries the window balances next to the entry array.
type SummaryDTO struct {
	Account             *accounts.AccountDTO `json:"account"`
	StartDate           string               `json:"startDate,omitempty"`
	EndDate             string               `json:"endDate,omitempty"`
	OpeningBalance      string               `json:"openingBalance"`
	OpeningBalanceMinor int64                `json:"openingBalanceMinor"`
	ClosingBalance      string               `json:"closingBalance"`
	ClosingBalanceMinor int64                `json:"closingBalanceMinor"`
	Totals              TotalsDTO            `json:"totals"`
	PageTotals          TotalsDTO            `json:"pageTotals"`
}

// ToDTO converts a result to its wire shape: the entries travel as data,
// balances as summary and pagination in the envelope.
func ToDTO(res Result) ([]LineDTO, SummaryDTO) {
	summary := SummaryDTO{
		StartDate:           shared.FormatDate(res.StartDate),
		EndDate:             shared.FormatDate(res.EndDate),
		OpeningBalance:      money.Format(res.OpeningBalance),
		OpeningBalanceMinor: money.Minor(res.OpeningBalance),
		ClosingBalance:      money.Format(res.ClosingBalance),
		ClosingBalanceMinor: money.Minor(res.ClosingBalance),
		Totals:              totalsDTO(res.Totals),
		PageTotals:          totalsDTO(res.PageTotals),
	}
	var accountID int64
	if res.Account != nil {
		dto := accounts.ToDTO(*res.Account)
		summary.Account = &dto
		accountID = res.Account.ID
	}
	lines := make([]LineDTO, 0, len(res.Lines))
	for _, l := range res.Lines {
		lines = append(lines, LineDTO{
			ID:                  l.EntryID,
			VoucherID:           l.VoucherID,
			AccountID:           accountID,
			VoucherNumber:       l.VoucherNumber,
			VoucherType:         l.VoucherType,
			VoucherStatus:       l.VoucherStatus,
			LineNo:              l.LineNo,
			Description:         l.Description,
			Narration:           l.Narration,
			EntryDate:           shared.FormatDate(l.EntryDate),
			DebitAmount:         money.Format(l.Debit),
			DebitAmountMinor:    money.Minor(l.Debit),
			CreditAmount:        money.Format(l.Credit),
			CreditAmountMinor:   money.Minor(l.Credit),
			RunningBalance:      money.Format(l.RunningBalance),
			RunningBalanceMinor: money.Minor(l.RunningBalance),
		})
	}
	return lines, summary
}

func totalsDTO(t Totals) TotalsDTO {
	return TotalsDTO{
		DebitAmount:       money.Format(t.Debit),
		DebitAmountMinor:  money.Minor(t.Debit),
		CreditAmount:      money.Format(t.Credit),
		CreditAmountMinor: money.Minor(t.Credit),
	}
}
