package report

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

//go:embed templates/*.html
var templateFS embed.FS

var statementTmpl = template.Must(template.ParseFS(templateFS, "templates/statement.html"))

// HTMLRenderer converts HTML into PDF.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html []byte, opts PageOptions) ([]byte, error)
}

// StatementRenderer renders ledger query results as PDF statements.
type StatementRenderer struct {
	pdf HTMLRenderer
	now func() time.Time
}

// NewStatementRenderer builds a renderer on top of a Gotenberg client.
func NewStatementRenderer(pdf HTMLRenderer) *StatementRenderer {
	return &StatementRenderer{pdf: pdf, now: time.Now}
}

type statementLine struct {
	Date        string
	Voucher     string
	Description string
	Debit       string
	Credit      string
	Balance     string
}

type statementView struct {
	Account     accounts.Account
	NormalSide  accounts.Side
	Scope       string
	StartDate   string
	EndDate     string
	GeneratedAt string
	Page        int
	Pages       int
	Opening     string
	Closing     string
	TotalDebit  string
	TotalCredit string
	Lines       []statementLine
}

// HTML renders the statement document without converting it.
func (s *StatementRenderer) HTML(res ledger.Result) ([]byte, error) {
	view := statementView{
		NormalSide:  res.NormalSide,
		StartDate:   shared.FormatDate(res.StartDate),
		EndDate:     shared.FormatDate(res.EndDate),
		GeneratedAt: s.now().UTC().Format(time.RFC1123),
		Page:        res.Pagination.Page,
		Pages:       res.Pagination.Pages,
		Opening:     money.Format(res.OpeningBalance),
		Closing:     money.Format(res.ClosingBalance),
		TotalDebit:  money.Format(res.Totals.Debit),
		TotalCredit: money.Format(res.Totals.Credit),
		Lines:       make([]statementLine, 0, len(res.Lines)),
	}
	if res.Account != nil {
		view.Account = *res.Account
		view.Scope = res.Account.Scope.String()
	}
	for _, l := range res.Lines {
		desc := l.Description
		if desc == "" {
			desc = l.Narration
		}
		view.Lines = append(view.Lines, statementLine{
			Date:        shared.FormatDate(l.EntryDate),
			Voucher:     l.VoucherNumber,
			Description: desc,
			Debit:       blankZero(l.Debit.IsZero(), money.Format(l.Debit)),
			Credit:      blankZero(l.Credit.IsZero(), money.Format(l.Credit)),
			Balance:     money.Format(l.RunningBalance),
		})
	}
	var buf bytes.Buffer
	if err := statementTmpl.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderStatement renders res into a PDF document.
func (s *StatementRenderer) RenderStatement(ctx context.Context, res ledger.Result) ([]byte, error) {
	html, err := s.HTML(res)
	if err != nil {
		return nil, err
	}
	return s.pdf.RenderHTML(ctx, html, PageOptions{})
}

func blankZero(zero bool, s string) string {
	if zero {
		return ""
	}
	return s
}
