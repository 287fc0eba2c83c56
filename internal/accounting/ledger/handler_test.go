package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubLedgerService struct {
	queryFn func(ctx context.Context, filter Filter) (Result, error)
}

func (s *stubLedgerService) Query(ctx context.Context, filter Filter) (Result, error) {
	return s.queryFn(ctx, filter)
}

type stubRenderer struct {
	pdf []byte
	err error
}

func (s stubRenderer) RenderStatement(ctx context.Context, res Result) ([]byte, error) {
	return s.pdf, s.err
}

func serveLedger(t *testing.T, svc ledgerService, renderer StatementRenderer, perms []string, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			actor := &shared.Actor{ID: 1, Scope: shared.AdminScope(), Permissions: perms}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	NewHandler(nil, svc, rbac.Middleware{}, renderer, 500).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestLedgerHandlerParsesFilter(t *testing.T) {
	var captured Filter
	svc := &stubLedgerService{queryFn: func(ctx context.Context, filter Filter) (Result, error) {
		captured = filter
		account := accounts.Account{ID: 1, Code: "1100", Name: "Cash", Type: accounts.AccountTypeAsset, Scope: shared.AdminScope()}
		lines, _ := RunningBalances(accounts.SideDebit, d("0"), threeLineSnapshot().Lines)
		return Result{
			Account:        &account,
			ClosingBalance: d("90"),
			Totals:         Totals{Debit: d("120"), Credit: d("30")},
			Lines:          lines,
			Pagination:     shared.NewPagination(filter.Page, 3),
		}, nil
	}}
	rr := serveLedger(t, svc, nil, []string{shared.PermLedgerRead},
		"/ledger?accountId=1&entityType=admin&startDate=2024-01-01&endDate=2024-01-31&page=2&limit=10")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, int64(1), captured.AccountID)
	assert.Equal(t, shared.AdminScope(), captured.Scope)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), captured.StartDate)
	assert.Equal(t, shared.PageRequest{Page: 2, Limit: 10}, captured.Page)

	var body struct {
		Data []struct {
			AccountID      int64  `json:"accountId"`
			DebitAmount    string `json:"debitAmount"`
			CreditAmount   string `json:"creditAmount"`
			RunningBalance string `json:"runningBalance"`
		} `json:"data"`
		Pagination shared.Pagination `json:"pagination"`
		Summary    struct {
			ClosingBalance      string `json:"closingBalance"`
			ClosingBalanceMinor int64  `json:"closingBalanceMinor"`
			Totals              struct {
				DebitAmount  string `json:"debitAmount"`
				CreditAmount string `json:"creditAmount"`
			} `json:"totals"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	assert.Equal(t, int64(1), body.Data[0].AccountID)
	assert.Equal(t, "100.00", body.Data[0].DebitAmount)
	assert.Equal(t, "0.00", body.Data[0].CreditAmount)
	assert.Equal(t, "30.00", body.Data[1].CreditAmount)
	assert.Equal(t, "70.00", body.Data[1].RunningBalance)
	assert.Equal(t, "90.00", body.Summary.ClosingBalance)
	assert.Equal(t, int64(9000), body.Summary.ClosingBalanceMinor)
	assert.Equal(t, "120.00", body.Summary.Totals.DebitAmount)
	assert.Equal(t, "30.00", body.Summary.Totals.CreditAmount)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, 1, body.Pagination.Pages)
}

func TestLedgerHandlerWithoutAccountSkipsScope(t *testing.T) {
	svc := &stubLedgerService{queryFn: func(ctx context.Context, filter Filter) (Result, error) {
		assert.Zero(t, filter.AccountID)
		return Result{Lines: []Line{}, Pagination: shared.NewPagination(filter.Page, 0)}, nil
	}}
	rr := serveLedger(t, svc, nil, []string{shared.PermLedgerRead}, "/ledger")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"data":[]`)
}

func TestLedgerHandlerRejectsBadDates(t *testing.T) {
	svc := &stubLedgerService{queryFn: func(ctx context.Context, filter Filter) (Result, error) {
		t.Fatal("service must not be called")
		return Result{}, nil
	}}
	rr := serveLedger(t, svc, nil, []string{shared.PermLedgerRead}, "/ledger?accountId=1&entityType=ADMIN&startDate=01/02/2024")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "startDate")
}

func TestLedgerHandlerRequiresReadPermission(t *testing.T) {
	rr := serveLedger(t, &stubLedgerService{}, nil, []string{shared.PermLedgerVoucherWrite}, "/ledger?accountId=1&entityType=ADMIN")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLedgerStatementRendersPDF(t *testing.T) {
	svc := &stubLedgerService{queryFn: func(ctx context.Context, filter Filter) (Result, error) {
		return Result{Lines: []Line{}}, nil
	}}
	rr := serveLedger(t, svc, stubRenderer{pdf: []byte("%PDF-1.7")}, []string{shared.PermLedgerRead}, "/ledger/statement.pdf?accountId=1&entityType=ADMIN")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7", rr.Body.String())

	rr = serveLedger(t, svc, stubRenderer{err: errors.New("gotenberg down")}, []string{shared.PermLedgerRead}, "/ledger/statement.pdf?accountId=1&entityType=ADMIN")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = serveLedger(t, svc, stubRenderer{}, []string{shared.PermLedgerRead}, "/ledger/statement.pdf?entityType=ADMIN")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
