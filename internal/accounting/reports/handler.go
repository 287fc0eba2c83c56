package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type reportService interface {
	TrialBalance(ctx context.Context, filter Filter) (TrialBalance, error)
}

// Handler serves report endpoints.
type Handler struct {
	logger  *slog.Logger
	service reportService
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service reportService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLedgerRead))
		r.Get("/trial-balance", h.trialBalance)
	})
}

type rowDTO struct {
	AccountID  int64                `json:"accountId"`
	Code       string               `json:"code"`
	Name       string               `json:"name"`
	Type       accounts.AccountType `json:"type"`
	NormalSide accounts.Side        `json:"normalSide"`
	Opening    money.Value          `json:"opening"`
	Debit      money.Value          `json:"debit"`
	Credit     money.Value          `json:"credit"`
	Closing    money.Value          `json:"closing"`
}

type groupDTO struct {
	Key      string      `json:"key"`
	Accounts []rowDTO    `json:"accounts"`
	Debit    money.Value `json:"debit"`
	Credit   money.Value `json:"credit"`
}

type trialBalanceDTO struct {
	EntityType  shared.EntityType `json:"entityType"`
	EntityID    *int64            `json:"entityId,omitempty"`
	StartDate   string            `json:"startDate,omitempty"`
	EndDate     string            `json:"endDate,omitempty"`
	Groups      []groupDTO        `json:"groups"`
	TotalDebit  money.Value       `json:"totalDebit"`
	TotalCredit money.Value       `json:"totalCredit"`
	Balanced    bool              `json:"balanced"`
}

func toDTO(tb TrialBalance) trialBalanceDTO {
	out := trialBalanceDTO{
		EntityType:  tb.Filter.Scope.EntityType,
		EntityID:    tb.Filter.Scope.EntityID,
		StartDate:   shared.FormatDate(tb.Filter.StartDate),
		EndDate:     shared.FormatDate(tb.Filter.EndDate),
		Groups:      make([]groupDTO, 0, len(tb.Groups)),
		TotalDebit:  money.ToValue(tb.TotalDebit),
		TotalCredit: money.ToValue(tb.TotalCredit),
		Balanced:    tb.Balanced(),
	}
	for _, g := range tb.Groups {
		grp := groupDTO{Key: g.Key, Accounts: make([]rowDTO, 0, len(g.Accounts)), Debit: money.ToValue(g.Debit), Credit: money.ToValue(g.Credit)}
		for _, a := range g.Accounts {
			grp.Accounts = append(grp.Accounts, rowDTO{
				AccountID:  a.AccountID,
				Code:       a.Code,
				Name:       a.Name,
				Type:       a.Type,
				NormalSide: a.NormalSide,
				Opening:    money.ToValue(a.Opening),
				Debit:      money.ToValue(a.Debit),
				Credit:     money.ToValue(a.Credit),
				Closing:    money.ToValue(a.Closing),
			})
		}
		out.Groups = append(out.Groups, grp)
	}
	return out
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &shared.ValidationError{}
	scope, err := shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	verr.Merge("entityType", err)
	filter := Filter{Scope: scope}
	filter.StartDate, err = optionalDate("startDate", q.Get("startDate"))
	verr.Merge("startDate", err)
	filter.EndDate, err = optionalDate("endDate", q.Get("endDate"))
	verr.Merge("endDate", err)
	if err := verr.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), filter)
	if err != nil {
		if httpx.IsServerError(err) && h.logger != nil {
			h.logger.Error("trial balance", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, toDTO(tb))
}

func optionalDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return shared.ParseDate(field, raw)
}
