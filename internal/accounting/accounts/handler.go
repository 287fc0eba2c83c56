package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type accountService interface {
	List(ctx context.Context, scope shared.Scope) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
}

// Handler serves the chart of accounts endpoints.
type Handler struct {
	service accountService
	logger  *slog.Logger
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service accountService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the chart of accounts routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/chart-of-accounts", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLedgerRead))
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// AccountDTO is the wire shape of an account.
type AccountDTO struct {
	ID         int64             `json:"id"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Type       AccountType       `json:"type"`
	NormalSide Side              `json:"normalSide"`
	EntityType shared.EntityType `json:"entityType"`
	EntityID   *int64            `json:"entityId,omitempty"`
	IsActive   bool              `json:"isActive"`
}

// ToDTO converts an account to its wire shape.
func ToDTO(a Account) AccountDTO {
	return AccountDTO{
		ID:         a.ID,
		Code:       a.Code,
		Name:       a.Name,
		Type:       a.Type,
		NormalSide: a.NormalSide(),
		EntityType: a.Scope.EntityType,
		EntityID:   a.Scope.EntityID,
		IsActive:   a.IsActive,
	}
}

// List handles GET /chart-of-accounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.List(r.Context(), scope)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	out := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, ToDTO(a))
	}
	httpx.Data(w, http.StatusOK, out)
}

// Get handles GET /chart-of-accounts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError("id", "must be an integer"))
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(account))
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
