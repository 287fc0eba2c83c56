package periods

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type periodService interface {
	Create(ctx context.Context, in CreateInput) (Period, error)
	Close(ctx context.Context, periodID int64) (Period, error)
	List(ctx context.Context, scope shared.Scope) ([]Period, error)
	Get(ctx context.Context, id int64) (Period, error)
}

// Handler wires HTTP endpoints for managing accounting periods.
type Handler struct {
	logger     *slog.Logger
	service    periodService
	rbac       rbac.Middleware
	idempotent func(http.Handler) http.Handler
}

// NewHandler constructs a period HTTP handler. idempotent wraps mutating routes.
func NewHandler(logger *slog.Logger, service periodService, rbac rbac.Middleware, idempotent func(http.Handler) http.Handler) *Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, rbac: rbac, idempotent: idempotent}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting-periods", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermLedgerRead)).Get("/", h.list)
		r.With(h.rbac.RequireAny(shared.PermLedgerRead)).Get("/{id}", h.get)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermLedgerPeriodManage), h.idempotent)
			r.Post("/", h.create)
			r.Post("/{id}/close", h.close)
		})
	})
}

// PeriodDTO is the wire shape of an accounting period.
type PeriodDTO struct {
	ID         int64             `json:"id"`
	PeriodName string            `json:"periodName"`
	PeriodType PeriodType        `json:"periodType"`
	StartDate  string            `json:"startDate"`
	EndDate    string            `json:"endDate"`
	EntityType shared.EntityType `json:"entityType"`
	EntityID   *int64            `json:"entityId,omitempty"`
	IsActive   bool              `json:"isActive"`
	IsClosed   bool              `json:"isClosed"`
	ClosedAt   *time.Time        `json:"closedAt,omitempty"`
	ClosedBy   *int64            `json:"closedBy,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ToDTO converts a period to its wire shape.
func ToDTO(p Period) PeriodDTO {
	return PeriodDTO{
		ID:         p.ID,
		PeriodName: p.Name,
		PeriodType: p.Type,
		StartDate:  shared.FormatDate(p.StartDate),
		EndDate:    shared.FormatDate(p.EndDate),
		EntityType: p.Scope.EntityType,
		EntityID:   p.Scope.EntityID,
		IsActive:   p.IsActive,
		IsClosed:   p.IsClosed,
		ClosedAt:   p.ClosedAt,
		ClosedBy:   p.ClosedBy,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type createPeriodRequest struct {
	PeriodName string `json:"periodName" validate:"required"`
	PeriodType string `json:"periodType" validate:"required,oneof=MONTHLY QUARTERLY YEARLY CUSTOM"`
	StartDate  string `json:"startDate" validate:"required"`
	EndDate    string `json:"endDate" validate:"required"`
	EntityType string `json:"entityType" validate:"required,oneof=ADMIN VENDOR"`
	EntityID   *int64 `json:"entityId"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.List(r.Context(), scope)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	out := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		out = append(out, ToDTO(p))
	}
	httpx.Data(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	period, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get period", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(period))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	verr := &shared.ValidationError{}
	start, err := shared.ParseDate("startDate", req.StartDate)
	if err != nil {
		verr.Add("startDate", "must be a date in YYYY-MM-DD format")
	}
	end, err := shared.ParseDate("endDate", req.EndDate)
	if err != nil {
		verr.Add("endDate", "must be a date in YYYY-MM-DD format")
	}
	if !verr.Empty() {
		httpx.RespondError(w, verr)
		return
	}
	in := CreateInput{
		Name:      req.PeriodName,
		Type:      PeriodType(req.PeriodType),
		StartDate: start,
		EndDate:   end,
		Scope:     shared.Scope{EntityType: shared.EntityType(req.EntityType), EntityID: req.EntityID},
	}
	period, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	httpx.Data(w, http.StatusCreated, ToDTO(period))
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	period, err := h.service.Close(r.Context(), id)
	if err != nil {
		h.fail(w, "close period", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(period))
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
