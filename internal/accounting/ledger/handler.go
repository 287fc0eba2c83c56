package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type ledgerService interface {
	Query(ctx context.Context, filter Filter) (Result, error)
}

// StatementRenderer turns a ledger result into a PDF document.
type StatementRenderer interface {
	RenderStatement(ctx context.Context, res Result) ([]byte, error)
}

// Handler serves ledger queries.
type Handler struct {
	logger   *slog.Logger
	service  ledgerService
	rbac     rbac.Middleware
	renderer StatementRenderer
	maxLimit int
}

// NewHandler constructs the handler. renderer may be nil, which disables the
// statement export.
func NewHandler(logger *slog.Logger, service ledgerService, rbac rbac.Middleware, renderer StatementRenderer, maxLimit int) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, renderer: renderer, maxLimit: maxLimit}
}

// MountRoutes registers the ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLedgerRead))
		r.Get("/", h.query)
		r.Get("/statement.pdf", h.statement)
	})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, "query ledger", err)
		return
	}
	lines, summary := ToDTO(res)
	httpx.PageWithSummary(w, lines, res.Pagination, summary)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, httpx.CodeInternal, "Service Unavailable", "statement export is not configured")
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.AccountID == 0 {
		httpx.RespondError(w, shared.NewValidationError("accountId", "required"))
		return
	}
	res, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, "query ledger statement", err)
		return
	}
	pdf, err := h.renderer.RenderStatement(r.Context(), res)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("render ledger statement", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusBadGateway, httpx.CodeInternal, "Bad Gateway", "statement rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=ledger-%d.pdf", filter.AccountID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// parseFilter reads the query string. Without accountId the rest is not
// validated since the query short-circuits to an empty result.
func (h *Handler) parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{Page: shared.ParsePageRequest(q.Get("page"), q.Get("limit"), h.maxLimit)}
	raw := strings.TrimSpace(q.Get("accountId"))
	if raw == "" {
		return filter, nil
	}
	verr := &shared.ValidationError{}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		verr.Add("accountId", "must be a positive integer")
	}
	filter.AccountID = id
	filter.Scope, err = shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	verr.Merge("entityType", err)
	filter.StartDate, err = optionalDate("startDate", q.Get("startDate"))
	verr.Merge("startDate", err)
	filter.EndDate, err = optionalDate("endDate", q.Get("endDate"))
	verr.Merge("endDate", err)
	return filter, verr.Err()
}

func optionalDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return shared.ParseDate(field, raw)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
