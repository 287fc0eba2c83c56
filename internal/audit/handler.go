package audit

import (
	"context"
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

type timelineService interface {
	Timeline(ctx context.Context, f TimelineFilters) (Result, error)
}

// Handler serves GET /audit-logs.
type Handler struct {
	logger  *slog.Logger
	service timelineService
	rbac    rbac.Middleware
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service timelineService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers the audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/audit-logs", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLedgerRead))
		r.Get("/", h.list)
	})
}

// RowDTO is the wire shape of an audit record.
type RowDTO struct {
	ID       int64          `json:"id"`
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Scope    string         `json:"scope"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	verr := &shared.ValidationError{}
	from := parseTime(verr, "from", q.Get("from"))
	to := parseTime(verr, "to", q.Get("to"))
	if err := verr.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.service.Timeline(r.Context(), TimelineFilters{
		Scope:    scope,
		Entity:   q.Get("entity"),
		EntityID: q.Get("ref"),
		Action:   q.Get("action"),
		From:     from,
		To:       to,
		Page:     shared.PageRequest{Page: page, Limit: limit},
	})
	if err != nil {
		if httpx.IsServerError(err) && h.logger != nil {
			h.logger.Error("audit timeline", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	out := make([]RowDTO, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, RowDTO(row))
	}
	httpx.Page(w, out, res.Paging)
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(verr *shared.ValidationError, field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		verr.Add(field, "must be RFC 3339 or YYYY-MM-DD")
		return time.Time{}
	}
	return t
}
