package vouchers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type voucherService interface {
	Create(ctx context.Context, in CreateInput) (Voucher, error)
	Get(ctx context.Context, id int64) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, shared.Pagination, error)
	Post(ctx context.Context, id int64) (Voucher, error)
	Reverse(ctx context.Context, id int64, reason string) (Voucher, error)
}

// Handler wires HTTP endpoints for vouchers.
type Handler struct {
	logger     *slog.Logger
	service    voucherService
	rbac       rbac.Middleware
	idempotent func(http.Handler) http.Handler
	maxLimit   int
}

// NewHandler constructs a voucher HTTP handler. idempotent wraps mutating routes.
func NewHandler(logger *slog.Logger, service voucherService, rbac rbac.Middleware, idempotent func(http.Handler) http.Handler, maxLimit int) *Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{logger: logger, service: service, rbac: rbac, idempotent: idempotent, maxLimit: maxLimit}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.With(h.rbac.RequireAny(shared.PermLedgerRead)).Get("/", h.list)
		r.With(h.rbac.RequireAny(shared.PermLedgerRead)).Get("/{id}", h.get)
		r.With(h.rbac.RequireAll(shared.PermLedgerVoucherWrite), h.idempotent).Post("/", h.create)
		r.With(h.rbac.RequireAll(shared.PermLedgerVoucherPost), h.idempotent).Post("/{id}/post", h.post)
		r.With(h.rbac.RequireAll(shared.PermLedgerReverse), h.idempotent).Post("/{id}/reverse", h.reverse)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := shared.ParseScope(q.Get("entityType"), q.Get("entityId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{
		Scope:  scope,
		Status: Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Page:   shared.ParsePageRequest(q.Get("page"), q.Get("limit"), h.maxLimit),
	}
	items, meta, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list vouchers", err)
		return
	}
	out := make([]VoucherDTO, 0, len(items))
	for _, v := range items {
		out = append(out, ToDTO(v))
	}
	httpx.Page(w, out, meta)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get voucher", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(v))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create voucher", err)
		return
	}
	httpx.Data(w, http.StatusCreated, ToDTO(v))
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	v, err := h.service.Post(r.Context(), id)
	if err != nil {
		h.fail(w, "post voucher", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(v))
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req reverseVoucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Reverse(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, "reverse voucher", err)
		return
	}
	httpx.Data(w, http.StatusOK, ToDTO(v))
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
