package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler serves report endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	idempotency shared.IdempotencyKeys
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, keys shared.IdempotencyKeys) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, idempotency: keys}
}

// MountRoutes registers report routes. Members without moderate_content see
// only the reports they filed when listing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireWithFallback(rbac.CapModerateContent, http.HandlerFunc(h.listOwn))).Get("/", h.list)
	r.With(h.rbac.Require(rbac.CapCreateContent), shared.Idempotent(h.idempotency, "reports")).Post("/", h.create)
	r.With(h.rbac.RequireAuthenticated()).Get("/{id}", h.get)
	r.With(h.rbac.Require(rbac.CapModerateContent)).Patch("/{id}", h.review)
	r.With(h.rbac.Require(rbac.CapManageContent)).Delete("/{id}", h.delete)
}

func (h *Handler) filter(r *http.Request) (ListFilter, shared.PageRequest) {
	page := shared.ParsePageRequest(r)
	q := r.URL.Query()
	return ListFilter{
		Status: Status(q.Get("status")),
		Type:   TargetType(q.Get("type")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}, page
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, page := h.filter(r)
	items, total, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list reports failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	filter, page := h.filter(r)
	items, total, err := h.service.ListOwn(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list own reports failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Create(r.Context(), rbac.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create report failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rep)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "get report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	var input Review
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rep, err := h.service.Review(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "review report failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete report failed", err)
		return
	}
	httpx.NoContent(w)
}
