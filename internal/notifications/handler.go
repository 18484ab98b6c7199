package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler serves the current member's notifications.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated())
	r.Get("/", h.list)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/read-all", h.markAllRead)
	r.Post("/{id}/read", h.markRead)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	filter := ListFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}
	items, total, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list notifications failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.UnreadCount(r.Context(), rbac.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "count notifications failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "mark notification failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkAllRead(r.Context(), rbac.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "mark notifications failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}
