package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
)

// Handler serves admin endpoints.
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

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(rbac.CapManageContent, rbac.CapModerateContent))
	r.Get("/dashboard", h.dashboard)
	r.Post("/dashboard/refresh", h.refresh)
	r.With(h.rbac.Require(rbac.CapManageContent)).Post("/announcements", h.announce)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Dashboard(r.Context(), rbac.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Fail(w, r, h.logger, "load dashboard failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		httpx.Fail(w, r, h.logger, "refresh dashboard failed", err)
		return
	}
	httpx.NoContent(w)
}

type announcementRequest struct {
	Content string `json:"content"`
}

func (h *Handler) announce(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	if err := h.service.Announce(r.Context(), actor, req.Content); err != nil {
		httpx.Fail(w, r, h.logger, "announce failed", err)
		return
	}
	h.logger.Info("announcement queued", slog.String("actor_id", actor.ID))
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
