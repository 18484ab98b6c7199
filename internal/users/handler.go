package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Patch("/{id}", h.updateProfile)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManageUsers))
		r.Put("/{id}/role", h.changeRole)
		r.Delete("/{id}", h.deleteUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	filter := ListFilter{Search: r.URL.Query().Get("search"), Limit: page.Limit(), Offset: page.Offset()}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"role": "unknown role"})
			return
		}
		filter.Role = &role
	}
	items, total, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list users failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var input ProfileInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update profile failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{"role": "unknown role"})
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "id"), role)
	if err != nil {
		httpx.Fail(w, r, h.logger, "change role failed", err)
		return
	}
	h.logger.Info("role changed", slog.String("actor_id", actor.ID), slog.String("user_id", user.ID), slog.String("role", role.String()))
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete user failed", err)
		return
	}
	httpx.NoContent(w)
}
