package resources

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler serves resource endpoints.
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

// MountRoutes registers resource routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/download", h.download)
	r.With(h.rbac.Require(rbac.CapModerateContent)).Get("/pending", h.pending)
	r.With(h.rbac.Require(rbac.CapCreateContent), shared.Idempotent(h.idempotency, "resources")).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	r.With(h.rbac.Require(rbac.CapModerateContent)).Post("/{id}/approve", h.approve)
}

func (h *Handler) filter(r *http.Request) (ListFilter, shared.PageRequest) {
	page := shared.ParsePageRequest(r)
	q := r.URL.Query()
	return ListFilter{
		Type:     Type(q.Get("type")),
		Language: q.Get("language"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    page.Limit(),
		Offset:   page.Offset(),
	}, page
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, page := h.filter(r)
	h.respondList(w, r, filter, page)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	filter, page := h.filter(r)
	filter.PendingOnly = true
	h.respondList(w, r, filter, page)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, filter ListFilter, page shared.PageRequest) {
	items, total, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list resources failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "get resource failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Download(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "download resource failed", err)
		return
	}
	if r.URL.Query().Get("redirect") == "false" {
		httpx.JSON(w, http.StatusOK, map[string]any{"url": res.Link(), "download_count": res.DownloadCount})
		return
	}
	http.Redirect(w, r, res.Link(), http.StatusFound)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Create(r.Context(), rbac.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create resource failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input Update
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Update(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update resource failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete resource failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor := rbac.ActorFromContext(r.Context())
	res, err := h.service.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "approve resource failed", err)
		return
	}
	h.logger.Info("resource approved", slog.String("resource_id", res.ID), slog.String("actor_id", actor.ID))
	httpx.JSON(w, http.StatusOK, res)
}
