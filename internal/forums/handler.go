package forums

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler serves forum endpoints.
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

// MountCategoryRoutes registers category routes.
func (h *Handler) MountCategoryRoutes(r chi.Router) {
	r.Get("/", h.listCategories)
	r.Get("/{id}", h.getCategory)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManageContent))
		r.Post("/", h.saveCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
}

// MountThreadRoutes registers thread and reply routes.
func (h *Handler) MountThreadRoutes(r chi.Router) {
	r.Get("/", h.listThreads)
	r.Get("/{id}", h.getThread)
	r.Get("/{id}/replies", h.listReplies)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapCreateContent))
		r.With(shared.Idempotent(h.idempotency, "forum_threads")).Post("/", h.createThread)
		r.With(shared.Idempotent(h.idempotency, "forum_replies")).Post("/{id}/replies", h.createReply)
		r.Post("/{id}/like", h.likeThread)
		r.Post("/replies/{replyID}/like", h.likeReply)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Patch("/{id}", h.updateThread)
		r.Delete("/{id}", h.deleteThread)
		r.Patch("/replies/{replyID}", h.updateReply)
		r.Delete("/replies/{replyID}", h.deleteReply)
	})
	r.With(h.rbac.Require(rbac.CapModerateContent)).Put("/{id}/state", h.setState)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.Fail(w, r, h.logger, "list categories failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := h.service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "get category failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cat)
}

func (h *Handler) saveCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cat, err := h.service.SaveCategory(r.Context(), rbac.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "save category failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cat)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete category failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	q := r.URL.Query()
	filter := ThreadFilter{
		CategoryID: q.Get("category"),
		Language:   q.Get("language"),
		Search:     q.Get("search"),
		AuthorID:   q.Get("author"),
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}
	items, total, err := h.service.ListThreads(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list threads failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.service.GetThread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "get thread failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, thread)
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	var input ThreadInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	thread, err := h.service.CreateThread(r.Context(), rbac.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create thread failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, thread)
}

func (h *Handler) updateThread(w http.ResponseWriter, r *http.Request) {
	var input ThreadUpdate
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	thread, err := h.service.UpdateThread(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update thread failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, thread)
}

func (h *Handler) deleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteThread(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete thread failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) setState(w http.ResponseWriter, r *http.Request) {
	var state ThreadState
	if err := httpx.DecodeJSON(r, &state); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	thread, err := h.service.SetThreadState(r.Context(), actor, chi.URLParam(r, "id"), state)
	if err != nil {
		httpx.Fail(w, r, h.logger, "moderate thread failed", err)
		return
	}
	h.logger.Info("thread moderated", slog.String("actor_id", actor.ID), slog.String("thread_id", thread.ID),
		slog.Bool("pinned", thread.IsPinned), slog.Bool("locked", thread.IsLocked))
	httpx.JSON(w, http.StatusOK, thread)
}

func (h *Handler) listReplies(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	items, total, err := h.service.ListReplies(r.Context(), chi.URLParam(r, "id"), page.Limit(), page.Offset())
	if err != nil {
		httpx.Fail(w, r, h.logger, "list replies failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) createReply(w http.ResponseWriter, r *http.Request) {
	var input ReplyInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reply, err := h.service.CreateReply(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create reply failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reply)
}

func (h *Handler) updateReply(w http.ResponseWriter, r *http.Request) {
	var input ReplyInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reply, err := h.service.UpdateReply(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "replyID"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update reply failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, reply)
}

func (h *Handler) deleteReply(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteReply(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "replyID")); err != nil {
		httpx.Fail(w, r, h.logger, "delete reply failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) likeThread(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, LikeThread, chi.URLParam(r, "id"))
}

func (h *Handler) likeReply(w http.ResponseWriter, r *http.Request) {
	h.like(w, r, LikeReply, chi.URLParam(r, "replyID"))
}

func (h *Handler) like(w http.ResponseWriter, r *http.Request, target LikeTarget, id string) {
	res, err := h.service.ToggleLike(r.Context(), rbac.ActorFromContext(r.Context()), target, id)
	if err != nil {
		httpx.Fail(w, r, h.logger, "like failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
