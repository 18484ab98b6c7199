package groups

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler serves group endpoints.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/members", h.members)
	r.Get("/{id}/posts", h.posts)
	r.Get("/{id}/posts/{postID}/comments", h.comments)
	r.With(h.rbac.Require(rbac.CapCreateContent), shared.Idempotent(h.idempotency, "groups")).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/join", h.join)
		r.Post("/{id}/leave", h.leave)
		r.Post("/{id}/invites", h.invite)
		r.Put("/{id}/members/{userID}", h.setMemberStatus)
		r.Delete("/{id}/posts/{postID}", h.deletePost)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapCreateContent))
		r.With(shared.Idempotent(h.idempotency, "group_posts")).Post("/{id}/posts", h.createPost)
		r.Post("/{id}/posts/{postID}/comments", h.createComment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("search"), Language: q.Get("language"), Limit: page.Limit(), Offset: page.Offset()}
	items, total, err := h.service.List(r.Context(), rbac.ActorFromContext(r.Context()), filter)
	if err != nil {
		httpx.Fail(w, r, h.logger, "list groups failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get group failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	g, err := h.service.Create(r.Context(), rbac.ActorFromContext(r.Context()), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create group failed", err)
		return
	}
	h.logger.Info("group created", slog.String("group_id", g.ID), slog.String("creator_id", g.CreatorID), slog.String("privacy", string(g.Privacy)))
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	g, err := h.service.Update(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update group failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "delete group failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Join(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "join group failed", err)
		return
	}
	status := http.StatusOK
	if m.Status == StatusPending {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, m)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Leave(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, h.logger, "leave group failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	status := MemberStatus(r.URL.Query().Get("status"))
	items, total, err := h.service.Members(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), status, page.Limit(), page.Offset())
	if err != nil {
		h.fail(w, r, "list members failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

type statusRequest struct {
	Status MemberStatus `json:"status"`
}

func (h *Handler) setMemberStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.SetMemberStatus(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), req.Status)
	if err != nil {
		httpx.Fail(w, r, h.logger, "update member failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	var input InviteInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	m, err := h.service.Invite(r.Context(), actor, chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "invite member failed", err)
		return
	}
	h.logger.Info("group invite", slog.String("group_id", m.GroupID), slog.String("user_id", m.UserID),
		slog.String("inviter_id", actor.ID), slog.String("status", string(m.Status)))
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) posts(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	items, total, err := h.service.ListPosts(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), page.Limit(), page.Offset())
	if err != nil {
		h.fail(w, r, "list group posts failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var input PostInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	post, err := h.service.CreatePost(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create group post failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeletePost(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "postID"))
	if err != nil {
		httpx.Fail(w, r, h.logger, "delete group post failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePageRequest(r)
	items, total, err := h.service.ListComments(r.Context(), rbac.ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "postID"), page.Limit(), page.Offset())
	if err != nil {
		h.fail(w, r, "list group comments failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	var input CommentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateComment(r.Context(), rbac.ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "postID"), input)
	if err != nil {
		httpx.Fail(w, r, h.logger, "create group comment failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// fail renders the guard prompt for anonymous visitors of private groups.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if rbac.ActorFromContext(r.Context()) == nil && errors.Is(err, httpx.ErrUnauthorized) {
		rbac.WriteAuthPrompt(w)
		return
	}
	httpx.Fail(w, r, h.logger, msg, err)
}
