package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/session"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *TokenIssuer
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	rbac           rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenIssuer, sessions *shared.SessionManager, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		sessionManager: sessions,
		csrfManager:    csrf,
		rbac:           rbac,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.csrfToken)
	r.Post("/signup", h.handleSignup)
	r.Post("/verify", h.handleVerify)
	r.Post("/verify/resend", h.handleResend)
	r.Get("/pending", h.pendingState)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/password/forgot", h.handleForgot)
	r.Post("/password/reset", h.handleReset)
	r.With(h.rbac.RequireAuthenticated()).Get("/me", h.me)
}

func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Session Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var input SignupInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Signup(r.Context(), input)
	if err != nil {
		h.fail(w, r, "signup failed", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		_ = session.SavePending(sess, session.KeyPendingVerification, session.Pending{UserID: user.ID, Email: user.Email, IssuedAt: time.Now().UTC()})
	}
	h.logger.Info("member signed up", slog.String("user_id", user.ID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": user, "verification_required": true})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.signIn(w, r, "verify email failed", func(ctx context.Context) (rbac.Actor, error) {
		return h.service.Verify(ctx, req.Token)
	}, session.KeyPendingVerification)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if req.Email == "" {
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			if pending, ok := session.LoadPending(sess, session.KeyPendingVerification); ok {
				req.Email = pending.Email
			}
		}
	}
	if req.Email == "" {
		httpx.ValidationProblem(w, map[string]string{"email": "required"})
		return
	}
	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, "resend verification failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) pendingState(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if p, ok := session.LoadPending(sess, session.KeyPendingVerification); ok {
			out["verification"] = p
		}
		if p, ok := session.LoadPending(sess, session.KeyPendingReset); ok {
			out["reset"] = p
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var input LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.signIn(w, r, "login failed", func(ctx context.Context) (rbac.Actor, error) {
		return h.service.Login(ctx, input)
	}, "")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if provider := session.ProviderFromContext(ctx); provider != nil {
		if err := provider.Logout(ctx); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	if sess := shared.SessionFromContext(ctx); sess != nil {
		if err := h.service.RemoveSession(ctx, sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.NoContent(w)
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Email == "" {
		httpx.ValidationProblem(w, map[string]string{"email": "required"})
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.logger.Error("forgot password", slog.Any("error", err))
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		_ = session.SavePending(sess, session.KeyPendingReset, session.Pending{Email: req.Email, IssuedAt: time.Now().UTC()})
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var input ResetInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.signIn(w, r, "reset password failed", func(ctx context.Context) (rbac.Actor, error) {
		return h.service.ResetPassword(ctx, input)
	}, session.KeyPendingReset)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	view := newSessionView(*rbac.ActorFromContext(r.Context()))
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		view.CSRFToken, _ = h.csrfManager.EnsureToken(sess)
	}
	httpx.JSON(w, http.StatusOK, view)
}

// signIn runs fn through the request's session provider, then records the
// session row and issues a bearer token.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, msg string, fn session.AuthFunc, pendingKey string) {
	ctx := r.Context()
	provider := session.ProviderFromContext(ctx)
	if provider == nil {
		h.logger.Error("session provider missing", slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusInternalServerError, "Session Unavailable", "")
		return
	}
	actor, err := provider.Authenticate(ctx, fn)
	if err != nil {
		h.fail(w, r, msg, err)
		return
	}

	view := newSessionView(*actor)
	if sess := shared.SessionFromContext(ctx); sess != nil {
		if pendingKey != "" {
			session.ClearPending(sess, pendingKey)
		}
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(ctx, sess.ID, actor.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
		sess.Delete(shared.CSRFSessionKey)
		view.CSRFToken, _ = h.csrfManager.EnsureToken(sess)
	}
	if h.tokens != nil {
		token, expires, err := h.tokens.Issue(*actor)
		if err != nil {
			h.logger.Error("issue bearer token", slog.Any("error", err))
		} else {
			view.Token = token
			view.ExpiresAt = &expires
		}
	}
	h.logger.Info("signed in", slog.String("actor_id", actor.ID), slog.String("role", actor.Role.String()))
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Invalid Credentials", "Email or password is incorrect")
	case errors.Is(err, shared.ErrEmailNotVerified):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Email Not Verified",
			Status: http.StatusForbidden,
			Detail: "Please verify your email address before signing in",
			Links:  map[string]string{"resend": "/api/auth/verify/resend"},
		})
	case errors.Is(err, shared.ErrTokenInvalid):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Token", err.Error())
	case errors.Is(err, shared.ErrTooManyAttempts):
		w.Header().Set("Retry-After", "60")
		httpx.Problem(w, http.StatusTooManyRequests, "Too Many Attempts", "Please wait a minute before trying again")
	default:
		httpx.Fail(w, r, h.logger, msg, err)
	}
}
