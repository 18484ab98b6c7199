package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/shared"
)

var errBearerDisabled = errors.New("session: bearer tokens not accepted")

// TokenVerifier validates a bearer token and returns the user ID it names.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (string, error)
}

// Resolver builds the request's Provider and places the resolved actor in
// the request context. Cookie sessions are refreshed against Loader so the
// snapshot never outlives a role change; bearer tokens are stateless.
type Resolver struct {
	Sessions *shared.SessionManager
	Loader   ActorLoader
	Tokens   TokenVerifier
	Logger   *slog.Logger
}

// Middleware must run after the session middleware.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := res.logger()

		var provider *Provider
		if raw, ok := BearerToken(r); ok {
			provider = NewProvider(NewMemoryStore(), logger)
			_ = provider.Restore(ctx)
			if _, err := provider.Authenticate(ctx, res.tokenAuth(raw)); err != nil {
				logger.Info("bearer token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				rbac.WriteAuthPrompt(w)
				return
			}
		} else {
			provider = res.sessionProvider(ctx, logger)
		}

		unsubscribe := provider.Subscribe(func(actor *rbac.Actor) {
			if actor == nil {
				logger.Debug("session actor cleared", slog.String("path", r.URL.Path))
				return
			}
			logger.Debug("session actor changed", slog.String("actor_id", actor.ID), slog.String("role", actor.Role.String()))
		})
		defer unsubscribe()

		ctx = ContextWithProvider(ctx, provider)
		ctx = rbac.ContextWithActor(ctx, provider.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (res *Resolver) sessionProvider(ctx context.Context, logger *slog.Logger) *Provider {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		provider := NewProvider(NewMemoryStore(), logger)
		_ = provider.Restore(ctx)
		return provider
	}
	var renew func()
	if res.Sessions != nil {
		renew = func() { res.Sessions.Renew(sess) }
	}
	provider := NewProvider(NewValueStore(sess, renew), logger)
	if err := provider.Restore(ctx); err != nil {
		return provider
	}
	if res.Loader != nil {
		if err := provider.Refresh(ctx, res.Loader); err != nil {
			logger.Warn("refresh session actor", slog.Any("error", err))
		}
	}
	return provider
}

func (res *Resolver) tokenAuth(raw string) AuthFunc {
	return func(ctx context.Context) (rbac.Actor, error) {
		if res.Tokens == nil || res.Loader == nil {
			return rbac.Actor{}, errBearerDisabled
		}
		userID, err := res.Tokens.VerifyToken(ctx, raw)
		if err != nil {
			return rbac.Actor{}, err
		}
		return res.Loader.LoadActor(ctx, userID)
	}
}

func (res *Resolver) logger() *slog.Logger {
	if res.Logger != nil {
		return res.Logger
	}
	return slog.Default()
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
