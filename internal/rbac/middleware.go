package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
)

// Links rendered alongside guard denials so clients can offer a way forward.
const (
	SignInPath = "/auth/sign-in"
	SignUpPath = "/auth/sign-up"
	HomePath   = "/"
)

// GuardObserver receives every guard decision, typically for metrics.
type GuardObserver interface {
	ObserveGuard(capability string, outcome Outcome)
}

// Middleware enforces guard decisions at the HTTP trust boundary. The actor
// is read from the request context, so it must run after actor resolution.
type Middleware struct {
	Logger   *slog.Logger
	Observer GuardObserver
}

// Require allows the request only when the actor holds c.
func (m Middleware) Require(c Capability) func(http.Handler) http.Handler {
	return m.guard(c, nil)
}

// RequireWithFallback serves fallback instead of a denial when an
// authenticated actor lacks c. Unauthenticated requests still get the
// authentication prompt.
func (m Middleware) RequireWithFallback(c Capability, fallback http.Handler) func(http.Handler) http.Handler {
	return m.guard(c, fallback)
}

func (m Middleware) guard(c Capability, fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := Decide(ActorFromContext(r.Context()), c, fallback != nil)
			m.observe(c.String(), outcome)
			switch outcome {
			case OutcomeAllowed:
				next.ServeHTTP(w, r)
			case OutcomeCustomFallback:
				fallback.ServeHTTP(w, r)
			case OutcomeDenied:
				m.logDenied(r, c.String())
				WriteDenied(w)
			default:
				WriteAuthPrompt(w)
			}
		})
	}
}

// RequireAny allows the request when the actor holds at least one of caps.
func (m Middleware) RequireAny(caps ...Capability) func(http.Handler) http.Handler {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}
	label := strings.Join(names, "|")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			outcome := OutcomeAuthPrompt
			if actor != nil {
				outcome = OutcomeDenied
				for _, c := range caps {
					if Decide(actor, c, false) == OutcomeAllowed {
						outcome = OutcomeAllowed
						break
					}
				}
			}
			m.observe(label, outcome)
			switch outcome {
			case OutcomeAllowed:
				next.ServeHTTP(w, r)
			case OutcomeDenied:
				m.logDenied(r, label)
				WriteDenied(w)
			default:
				WriteAuthPrompt(w)
			}
		})
	}
}

// RequireAuthenticated allows any signed-in actor.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFromContext(r.Context()) == nil {
				m.observe("authenticated", OutcomeAuthPrompt)
				WriteAuthPrompt(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(capability string, outcome Outcome) {
	if m.Observer != nil {
		m.Observer.ObserveGuard(capability, outcome)
	}
}

func (m Middleware) logDenied(r *http.Request, capability string) {
	if m.Logger == nil {
		return
	}
	actor := ActorFromContext(r.Context())
	m.Logger.Warn("access denied",
		slog.String("path", r.URL.Path),
		slog.String("capability", capability),
		slog.String("actor_id", actor.ID),
		slog.String("role", actor.Role.String()),
	)
}

// WriteAuthPrompt renders the authentication-required response.
func WriteAuthPrompt(w http.ResponseWriter) {
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Authentication Required",
		Status: http.StatusUnauthorized,
		Detail: "Please sign in to access this content",
		Links:  map[string]string{"sign_in": SignInPath, "sign_up": SignUpPath},
	})
}

// WriteDenied renders the generic access-denied response.
func WriteDenied(w http.ResponseWriter) {
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Access Denied",
		Status: http.StatusForbidden,
		Detail: "You don't have permission to access this content",
		Links:  map[string]string{"home": HomePath},
	})
}
