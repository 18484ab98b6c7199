package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sizang-hub/sizang-hub/internal/admin"
	audithttp "github.com/sizang-hub/sizang-hub/internal/audit/http"
	"github.com/sizang-hub/sizang-hub/internal/auth"
	"github.com/sizang-hub/sizang-hub/internal/community"
	"github.com/sizang-hub/sizang-hub/internal/forums"
	"github.com/sizang-hub/sizang-hub/internal/groups"
	"github.com/sizang-hub/sizang-hub/internal/notifications"
	"github.com/sizang-hub/sizang-hub/internal/observability"
	"github.com/sizang-hub/sizang-hub/internal/platform/httpx"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/reports"
	"github.com/sizang-hub/sizang-hub/internal/resources"
	"github.com/sizang-hub/sizang-hub/internal/roles"
	"github.com/sizang-hub/sizang-hub/internal/session"
	"github.com/sizang-hub/sizang-hub/internal/shared"
	"github.com/sizang-hub/sizang-hub/internal/users"
	"github.com/sizang-hub/sizang-hub/jobs"
)

// Pinger reports dependency health for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Resolver       *session.Resolver
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
	Readiness      map[string]Pinger

	AuthHandler          *auth.Handler
	PermissionsHandler   *rbac.PermissionsHandler
	UsersHandler         *users.Handler
	RolesHandler         *roles.Handler
	ForumsHandler        *forums.Handler
	GroupsHandler        *groups.Handler
	ResourcesHandler     *resources.Handler
	ReportsHandler       *reports.Handler
	NotificationsHandler *notifications.Handler
	AdminHandler         *admin.Handler
	AuditHandler         *audithttp.Handler
	CommunityHandler     *community.Handler
	Community            *community.Service
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with hub defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Resolver:       params.Resolver,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(logger, params.Readiness))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.Community != nil {
			r.Use(params.Community.Negotiate)
		}
		if params.AuthHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				params.AuthHandler.MountRoutes(r)
				if params.PermissionsHandler != nil {
					r.Get("/guard", params.PermissionsHandler.Check)
				}
			})
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.ForumsHandler != nil {
			r.Route("/categories", params.ForumsHandler.MountCategoryRoutes)
			r.Route("/forum-threads", params.ForumsHandler.MountThreadRoutes)
		}
		if params.GroupsHandler != nil {
			r.Route("/groups", params.GroupsHandler.MountRoutes)
		}
		if params.ResourcesHandler != nil {
			r.Route("/resources", params.ResourcesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.AdminHandler != nil {
			r.Route("/admin", params.AdminHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
		if params.CommunityHandler != nil {
			r.Route("/languages", params.CommunityHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.Require(rbac.CapManageContent))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})
	return r
}

func readiness(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := make(map[string]string, len(checks))
		healthy := true
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("dependency", name), slog.Any("error", err))
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, map[string]any{"ready": healthy, "dependencies": status})
	}
}
