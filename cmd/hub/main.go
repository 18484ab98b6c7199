package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sizang-hub/sizang-hub/internal/admin"
	"github.com/sizang-hub/sizang-hub/internal/app"
	"github.com/sizang-hub/sizang-hub/internal/audit"
	audithttp "github.com/sizang-hub/sizang-hub/internal/audit/http"
	"github.com/sizang-hub/sizang-hub/internal/auth"
	"github.com/sizang-hub/sizang-hub/internal/community"
	"github.com/sizang-hub/sizang-hub/internal/forums"
	"github.com/sizang-hub/sizang-hub/internal/groups"
	"github.com/sizang-hub/sizang-hub/internal/notifications"
	"github.com/sizang-hub/sizang-hub/internal/observability"
	"github.com/sizang-hub/sizang-hub/internal/platform/cache"
	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/internal/rbac"
	"github.com/sizang-hub/sizang-hub/internal/reports"
	"github.com/sizang-hub/sizang-hub/internal/resources"
	"github.com/sizang-hub/sizang-hub/internal/roles"
	"github.com/sizang-hub/sizang-hub/internal/session"
	"github.com/sizang-hub/sizang-hub/internal/shared"
	"github.com/sizang-hub/sizang-hub/internal/users"
	"github.com/sizang-hub/sizang-hub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotency := shared.NewIdempotencyStore(pool)
	auditLogger := shared.NewAuditLogger(pool)
	guard := rbac.Middleware{Logger: logger, Observer: metrics}
	events := notifications.NewEvents(jobClient)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo, auditLogger, users.WithLogger(logger))
	authService := auth.NewService(auth.NewRepository(pool), userRepo, jobClient, logger)
	roleService := roles.NewService(userService)

	forumService := forums.NewService(forums.NewRepository(pool),
		forums.WithNotifier(events),
		forums.WithCategoryCache(cache.NewJSONCache(redisClient, "forum_categories", time.Hour)),
		forums.WithMentions(userRepo),
		forums.WithLogger(logger),
	)
	groupService := groups.NewService(groups.NewRepository(pool),
		groups.WithDirectory(userRepo),
		groups.WithNotifier(events),
		groups.WithLogger(logger),
	)
	resourceService := resources.NewService(resources.NewRepository(pool), events, logger)
	reportService := reports.NewService(reports.NewRepository(pool), events, auditLogger, logger)
	notificationService := notifications.NewService(notifications.NewRepository(pool))
	adminService := admin.NewService(admin.Sources{
		Users:     userService,
		Forums:    forumService,
		Groups:    groupService,
		Resources: resourceService,
		Reports:   reportService,
	}, cache.NewJSONCache(redisClient, "admin_dashboard", time.Minute), jobClient)

	communityService := community.NewService(community.NewRepository(pool), forumService,
		cache.NewJSONCache(redisClient, "languages", time.Hour), logger)
	seed, err := community.LoadFile(cfg.CommunityFile)
	if err != nil {
		logger.Error("load community file", slog.Any("error", err))
		os.Exit(1)
	}
	if err := communityService.Seed(ctx, seed); err != nil {
		logger.Error("seed community", slog.Any("error", err))
		os.Exit(1)
	}

	resolver := &session.Resolver{
		Sessions: sessionManager,
		Loader:   userService,
		Tokens:   tokens,
		Logger:   logger,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Resolver:       resolver,
		RBACMiddleware: guard,
		Metrics:        metrics,
		Readiness: map[string]app.Pinger{
			"postgres": pool,
			"redis":    app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
		AuthHandler:          auth.NewHandler(logger, authService, tokens, sessionManager, csrfManager, guard),
		PermissionsHandler:   rbac.NewPermissionsHandler(logger),
		UsersHandler:         users.NewHandler(logger, userService, guard),
		RolesHandler:         roles.NewHandler(logger, roleService, guard),
		ForumsHandler:        forums.NewHandler(logger, forumService, guard, idempotency),
		GroupsHandler:        groups.NewHandler(logger, groupService, guard, idempotency),
		ResourcesHandler:     resources.NewHandler(logger, resourceService, guard, idempotency),
		ReportsHandler:       reports.NewHandler(logger, reportService, guard, idempotency),
		NotificationsHandler: notifications.NewHandler(logger, notificationService, guard),
		AdminHandler:         admin.NewHandler(logger, adminService, guard),
		AuditHandler:         audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), guard),
		CommunityHandler:     community.NewHandler(logger, communityService),
		Community:            communityService,
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
