package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sizang-hub/sizang-hub/internal/app"
	"github.com/sizang-hub/sizang-hub/internal/auth"
	jobmetrics "github.com/sizang-hub/sizang-hub/internal/jobs"
	"github.com/sizang-hub/sizang-hub/internal/notifications"
	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/internal/platform/mail"
	"github.com/sizang-hub/sizang-hub/internal/shared"
	"github.com/sizang-hub/sizang-hub/internal/users"
	"github.com/sizang-hub/sizang-hub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	sender, err := mail.NewSMTPSender(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		logger.Error("init smtp sender", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	notificationStore := notifications.NewService(notifications.NewRepository(pool))
	authService := auth.NewService(auth.NewRepository(pool), users.NewRepository(pool), auth.LogMailer{Logger: logger, BaseURL: cfg.PublicBaseURL}, logger)

	emailJob := &jobs.EmailJob{Sender: sender, BaseURL: cfg.PublicBaseURL, Logger: logger, Metrics: metrics}
	notificationJob := &jobs.NotificationJob{Store: notificationStore, Metrics: metrics}
	announcementJob := &jobs.AnnouncementJob{
		Members: users.NewRepository(pool),
		Store:   notificationStore,
		Logger:  logger,
		Metrics: metrics,
	}
	cleanupJob := &jobs.CleanupJob{
		Tokens:        authService,
		Idempotency:   shared.NewIdempotencyStore(pool),
		Notifications: notificationStore,
		Logger:        logger,
		Metrics:       metrics,
	}

	cleanupTask, err := jobs.NewCleanupTask(jobs.CleanupPayload{IdempotencyRetentionHours: 48, NotificationRetentionDays: 90})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskNotificationDeliver, Handler: notificationJob.Handle},
			{Type: jobs.TaskAnnouncement, Handler: announcementJob.Handle},
			{Type: jobs.TaskCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CleanupSchedule, Task: cleanupTask, Options: []asynq.Option{asynq.Unique(time.Hour)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
