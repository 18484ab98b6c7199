package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sizang-hub/sizang-hub/internal/jobs"
)

// CleanupJob removes expired tokens, stale idempotency keys and old read
// notifications.
type CleanupJob struct {
	Tokens        interface{ PurgeExpired(context.Context) (int64, error) }
	Idempotency   interface{ Cleanup(context.Context, time.Duration) (int64, error) }
	Notifications interface{ Prune(context.Context, time.Duration) (int64, error) }
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
}

// Handle processes TaskCleanup tasks. Each sweep is independent; the first
// failure is returned after the others have run.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	payload := CleanupPayload{IdempotencyRetentionHours: 48, NotificationRetentionDays: 90}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskCleanup)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var firstErr error
	sweep := func(name string, fn func() (int64, error)) {
		n, err := fn()
		if err != nil {
			logger.Error("cleanup sweep failed", slog.String("sweep", name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		logger.Info("cleanup sweep", slog.String("sweep", name), slog.Int64("removed", n))
	}
	if j.Tokens != nil {
		sweep("tokens", func() (int64, error) { return j.Tokens.PurgeExpired(ctx) })
	}
	if j.Idempotency != nil && payload.IdempotencyRetentionHours > 0 {
		retention := time.Duration(payload.IdempotencyRetentionHours) * time.Hour
		sweep("idempotency", func() (int64, error) { return j.Idempotency.Cleanup(ctx, retention) })
	}
	if j.Notifications != nil && payload.NotificationRetentionDays > 0 {
		retention := time.Duration(payload.NotificationRetentionDays) * 24 * time.Hour
		sweep("notifications", func() (int64, error) { return j.Notifications.Prune(ctx, retention) })
	}
	return firstErr
}
